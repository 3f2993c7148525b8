package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"serotonyl.ru/green-earth/internal/common"
)

// BinColor: цвет контейнера для сортировки.
type BinColor string

const (
	BinYellow BinColor = "yellow" // пластик и металл
	BinBlue   BinColor = "blue"   // бумага
	BinBlack  BinColor = "black"  // смешанные отходы
	BinRed    BinColor = "red"    // опасные отходы
)

// NormalizeBinColor приводит ответ модели к одному из четырёх цветов.
// Всё незнакомое уходит в чёрный контейнер.
func NormalizeBinColor(raw string) BinColor {
	switch c := BinColor(strings.ToLower(strings.TrimSpace(raw))); c {
	case BinYellow, BinBlue, BinBlack, BinRed:
		return c
	}
	return BinBlack
}

// ClassifyRequest: фото в base64 или ссылка на него. Нужно одно из двух.
type ClassifyRequest struct {
	ImageBase64 string `json:"image_base64,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
}

// Classification: результат распознавания.
type Classification struct {
	WasteType  string   `json:"waste_type"`
	Material   string   `json:"material"`
	Recyclable bool     `json:"recyclable"`
	BinColor   BinColor `json:"bin_color"`
	Disposal   string   `json:"disposal"`
	Reuse      string   `json:"reuse"`
	Confidence float64  `json:"confidence"`
}

// normalize не доверяет ответу модели: цвет из четырёх, уверенность в [0, 1].
func (c *Classification) normalize() {
	c.BinColor = NormalizeBinColor(string(c.BinColor))
	switch {
	case c.Confidence < 0:
		c.Confidence = 0
	case c.Confidence > 1:
		c.Confidence = 1
	}
	c.WasteType = strings.TrimSpace(c.WasteType)
	if c.WasteType == "" {
		c.WasteType = "unknown"
	}
}

// Classifier распознаёт мусор по фото.
type Classifier interface {
	Classify(ctx context.Context, req ClassifyRequest) (*Classification, error)
}

// Classify вызывает функцию classify-waste. Повторов нет: при ошибке пользователь решает сам.
func (c *Client) Classify(ctx context.Context, req ClassifyRequest) (*Classification, error) {
	if req.ImageBase64 == "" && req.ImageURL == "" {
		return nil, common.ErrImageRequired
	}
	resp, err := c.post(ctx, c.http, "classify-waste", req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out Classification
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &UpstreamError{Status: resp.StatusCode, Message: fmt.Sprintf("некорректный ответ: %v", err)}
	}
	out.normalize()
	return &out, nil
}
