// Package assistant: клиенты внешних функций: классификация мусора по фото
// и чат-ассистент с потоковым ответом. Плюс награда за скан и локальный кэш истории.
package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"serotonyl.ru/green-earth/internal/common"
)

// UpstreamError: внешняя функция ответила ошибкой.
// errors.Is с ErrUpstreamRateLimited / ErrUpstreamQuotaExhausted / ErrUpstreamUnavailable
// работает по коду ответа.
type UpstreamError struct {
	Status  int    // 0: до ответа не дошло (сеть, таймаут)
	Message string // текст из тела ответа, если был
}

func (e *UpstreamError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("функция ответила %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("функция ответила %d", e.Status)
}

// Unwrap сводит код ответа к одной из трёх причин.
func (e *UpstreamError) Unwrap() error {
	switch e.Status {
	case http.StatusTooManyRequests:
		return common.ErrUpstreamRateLimited
	case http.StatusPaymentRequired:
		return common.ErrUpstreamQuotaExhausted
	}
	return common.ErrUpstreamUnavailable
}

// DisplayMessage: что показать пользователю.
func DisplayMessage(err error) string {
	var ue *UpstreamError
	if errors.As(err, &ue) && ue.Message != "" && ue.Status != http.StatusTooManyRequests && ue.Status != http.StatusPaymentRequired {
		return ue.Message
	}
	switch {
	case errors.Is(err, common.ErrUpstreamRateLimited):
		return common.ErrUpstreamRateLimited.Error()
	case errors.Is(err, common.ErrUpstreamQuotaExhausted):
		return common.ErrUpstreamQuotaExhausted.Error()
	}
	return common.ErrUpstreamUnavailable.Error()
}

// Client вызывает внешние функции по HTTP.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	stream  *http.Client
}

// NewClient создаёт клиента. timeout ограничивает обычные запросы;
// потоковый чат ограничивается только контекстом.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
		stream:  &http.Client{},
	}
}

// post отправляет JSON и возвращает ответ с кодом 2xx. Иначе: *UpstreamError.
func (c *Client) post(ctx context.Context, hc *http.Client, name string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("ошибка кодирования запроса: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+name, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ошибка создания запроса: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := hc.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &UpstreamError{Message: err.Error()}
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()
	return nil, &UpstreamError{Status: resp.StatusCode, Message: errorMessage(resp.Body)}
}

// errorMessage достаёт поле message или error из тела ошибки.
func errorMessage(r io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(r, 64<<10))
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return ""
	}
	if body.Message != "" {
		return body.Message
	}
	return body.Error
}
