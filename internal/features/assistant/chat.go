package assistant

import (
	"context"
	"errors"
	"io"
	"strings"
)

// Роли сообщений чата.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage: одно сообщение диалога.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// MaxChatMessages: сколько последних сообщений отправляем и храним.
const MaxChatMessages = 50

// Streamer отдаёт ответ ассистента по кусочкам.
type Streamer interface {
	Stream(ctx context.Context, messages []ChatMessage, onDelta func(string) error) (string, error)
}

// Stream отправляет диалог функции eco-chat и вызывает onDelta на каждый кусочек ответа.
// Возвращает полный текст ответа. Ошибка onDelta прерывает поток.
func (c *Client) Stream(ctx context.Context, messages []ChatMessage, onDelta func(string) error) (string, error) {
	messages = Recent(messages, MaxChatMessages)
	resp, err := c.post(ctx, c.stream, "eco-chat", map[string]any{"messages": messages})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var full strings.Builder
	r := NewSSEReader(resp.Body)
	for {
		delta, err := r.Next()
		if errors.Is(err, io.EOF) {
			return full.String(), nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return full.String(), ctx.Err()
			}
			return full.String(), &UpstreamError{Status: resp.StatusCode, Message: err.Error()}
		}
		full.WriteString(delta)
		if onDelta != nil {
			if err := onDelta(delta); err != nil {
				return full.String(), err
			}
		}
	}
}

// Recent оставляет последние n сообщений.
func Recent(messages []ChatMessage, n int) []ChatMessage {
	if len(messages) <= n {
		return messages
	}
	return messages[len(messages)-n:]
}
