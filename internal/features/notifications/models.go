// Package notifications хранит уведомления и доставляет их в WebSocket и Telegram.
package notifications

import (
	"time"

	"github.com/google/uuid"
)

// Notification: уведомление пользователя.
type Notification struct {
	ID        uuid.UUID      `json:"id"`
	UserID    uuid.UUID      `json:"user_id"`
	Type      string         `json:"type"` // gift, share, missed_call, call_rejected...
	Title     string         `json:"title"`
	Body      string         `json:"body"`
	Data      map[string]any `json:"data"`
	ReadAt    *time.Time     `json:"read_at"`
	CreatedAt time.Time      `json:"created_at"`
}
