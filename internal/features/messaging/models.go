// Package messaging: беседы, сообщения, статусы доставки, реакции и индикатор "печатает".
// models.go описывает структуры данных.
package messaging

import (
	"time"

	"github.com/google/uuid"
)

// MaxMessageLength: максимальная длина сообщения в символах.
const MaxMessageLength = 4000

// MaxEmojiLength: реакция не длиннее этого числа символов.
const MaxEmojiLength = 16

// Conversation: беседа (личная или групповая).
type Conversation struct {
	ID            uuid.UUID   `json:"id"`
	IsGroup       bool        `json:"is_group"`
	Title         string      `json:"title"`
	CreatedBy     uuid.UUID   `json:"created_by"`
	Participants  []uuid.UUID `json:"participants"`
	LastMessage   *string     `json:"last_message"`
	LastMessageAt *time.Time  `json:"last_message_at"`
	Unread        int         `json:"unread"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// Message: сообщение в беседе.
type Message struct {
	ID             uuid.UUID     `json:"id"`
	ConversationID uuid.UUID     `json:"conversation_id"`
	SenderID       uuid.UUID     `json:"sender_id"`
	Content        string        `json:"content"`
	Status         ReceiptStatus `json:"status"` // Для отправителя: худший статус среди получателей
	CreatedAt      time.Time     `json:"created_at"`
}

// ReactionGroup: реакции одного эмодзи на сообщение.
type ReactionGroup struct {
	Emoji string      `json:"emoji"`
	Count int         `json:"count"`
	Users []uuid.UUID `json:"users"`
}

// StatusEvent: изменение статуса сообщений для подписчиков беседы.
type StatusEvent struct {
	ConversationID uuid.UUID     `json:"conversation_id"`
	MessageIDs     []uuid.UUID   `json:"message_ids"`
	UserID         uuid.UUID     `json:"user_id"`
	Status         ReceiptStatus `json:"status"`
	At             time.Time     `json:"at"`
}

// ReactionEvent: реакцию поставили или сняли.
type ReactionEvent struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	MessageID      uuid.UUID `json:"message_id"`
	UserID         uuid.UUID `json:"user_id"`
	Emoji          string    `json:"emoji"`
	Added          bool      `json:"added"`
}

// TypingEvent: пользователь начал или перестал печатать.
type TypingEvent struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	UserID         uuid.UUID `json:"user_id"`
	IsTyping       bool      `json:"is_typing"`
}

// UnreadCount: непрочитанные по беседам.
type UnreadCount struct {
	Total          int               `json:"total"`
	ByConversation map[uuid.UUID]int `json:"by_conversation"`
}
