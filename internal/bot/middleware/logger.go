// Package middleware содержит промежуточные обработчики бота:
// логирование входящих сообщений и восстановление после паники.
package middleware

import (
	"github.com/mymmrac/telego"
	log "github.com/sirupsen/logrus"
)

// LogMessage логирует входящее сообщение.
// Записывает: user_id, chat_id, username, текст (первые 50 символов).
func LogMessage(message *telego.Message) {
	if message == nil || message.From == nil {
		return
	}

	text := []rune(message.Text)
	preview := string(text)
	if len(text) > 50 {
		preview = string(text[:50]) + "..."
	}

	log.WithFields(log.Fields{
		"user_id":  message.From.ID,
		"chat_id":  message.Chat.ID,
		"username": message.From.Username,
		"text":     preview,
	}).Debug("Входящее сообщение")
}
