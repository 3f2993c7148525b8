// Package filters решает, кому бот отвечает.
package filters

import (
	"context"
	"errors"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/green-earth/internal/common"
	"serotonyl.ru/green-earth/internal/features/profiles"
)

// ProfileLookup находит профиль по привязанному чату.
type ProfileLookup interface {
	GetByTelegramChat(ctx context.Context, chatID int64) (*profiles.Profile, error)
}

// Sender отправляет сообщение в Telegram.
type Sender interface {
	SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error)
}

// NotLinkedText: ответ чату без привязанного профиля.
const NotLinkedText = "🔗 Чат не привязан к профилю Green Earth.\n" +
	"Откройте в приложении Профиль → Telegram и перейдите по ссылке привязки."

// ChatFilter пропускает только личные чаты, привязанные к профилю.
type ChatFilter struct {
	profiles ProfileLookup
	sender   Sender
}

func NewChatFilter(profiles ProfileLookup, sender Sender) *ChatFilter {
	return &ChatFilter{profiles: profiles, sender: sender}
}

// CheckAccess возвращает профиль владельца чата или false.
func (f *ChatFilter) CheckAccess(ctx context.Context, message *telego.Message) (*profiles.Profile, bool) {
	if message == nil {
		return nil, false
	}
	if message.From == nil {
		log.WithFields(log.Fields{
			"component": "ChatFilter",
			"chat_id":   message.Chat.ID,
			"chat_type": message.Chat.Type,
		}).Debug("nil message.From (service/channel message?)")
		return nil, false
	}

	logger := log.WithFields(log.Fields{
		"component": "ChatFilter",
		"chat_id":   message.Chat.ID,
		"chat_type": message.Chat.Type,
		"user_id":   message.From.ID,
	})

	// Группы и каналы игнорируем молча
	if message.Chat.Type != telego.ChatTypePrivate {
		logger.Debug("deny: not private")
		return nil, false
	}

	p, err := f.profiles.GetByTelegramChat(ctx, message.Chat.ID)
	if errors.Is(err, common.ErrTelegramNotLinked) {
		logger.Info("deny: chat not linked")
		if _, sendErr := f.sender.SendMessage(ctx, tu.Message(tu.ID(message.Chat.ID), NotLinkedText)); sendErr != nil {
			logger.WithError(sendErr).Warn("failed to send deny message")
		}
		return nil, false
	}
	if err != nil {
		logger.WithError(err).Error("profile lookup failed (db)")
		return nil, false
	}

	logger.WithField("profile_id", p.ID).Debug("allow: linked profile")
	return p, true
}
