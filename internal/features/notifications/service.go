// Package notifications: service.go создаёт уведомление и рассылает его.
package notifications

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/green-earth/internal/realtime"
)

// Publisher: рассылка события в тему.
type Publisher interface {
	Publish(topic, eventType string, payload any)
}

// ChatLookup возвращает привязанный чат Telegram или nil.
type ChatLookup interface {
	TelegramChatID(ctx context.Context, id uuid.UUID) (*int64, error)
}

// Pusher отправляет текст в чат Telegram.
type Pusher interface {
	PushText(ctx context.Context, chatID int64, text string) error
}

// Service управляет уведомлениями.
type Service struct {
	repo   *Repository
	pub    Publisher
	chats  ChatLookup
	pusher Pusher
}

// NewService создаёт новый сервис уведомлений. pusher может быть nil (бот выключен).
func NewService(repo *Repository, pub Publisher, chats ChatLookup, pusher Pusher) *Service {
	return &Service{repo: repo, pub: pub, chats: chats, pusher: pusher}
}

// SetPusher подключает бота после его запуска.
func (s *Service) SetPusher(p Pusher) {
	s.pusher = p
}

// Notify сохраняет уведомление, отправляет его в личную тему
// и дублирует в Telegram, если чат привязан.
// Ошибка доставки в Telegram не считается ошибкой уведомления.
func (s *Service) Notify(ctx context.Context, userID uuid.UUID, kind, title, body string, data map[string]any) error {
	n := &Notification{UserID: userID, Type: kind, Title: title, Body: body, Data: data}
	if err := s.repo.Create(ctx, n); err != nil {
		return err
	}

	if s.pub != nil {
		s.pub.Publish(realtime.UserTopic(userID), realtime.EventNotification, n)
	}
	s.push(ctx, n)

	log.WithFields(log.Fields{
		"user_id": userID,
		"type":    kind,
	}).Debug("Уведомление создано")
	return nil
}

func (s *Service) push(ctx context.Context, n *Notification) {
	if s.pusher == nil || s.chats == nil {
		return
	}
	chatID, err := s.chats.TelegramChatID(ctx, n.UserID)
	if err != nil {
		log.WithError(err).WithField("user_id", n.UserID).Warn("Не удалось получить чат Telegram")
		return
	}
	if chatID == nil {
		return
	}
	text := n.Title
	if n.Body != "" {
		text = fmt.Sprintf("%s\n%s", n.Title, n.Body)
	}
	if err := s.pusher.PushText(ctx, *chatID, text); err != nil {
		log.WithError(err).WithField("user_id", n.UserID).Warn("Не удалось отправить уведомление в Telegram")
	}
}

// List возвращает уведомления и число непрочитанных.
func (s *Service) List(ctx context.Context, userID uuid.UUID, limit int, unreadOnly bool) ([]*Notification, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 30
	}
	items, err := s.repo.List(ctx, userID, limit, unreadOnly)
	if err != nil {
		return nil, 0, err
	}
	unread, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	return items, unread, nil
}

// MarkRead отмечает одно уведомление. Повторная отметка: не ошибка.
func (s *Service) MarkRead(ctx context.Context, userID, id uuid.UUID) error {
	_, err := s.repo.MarkRead(ctx, userID, id)
	return err
}

// MarkAllRead отмечает все уведомления пользователя.
func (s *Service) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.repo.MarkAllRead(ctx, userID)
}
