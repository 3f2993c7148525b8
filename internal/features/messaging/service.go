// Package messaging: service.go: правила участия, рассылка событий и индикатор "печатает".
package messaging

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/green-earth/internal/common"
	"serotonyl.ru/green-earth/internal/db/postgres"
	"serotonyl.ru/green-earth/internal/realtime"
)

// Publisher рассылает события подписчикам темы.
type Publisher interface {
	Publish(topic, eventType string, payload any)
	PublishExcept(topic, eventType string, payload any, except uuid.UUID)
}

// Service управляет сообщениями.
type Service struct {
	repo    *Repository
	pub     Publisher
	tracker *TypingTracker

	mu         sync.Mutex
	debouncers map[uuid.UUID]*Debouncer // по ID подключения
}

// NewService создаёт новый сервис сообщений.
func NewService(repo *Repository, pub Publisher, typingTTL time.Duration) *Service {
	return &Service{
		repo:       repo,
		pub:        pub,
		tracker:    NewTypingTracker(typingTTL),
		debouncers: make(map[uuid.UUID]*Debouncer),
	}
}

func (s *Service) requireParticipant(ctx context.Context, conversationID, userID uuid.UUID) error {
	ok, err := s.repo.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return common.ErrNotParticipant
	}
	return nil
}

// CreateDirect возвращает личную беседу с peer, создавая её при необходимости.
func (s *Service) CreateDirect(ctx context.Context, userID, peer uuid.UUID) (uuid.UUID, error) {
	if userID == peer {
		return uuid.Nil, common.ErrSelfConversation
	}
	id, created, err := s.repo.FindOrCreateDirect(ctx, userID, peer)
	if err != nil {
		return uuid.Nil, err
	}
	if created {
		log.WithFields(log.Fields{
			"conversation_id": id,
			"user_id":         userID,
			"peer_id":         peer,
		}).Debug("Создана личная беседа")
	}
	return id, nil
}

// CreateGroup создаёт групповую беседу. Создатель всегда участник.
func (s *Service) CreateGroup(ctx context.Context, creator uuid.UUID, title string, members []uuid.UUID) (uuid.UUID, error) {
	title = strings.TrimSpace(title)
	all := append([]uuid.UUID{creator}, members...)
	return s.repo.CreateGroup(ctx, creator, title, all)
}

// List возвращает беседы пользователя.
func (s *Service) List(ctx context.Context, userID uuid.UUID) ([]*Conversation, error) {
	return s.repo.ListForUser(ctx, userID)
}

// Messages возвращает сообщения беседы для участника.
func (s *Service) Messages(ctx context.Context, userID, conversationID uuid.UUID, limit int, before *time.Time) ([]*Message, error) {
	if err := s.requireParticipant(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.repo.ListMessages(ctx, conversationID, limit, before)
}

// SendMessage сохраняет сообщение, гасит индикатор "печатает" автора
// и публикует message.new в тему беседы.
func (s *Service) SendMessage(ctx context.Context, userID, conversationID uuid.UUID, content string) (*Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, common.ErrEmptyMessage
	}
	if utf8.RuneCountInString(content) > MaxMessageLength {
		content = string([]rune(content)[:MaxMessageLength])
	}
	if err := s.requireParticipant(ctx, conversationID, userID); err != nil {
		return nil, err
	}

	m := &Message{ConversationID: conversationID, SenderID: userID, Content: content}
	if err := s.repo.InsertMessage(ctx, m); err != nil {
		return nil, err
	}

	s.stopTyping(conversationID, userID)
	s.pub.Publish(realtime.ConversationTopic(conversationID), realtime.EventMessageNew, m)
	return m, nil
}

// MarkDelivered: клиент получателя получил сообщение. Повтор ничего не меняет.
func (s *Service) MarkDelivered(ctx context.Context, userID, messageID uuid.UUID) error {
	conversationID, senderID, err := s.repo.MessageRef(ctx, messageID)
	if err != nil {
		return err
	}
	if senderID == userID {
		return nil
	}
	if err := s.requireParticipant(ctx, conversationID, userID); err != nil {
		return err
	}
	changed, at, err := s.repo.MarkDelivered(ctx, messageID, userID)
	if err != nil || !changed {
		return err
	}
	s.pub.Publish(realtime.ConversationTopic(conversationID), realtime.EventMessageStatus, StatusEvent{
		ConversationID: conversationID,
		MessageIDs:     []uuid.UUID{messageID},
		UserID:         userID,
		Status:         StatusDelivered,
		At:             at,
	})
	return nil
}

// MarkConversationSeen: пользователь открыл беседу. Возвращает число отмеченных сообщений.
func (s *Service) MarkConversationSeen(ctx context.Context, userID, conversationID uuid.UUID) (int, error) {
	ids, at, err := s.repo.MarkConversationSeen(ctx, conversationID, userID)
	if err != nil {
		return 0, err
	}
	if len(ids) > 0 {
		s.pub.Publish(realtime.ConversationTopic(conversationID), realtime.EventMessageStatus, StatusEvent{
			ConversationID: conversationID,
			MessageIDs:     ids,
			UserID:         userID,
			Status:         StatusSeen,
			At:             at,
		})
	}
	return len(ids), nil
}

func validEmoji(emoji string) bool {
	n := utf8.RuneCountInString(emoji)
	return n > 0 && n <= MaxEmojiLength && strings.TrimSpace(emoji) == emoji
}

// ToggleReaction снимает реакцию, если она стояла, иначе ставит.
// true: реакция теперь стоит.
func (s *Service) ToggleReaction(ctx context.Context, userID, messageID uuid.UUID, emoji string) (bool, error) {
	if !validEmoji(emoji) {
		return false, common.ErrInvalidEmoji
	}
	conversationID, _, err := s.repo.MessageRef(ctx, messageID)
	if err != nil {
		return false, err
	}
	if err := s.requireParticipant(ctx, conversationID, userID); err != nil {
		return false, err
	}

	added := false
	err = postgres.WithTx(ctx, s.repo.Pool(), func(tx pgx.Tx) error {
		deleted, err := s.repo.DeleteReaction(ctx, tx, messageID, userID, emoji)
		if err != nil || deleted {
			return err
		}
		added = true
		return s.repo.InsertReaction(ctx, tx, messageID, userID, emoji)
	})
	if err != nil {
		return false, err
	}

	s.pub.Publish(realtime.ConversationTopic(conversationID), realtime.EventReaction, ReactionEvent{
		ConversationID: conversationID,
		MessageID:      messageID,
		UserID:         userID,
		Emoji:          emoji,
		Added:          added,
	})
	return added, nil
}

// ListReactions возвращает реакции сообщения для участника беседы.
func (s *Service) ListReactions(ctx context.Context, userID, messageID uuid.UUID) ([]ReactionGroup, error) {
	conversationID, _, err := s.repo.MessageRef(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if err := s.requireParticipant(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	return s.repo.ListReactions(ctx, messageID)
}

// Unread: непрочитанные сообщения пользователя.
func (s *Service) Unread(ctx context.Context, userID uuid.UUID) (*UnreadCount, error) {
	return s.repo.Unread(ctx, userID)
}

// --- "Печатает" ---

func (s *Service) emitTyping(conversationID, userID uuid.UUID, typing bool) {
	s.pub.PublishExcept(realtime.ConversationTopic(conversationID), realtime.EventTyping, TypingEvent{
		ConversationID: conversationID,
		UserID:         userID,
		IsTyping:       typing,
	}, userID)
}

func (s *Service) debouncer(c *realtime.Client) *Debouncer {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.debouncers[c.ID]
	if !ok {
		d = NewDebouncer(c.UserID, s.tracker, s.emitTyping)
		s.debouncers[c.ID] = d
	}
	return d
}

// stopTyping гасит индикатор пользователя во всех его подключениях.
func (s *Service) stopTyping(conversationID, userID uuid.UUID) {
	s.mu.Lock()
	var mine []*Debouncer
	for _, d := range s.debouncers {
		if d.userID == userID {
			mine = append(mine, d)
		}
	}
	s.mu.Unlock()

	for _, d := range mine {
		d.Stop(conversationID)
	}
	if s.tracker.Stop(conversationID, userID) {
		s.emitTyping(conversationID, userID, false)
	}
}

// Typing обрабатывает нажатие или остановку из WebSocket.
func (s *Service) Typing(ctx context.Context, c *realtime.Client, conversationID uuid.UUID, typing bool) {
	if !typing {
		s.debouncer(c).Stop(conversationID)
		return
	}
	if err := s.requireParticipant(ctx, conversationID, c.UserID); err != nil {
		return
	}
	s.debouncer(c).Keystroke(conversationID)
}

// Keystroke: нажатие через HTTP, без подключения. Запись гасит TTL-очистка.
func (s *Service) Keystroke(ctx context.Context, userID, conversationID uuid.UUID) error {
	if err := s.requireParticipant(ctx, conversationID, userID); err != nil {
		return err
	}
	if s.tracker.Touch(conversationID, userID) {
		s.emitTyping(conversationID, userID, true)
	}
	return nil
}

// TypingUsers: кто сейчас печатает в беседе, кроме самого пользователя.
func (s *Service) TypingUsers(ctx context.Context, userID, conversationID uuid.UUID) ([]uuid.UUID, error) {
	if err := s.requireParticipant(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	return s.tracker.Active(conversationID, userID), nil
}

// SweepTyping гасит истёкшие индикаторы. Вызывается по крону.
func (s *Service) SweepTyping() int {
	expired := s.tracker.Sweep()
	for _, e := range expired {
		s.emitTyping(e.ConversationID, e.UserID, false)
	}
	return len(expired)
}

// Disconnected закрывает индикатор подключения.
func (s *Service) Disconnected(c *realtime.Client) {
	s.mu.Lock()
	d, ok := s.debouncers[c.ID]
	delete(s.debouncers, c.ID)
	s.mu.Unlock()
	if ok {
		d.Close()
	}
}

// CanSubscribe разрешает темы бесед участникам и личную тему владельцу.
func (s *Service) CanSubscribe(ctx context.Context, userID uuid.UUID, topic string) error {
	kind, id, ok := realtime.ParseTopic(topic)
	if !ok {
		return common.ErrNotParticipant
	}
	switch kind {
	case "conversation":
		return s.requireParticipant(ctx, id, userID)
	case "user":
		if id == userID {
			return nil
		}
	}
	return common.ErrNotParticipant
}
