// Package profiles: service.go содержит бизнес-логику профилей.
// Сервис создаёт профиль при первом запросе, ищет пользователей,
// хранит адрес кошелька и привязывает чат Telegram по одноразовому токену.
package profiles

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/green-earth/internal/common"
	"serotonyl.ru/green-earth/internal/db/postgres"
)

var (
	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{3,32}$`)
	walletPattern   = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
)

// linkToken: ожидающая привязка чата Telegram (in-memory, с истечением).
type linkToken struct {
	userID    uuid.UUID
	expiresAt time.Time
}

// Service управляет профилями пользователей.
type Service struct {
	repo *Repository

	linkTTL    time.Duration
	linkTokens map[string]linkToken
	linkMu     sync.Mutex
}

// NewService создаёт новый сервис профилей.
func NewService(repo *Repository, linkTTL time.Duration) *Service {
	if linkTTL <= 0 {
		linkTTL = 10 * time.Minute
	}
	return &Service{
		repo:       repo,
		linkTTL:    linkTTL,
		linkTokens: make(map[string]linkToken),
	}
}

// EnsureProfile гарантирует, что профиль есть в базе.
// Если ник из токена занят или некорректен, профиль создаётся без ника.
func (s *Service) EnsureProfile(ctx context.Context, id Identity) error {
	exists, err := s.repo.Exists(ctx, id.ID)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	var username *string
	if usernamePattern.MatchString(id.Username) {
		username = &id.Username
	}

	created, err := s.repo.Create(ctx, id.ID, username, id.DisplayName)
	if err != nil && username != nil && postgres.IsUniqueViolation(err) {
		log.WithFields(log.Fields{
			"user_id":  id.ID,
			"username": id.Username,
		}).Warn("Ник уже занят, создаём профиль без ника")
		created, err = s.repo.Create(ctx, id.ID, nil, id.DisplayName)
	}
	if err != nil {
		return fmt.Errorf("ошибка регистрации профиля: %w", err)
	}

	if created {
		log.WithFields(log.Fields{
			"user_id":  id.ID,
			"username": id.Username,
		}).Info("Новый профиль зарегистрирован")
	}
	return nil
}

// Get возвращает профиль по ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Profile, error) {
	return s.repo.GetByID(ctx, id)
}

// GetByUsername возвращает профиль по нику (с @ или без).
func (s *Service) GetByUsername(ctx context.Context, username string) (*Profile, error) {
	username = strings.TrimPrefix(strings.TrimSpace(username), "@")
	if username == "" {
		return nil, common.ErrUserNotFound
	}
	return s.repo.GetByUsername(ctx, username)
}

// GetByTelegramChat возвращает профиль, к которому привязан чат.
func (s *Service) GetByTelegramChat(ctx context.Context, chatID int64) (*Profile, error) {
	return s.repo.GetByTelegramChat(ctx, chatID)
}

// TelegramChatID возвращает привязанный чат пользователя или nil.
func (s *Service) TelegramChatID(ctx context.Context, id uuid.UUID) (*int64, error) {
	return s.repo.TelegramChatID(ctx, id)
}

// SetWallet сохраняет адрес кошелька для вывода монет.
func (s *Service) SetWallet(ctx context.Context, id uuid.UUID, wallet string) error {
	wallet = strings.TrimSpace(wallet)
	if !walletPattern.MatchString(wallet) {
		return fmt.Errorf("%w: некорректный адрес", common.ErrWalletRequired)
	}
	return s.repo.UpdateWallet(ctx, id, wallet)
}

// IssueLinkToken выдаёт одноразовый токен для команды /start в боте.
func (s *Service) IssueLinkToken(id uuid.UUID) (string, time.Time) {
	token := generateSecureToken()
	expiresAt := time.Now().Add(s.linkTTL)

	s.linkMu.Lock()
	defer s.linkMu.Unlock()

	// Заодно чистим просроченные
	now := time.Now()
	for k, v := range s.linkTokens {
		if now.After(v.expiresAt) {
			delete(s.linkTokens, k)
		}
	}
	s.linkTokens[token] = linkToken{userID: id, expiresAt: expiresAt}
	return token, expiresAt
}

// RedeemLinkToken погашает токен и привязывает чат к профилю.
func (s *Service) RedeemLinkToken(ctx context.Context, token string, chatID int64) (*Profile, error) {
	s.linkMu.Lock()
	lt, ok := s.linkTokens[token]
	delete(s.linkTokens, token)
	s.linkMu.Unlock()

	if !ok || time.Now().After(lt.expiresAt) {
		return nil, common.ErrLinkTokenInvalid
	}
	if err := s.repo.LinkTelegram(ctx, lt.userID, chatID); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"user_id": lt.userID,
		"chat_id": chatID,
	}).Info("Telegram привязан к профилю")

	return s.repo.GetByID(ctx, lt.userID)
}

// UnlinkTelegram отвязывает чат (команда /stop в боте).
func (s *Service) UnlinkTelegram(ctx context.Context, chatID int64) error {
	return s.repo.UnlinkTelegram(ctx, chatID)
}

// generateSecureToken генерирует криптографически безопасный токен.
func generateSecureToken() string {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("fallback-%d", time.Now().UnixNano())
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
