// Package admin: service.go содержит логику входа администратора и служебные действия.
package admin

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/argon2"

	"serotonyl.ru/green-earth/internal/common"
	"serotonyl.ru/green-earth/internal/features/economy"
)

// Reconciler: сверка балансов с журналом.
type Reconciler interface {
	ReconcileAll(ctx context.Context) ([]economy.Drift, error)
}

// Sweeper: перевод зависших звонков в missed.
type Sweeper interface {
	ExpireStale(ctx context.Context, olderThan time.Duration) (int, error)
}

// Service: админ-панель.
type Service struct {
	repo         *Repository
	passwordHash string
	sessionTTL   time.Duration
	economy      Reconciler
	calls        Sweeper
	ringTimeout  time.Duration

	now func() time.Time
}

// NewService создаёт сервис админки.
func NewService(repo *Repository, passwordHash string, sessionTTL time.Duration, economy Reconciler, calls Sweeper, ringTimeout time.Duration) *Service {
	return &Service{
		repo:         repo,
		passwordHash: passwordHash,
		sessionTTL:   sessionTTL,
		economy:      economy,
		calls:        calls,
		ringTimeout:  ringTimeout,
		now:          time.Now,
	}
}

// Login проверяет пароль и открывает сессию.
// После трёх неудачных попыток за час с одного адреса вход блокируется.
func (s *Service) Login(ctx context.Context, clientKey, password string) (*Session, error) {
	failures, err := s.repo.RecentFailures(ctx, clientKey, s.now().Add(-AttemptWindow))
	if err != nil {
		return nil, err
	}
	if failures >= MaxFailedAttempts {
		return nil, common.ErrTooManyAttempts
	}

	match := verifyArgon2id(password, s.passwordHash)
	if err := s.repo.LogAttempt(ctx, clientKey, match); err != nil {
		log.WithError(err).WithField("client", clientKey).Warn("Не удалось записать попытку входа")
	}
	if !match {
		log.WithField("client", clientKey).Warn("Неверный пароль администратора")
		return nil, common.ErrWrongPassword
	}

	token, err := generateSecureToken()
	if err != nil {
		return nil, err
	}
	session, err := s.repo.CreateSession(ctx, clientKey, hashToken(token), s.now().Add(s.sessionTTL))
	if err != nil {
		return nil, err
	}
	session.Token = token

	log.WithField("client", clientKey).Info("Администратор вошёл в панель")
	return session, nil
}

// Authorize проверяет токен сессии.
func (s *Service) Authorize(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, common.ErrNotAdmin
	}
	return s.repo.TouchSession(ctx, hashToken(token))
}

// Logout закрывает сессию.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.repo.DeactivateSession(ctx, hashToken(token))
}

// Reconciliation возвращает пользователей, у которых баланс расходится с журналом.
func (s *Service) Reconciliation(ctx context.Context) ([]economy.Drift, error) {
	drifts, err := s.economy.ReconcileAll(ctx)
	if err != nil {
		return nil, err
	}
	if drifts == nil {
		drifts = []economy.Drift{}
	}
	return drifts, nil
}

// SweepCalls переводит звонки, звонящие дольше таймаута, в missed.
func (s *Service) SweepCalls(ctx context.Context) (int, error) {
	n, err := s.calls.ExpireStale(ctx, s.ringTimeout)
	if err != nil {
		return n, err
	}
	log.WithField("expired", n).Info("Ручная зачистка звонков")
	return n, nil
}

// --- Криптографические утилиты ---

// verifyArgon2id проверяет пароль по хешу Argon2id.
// Формат хеша: $argon2id$v=19$m=65536,t=3,p=2$<salt_base64>$<hash_base64>
func verifyArgon2id(password, encodedHash string) bool {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		log.Error("Некорректный формат хеша Argon2id")
		return false
	}

	var memory, iterations uint32
	var parallelism uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &parallelism); err != nil {
		log.WithError(err).Error("Ошибка парсинга параметров Argon2id")
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		log.WithError(err).Error("Ошибка декодирования соли")
		return false
	}
	expectedHash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		log.WithError(err).Error("Ошибка декодирования хеша")
		return false
	}

	computedHash := argon2.IDKey([]byte(password), salt, iterations, memory, parallelism, uint32(len(expectedHash)))

	// Сравнение в постоянном времени
	return subtle.ConstantTimeCompare(computedHash, expectedHash) == 1
}

func generateSecureToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("не удалось сгенерировать токен: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
