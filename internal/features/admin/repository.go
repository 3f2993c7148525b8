// Package admin: repository.go работает с таблицами admin_sessions и admin_login_attempts.
package admin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/green-earth/internal/common"
)

// Repository работает с админ-таблицами.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// CreateSession сохраняет сессию по хэшу токена.
func (r *Repository) CreateSession(ctx context.Context, clientKey, tokenHash string, expiresAt time.Time) (*Session, error) {
	query := `
		INSERT INTO admin_sessions (client_key, token_hash, expires_at)
		VALUES ($1, $2, $3)
		RETURNING id, authenticated_at
	`
	s := &Session{ClientKey: clientKey, ExpiresAt: expiresAt}
	if err := r.db.QueryRow(ctx, query, clientKey, tokenHash, expiresAt).Scan(&s.ID, &s.AuthenticatedAt); err != nil {
		return nil, fmt.Errorf("ошибка создания сессии: %w", err)
	}
	return s, nil
}

// TouchSession находит активную сессию и обновляет last_activity.
// Нет сессии или она истекла → ErrNotAdmin.
func (r *Repository) TouchSession(ctx context.Context, tokenHash string) (*Session, error) {
	query := `
		UPDATE admin_sessions SET last_activity = NOW()
		WHERE token_hash = $1 AND is_active = TRUE AND expires_at > NOW()
		RETURNING id, client_key, authenticated_at, expires_at
	`
	var s Session
	err := r.db.QueryRow(ctx, query, tokenHash).Scan(&s.ID, &s.ClientKey, &s.AuthenticatedAt, &s.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrNotAdmin
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка проверки сессии: %w", err)
	}
	return &s, nil
}

// DeactivateSession закрывает сессию.
func (r *Repository) DeactivateSession(ctx context.Context, tokenHash string) error {
	query := `UPDATE admin_sessions SET is_active = FALSE WHERE token_hash = $1`
	_, err := r.db.Exec(ctx, query, tokenHash)
	return err
}

// LogAttempt записывает попытку входа.
func (r *Repository) LogAttempt(ctx context.Context, clientKey string, success bool) error {
	query := `INSERT INTO admin_login_attempts (client_key, success) VALUES ($1, $2)`
	_, err := r.db.Exec(ctx, query, clientKey, success)
	return err
}

// RecentFailures возвращает количество неудачных попыток за период.
func (r *Repository) RecentFailures(ctx context.Context, clientKey string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM admin_login_attempts
		WHERE client_key = $1 AND success = FALSE AND attempt_time >= $2
	`
	var count int
	err := r.db.QueryRow(ctx, query, clientKey, since).Scan(&count)
	return count, err
}
