// Package admin: служебная панель: отчёт сверки балансов и ручная зачистка
// зависших звонков. Вход по паролю (Argon2id), дальше по токену сессии.
package admin

import "time"

// Session: активная сессия администратора. В БД хранится только хэш токена.
type Session struct {
	ID              int64     `db:"id" json:"-"`
	ClientKey       string    `db:"client_key" json:"-"`
	Token           string    `db:"-" json:"token"`
	AuthenticatedAt time.Time `db:"authenticated_at" json:"authenticated_at"`
	ExpiresAt       time.Time `db:"expires_at" json:"expires_at"`
}

// LoginAttempt: попытка входа (для защиты от brute-force).
type LoginAttempt struct {
	ID          int64     `db:"id"`
	ClientKey   string    `db:"client_key"`
	AttemptTime time.Time `db:"attempt_time"`
	Success     bool      `db:"success"`
}

// Параметры защиты от перебора
const (
	MaxFailedAttempts = 3
	AttemptWindow     = time.Hour
)
