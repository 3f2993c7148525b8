// Package limits: repository.go работает с таблицей daily_limits.
package limits

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/green-earth/internal/common"
	"serotonyl.ru/green-earth/internal/db/postgres"
)

// Repository предоставляет методы для работы с дневными лимитами.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт новый репозиторий лимитов.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Get возвращает счётчики за день. Нет строки → nil без ошибки.
func (r *Repository) Get(ctx context.Context, userID uuid.UUID, day time.Time) (*Record, error) {
	var rec Record
	err := r.db.QueryRow(ctx, `
		SELECT user_id, day, shares_count, likes_count, scans_count
		FROM daily_limits
		WHERE user_id = $1 AND day = $2
	`, userID, day).Scan(&rec.UserID, &rec.Day, &rec.SharesCount, &rec.LikesCount, &rec.ScansCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("ошибка чтения лимитов: %w", err)
	}
	return &rec, nil
}

// Increment увеличивает счётчик одним запросом и возвращает новое значение.
// Первое действие дня создаёт строку, гонки между двумя первыми действиями нет.
func (r *Repository) Increment(ctx context.Context, q postgres.Querier, userID uuid.UUID, day time.Time, kind Kind) (int, error) {
	col, ok := kind.column()
	if !ok {
		return 0, fmt.Errorf("неизвестный вид лимита %q", kind)
	}

	var count int
	err := q.QueryRow(ctx, fmt.Sprintf(`
		INSERT INTO daily_limits (user_id, day, %[1]s)
		VALUES ($1, $2, 1)
		ON CONFLICT (user_id, day)
		DO UPDATE SET %[1]s = daily_limits.%[1]s + 1, updated_at = NOW()
		RETURNING %[1]s
	`, col), userID, day).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ошибка увеличения лимита: %w", err)
	}
	return count, nil
}

// TryIncrement увеличивает счётчик, только пока он меньше max.
// Исчерпанный лимит → ErrDailyLimitReached, счётчик не меняется.
func (r *Repository) TryIncrement(ctx context.Context, q postgres.Querier, userID uuid.UUID, day time.Time, kind Kind, max int) (int, error) {
	col, ok := kind.column()
	if !ok {
		return 0, fmt.Errorf("неизвестный вид лимита %q", kind)
	}
	if max <= 0 {
		return 0, common.ErrDailyLimitReached
	}

	var count int
	err := q.QueryRow(ctx, fmt.Sprintf(`
		INSERT INTO daily_limits (user_id, day, %[1]s)
		VALUES ($1, $2, 1)
		ON CONFLICT (user_id, day)
		DO UPDATE SET %[1]s = daily_limits.%[1]s + 1, updated_at = NOW()
		WHERE daily_limits.%[1]s < $3
		RETURNING %[1]s
	`, col), userID, day, max).Scan(&count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, common.ErrDailyLimitReached
		}
		return 0, fmt.Errorf("ошибка увеличения лимита: %w", err)
	}
	return count, nil
}
