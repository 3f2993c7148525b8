// Package streak: repository.go читает и обновляет поля серии в profiles.
package streak

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

// Repository предоставляет методы для работы с серией чекинов.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт новый репозиторий серий.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Pool нужен сервису для транзакции чекина.
func (r *Repository) Pool() *pgxpool.Pool {
	return r.db
}

const stateQuery = `SELECT current_streak, longest_streak, last_check_in FROM profiles WHERE id = $1`

// GetState возвращает состояние серии без блокировки.
func (r *Repository) GetState(ctx context.Context, userID uuid.UUID) (*State, error) {
	return scanState(r.db.QueryRow(ctx, stateQuery, userID))
}

// LockState возвращает состояние серии и блокирует строку профиля до конца транзакции.
// Два одновременных чекина выполняются по очереди, второй увидит уже записанный день.
func (r *Repository) LockState(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*State, error) {
	return scanState(tx.QueryRow(ctx, stateQuery+` FOR UPDATE`, userID))
}

func scanState(row pgx.Row) (*State, error) {
	var s State
	if err := row.Scan(&s.CurrentStreak, &s.LongestStreak, &s.LastCheckIn); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.ErrUserNotFound
		}
		return nil, fmt.Errorf("ошибка чтения серии: %w", err)
	}
	return &s, nil
}

// Apply записывает результат чекина одним UPDATE: награда прибавляется дельтой,
// поля серии выставляются. Возвращает новый баланс.
func (r *Repository) Apply(ctx context.Context, q postgres.Querier, userID uuid.UUID, day time.Time, out Outcome) (int64, error) {
	var balance int64
	err := q.QueryRow(ctx, `
		UPDATE profiles
		SET green_points = green_points + $2,
		    current_streak = $3,
		    longest_streak = $4,
		    last_check_in = $5,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING green_points
	`, userID, out.Reward(), out.NewStreak, out.Longest, day).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, common.ErrUserNotFound
		}
		return 0, fmt.Errorf("ошибка записи чекина: %w", err)
	}
	return balance, nil
}
