// Package content: repository.go работает с таблицей content_views.
package content

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/green-earth/internal/db/postgres"
	"serotonyl.ru/green-earth/internal/features/ledger"
)

// Repository предоставляет методы для работы с просмотрами.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт новый репозиторий просмотров.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Pool нужен сервису для транзакции просмотра.
func (r *Repository) Pool() *pgxpool.Pool {
	return r.db
}

// InsertView пытается записать первый просмотр.
// false: строка уже была, награду начислять нельзя.
func (r *Repository) InsertView(ctx context.Context, q postgres.Querier, userID uuid.UUID, contentID string, kind ledger.ContentKind, points int64) (bool, error) {
	var inserted string
	err := q.QueryRow(ctx, `
		INSERT INTO content_views (user_id, content_id, content_kind, points_earned)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, content_id) DO NOTHING
		RETURNING content_id
	`, userID, contentID, string(kind), points).Scan(&inserted)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("ошибка записи просмотра: %w", err)
	}
	return true, nil
}

// ListViewed возвращает все просмотры пользователя, новые сначала.
func (r *Repository) ListViewed(ctx context.Context, userID uuid.UUID) ([]View, error) {
	rows, err := r.db.Query(ctx, `
		SELECT content_id, content_kind, points_earned, viewed_at
		FROM content_views
		WHERE user_id = $1
		ORDER BY viewed_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения просмотров: %w", err)
	}
	defer rows.Close()

	var out []View
	for rows.Next() {
		var v View
		var kind string
		if err := rows.Scan(&v.ContentID, &kind, &v.PointsEarned, &v.ViewedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования просмотра: %w", err)
		}
		v.Kind = ledger.ContentKind(kind)
		out = append(out, v)
	}
	return out, rows.Err()
}
