// Package notifications: repository.go работает с таблицей notifications.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository предоставляет методы для работы с уведомлениями.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт новый репозиторий уведомлений.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Create сохраняет уведомление и заполняет ID и CreatedAt.
func (r *Repository) Create(ctx context.Context, n *Notification) error {
	if n.Data == nil {
		n.Data = map[string]any{}
	}
	data, err := json.Marshal(n.Data)
	if err != nil {
		return fmt.Errorf("ошибка сериализации данных уведомления: %w", err)
	}
	n.ID = uuid.New()
	err = r.db.QueryRow(ctx, `
		INSERT INTO notifications (id, user_id, type, title, body, data)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, n.ID, n.UserID, n.Type, n.Title, n.Body, data).Scan(&n.CreatedAt)
	if err != nil {
		return fmt.Errorf("ошибка создания уведомления: %w", err)
	}
	return nil
}

// List возвращает последние уведомления пользователя.
func (r *Repository) List(ctx context.Context, userID uuid.UUID, limit int, unreadOnly bool) ([]*Notification, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, type, title, body, data, read_at, created_at
		FROM notifications
		WHERE user_id = $1 AND (NOT $3 OR read_at IS NULL)
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit, unreadOnly)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения уведомлений: %w", err)
	}
	defer rows.Close()

	var out []*Notification
	for rows.Next() {
		var n Notification
		var data []byte
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Body, &data, &n.ReadAt, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования уведомления: %w", err)
		}
		if err := json.Unmarshal(data, &n.Data); err != nil {
			n.Data = map[string]any{}
		}
		out = append(out, &n)
	}
	return out, rows.Err()
}

// MarkRead отмечает уведомление прочитанным. Чужое или уже прочитанное: false.
func (r *Repository) MarkRead(ctx context.Context, userID, id uuid.UUID) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE notifications SET read_at = NOW()
		WHERE id = $1 AND user_id = $2 AND read_at IS NULL
	`, id, userID)
	if err != nil {
		return false, fmt.Errorf("ошибка отметки уведомления: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkAllRead отмечает все уведомления пользователя и возвращает их количество.
func (r *Repository) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE notifications SET read_at = NOW()
		WHERE user_id = $1 AND read_at IS NULL
	`, userID)
	if err != nil {
		return 0, fmt.Errorf("ошибка отметки уведомлений: %w", err)
	}
	return tag.RowsAffected(), nil
}

// CountUnread: сколько непрочитанных.
func (r *Repository) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	var n int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND read_at IS NULL`, userID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта уведомлений: %w", err)
	}
	return n, nil
}
