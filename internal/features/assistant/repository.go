// Package assistant: repository.go хранит историю сканов.
package assistant

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/green-earth/internal/db/postgres"
)

// Scan: запись о распознанном мусоре.
type Scan struct {
	ID            uuid.UUID `json:"id"`
	UserID        uuid.UUID `json:"user_id"`
	ImageURL      *string   `json:"image_url,omitempty"`
	WasteType     string    `json:"waste_type"`
	Material      string    `json:"material"`
	Recyclable    bool      `json:"recyclable"`
	BinColor      BinColor  `json:"bin_color"`
	Confidence    float64   `json:"confidence"`
	Tips          string    `json:"tips"`
	PointsAwarded int64     `json:"points_awarded"`
	CreatedAt     time.Time `json:"created_at"`
}

// Repository предоставляет методы для работы со сканами.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт новый репозиторий сканов.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Pool нужен сервису для транзакции скана.
func (r *Repository) Pool() *pgxpool.Pool {
	return r.db
}

// InsertScan сохраняет скан.
func (r *Repository) InsertScan(ctx context.Context, q postgres.Querier, s *Scan) error {
	s.ID = uuid.New()
	err := q.QueryRow(ctx, `
		INSERT INTO waste_scans (id, user_id, image_url, waste_type, material, recyclable,
		                         bin_color, confidence, tips, points_awarded)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at
	`, s.ID, s.UserID, s.ImageURL, s.WasteType, s.Material, s.Recyclable,
		string(s.BinColor), s.Confidence, s.Tips, s.PointsAwarded,
	).Scan(&s.CreatedAt)
	if err != nil {
		return fmt.Errorf("ошибка сохранения скана: %w", err)
	}
	return nil
}

// ListScans возвращает последние сканы пользователя.
func (r *Repository) ListScans(ctx context.Context, userID uuid.UUID, limit int) ([]*Scan, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, image_url, waste_type, material, recyclable, bin_color,
		       confidence, tips, points_awarded, created_at
		FROM waste_scans
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения сканов: %w", err)
	}
	defer rows.Close()

	var out []*Scan
	for rows.Next() {
		s := &Scan{}
		if err := rows.Scan(&s.ID, &s.UserID, &s.ImageURL, &s.WasteType, &s.Material, &s.Recyclable,
			&s.BinColor, &s.Confidence, &s.Tips, &s.PointsAwarded, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования скана: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
