// Package content начисляет баллы за первый просмотр обучающего контента.
package content

import (
	"time"

	"serotonyl.ru/green-earth/internal/features/ledger"
)

// ViewResult: результат записи просмотра.
// Повторный просмотр: не ошибка: AlreadyViewed = true, баллов 0.
type ViewResult struct {
	AlreadyViewed bool  `json:"already_viewed"`
	PointsAwarded int64 `json:"points_awarded"`
	Balance       int64 `json:"balance,omitempty"`
}

// View: просмотренный контент для отметок "уже получено".
type View struct {
	ContentID    string             `json:"content_id"`
	Kind         ledger.ContentKind `json:"content_kind"`
	PointsEarned int64              `json:"points_earned"`
	ViewedAt     time.Time          `json:"viewed_at"`
}
