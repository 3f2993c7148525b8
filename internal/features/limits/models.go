// Package limits ведёт дневные счётчики действий (репосты, лайки, сканы).
// День считается в часовом поясе сервиса, новый день = новая строка.
package limits

import (
	"time"

	"github.com/google/uuid"
)

// Kind: вид ограниченного действия.
type Kind string

const (
	KindShares Kind = "shares"
	KindLikes  Kind = "likes"
	KindScans  Kind = "scans"
)

// Kinds: все виды в порядке вывода.
var Kinds = []Kind{KindShares, KindLikes, KindScans}

// column возвращает колонку счётчика. Имя колонки никогда не берётся из запроса.
func (k Kind) column() (string, bool) {
	switch k {
	case KindShares:
		return "shares_count", true
	case KindLikes:
		return "likes_count", true
	case KindScans:
		return "scans_count", true
	}
	return "", false
}

// Title: подпись для бота.
func (k Kind) Title() string {
	switch k {
	case KindShares:
		return "Репосты"
	case KindLikes:
		return "Лайки"
	case KindScans:
		return "Сканы"
	}
	return string(k)
}

// Record: счётчики пользователя за один день.
type Record struct {
	UserID      uuid.UUID `json:"user_id"`
	Day         time.Time `json:"day"`
	SharesCount int       `json:"shares_count"`
	LikesCount  int       `json:"likes_count"`
	ScansCount  int       `json:"scans_count"`
}

// Count возвращает счётчик вида. Пустая запись = ничего не сделано.
func (r *Record) Count(kind Kind) int {
	if r == nil {
		return 0
	}
	switch kind {
	case KindShares:
		return r.SharesCount
	case KindLikes:
		return r.LikesCount
	case KindScans:
		return r.ScansCount
	}
	return 0
}

// Usage: состояние одного лимита для отображения.
type Usage struct {
	Kind      Kind `json:"kind"`
	Used      int  `json:"used"`
	Max       int  `json:"max"`
	Remaining int  `json:"remaining"`
}

// Remaining: сколько действий осталось сегодня, не меньше нуля.
func Remaining(record *Record, kind Kind, max int) int {
	left := max - record.Count(kind)
	if left < 0 {
		return 0
	}
	return left
}
