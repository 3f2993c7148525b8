// Package common содержит общие утилиты, используемые во всём проекте.
// Сюда входят: русская плюрализация, форматирование чисел, работа с календарными днями.
package common

import (
	"fmt"
	"time"
)

// DateLayout: формат календарного дня, в котором даты сравниваются и логируются.
const DateLayout = "2006-01-02"

// DayOf возвращает календарный день момента t в зоне loc.
//
// Результат нормализован к полуночи UTC: так же pgx возвращает колонки DATE,
// поэтому значения из БД и из кода можно сравнивать через SameDay.
//
// Пример:
//
//	DayOf(2024-03-10T22:30:00Z, Europe/Moscow) → 2024-03-11 00:00 UTC
func DayOf(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}

// Today возвращает сегодняшний календарный день в зоне loc.
func Today(loc *time.Location) time.Time {
	return DayOf(time.Now(), loc)
}

// PrevDay возвращает предыдущий календарный день.
func PrevDay(day time.Time) time.Time {
	return day.AddDate(0, 0, -1)
}

// SameDay сравнивает два дня по дате, игнорируя время и зону.
func SameDay(a, b time.Time) bool {
	return a.Format(DateLayout) == b.Format(DateLayout)
}

// FormatDateTime форматирует время в формат "02.01.2006 15:04" в зоне loc.
// Используется для отображения дат транзакций.
func FormatDateTime(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format("02.01.2006 15:04")
}

// FormatDuration показывает длительность звонка как "мм:сс" или "чч:мм:сс".
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
