// Package streak управляет ежедневными чекинами и сериями (стриками).
// models.go описывает состояние серии и результат чекина.
package streak

import (
	"time"

	"github.com/google/uuid"
)

// State: состояние серии пользователя перед чекином.
type State struct {
	CurrentStreak int        // Текущая серия (дней подряд)
	LongestStreak int        // Личный рекорд
	LastCheckIn   *time.Time // День последнего чекина, nil = ещё не было
}

// Outcome: результат успешного чекина. Считается чистой функцией Evaluate.
type Outcome struct {
	NewStreak   int   `json:"new_streak"`
	Longest     int   `json:"longest_streak"`
	BaseReward  int64 `json:"base_reward"`
	StreakBonus int64 `json:"streak_bonus"` // 0, если серия не кратна семи
}

// Reward: сколько баллов получит пользователь всего.
func (o Outcome) Reward() int64 {
	return o.BaseReward + o.StreakBonus
}

// Result: ответ чекина для API и бота.
type Result struct {
	Outcome
	Day       time.Time  `json:"day"`
	Awarded   int64      `json:"points_awarded"`
	Balance   int64      `json:"balance"`
	CheckInTx uuid.UUID  `json:"check_in_transaction_id"`
	BonusTx   *uuid.UUID `json:"streak_bonus_transaction_id"`
}

// Status: серия пользователя для экрана и команды бота.
type Status struct {
	CurrentStreak     int        `json:"current_streak"`
	LongestStreak     int        `json:"longest_streak"`
	LastCheckIn       *time.Time `json:"last_check_in"`
	CheckedInToday    bool       `json:"checked_in_today"`
	NextReward        int64      `json:"next_reward"`          // Награда следующего чекина
	DaysToStreakBonus int        `json:"days_to_streak_bonus"` // Сколько чекинов до бонуса
}
