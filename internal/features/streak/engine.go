package streak

import (
	"time"

	"serotonyl.ru/green-earth/internal/common"
	"serotonyl.ru/green-earth/internal/features/ledger"
)

// Evaluate считает чекин за день today.
//
// Правила:
//   - Второй чекин в тот же день → ErrAlreadyCheckedIn
//   - Чекин вчера → серия +1, иначе серия начинается с 1
//   - Каждый седьмой день серии добавляет бонус
//
// today: календарный день (см. common.DayOf).
func Evaluate(state State, today time.Time) (Outcome, error) {
	if state.LastCheckIn != nil && common.SameDay(*state.LastCheckIn, today) {
		return Outcome{}, common.ErrAlreadyCheckedIn
	}

	newStreak := 1
	if state.LastCheckIn != nil && common.SameDay(*state.LastCheckIn, common.PrevDay(today)) {
		newStreak = state.CurrentStreak + 1
	}

	longest := state.LongestStreak
	if newStreak > longest {
		longest = newStreak
	}

	out := Outcome{
		NewStreak:  newStreak,
		Longest:    longest,
		BaseReward: ledger.Reward(ledger.ActionDailyCheckIn),
	}
	if ledger.StreakBonusApplies(newStreak) {
		out.StreakBonus = ledger.Reward(ledger.ActionStreak7Bonus)
	}
	return out, nil
}

// StatusOf строит статус серии на день today без записи в БД.
// Пропущенный день обнуляет отображаемую серию: следующий чекин начнёт её заново.
func StatusOf(state State, today time.Time) Status {
	st := Status{
		CurrentStreak: state.CurrentStreak,
		LongestStreak: state.LongestStreak,
		LastCheckIn:   state.LastCheckIn,
	}
	if state.LastCheckIn != nil && common.SameDay(*state.LastCheckIn, today) {
		st.CheckedInToday = true
		st.DaysToStreakBonus = ledger.DaysToStreakBonus(state.CurrentStreak)
		// Следующий чекин будет завтра
		out, _ := Evaluate(state, today.AddDate(0, 0, 1))
		st.NextReward = out.Reward()
		return st
	}

	out, _ := Evaluate(state, today)
	if out.NewStreak == 1 {
		st.CurrentStreak = 0
	}
	st.NextReward = out.Reward()
	st.DaysToStreakBonus = ledger.DaysToStreakBonus(out.NewStreak - 1)
	return st
}
