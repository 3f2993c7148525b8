// Package ledger содержит чистые функции экономики: курс баллов к монетам,
// порог вывода и таблицу наград. Состояния нет, пакет используется всеми
// функциями, которые начисляют баллы.
package ledger

// Action: действие, за которое начисляется награда.
type Action string

const (
	ActionDailyCheckIn       Action = "daily_check_in"
	ActionStreak7Bonus       Action = "streak_7_bonus"
	ActionSharePost          Action = "share_post"
	ActionAuthorBonus        Action = "author_bonus"
	ActionNFTMint            Action = "nft_mint"
	ActionWasteScan          Action = "waste_scan"
	ActionContentArticle     Action = "content_article"
	ActionContentInfographic Action = "content_infographic"
	ActionContentVideo       Action = "content_video"
)

// RewardTable: единственный источник размеров наград.
// Ни один сервис не должен записывать сумму награды в коде напрямую.
var RewardTable = map[Action]int64{
	ActionDailyCheckIn:       100,
	ActionStreak7Bonus:       500,
	ActionSharePost:          2000,
	ActionAuthorBonus:        500,
	ActionNFTMint:            1000,
	ActionWasteScan:          50,
	ActionContentArticle:     20,
	ActionContentInfographic: 30,
	ActionContentVideo:       50,
}

// Reward возвращает награду за действие. Для неизвестного действия 0.
func Reward(action Action) int64 {
	return RewardTable[action]
}

// StreakBonusEvery: каждый такой день серии даёт бонус.
const StreakBonusEvery = 7

// StreakBonusApplies: серия кратна семи дням.
func StreakBonusApplies(streak int) bool {
	return streak > 0 && streak%StreakBonusEvery == 0
}

// DaysToStreakBonus: сколько чекинов осталось до ближайшего бонуса
// при текущей серии streak (1..7).
func DaysToStreakBonus(streak int) int {
	if streak < 0 {
		streak = 0
	}
	return StreakBonusEvery - streak%StreakBonusEvery
}

// ContentKind: тип обучающего контента.
type ContentKind string

const (
	ContentArticle     ContentKind = "article"
	ContentInfographic ContentKind = "infographic"
	ContentVideo       ContentKind = "video"
)

// ContentReward сопоставляет тип контента с наградой за просмотр.
// Второе значение false: тип неизвестен.
func ContentReward(kind ContentKind) (int64, bool) {
	switch kind {
	case ContentArticle:
		return Reward(ActionContentArticle), true
	case ContentInfographic:
		return Reward(ActionContentInfographic), true
	case ContentVideo:
		return Reward(ActionContentVideo), true
	}
	return 0, false
}
