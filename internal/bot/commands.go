package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/green-earth/internal/common"
	"serotonyl.ru/green-earth/internal/features/limits"
	"serotonyl.ru/green-earth/internal/features/profiles"
)

const historySize = 10

// userErrors: ошибки, текст которых можно показать пользователю как есть.
var userErrors = []error{
	common.ErrAlreadyCheckedIn,
	common.ErrLinkTokenInvalid,
	common.ErrTelegramNotLinked,
	common.ErrUserNotFound,
}

func errorText(err error) string {
	for _, e := range userErrors {
		if errors.Is(err, e) {
			return "❌ " + e.Error()
		}
	}
	return "❌ Что-то пошло не так, попробуйте позже"
}

var limitNames = map[limits.Kind]string{
	limits.KindShares: "Репосты",
	limits.KindLikes:  "Лайки",
	limits.KindScans:  "Сканы отходов",
}

func days(n int) string {
	return fmt.Sprintf("%d %s", n, common.PluralizeDays(n))
}

func helpText(p *profiles.Profile) string {
	return fmt.Sprintf("🌍 Привет, %s!\n\n"+
		"!баланс — баланс и вывод\n"+
		"!чекин — ежедневный чекин\n"+
		"!огонек — серия чекинов\n"+
		"!лимиты — дневные лимиты\n"+
		"!история — последние транзакции\n"+
		"/stop — отвязать чат", p.Name())
}

func (b *Bot) handleLink(ctx context.Context, chatID int64, token string) {
	p, err := b.deps.Profiles.RedeemLinkToken(ctx, token, chatID)
	if err != nil {
		if !errors.Is(err, common.ErrLinkTokenInvalid) {
			log.WithError(err).WithField("chat_id", chatID).Error("Ошибка привязки чата")
		}
		b.sendMessage(ctx, chatID, errorText(err))
		return
	}
	b.sendMessage(ctx, chatID, "✅ Чат привязан к профилю "+p.Name()+"\n\n"+helpText(p))
}

func (b *Bot) handleUnlink(ctx context.Context, chatID int64) {
	if err := b.deps.Profiles.UnlinkTelegram(ctx, chatID); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("Ошибка отвязки чата")
		b.sendMessage(ctx, chatID, errorText(err))
		return
	}
	b.sendMessage(ctx, chatID, "👋 Чат отвязан. Уведомления сюда больше не придут.")
}

func (b *Bot) handleBalance(ctx context.Context, chatID int64, userID uuid.UUID) {
	s, err := b.deps.Economy.Summary(ctx, userID)
	if err != nil {
		log.WithError(err).WithField("user_id", userID).Error("Ошибка получения баланса")
		b.sendMessage(ctx, chatID, errorText(err))
		return
	}

	var sb strings.Builder
	sb.WriteString("💰 Баланс: " + common.FormatPoints(s.Balance) + "\n")
	if s.Eligible {
		sb.WriteString(fmt.Sprintf("Можно вывести: %s → %s\n",
			common.FormatPoints(s.Claimable.Points), common.FormatCoins(s.Claimable.Coin)))
	} else {
		sb.WriteString(fmt.Sprintf("Вывод доступен от %s\n", common.FormatPoints(s.MinimumClaim)))
	}
	if s.TotalClaimed > 0 {
		sb.WriteString("Всего выведено: " + common.FormatCoins(s.TotalClaimed) + "\n")
	}
	b.sendMessage(ctx, chatID, strings.TrimRight(sb.String(), "\n"))
}

func (b *Bot) handleCheckIn(ctx context.Context, chatID int64, userID uuid.UUID) {
	res, err := b.deps.Streaks.CheckIn(ctx, userID)
	if err != nil {
		if !errors.Is(err, common.ErrAlreadyCheckedIn) {
			log.WithError(err).WithField("user_id", userID).Error("Ошибка чекина")
		}
		b.sendMessage(ctx, chatID, errorText(err))
		return
	}

	text := fmt.Sprintf("✅ Чекин засчитан: +%s\n🔥 Серия: %s",
		common.FormatPoints(res.BaseReward), days(res.NewStreak))
	if res.StreakBonus > 0 {
		text += fmt.Sprintf("\n🎁 Бонус за неделю: +%s", common.FormatPoints(res.StreakBonus))
	}
	text += "\n💰 Баланс: " + common.FormatPoints(res.Balance)
	b.sendMessage(ctx, chatID, text)
}

func (b *Bot) handleStreak(ctx context.Context, chatID int64, userID uuid.UUID) {
	st, err := b.deps.Streaks.GetStatus(ctx, userID)
	if err != nil {
		log.WithError(err).WithField("user_id", userID).Error("Ошибка получения серии")
		b.sendMessage(ctx, chatID, errorText(err))
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("🔥 Серия: %s (рекорд %s)\n",
		days(st.CurrentStreak), days(st.LongestStreak)))
	if st.CheckedInToday {
		sb.WriteString("Сегодня чекин уже есть ✅\n")
	} else {
		sb.WriteString(fmt.Sprintf("Следующий чекин: +%s\n", common.FormatPoints(st.NextReward)))
	}
	sb.WriteString(fmt.Sprintf("До недельного бонуса: %s", days(st.DaysToStreakBonus)))
	b.sendMessage(ctx, chatID, sb.String())
}

func (b *Bot) handleLimits(ctx context.Context, chatID int64, userID uuid.UUID) {
	usage, err := b.deps.Limits.Status(ctx, userID)
	if err != nil {
		log.WithError(err).WithField("user_id", userID).Error("Ошибка получения лимитов")
		b.sendMessage(ctx, chatID, errorText(err))
		return
	}

	var sb strings.Builder
	sb.WriteString("📊 Лимиты на сегодня:\n")
	for _, u := range usage {
		name, ok := limitNames[u.Kind]
		if !ok {
			name = string(u.Kind)
		}
		sb.WriteString(fmt.Sprintf("%s: %d/%d (осталось %d)\n", name, u.Used, u.Max, u.Remaining))
	}
	b.sendMessage(ctx, chatID, strings.TrimRight(sb.String(), "\n"))
}

func (b *Bot) handleHistory(ctx context.Context, chatID int64, userID uuid.UUID) {
	text, err := b.deps.Economy.FormatHistory(ctx, userID, historySize)
	if err != nil {
		log.WithError(err).WithField("user_id", userID).Error("Ошибка получения истории")
		b.sendMessage(ctx, chatID, errorText(err))
		return
	}
	b.sendMessage(ctx, chatID, text)
}
