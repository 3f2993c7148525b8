// Package bot: бот-компаньон в Telegram: баланс, чекин, серия, лимиты и история
// для пользователей, привязавших чат к профилю. Через него же уходят пуш-уведомления.
package bot

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/green-earth/internal/bot/filters"
	"serotonyl.ru/green-earth/internal/bot/middleware"
	"serotonyl.ru/green-earth/internal/common"
	"serotonyl.ru/green-earth/internal/features/economy"
	"serotonyl.ru/green-earth/internal/features/limits"
	"serotonyl.ru/green-earth/internal/features/profiles"
	"serotonyl.ru/green-earth/internal/features/streak"
)

// API: часть клиента Telegram, которой пользуется бот. Её реализует *telego.Bot.
type API interface {
	filters.Sender
	UpdatesViaLongPolling(ctx context.Context, params *telego.GetUpdatesParams, options ...telego.LongPollingOption) (<-chan telego.Update, error)
}

// Profiles: привязка чата к профилю.
type Profiles interface {
	filters.ProfileLookup
	RedeemLinkToken(ctx context.Context, token string, chatID int64) (*profiles.Profile, error)
	UnlinkTelegram(ctx context.Context, chatID int64) error
}

// Economy: баланс и история.
type Economy interface {
	Summary(ctx context.Context, userID uuid.UUID) (*economy.Summary, error)
	FormatHistory(ctx context.Context, userID uuid.UUID, limit int) (string, error)
}

// Streaks: чекины.
type Streaks interface {
	CheckIn(ctx context.Context, userID uuid.UUID) (*streak.Result, error)
	GetStatus(ctx context.Context, userID uuid.UUID) (*streak.Status, error)
}

// Limits: дневные лимиты.
type Limits interface {
	Status(ctx context.Context, userID uuid.UUID) ([]limits.Usage, error)
}

// Deps: сервисы, к которым обращаются команды бота.
type Deps struct {
	Profiles Profiles
	Economy  Economy
	Streaks  Streaks
	Limits   Limits
}

// Options: настройки бота.
type Options struct {
	MaxInflight     int
	RateLimit       int
	RateLimitWindow time.Duration
	PollTimeout     int // секунды long polling
}

// Bot: главная структура бота, объединяющая все компоненты.
type Bot struct {
	api  API
	deps Deps
	opts Options

	chatFilter  *filters.ChatFilter
	rateLimiter *common.RateLimiter[int64]
	parser      *CommandParser

	// ограничитель параллелизма обработки апдейтов
	inflight chan struct{}
	wg       sync.WaitGroup
}

// New создаёт новый экземпляр бота со всеми зависимостями.
func New(api API, deps Deps, opts Options) *Bot {
	if opts.MaxInflight <= 0 {
		opts.MaxInflight = 64
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 20
	}
	if opts.RateLimitWindow <= 0 {
		opts.RateLimitWindow = time.Minute
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = 30
	}

	return &Bot{
		api:         api,
		deps:        deps,
		opts:        opts,
		chatFilter:  filters.NewChatFilter(deps.Profiles, api),
		rateLimiter: common.NewRateLimiter[int64](opts.RateLimit, opts.RateLimitWindow),
		parser:      NewCommandParser(),
		inflight:    make(chan struct{}, opts.MaxInflight),
	}
}

// Start запускает long polling и блокируется до отмены ctx.
// Перед возвратом дожидается обработчиков, которые уже работают.
func (b *Bot) Start(ctx context.Context) error {
	updates, err := b.api.UpdatesViaLongPolling(ctx, &telego.GetUpdatesParams{Timeout: b.opts.PollTimeout})
	if err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"max_inflight": b.opts.MaxInflight,
		"timeout_sec":  b.opts.PollTimeout,
	}).Info("Бот запущен и ожидает сообщения...")

	defer func() {
		b.wg.Wait()
		b.rateLimiter.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info("Бот останавливается (ctx done)...")
			return nil

		case update, ok := <-updates:
			if !ok {
				log.Info("Канал updates закрыт, бот остановлен")
				return nil
			}

			// лимит параллелизма
			select {
			case b.inflight <- struct{}{}:
			case <-ctx.Done():
				return nil
			}
			b.wg.Add(1)
			go func(upd telego.Update) {
				defer func() {
					<-b.inflight
					b.wg.Done()
				}()
				b.HandleUpdate(ctx, upd)
			}(update)
		}
	}
}

// HandleUpdate обрабатывает одно обновление от Telegram.
func (b *Bot) HandleUpdate(ctx context.Context, update telego.Update) {
	defer middleware.RecoverFromPanic(update.UpdateID)

	message := update.Message
	if message == nil || message.Text == "" || message.From == nil {
		return
	}
	middleware.LogMessage(message)

	if !b.rateLimiter.Allow(message.From.ID) {
		log.WithField("user_id", message.From.ID).Debug("rate limited")
		return
	}

	cmd, args, isCommand := b.parser.ParseCommand(message.Text)
	if !isCommand {
		return
	}
	chatID := message.Chat.ID

	// /start с токеном работает до привязки, поэтому идёт мимо фильтра
	if cmd == "start" && len(args) > 0 {
		if message.Chat.Type != telego.ChatTypePrivate {
			return
		}
		b.handleLink(ctx, chatID, args[0])
		return
	}

	profile, ok := b.chatFilter.CheckAccess(ctx, message)
	if !ok {
		return
	}

	log.WithFields(log.Fields{
		"cmd":        cmd,
		"args":       args,
		"profile_id": profile.ID,
	}).Debug("routing command")
	b.routeCommand(ctx, chatID, profile, cmd)
}

// routeCommand маршрутизирует команду к нужному обработчику.
func (b *Bot) routeCommand(ctx context.Context, chatID int64, p *profiles.Profile, cmd string) {
	switch cmd {
	case "start", "help", "помощь":
		b.sendMessage(ctx, chatID, helpText(p))

	case "stop":
		b.handleUnlink(ctx, chatID)

	case "баланс", "balance":
		b.handleBalance(ctx, chatID, p.ID)

	case "чекин", "checkin":
		b.handleCheckIn(ctx, chatID, p.ID)

	case "огонек", "streak":
		b.handleStreak(ctx, chatID, p.ID)

	case "лимиты", "limits":
		b.handleLimits(ctx, chatID, p.ID)

	case "история", "history":
		b.handleHistory(ctx, chatID, p.ID)
	}
}

// PushText отправляет уведомление в привязанный чат.
func (b *Bot) PushText(ctx context.Context, chatID int64, text string) error {
	_, err := b.api.SendMessage(ctx, tu.Message(tu.ID(chatID), text))
	if err != nil {
		log.WithError(err).WithField("chat_id", chatID).Debug("Не удалось отправить уведомление")
	}
	return err
}

// sendMessage: утилита для отправки ответов.
func (b *Bot) sendMessage(ctx context.Context, chatID int64, text string) {
	if _, err := b.api.SendMessage(ctx, tu.Message(tu.ID(chatID), text)); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("Ошибка отправки сообщения")
	}
}
