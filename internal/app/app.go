// Package app инициализирует все компоненты приложения.
// app.go: точка сборки: создаёт БД-пул, репозитории, сервисы, обработчики,
// бота и планировщик и собирает всё в один объект App.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mymmrac/telego"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/green-earth/internal/bot"
	"serotonyl.ru/green-earth/internal/common"
	"serotonyl.ru/green-earth/internal/config"
	"serotonyl.ru/green-earth/internal/db/postgres"
	"serotonyl.ru/green-earth/internal/features/admin"
	"serotonyl.ru/green-earth/internal/features/assistant"
	"serotonyl.ru/green-earth/internal/features/calls"
	"serotonyl.ru/green-earth/internal/features/content"
	"serotonyl.ru/green-earth/internal/features/economy"
	"serotonyl.ru/green-earth/internal/features/limits"
	"serotonyl.ru/green-earth/internal/features/messaging"
	"serotonyl.ru/green-earth/internal/features/notifications"
	"serotonyl.ru/green-earth/internal/features/profiles"
	"serotonyl.ru/green-earth/internal/features/social"
	"serotonyl.ru/green-earth/internal/features/streak"
	"serotonyl.ru/green-earth/internal/httpapi"
	"serotonyl.ru/green-earth/internal/httpapi/middleware"
	"serotonyl.ru/green-earth/internal/jobs"
	"serotonyl.ru/green-earth/internal/realtime"
	"serotonyl.ru/green-earth/internal/storage"
)

// Предел тела одного куска записи звонка
const recordingChunkLimit = 8 << 20

// App содержит все компоненты приложения.
type App struct {
	cfg *config.Config

	DB        *pgxpool.Pool
	HTTP      *http.Server
	Bot       *bot.Bot // nil, если бот выключен
	Scheduler *jobs.Scheduler

	calls       *calls.Service
	rateLimiter *common.RateLimiter[string]
}

// New создаёт и инициализирует приложение.
// Порядок инициализации важен: компоненты зависят друг от друга.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	loc := cfg.Location()

	// === 1. База данных ===
	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к БД: %w", err)
	}
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ошибка миграций: %w", err)
	}

	// === 2. Хранилище файлов ===
	var uploader storage.Uploader = storage.Disabled{}
	if cfg.CloudinaryEnabled() {
		cld, err := storage.NewCloudinary(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)
		if err != nil {
			pool.Close()
			return nil, err
		}
		uploader = cld
	} else {
		log.Warn("Cloudinary не настроен: запись звонков и фото сканов выключены")
	}

	hub := realtime.NewHub()

	// === 3. Репозитории ===
	profileRepo := profiles.NewRepository(pool)
	notificationRepo := notifications.NewRepository(pool)
	economyRepo := economy.NewRepository(pool)
	limitsRepo := limits.NewRepository(pool)
	streakRepo := streak.NewRepository(pool)
	contentRepo := content.NewRepository(pool)
	socialRepo := social.NewRepository(pool)
	messagingRepo := messaging.NewRepository(pool)
	callsRepo := calls.NewRepository(pool)
	scanRepo := assistant.NewRepository(pool)
	adminRepo := admin.NewRepository(pool)

	// === 4. Сервисы ===
	profileService := profiles.NewService(profileRepo, cfg.BotLinkTokenTTL)
	notificationService := notifications.NewService(notificationRepo, hub, profileService, nil)
	economyService := economy.NewService(economyRepo, profileService, notificationService, loc)
	limitsService := limits.NewService(limitsRepo, limits.Max{
		Shares: cfg.LimitSharesPerDay,
		Likes:  cfg.LimitLikesPerDay,
		Scans:  cfg.LimitScansPerDay,
	}, loc)
	streakService := streak.NewService(streakRepo, economyService, loc)
	contentService := content.NewService(contentRepo, economyService)
	socialService := social.NewService(socialRepo, limitsService, economyService, notificationService, cfg.LimitLikesPerDay)
	messagingService := messaging.NewService(messagingRepo, hub, cfg.TypingTTL)
	callsService := calls.NewService(callsRepo, hub, notificationService, messagingRepo, uploader, calls.Options{
		RingTimeout:       cfg.CallRingTimeout,
		RecordingMaxBytes: cfg.CallRecordingMaxBytes,
		RecordingsEnabled: cfg.FeatureRecordingsEnabled,
	})
	functions := assistant.NewClient(cfg.FunctionsBaseURL, cfg.FunctionsAPIKey, cfg.FunctionsTimeout)
	scanService := assistant.NewScanService(scanRepo, functions, limitsService, economyService, uploader)
	adminService := admin.NewService(adminRepo, cfg.AdminPasswordHash, cfg.AdminSessionTTL, economyService, callsService, cfg.CallRingTimeout)

	// === 5. Бот-компаньон ===
	var companion *bot.Bot
	if cfg.BotEnabled() {
		botAPI, err := telego.NewBot(cfg.TelegramBotToken, telego.WithDefaultLogger(cfg.AppEnv == "development", true))
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("ошибка создания Telegram API: %w", err)
		}
		me, err := botAPI.GetMe(ctx)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("ошибка авторизации бота: %w", err)
		}
		log.Infof("Авторизован как @%s", me.Username)

		companion = bot.New(botAPI, bot.Deps{
			Profiles: profileService,
			Economy:  economyService,
			Streaks:  streakService,
			Limits:   limitsService,
		}, bot.Options{
			MaxInflight:     cfg.BotMaxInflight,
			RateLimit:       cfg.RateLimitRequests,
			RateLimitWindow: cfg.RateLimitWindow,
		})
		notificationService.SetPusher(companion)
	} else {
		log.Info("Бот-компаньон выключен")
	}

	// === 6. HTTP ===
	authed := []httpapi.Module{
		profiles.NewHandler(profileService),
		economy.NewHandler(economyService),
		limits.NewHandler(limitsService),
		streak.NewHandler(streakService),
		content.NewHandler(contentService),
		social.NewHandler(socialService),
		notifications.NewHandler(notificationService),
		messaging.NewHandler(messagingService),
		calls.NewHandler(callsService, recordingChunkLimit),
		realtime.NewHandler(hub, &inbound{Service: messagingService, calls: callsService}, cfg.HTTPAllowedOrigins),
	}
	if cfg.FeatureAssistantEnabled {
		authed = append(authed, assistant.NewHandler(scanService, functions))
	}

	rl := common.NewRateLimiter[string](cfg.RateLimitRequests, cfg.RateLimitWindow)
	router := httpapi.NewRouter(httpapi.RouterConfig{
		Release:     cfg.AppEnv == "production",
		Verifier:    middleware.NewTokenVerifier(cfg.AuthJWTSecret, cfg.AuthJWTAudience),
		Ensure:      ensureProfile(profileService),
		RateLimiter: rl,
		Public:      []httpapi.Module{admin.NewHandler(adminService)},
		Authed:      authed,
	})

	// WriteTimeout не ставим: поток ассистента и WebSocket живут дольше любого таймаута
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: cfg.HTTPReadTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
	}

	// === 7. Планировщик задач ===
	scheduler := jobs.NewScheduler(loc, economyService, callsService, messagingService, cfg.CallRingTimeout)

	return &App{
		cfg:         cfg,
		DB:          pool,
		HTTP:        server,
		Bot:         companion,
		Scheduler:   scheduler,
		calls:       callsService,
		rateLimiter: rl,
	}, nil
}

// Run запускает HTTP, бота и планировщик и блокируется до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	if err := a.Scheduler.Start(ctx); err != nil {
		return err
	}
	defer a.Scheduler.Stop()

	errCh := make(chan error, 2)
	go func() {
		log.WithField("addr", a.HTTP.Addr).Info("HTTP сервер запущен")
		if err := a.HTTP.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP сервер: %w", err)
		}
	}()

	botDone := make(chan struct{})
	if a.Bot != nil {
		go func() {
			defer close(botDone)
			if err := a.Bot.Start(ctx); err != nil {
				errCh <- fmt.Errorf("бот: %w", err)
			}
		}()
	} else {
		close(botDone)
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		log.WithError(runErr).Error("Компонент упал, останавливаемся")
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTPShutdownTimeout)
	defer cancel()
	if err := a.HTTP.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("HTTP сервер остановлен с ошибкой")
	}
	select {
	case <-botDone:
	case <-shutdownCtx.Done():
		log.Warn("Бот не успел остановиться")
	}
	return runErr
}

// Close освобождает ресурсы: таймеры звонков, активные записи, пул БД.
func (a *App) Close() {
	a.calls.Shutdown()
	a.rateLimiter.Close()
	a.DB.Close()
}

func ensureProfile(s *profiles.Service) middleware.EnsureFunc {
	return func(ctx context.Context, userID uuid.UUID, username, displayName string) error {
		return s.EnsureProfile(ctx, profiles.Identity{ID: userID, Username: username, DisplayName: displayName})
	}
}
