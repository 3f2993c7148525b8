// Package main: ecochat, терминальный клиент эко-ассистента.
// История последних сообщений хранится локально и показывается при запуске
// без обращения к сети.
package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/kelseyhightower/envconfig"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/green-earth/internal/features/assistant"
)

// Config: настройки клиента из переменных окружения ECOCHAT_*.
type Config struct {
	FunctionsURL string        `envconfig:"FUNCTIONS_URL" required:"true"`
	APIKey       string        `envconfig:"API_KEY" default:""`
	CacheDir     string        `envconfig:"CACHE_DIR" default:""`
	Timeout      time.Duration `envconfig:"TIMEOUT" default:"30s"`
	LogLevel     string        `envconfig:"LOG_LEVEL" default:"warn"`
}

func main() {
	log.SetFormatter(&log.TextFormatter{DisableTimestamp: true})
	log.SetOutput(os.Stderr)

	var cfg Config
	if err := envconfig.Process("ECOCHAT", &cfg); err != nil {
		log.WithError(err).Fatal("Не удалось загрузить конфигурацию")
	}
	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	dir := cfg.CacheDir
	if dir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			log.WithError(err).Fatal("Не удалось определить каталог кэша, задайте ECOCHAT_CACHE_DIR")
		}
		dir = filepath.Join(base, "green-earth")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s := &session{
		chat:    assistant.NewClient(cfg.FunctionsURL, cfg.APIKey, cfg.Timeout),
		history: assistant.NewHistoryCache(dir),
		in:      os.Stdin,
		out:     os.Stdout,
	}
	if err := s.run(ctx); err != nil {
		log.WithError(err).Fatal("ecochat завершился с ошибкой")
	}
}
