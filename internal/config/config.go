// Package config загружает конфигурацию сервера из переменных окружения.
// Используется envconfig для маппинга переменных окружения на поля структуры.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config содержит ВСЕ настройки приложения.
type Config struct {
	// --- Database ---
	// В Docker внутри контейнера "localhost" почти всегда неправильно.
	// Дефолт ставим "postgres" (имя сервиса в docker-compose), а для локалки переопределяй DB_HOST=localhost.
	DBHost     string `envconfig:"DB_HOST" default:"postgres"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"greenearth"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" default:"green_earth"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	DBMaxConns int32  `envconfig:"DB_MAX_CONNS" default:"25"`
	DBMinConns int32  `envconfig:"DB_MIN_CONNS" default:"5"`

	// --- Application ---
	AppEnv      string `envconfig:"APP_ENV" default:"development"`
	AppLogLevel string `envconfig:"APP_LOG_LEVEL" default:"debug"`
	// Календарный день для лимитов, чекинов и отчётов считается в этой зоне
	AppTimezone string `envconfig:"APP_TIMEZONE" default:"Europe/Moscow"`

	// --- HTTP ---
	HTTPAddr            string        `envconfig:"HTTP_ADDR" default:":8080"`
	HTTPReadTimeout     time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"15s"`
	HTTPIdleTimeout     time.Duration `envconfig:"HTTP_IDLE_TIMEOUT" default:"60s"`
	HTTPShutdownTimeout time.Duration `envconfig:"HTTP_SHUTDOWN_TIMEOUT" default:"10s"`
	// Разрешённые Origin для WebSocket через запятую. Пусто = любой.
	HTTPAllowedOriginsRaw string   `envconfig:"HTTP_ALLOWED_ORIGINS" default:""`
	HTTPAllowedOrigins    []string `envconfig:"-"`

	// --- Auth ---
	// Токены выдаёт внешний провайдер аутентификации, мы только проверяем подпись
	AuthJWTSecret   string `envconfig:"AUTH_JWT_SECRET" required:"true"`
	AuthJWTAudience string `envconfig:"AUTH_JWT_AUDIENCE" default:"authenticated"`

	// --- Telegram ---
	// Пустой токен = бот-компаньон выключен
	TelegramBotToken string `envconfig:"TELEGRAM_BOT_TOKEN" default:""`
	// Сколько апдейтов обрабатываем параллельно. Иначе "go на каждый апдейт" = утечка памяти при флуде.
	BotMaxInflight int `envconfig:"BOT_MAX_INFLIGHT" default:"64"`
	// Время жизни одноразового токена привязки чата
	BotLinkTokenTTL time.Duration `envconfig:"BOT_LINK_TOKEN_TTL" default:"10m"`

	// --- Admin ---
	AdminPasswordHash string        `envconfig:"ADMIN_PASSWORD_HASH" required:"true"`
	AdminSessionTTL   time.Duration `envconfig:"ADMIN_SESSION_TTL" default:"24h"`

	// --- Limits ---
	LimitSharesPerDay int `envconfig:"LIMIT_SHARES_PER_DAY" default:"5"`
	LimitLikesPerDay  int `envconfig:"LIMIT_LIKES_PER_DAY" default:"50"`
	LimitScansPerDay  int `envconfig:"LIMIT_SCANS_PER_DAY" default:"10"`

	// --- Calls ---
	CallRingTimeout       time.Duration `envconfig:"CALL_RING_TIMEOUT" default:"45s"`
	CallRecordingMaxBytes int64         `envconfig:"CALL_RECORDING_MAX_BYTES" default:"209715200"`

	// --- Messaging ---
	TypingTTL time.Duration `envconfig:"TYPING_TTL" default:"3s"`

	// --- Cloudinary ---
	// Пустые ключи = загрузка записей и фото сканов выключена
	CloudinaryCloudName string `envconfig:"CLOUDINARY_CLOUD_NAME" default:""`
	CloudinaryAPIKey    string `envconfig:"CLOUDINARY_API_KEY" default:""`
	CloudinaryAPISecret string `envconfig:"CLOUDINARY_API_SECRET" default:""`
	CloudinaryFolder    string `envconfig:"CLOUDINARY_FOLDER" default:"green-earth"`

	// --- Serverless functions ---
	FunctionsBaseURL string        `envconfig:"FUNCTIONS_BASE_URL" required:"true"`
	FunctionsAPIKey  string        `envconfig:"FUNCTIONS_API_KEY" default:""`
	FunctionsTimeout time.Duration `envconfig:"FUNCTIONS_TIMEOUT" default:"30s"`

	// --- Rate Limiting ---
	RateLimitRequests int           `envconfig:"RATE_LIMIT_REQUESTS" default:"60"`
	RateLimitWindow   time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`

	// --- Feature Flags ---
	FeatureBotEnabled        bool `envconfig:"FEATURE_BOT_ENABLED" default:"true"`
	FeatureRecordingsEnabled bool `envconfig:"FEATURE_RECORDINGS_ENABLED" default:"true"`
	FeatureAssistantEnabled  bool `envconfig:"FEATURE_ASSISTANT_ENABLED" default:"true"`
}

// DatabaseDSN возвращает строку подключения к PostgreSQL в формате DSN.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// Location возвращает часовой пояс календарного дня.
// Если зона не загрузилась, используем UTC+3 вручную.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.AppTimezone)
	if err != nil {
		return time.FixedZone("MSK", 3*60*60)
	}
	return loc
}

// BotEnabled: бот запускается только при наличии токена и включённом флаге.
func (c *Config) BotEnabled() bool {
	return c.FeatureBotEnabled && c.TelegramBotToken != ""
}

// CloudinaryEnabled: все три ключа заданы.
func (c *Config) CloudinaryEnabled() bool {
	return c.CloudinaryCloudName != "" && c.CloudinaryAPIKey != "" && c.CloudinaryAPISecret != ""
}

func (c *Config) Validate() error {
	if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("некорректные DB_MIN_CONNS/DB_MAX_CONNS")
	}
	if c.BotMaxInflight <= 0 {
		return fmt.Errorf("BOT_MAX_INFLIGHT должен быть > 0")
	}
	if c.LimitSharesPerDay < 0 || c.LimitLikesPerDay < 0 || c.LimitScansPerDay < 0 {
		return fmt.Errorf("дневные лимиты не могут быть отрицательными")
	}
	if c.CallRingTimeout <= 0 {
		return fmt.Errorf("CALL_RING_TIMEOUT должен быть > 0")
	}
	if c.TypingTTL <= 0 {
		return fmt.Errorf("TYPING_TTL должен быть > 0")
	}
	if c.AdminSessionTTL <= 0 {
		return fmt.Errorf("ADMIN_SESSION_TTL должен быть > 0")
	}
	if c.CallRecordingMaxBytes <= 0 {
		return fmt.Errorf("CALL_RECORDING_MAX_BYTES должен быть > 0")
	}
	if len(c.AuthJWTSecret) < 32 {
		return fmt.Errorf("AUTH_JWT_SECRET слишком короткий (минимум 32 символа)")
	}
	if _, err := time.LoadLocation(c.AppTimezone); err != nil {
		return fmt.Errorf("APP_TIMEZONE %q: %w", c.AppTimezone, err)
	}
	return nil
}

// Load читает переменные окружения и заполняет структуру Config.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("не удалось загрузить конфигурацию: %w", err)
	}

	cfg.HTTPAllowedOrigins = parseCSV(cfg.HTTPAllowedOriginsRaw)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func parseCSV(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
