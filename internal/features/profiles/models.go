// Package profiles управляет профилями пользователей: владельцами баланса,
// серии чекинов, адреса кошелька и привязки Telegram.
// models.go описывает структуры данных для работы с таблицей profiles.
package profiles

import (
	"time"

	"github.com/google/uuid"
)

// Profile представляет профиль пользователя в базе данных.
// Создаётся автоматически при первом авторизованном запросе.
type Profile struct {
	ID                uuid.UUID  `json:"id"`                  // UUID пользователя у провайдера аутентификации
	Username          *string    `json:"username"`            // Уникальный ник (может быть nil)
	DisplayName       string     `json:"display_name"`        // Имя для отображения
	GreenPoints       int64      `json:"green_points"`        // Баланс баллов (денормализованный счётчик)
	TotalCamlyClaimed int64      `json:"total_camly_claimed"` // Сколько монет уже выведено
	CurrentStreak     int        `json:"current_streak"`      // Текущая серия чекинов
	LongestStreak     int        `json:"longest_streak"`      // Лучшая серия
	LastCheckIn       *time.Time `json:"last_check_in"`       // День последнего чекина
	WalletAddress     *string    `json:"wallet_address"`      // Адрес кошелька для вывода
	TelegramChatID    *int64     `json:"-"`                   // Привязанный чат Telegram
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// Identity: данные из токена, по которым создаётся профиль.
type Identity struct {
	ID          uuid.UUID
	Username    string
	DisplayName string
}

// Name возвращает отображаемое имя: @ник, иначе display_name.
func (p *Profile) Name() string {
	if p.Username != nil && *p.Username != "" {
		return "@" + *p.Username
	}
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return "пользователь"
}

// TelegramLinked: к профилю привязан чат Telegram.
func (p *Profile) TelegramLinked() bool {
	return p.TelegramChatID != nil
}
