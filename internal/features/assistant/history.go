package assistant

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
)

// HistoryKey: единственный ключ кэша истории. Имя файла в каталоге кэша.
const HistoryKey = "eco-chat-history"

// HistoryCache хранит последние сообщения чата на диске,
// чтобы после перезапуска история показывалась без запроса в сеть.
type HistoryCache struct {
	path string
}

// NewHistoryCache создаёт кэш в каталоге dir.
func NewHistoryCache(dir string) *HistoryCache {
	return &HistoryCache{path: filepath.Join(dir, HistoryKey+".json")}
}

// Path: путь к файлу кэша.
func (h *HistoryCache) Path() string {
	return h.path
}

// Load читает историю. Нет файла или данные битые: пустая история без ошибки,
// битый файл удаляется.
func (h *HistoryCache) Load() []ChatMessage {
	raw, err := os.ReadFile(h.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.WithError(err).Warn("Не удалось прочитать историю чата")
		}
		return nil
	}
	var msgs []ChatMessage
	if err := json.Unmarshal(raw, &msgs); err != nil {
		log.WithError(err).Debug("История чата повреждена, начинаем заново")
		_ = os.Remove(h.path)
		return nil
	}
	valid := msgs[:0]
	for _, m := range msgs {
		if (m.Role == RoleUser || m.Role == RoleAssistant) && m.Content != "" {
			valid = append(valid, m)
		}
	}
	return Recent(valid, MaxChatMessages)
}

// Save сохраняет последние MaxChatMessages сообщений. Запись через временный файл.
func (h *HistoryCache) Save(msgs []ChatMessage) error {
	if err := os.MkdirAll(filepath.Dir(h.path), 0o700); err != nil {
		return fmt.Errorf("ошибка создания каталога кэша: %w", err)
	}
	raw, err := json.Marshal(Recent(msgs, MaxChatMessages))
	if err != nil {
		return fmt.Errorf("ошибка кодирования истории: %w", err)
	}
	tmp := h.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("ошибка записи истории: %w", err)
	}
	if err := os.Rename(tmp, h.path); err != nil {
		return fmt.Errorf("ошибка записи истории: %w", err)
	}
	return nil
}

// Clear удаляет историю.
func (h *HistoryCache) Clear() error {
	if err := os.Remove(h.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("ошибка удаления истории: %w", err)
	}
	return nil
}
