// Package profiles: repository.go отвечает за все операции с таблицей profiles в БД.
// Каждая функция выполняет один SQL-запрос и возвращает результат или ошибку.
package profiles

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/green-earth/internal/common"
	"serotonyl.ru/green-earth/internal/db/postgres"
)

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const profileColumns = `
	id, username, display_name, green_points, total_camly_claimed,
	current_streak, longest_streak, last_check_in, wallet_address,
	telegram_chat_id, created_at, updated_at`

func scanProfile(row pgx.Row) (*Profile, error) {
	var p Profile
	err := row.Scan(
		&p.ID, &p.Username, &p.DisplayName, &p.GreenPoints, &p.TotalCamlyClaimed,
		&p.CurrentStreak, &p.LongestStreak, &p.LastCheckIn, &p.WalletAddress,
		&p.TelegramChatID, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Create добавляет профиль. На конфликте по id ничего не меняет:
// баланс и серия принадлежат ледже, а не токену.
// Возвращает true, если профиль создан сейчас.
func (r *Repository) Create(ctx context.Context, id uuid.UUID, username *string, displayName string) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		INSERT INTO profiles (id, username, display_name)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO NOTHING
	`, id, username, displayName)
	if err != nil {
		return false, fmt.Errorf("ошибка создания профиля: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// GetByID: если не найден: common.ErrUserNotFound.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Profile, error) {
	p, err := scanProfile(r.db.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.ErrUserNotFound
		}
		return nil, fmt.Errorf("ошибка чтения профиля (id=%s): %w", id, err)
	}
	return p, nil
}

// GetByUsername ищет без учёта регистра.
func (r *Repository) GetByUsername(ctx context.Context, username string) (*Profile, error) {
	p, err := scanProfile(r.db.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE LOWER(username) = LOWER($1)`, username))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.ErrUserNotFound
		}
		return nil, fmt.Errorf("ошибка чтения профиля (username=%s): %w", username, err)
	}
	return p, nil
}

// GetByTelegramChat находит профиль по привязанному чату.
func (r *Repository) GetByTelegramChat(ctx context.Context, chatID int64) (*Profile, error) {
	p, err := scanProfile(r.db.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE telegram_chat_id = $1`, chatID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.ErrTelegramNotLinked
		}
		return nil, fmt.Errorf("ошибка чтения профиля (chat_id=%d): %w", chatID, err)
	}
	return p, nil
}

// TelegramChatID возвращает привязанный чат или nil.
func (r *Repository) TelegramChatID(ctx context.Context, id uuid.UUID) (*int64, error) {
	var chatID *int64
	err := r.db.QueryRow(ctx, `SELECT telegram_chat_id FROM profiles WHERE id = $1`, id).Scan(&chatID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.ErrUserNotFound
		}
		return nil, fmt.Errorf("ошибка чтения telegram_chat_id: %w", err)
	}
	return chatID, nil
}

func (r *Repository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM profiles WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("ошибка проверки существования: %w", err)
	}
	return exists, nil
}

func (r *Repository) UpdateWallet(ctx context.Context, id uuid.UUID, wallet string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE profiles SET wallet_address = $2, updated_at = NOW() WHERE id = $1`, id, wallet)
	if err != nil {
		return fmt.Errorf("ошибка обновления кошелька: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return common.ErrUserNotFound
	}
	return nil
}

// LinkTelegram привязывает чат. Чат, ранее привязанный к другому профилю,
// сначала отвязывается в той же транзакции.
func (r *Repository) LinkTelegram(ctx context.Context, id uuid.UUID, chatID int64) error {
	return postgres.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`UPDATE profiles SET telegram_chat_id = NULL, updated_at = NOW() WHERE telegram_chat_id = $1 AND id <> $2`,
			chatID, id,
		); err != nil {
			return fmt.Errorf("ошибка отвязки чата: %w", err)
		}
		tag, err := tx.Exec(ctx,
			`UPDATE profiles SET telegram_chat_id = $2, updated_at = NOW() WHERE id = $1`, id, chatID)
		if err != nil {
			return fmt.Errorf("ошибка привязки чата: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return common.ErrUserNotFound
		}
		return nil
	})
}

func (r *Repository) UnlinkTelegram(ctx context.Context, chatID int64) error {
	if _, err := r.db.Exec(ctx,
		`UPDATE profiles SET telegram_chat_id = NULL, updated_at = NOW() WHERE telegram_chat_id = $1`, chatID,
	); err != nil {
		return fmt.Errorf("ошибка отвязки чата: %w", err)
	}
	return nil
}
