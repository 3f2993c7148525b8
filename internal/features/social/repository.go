// Package social: repository.go работает с таблицами posts, post_likes,
// post_shares и nft_mints.
package social

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/green-earth/internal/common"
	"serotonyl.ru/green-earth/internal/db/postgres"
)

// Repository предоставляет методы для работы с постами и минтами.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт новый репозиторий.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Pool нужен сервису для транзакций лайка и репоста.
func (r *Repository) Pool() *pgxpool.Pool {
	return r.db
}

const postColumns = `id, author_id, content, image_url, likes_count, shares_count, created_at`

func scanPost(row pgx.Row) (*Post, error) {
	var p Post
	err := row.Scan(&p.ID, &p.AuthorID, &p.Content, &p.ImageURL, &p.LikesCount, &p.SharesCount, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CreatePost сохраняет новый пост.
func (r *Repository) CreatePost(ctx context.Context, p *Post) error {
	p.ID = uuid.New()
	err := r.db.QueryRow(ctx, `
		INSERT INTO posts (id, author_id, content, image_url)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, p.ID, p.AuthorID, p.Content, p.ImageURL).Scan(&p.CreatedAt)
	if err != nil {
		if postgres.IsForeignKeyViolation(err) {
			return common.ErrUserNotFound
		}
		return fmt.Errorf("ошибка создания поста: %w", err)
	}
	return nil
}

// GetPost возвращает пост по ID.
func (r *Repository) GetPost(ctx context.Context, q postgres.Querier, id uuid.UUID) (*Post, error) {
	p, err := scanPost(q.QueryRow(ctx, `SELECT `+postColumns+` FROM posts WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.ErrPostNotFound
		}
		return nil, fmt.Errorf("ошибка чтения поста: %w", err)
	}
	return p, nil
}

// ListFeed возвращает ленту, новые сначала.
func (r *Repository) ListFeed(ctx context.Context, limit int, before *time.Time) ([]*Post, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+postColumns+`
		FROM posts
		WHERE ($2::timestamptz IS NULL OR created_at < $2)
		ORDER BY created_at DESC
		LIMIT $1
	`, limit, before)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения ленты: %w", err)
	}
	defer rows.Close()

	var out []*Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования поста: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// InsertLike ставит лайк. false: лайк уже стоял.
func (r *Repository) InsertLike(ctx context.Context, q postgres.Querier, postID, userID uuid.UUID) (bool, error) {
	tag, err := q.Exec(ctx, `
		INSERT INTO post_likes (post_id, user_id) VALUES ($1, $2)
		ON CONFLICT (post_id, user_id) DO NOTHING
	`, postID, userID)
	if err != nil {
		if postgres.IsForeignKeyViolation(err) {
			return false, common.ErrPostNotFound
		}
		return false, fmt.Errorf("ошибка записи лайка: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// DeleteLike снимает лайк. false: лайка не было.
func (r *Repository) DeleteLike(ctx context.Context, q postgres.Querier, postID, userID uuid.UUID) (bool, error) {
	tag, err := q.Exec(ctx, `DELETE FROM post_likes WHERE post_id = $1 AND user_id = $2`, postID, userID)
	if err != nil {
		return false, fmt.Errorf("ошибка удаления лайка: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// AddLikes меняет счётчик лайков на delta и возвращает новое значение.
func (r *Repository) AddLikes(ctx context.Context, q postgres.Querier, postID uuid.UUID, delta int) (int, error) {
	var count int
	err := q.QueryRow(ctx, `
		UPDATE posts SET likes_count = GREATEST(likes_count + $2, 0)
		WHERE id = $1
		RETURNING likes_count
	`, postID, delta).Scan(&count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, common.ErrPostNotFound
		}
		return 0, fmt.Errorf("ошибка обновления лайков: %w", err)
	}
	return count, nil
}

// InsertShare записывает репост и увеличивает счётчик поста.
func (r *Repository) InsertShare(ctx context.Context, q postgres.Querier, postID, userID uuid.UUID) (uuid.UUID, error) {
	id := uuid.New()
	if _, err := q.Exec(ctx, `
		INSERT INTO post_shares (id, post_id, user_id) VALUES ($1, $2, $3)
	`, id, postID, userID); err != nil {
		if postgres.IsForeignKeyViolation(err) {
			return uuid.Nil, common.ErrPostNotFound
		}
		return uuid.Nil, fmt.Errorf("ошибка записи репоста: %w", err)
	}
	if _, err := q.Exec(ctx, `UPDATE posts SET shares_count = shares_count + 1 WHERE id = $1`, postID); err != nil {
		return uuid.Nil, fmt.Errorf("ошибка обновления репостов: %w", err)
	}
	return id, nil
}

// InsertMint записывает минт. Повтор того же tx_hash → nil, false.
func (r *Repository) InsertMint(ctx context.Context, q postgres.Querier, m *Mint) (bool, error) {
	m.ID = uuid.New()
	err := q.QueryRow(ctx, `
		INSERT INTO nft_mints (id, user_id, token_id, tx_hash, wallet_address, points_awarded)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (tx_hash) DO NOTHING
		RETURNING created_at
	`, m.ID, m.UserID, m.TokenID, m.TxHash, m.WalletAddress, m.PointsAwarded).Scan(&m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("ошибка записи минта: %w", err)
	}
	return true, nil
}

// GetMintByHash возвращает минт по хэшу транзакции.
func (r *Repository) GetMintByHash(ctx context.Context, txHash string) (*Mint, error) {
	var m Mint
	err := r.db.QueryRow(ctx, `
		SELECT id, user_id, token_id, tx_hash, wallet_address, points_awarded, created_at
		FROM nft_mints WHERE tx_hash = $1
	`, txHash).Scan(&m.ID, &m.UserID, &m.TokenID, &m.TxHash, &m.WalletAddress, &m.PointsAwarded, &m.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения минта: %w", err)
	}
	return &m, nil
}
