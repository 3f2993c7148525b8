// Package social: посты, лайки, репосты и награды за минт NFT.
package social

import (
	"time"

	"github.com/google/uuid"
)

// Post: пост пользователя в ленте.
type Post struct {
	ID          uuid.UUID `json:"id"`
	AuthorID    uuid.UUID `json:"author_id"`
	Content     string    `json:"content"`
	ImageURL    *string   `json:"image_url"`
	LikesCount  int       `json:"likes_count"`
	SharesCount int       `json:"shares_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// LikeResult: результат лайка. Повторный лайк, успех без изменений.
type LikeResult struct {
	Liked      bool `json:"liked"`
	LikesCount int  `json:"likes_count"`
	Remaining  *int `json:"likes_remaining_today,omitempty"` // Только для нового лайка
}

// ShareResult: результат репоста: две отдельные награды.
type ShareResult struct {
	ShareID        uuid.UUID `json:"share_id"`
	PointsAwarded  int64     `json:"points_awarded"`
	AuthorBonus    int64     `json:"author_bonus"` // 0, если репостнул автор
	SharesToday    int       `json:"shares_today"`
	SharerBalance  int64     `json:"balance"`
	AuthorNotified bool      `json:"author_notified"`
}

// Mint: запись о минте NFT.
type Mint struct {
	ID            uuid.UUID `json:"id"`
	UserID        uuid.UUID `json:"user_id"`
	TokenID       string    `json:"token_id"`
	TxHash        string    `json:"tx_hash"`
	WalletAddress string    `json:"wallet_address"`
	PointsAwarded int64     `json:"points_awarded"`
	CreatedAt     time.Time `json:"created_at"`
}

// MintResult: ответ на отчёт о минте.
type MintResult struct {
	Mint            *Mint `json:"mint"`
	AlreadyRecorded bool  `json:"already_recorded"`
	PointsAwarded   int64 `json:"points_awarded"`
}
