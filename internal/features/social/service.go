// Package social: service.go: лайки и репосты с дневными лимитами,
// награды за репост и минт NFT.
package social

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/green-earth/internal/common"
	"serotonyl.ru/green-earth/internal/db/postgres"
	"serotonyl.ru/green-earth/internal/features/economy"
	"serotonyl.ru/green-earth/internal/features/ledger"
	"serotonyl.ru/green-earth/internal/features/limits"
)

// Limiter расходует дневную квоту внутри транзакции действия.
type Limiter interface {
	TryConsume(ctx context.Context, q postgres.Querier, userID uuid.UUID, kind limits.Kind) (int, error)
}

// Crediter начисляет награду внутри транзакции действия.
type Crediter interface {
	CreditTx(ctx context.Context, q postgres.Querier, req economy.CreditRequest) (*economy.Credited, error)
}

// Notifier отправляет уведомление пользователю.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, kind, title, body string, data map[string]any) error
}

var txHashPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)

// Service управляет постами и социальными наградами.
type Service struct {
	repo     *Repository
	limits   Limiter
	credits  Crediter
	notifier Notifier
	maxLikes int
}

// NewService создаёт новый сервис.
func NewService(repo *Repository, limiter Limiter, credits Crediter, notifier Notifier, maxLikes int) *Service {
	return &Service{repo: repo, limits: limiter, credits: credits, notifier: notifier, maxLikes: maxLikes}
}

// CreatePost публикует пост.
func (s *Service) CreatePost(ctx context.Context, author uuid.UUID, content string, imageURL *string) (*Post, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, common.ErrEmptyMessage
	}
	p := &Post{AuthorID: author, Content: content, ImageURL: imageURL}
	if err := s.repo.CreatePost(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// GetPost возвращает пост.
func (s *Service) GetPost(ctx context.Context, id uuid.UUID) (*Post, error) {
	return s.repo.GetPost(ctx, s.repo.Pool(), id)
}

// Feed возвращает ленту.
func (s *Service) Feed(ctx context.Context, limit int, before *time.Time) ([]*Post, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.repo.ListFeed(ctx, limit, before)
}

// Like ставит лайк. Новый лайк расходует дневной лимит, повторный: нет.
func (s *Service) Like(ctx context.Context, userID, postID uuid.UUID) (*LikeResult, error) {
	res := &LikeResult{Liked: true}
	err := postgres.WithTx(ctx, s.repo.Pool(), func(tx pgx.Tx) error {
		post, err := s.repo.GetPost(ctx, tx, postID)
		if err != nil {
			return err
		}
		inserted, err := s.repo.InsertLike(ctx, tx, postID, userID)
		if err != nil {
			return err
		}
		if !inserted {
			res.LikesCount = post.LikesCount
			return nil
		}
		used, err := s.limits.TryConsume(ctx, tx, userID, limits.KindLikes)
		if err != nil {
			return err
		}
		left := max(s.maxLikes-used, 0)
		res.Remaining = &left
		res.LikesCount, err = s.repo.AddLikes(ctx, tx, postID, 1)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Unlike снимает лайк. Квота дня не возвращается.
func (s *Service) Unlike(ctx context.Context, userID, postID uuid.UUID) (*LikeResult, error) {
	res := &LikeResult{}
	err := postgres.WithTx(ctx, s.repo.Pool(), func(tx pgx.Tx) error {
		post, err := s.repo.GetPost(ctx, tx, postID)
		if err != nil {
			return err
		}
		deleted, err := s.repo.DeleteLike(ctx, tx, postID, userID)
		if err != nil {
			return err
		}
		if !deleted {
			res.LikesCount = post.LikesCount
			return nil
		}
		res.LikesCount, err = s.repo.AddLikes(ctx, tx, postID, -1)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Share: репост.
//
// В одной транзакции:
//  1. Расходуем дневной лимит репостов
//  2. Записываем репост
//  3. Начисляем репостнувшему SharePost
//  4. Если автор другой: отдельной строкой начисляем автору AuthorBonus
//
// Уведомление автору уходит после фиксации.
func (s *Service) Share(ctx context.Context, userID, postID uuid.UUID) (*ShareResult, error) {
	res := &ShareResult{}
	var post *Post
	err := postgres.WithTx(ctx, s.repo.Pool(), func(tx pgx.Tx) error {
		var err error
		post, err = s.repo.GetPost(ctx, tx, postID)
		if err != nil {
			return err
		}
		res.SharesToday, err = s.limits.TryConsume(ctx, tx, userID, limits.KindShares)
		if err != nil {
			return err
		}
		res.ShareID, err = s.repo.InsertShare(ctx, tx, postID, userID)
		if err != nil {
			return err
		}

		ref := postID
		sharer, err := s.credits.CreditTx(ctx, tx, economy.CreditRequest{
			UserID:      userID,
			Amount:      ledger.Reward(ledger.ActionSharePost),
			Type:        economy.TxShareBonus,
			ReferenceID: &ref,
			Description: "Репост поста",
		})
		if err != nil {
			return err
		}
		res.PointsAwarded = sharer.Transaction.Amount
		res.SharerBalance = sharer.Balance

		if post.AuthorID == userID {
			return nil
		}
		author, err := s.credits.CreditTx(ctx, tx, economy.CreditRequest{
			UserID:      post.AuthorID,
			Amount:      ledger.Reward(ledger.ActionAuthorBonus),
			Type:        economy.TxShareBonus,
			ReferenceID: &ref,
			Description: "Бонус автору за репост",
		})
		if err != nil {
			return err
		}
		res.AuthorBonus = author.Transaction.Amount
		return nil
	})
	if err != nil {
		return nil, err
	}

	if res.AuthorBonus > 0 && s.notifier != nil {
		body := fmt.Sprintf("Ваш пост репостнули, вы получили %s", common.FormatPoints(res.AuthorBonus))
		if err := s.notifier.Notify(ctx, post.AuthorID, "share", "🔁 Репост", body, map[string]any{
			"post_id":   postID,
			"sharer_id": userID,
			"amount":    res.AuthorBonus,
		}); err != nil {
			log.WithError(err).WithField("user_id", post.AuthorID).Warn("Не удалось уведомить автора о репосте")
		} else {
			res.AuthorNotified = true
		}
	}

	log.WithFields(log.Fields{
		"user_id":      userID,
		"post_id":      postID,
		"amount":       res.PointsAwarded,
		"author_bonus": res.AuthorBonus,
		"type":         economy.TxShareBonus,
	}).Info("Репост оплачен")

	return res, nil
}

// RecordMint начисляет награду за минт NFT один раз на хэш транзакции.
// Повторный отчёт того же пользователя: успех без начисления,
// чужой отчёт с тем же хэшем → ErrAlreadyMinted.
func (s *Service) RecordMint(ctx context.Context, userID uuid.UUID, tokenID, txHash, wallet string) (*MintResult, error) {
	txHash = strings.ToLower(strings.TrimSpace(txHash))
	if !txHashPattern.MatchString(txHash) {
		return nil, common.ErrInvalidTxHash
	}
	if strings.TrimSpace(wallet) == "" {
		return nil, common.ErrWalletRequired
	}

	reward := ledger.Reward(ledger.ActionNFTMint)
	m := &Mint{UserID: userID, TokenID: tokenID, TxHash: txHash, WalletAddress: wallet, PointsAwarded: reward}
	inserted := false
	err := postgres.WithTx(ctx, s.repo.Pool(), func(tx pgx.Tx) error {
		var err error
		inserted, err = s.repo.InsertMint(ctx, tx, m)
		if err != nil || !inserted {
			return err
		}
		ref := m.ID
		_, err = s.credits.CreditTx(ctx, tx, economy.CreditRequest{
			UserID:      userID,
			Amount:      reward,
			Type:        economy.TxNFTMint,
			ReferenceID: &ref,
			Description: fmt.Sprintf("Минт NFT #%s", tokenID),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	if !inserted {
		existing, err := s.repo.GetMintByHash(ctx, txHash)
		if err != nil {
			return nil, err
		}
		if existing.UserID != userID {
			return nil, common.ErrAlreadyMinted
		}
		return &MintResult{Mint: existing, AlreadyRecorded: true}, nil
	}
	return &MintResult{Mint: m, PointsAwarded: reward}, nil
}
