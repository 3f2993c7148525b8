// Package content: service.go записывает просмотр и начисляет награду один раз.
package content

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/green-earth/internal/common"
	"serotonyl.ru/green-earth/internal/db/postgres"
	"serotonyl.ru/green-earth/internal/features/economy"
	"serotonyl.ru/green-earth/internal/features/ledger"
)

// Crediter начисляет награду внутри транзакции просмотра.
type Crediter interface {
	CreditTx(ctx context.Context, q postgres.Querier, req economy.CreditRequest) (*economy.Credited, error)
}

// Service управляет наградами за контент.
type Service struct {
	repo    *Repository
	credits Crediter
}

// NewService создаёт новый сервис контента.
func NewService(repo *Repository, credits Crediter) *Service {
	return &Service{repo: repo, credits: credits}
}

// RecordView записывает просмотр и начисляет награду по типу контента.
func (s *Service) RecordView(ctx context.Context, userID uuid.UUID, contentID string, kind ledger.ContentKind) (*ViewResult, error) {
	points, ok := ledger.ContentReward(kind)
	if !ok {
		return nil, common.ErrUnknownContentKind
	}
	return s.RecordViewAmount(ctx, userID, contentID, kind, points)
}

// RecordViewAmount записывает просмотр с явной наградой.
// Вставка и начисление: одна транзакция: при гонке двух просмотров
// строку вставит только один, и только он получит баллы.
func (s *Service) RecordViewAmount(ctx context.Context, userID uuid.UUID, contentID string, kind ledger.ContentKind, points int64) (*ViewResult, error) {
	contentID = strings.TrimSpace(contentID)
	if contentID == "" || len(contentID) > 128 {
		return nil, common.ErrInvalidContentID
	}
	if points < 0 {
		return nil, common.ErrInvalidAmount
	}

	res := &ViewResult{}
	err := postgres.WithTx(ctx, s.repo.Pool(), func(tx pgx.Tx) error {
		inserted, err := s.repo.InsertView(ctx, tx, userID, contentID, kind, points)
		if err != nil {
			return err
		}
		if !inserted {
			res.AlreadyViewed = true
			return nil
		}
		if points == 0 {
			return nil
		}
		credited, err := s.credits.CreditTx(ctx, tx, economy.CreditRequest{
			UserID:      userID,
			Amount:      points,
			Type:        economy.TxContentView,
			Description: fmt.Sprintf("Просмотр: %s", contentID),
		})
		if err != nil {
			return err
		}
		res.PointsAwarded = points
		res.Balance = credited.Balance
		return nil
	})
	if err != nil {
		return nil, err
	}

	if res.AlreadyViewed {
		log.WithFields(log.Fields{
			"user_id":    userID,
			"content_id": contentID,
		}).Debug("Контент уже просмотрен, награды нет")
	}
	return res, nil
}

// ListViewed возвращает просмотренный контент.
func (s *Service) ListViewed(ctx context.Context, userID uuid.UUID) ([]View, error) {
	return s.repo.ListViewed(ctx, userID)
}
