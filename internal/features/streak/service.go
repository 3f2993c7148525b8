// Package streak: service.go выполняет чекин в одной транзакции БД.
package streak

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/green-earth/internal/common"
	"serotonyl.ru/green-earth/internal/db/postgres"
	"serotonyl.ru/green-earth/internal/features/economy"
)

// Journal пишет строки журнала для уже применённых наград.
type Journal interface {
	AppendReward(ctx context.Context, q postgres.Querier, req economy.CreditRequest) (*economy.Transaction, error)
}

// Service управляет чекинами и сериями.
type Service struct {
	repo    *Repository
	journal Journal
	loc     *time.Location
	now     func() time.Time
}

// NewService создаёт новый сервис серий.
func NewService(repo *Repository, journal Journal, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{repo: repo, journal: journal, loc: loc, now: time.Now}
}

// CheckIn отмечает пользователя за сегодня.
//
// Алгоритм (одна транзакция):
//  1. Блокируем строку профиля
//  2. Evaluate считает новую серию и награду
//  3. Одним UPDATE прибавляем награду и пишем серию
//  4. Пишем строку check_in и, если положен бонус, отдельную строку streak_bonus
func (s *Service) CheckIn(ctx context.Context, userID uuid.UUID) (*Result, error) {
	today := common.DayOf(s.now(), s.loc)

	var res *Result
	err := postgres.WithTx(ctx, s.repo.Pool(), func(tx pgx.Tx) error {
		state, err := s.repo.LockState(ctx, tx, userID)
		if err != nil {
			return err
		}
		out, err := Evaluate(*state, today)
		if err != nil {
			return err
		}

		balance, err := s.repo.Apply(ctx, tx, userID, today, out)
		if err != nil {
			return err
		}

		checkIn, err := s.journal.AppendReward(ctx, tx, economy.CreditRequest{
			UserID:      userID,
			Amount:      out.BaseReward,
			Type:        economy.TxCheckIn,
			Description: fmt.Sprintf("Ежедневный чекин, день %d", out.NewStreak),
		})
		if err != nil {
			return err
		}

		res = &Result{
			Outcome:   out,
			Day:       today,
			Awarded:   out.Reward(),
			Balance:   balance,
			CheckInTx: checkIn.ID,
		}

		if out.StreakBonus > 0 {
			bonus, err := s.journal.AppendReward(ctx, tx, economy.CreditRequest{
				UserID:      userID,
				Amount:      out.StreakBonus,
				Type:        economy.TxStreakBonus,
				Description: fmt.Sprintf("Бонус за серию %d %s", out.NewStreak, common.PluralizeDays(out.NewStreak)),
			})
			if err != nil {
				return err
			}
			res.BonusTx = &bonus.ID
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"user_id": userID,
		"amount":  res.Awarded,
		"type":    economy.TxCheckIn,
		"streak":  res.NewStreak,
		"day":     today.Format(common.DateLayout),
	}).Info("Чекин выполнен")

	return res, nil
}

// GetStatus возвращает серию пользователя на сегодня.
func (s *Service) GetStatus(ctx context.Context, userID uuid.UUID) (*Status, error) {
	state, err := s.repo.GetState(ctx, userID)
	if err != nil {
		return nil, err
	}
	st := StatusOf(*state, common.DayOf(s.now(), s.loc))
	return &st, nil
}
