// Package limits: service.go проверяет и расходует дневные квоты.
package limits

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/green-earth/internal/common"
	"serotonyl.ru/green-earth/internal/db/postgres"
)

// Max: дневные лимиты по видам.
type Max struct {
	Shares int
	Likes  int
	Scans  int
}

// Of возвращает лимит для вида.
func (m Max) Of(kind Kind) int {
	switch kind {
	case KindShares:
		return m.Shares
	case KindLikes:
		return m.Likes
	case KindScans:
		return m.Scans
	}
	return 0
}

// Service управляет дневными лимитами.
type Service struct {
	repo *Repository
	max  Max
	loc  *time.Location
	now  func() time.Time
}

// NewService создаёт новый сервис лимитов.
func NewService(repo *Repository, max Max, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{repo: repo, max: max, loc: loc, now: time.Now}
}

func (s *Service) today() time.Time {
	return common.DayOf(s.now(), s.loc)
}

// GetTodayLimits возвращает счётчики за сегодня. nil = сегодня ещё ничего не было.
func (s *Service) GetTodayLimits(ctx context.Context, userID uuid.UUID) (*Record, error) {
	return s.repo.Get(ctx, userID, s.today())
}

// IncrementLimit увеличивает счётчик без проверки лимита.
func (s *Service) IncrementLimit(ctx context.Context, q postgres.Querier, userID uuid.UUID, kind Kind) (int, error) {
	return s.repo.Increment(ctx, q, userID, s.today(), kind)
}

// TryConsume расходует одно действие из дневной квоты.
// Вызывается внутри транзакции действия: при откате квота не тратится.
func (s *Service) TryConsume(ctx context.Context, q postgres.Querier, userID uuid.UUID, kind Kind) (int, error) {
	count, err := s.repo.TryIncrement(ctx, q, userID, s.today(), kind, s.max.Of(kind))
	if err != nil {
		if errors.Is(err, common.ErrDailyLimitReached) {
			log.WithFields(log.Fields{
				"user_id": userID,
				"kind":    kind,
			}).Debug("Дневной лимит исчерпан")
		}
		return 0, err
	}
	return count, nil
}

// RemainingToday: сколько действий вида kind ещё можно сделать сегодня.
// Только подсказка: окончательно квоту проверяет TryConsume.
func (s *Service) RemainingToday(ctx context.Context, userID uuid.UUID, kind Kind) (int, error) {
	rec, err := s.GetTodayLimits(ctx, userID)
	if err != nil {
		return 0, err
	}
	return Remaining(rec, kind, s.max.Of(kind)), nil
}

// Status возвращает использование всех лимитов за сегодня.
func (s *Service) Status(ctx context.Context, userID uuid.UUID) ([]Usage, error) {
	rec, err := s.GetTodayLimits(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]Usage, 0, len(Kinds))
	for _, k := range Kinds {
		max := s.max.Of(k)
		out = append(out, Usage{
			Kind:      k,
			Used:      rec.Count(k),
			Max:       max,
			Remaining: Remaining(rec, k, max),
		})
	}
	return out, nil
}
