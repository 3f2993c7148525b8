// Package jobs управляет фоновыми задачами (cron).
// scheduler.go настраивает расписание: ночная сверка балансов,
// зачистка зависших звонков и истечение индикаторов набора текста.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/green-earth/internal/features/economy"
)

// Расписания задач
const (
	ReconcileSpec   = "5 0 * * *"
	CallSweepSpec   = "@every 1m"
	TypingSweepSpec = "@every 1s"
)

// Reconciler: сверка балансов с журналом.
type Reconciler interface {
	ReconcileAll(ctx context.Context) ([]economy.Drift, error)
}

// CallSweeper: перевод зависших звонков в missed.
type CallSweeper interface {
	ExpireStale(ctx context.Context, olderThan time.Duration) (int, error)
}

// TypingSweeper: истечение индикаторов набора.
type TypingSweeper interface {
	SweepTyping() int
}

// Scheduler управляет фоновыми задачами.
type Scheduler struct {
	cron        *cron.Cron
	economy     Reconciler
	calls       CallSweeper
	typing      TypingSweeper
	ringTimeout time.Duration
}

// NewScheduler создаёт планировщик в часовом поясе сервиса.
// Задача, которая ещё выполняется, пропускает следующий запуск.
func NewScheduler(loc *time.Location, economy Reconciler, calls CallSweeper, typing TypingSweeper, ringTimeout time.Duration) *Scheduler {
	logger := cron.PrintfLogger(log.StandardLogger())
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	return &Scheduler{
		cron:        c,
		economy:     economy,
		calls:       calls,
		typing:      typing,
		ringTimeout: ringTimeout,
	}
}

// Start регистрирует и запускает все фоновые задачи.
func (s *Scheduler) Start(ctx context.Context) error {
	jobs := []struct {
		spec string
		fn   func()
	}{
		{ReconcileSpec, func() { s.Reconcile(ctx) }},
		{CallSweepSpec, func() { s.SweepCalls(ctx) }},
		{TypingSweepSpec, func() { s.SweepTyping() }},
	}
	for _, j := range jobs {
		if _, err := s.cron.AddFunc(j.spec, j.fn); err != nil {
			return fmt.Errorf("cron %q: %w", j.spec, err)
		}
	}

	s.cron.Start()
	log.WithField("jobs", len(s.cron.Entries())).Info("Планировщик задач запущен")
	return nil
}

// Reconcile: ночной отчёт о расхождениях баланса с журналом.
func (s *Scheduler) Reconcile(ctx context.Context) int {
	log.Info("[CRON] Сверка балансов")
	drifts, err := s.economy.ReconcileAll(ctx)
	if err != nil {
		log.WithError(err).Error("[CRON] Ошибка сверки")
		return 0
	}
	if len(drifts) > 0 {
		log.WithField("users", len(drifts)).Warn("[CRON] Найдены расхождения балансов")
	}
	return len(drifts)
}

// SweepCalls переводит звонки, которые звонят дольше таймаута, в missed.
func (s *Scheduler) SweepCalls(ctx context.Context) int {
	n, err := s.calls.ExpireStale(ctx, s.ringTimeout)
	if err != nil {
		log.WithError(err).Error("[CRON] Ошибка зачистки звонков")
	}
	if n > 0 {
		log.WithField("expired", n).Info("[CRON] Зависшие звонки помечены пропущенными")
	}
	return n
}

// SweepTyping рассылает is_typing=false по истёкшим индикаторам.
func (s *Scheduler) SweepTyping() int {
	return s.typing.SweepTyping()
}

// Stop останавливает планировщик и ждёт выполняющиеся задачи.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("Планировщик задач остановлен")
}
