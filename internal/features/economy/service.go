// Package economy: service.go содержит бизнес-логику экономики.
// Валидация, начисления наград, подарки, вывод, история и сверка баланса.
package economy

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/green-earth/internal/common"
	"serotonyl.ru/green-earth/internal/db/postgres"
	"serotonyl.ru/green-earth/internal/features/ledger"
	"serotonyl.ru/green-earth/internal/features/profiles"
)

// Notifier отправляет уведомление пользователю.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, kind, title, body string, data map[string]any) error
}

// UserLookup ищет получателя подарка.
type UserLookup interface {
	GetByUsername(ctx context.Context, username string) (*profiles.Profile, error)
}

// Service управляет экономикой (баллы и монеты).
type Service struct {
	repo     *Repository
	users    UserLookup
	notifier Notifier
	loc      *time.Location
}

// NewService создаёт новый сервис экономики.
func NewService(repo *Repository, users UserLookup, notifier Notifier, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{repo: repo, users: users, notifier: notifier, loc: loc}
}

// CreditTx начисляет системную награду внутри чужой транзакции БД.
// Другие функции (чекин, просмотры, репосты) вызывают его, чтобы их запись
// и начисление фиксировались вместе.
func (s *Service) CreditTx(ctx context.Context, q postgres.Querier, req CreditRequest) (*Credited, error) {
	if req.Amount <= 0 {
		return nil, common.ErrInvalidAmount
	}
	if !req.Type.Valid() || req.Type == TxGift || req.Type == TxClaim {
		return nil, common.ErrInvalidTxType
	}

	balance, err := s.repo.AddPoints(ctx, q, req.UserID, req.Amount)
	if err != nil {
		return nil, err
	}
	t := &Transaction{
		ReceiverID:  &req.UserID,
		Amount:      req.Amount,
		Type:        req.Type,
		ReferenceID: req.ReferenceID,
		Description: req.Description,
	}
	if err := s.repo.InsertTransaction(ctx, q, t); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"user_id": req.UserID,
		"amount":  req.Amount,
		"type":    req.Type,
		"balance": balance,
	}).Info("Начислена награда")

	return &Credited{Transaction: t, Balance: balance}, nil
}

// AppendReward пишет строку журнала для награды, дельту которой вызывающий
// уже применил своим UPDATE (чекин меняет баланс и серию одним запросом).
func (s *Service) AppendReward(ctx context.Context, q postgres.Querier, req CreditRequest) (*Transaction, error) {
	if req.Amount <= 0 {
		return nil, common.ErrInvalidAmount
	}
	if !req.Type.Valid() || req.Type == TxGift || req.Type == TxClaim {
		return nil, common.ErrInvalidTxType
	}
	t := &Transaction{
		ReceiverID:  &req.UserID,
		Amount:      req.Amount,
		Type:        req.Type,
		ReferenceID: req.ReferenceID,
		Description: req.Description,
	}
	if err := s.repo.InsertTransaction(ctx, q, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Credit начисляет награду в собственной транзакции.
func (s *Service) Credit(ctx context.Context, req CreditRequest) (*Credited, error) {
	var res *Credited
	err := postgres.WithTx(ctx, s.repo.Pool(), func(tx pgx.Tx) error {
		var err error
		res, err = s.CreditTx(ctx, tx, req)
		return err
	})
	return res, err
}

// Transfer переводит баллы. Для подарка (есть отправитель) выполняются проверки:
//   - Нельзя переводить себе
//   - Сумма должна быть положительной
//   - У отправителя должно быть достаточно баллов
//
// Списание, зачисление и запись журнала: одна транзакция БД.
func (s *Service) Transfer(ctx context.Context, req TransferRequest) (*Transaction, error) {
	if req.Amount <= 0 {
		return nil, common.ErrInvalidAmount
	}
	if !req.Type.Valid() || req.Type == TxClaim {
		return nil, common.ErrInvalidTxType
	}
	if req.Sender == nil {
		credited, err := s.Credit(ctx, CreditRequest{
			UserID:      req.Receiver,
			Amount:      req.Amount,
			Type:        req.Type,
			ReferenceID: req.ReferenceID,
			Description: req.Description,
		})
		if err != nil {
			return nil, err
		}
		return credited.Transaction, nil
	}
	if *req.Sender == req.Receiver {
		return nil, common.ErrSelfTransfer
	}

	t := &Transaction{
		SenderID:    req.Sender,
		ReceiverID:  &req.Receiver,
		Amount:      req.Amount,
		Type:        req.Type,
		ReferenceID: req.ReferenceID,
		Description: req.Description,
	}
	err := postgres.WithTx(ctx, s.repo.Pool(), func(tx pgx.Tx) error {
		if _, err := s.repo.DeductPoints(ctx, tx, *req.Sender, req.Amount); err != nil {
			return err
		}
		if _, err := s.repo.AddPoints(ctx, tx, req.Receiver, req.Amount); err != nil {
			return err
		}
		return s.repo.InsertTransaction(ctx, tx, t)
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"from":   *req.Sender,
		"to":     req.Receiver,
		"amount": req.Amount,
		"type":   req.Type,
	}).Info("Перевод выполнен")

	return t, nil
}

// Gift дарит баллы пользователю по нику и уведомляет получателя.
func (s *Service) Gift(ctx context.Context, sender uuid.UUID, receiverUsername string, amount int64, note string) (*Transaction, error) {
	if amount <= 0 {
		return nil, common.ErrInvalidAmount
	}
	receiver, err := s.users.GetByUsername(ctx, receiverUsername)
	if err != nil {
		return nil, err
	}

	note = strings.TrimSpace(note)
	if len([]rune(note)) > 200 {
		note = string([]rune(note)[:200])
	}
	description := "Подарок"
	if note != "" {
		description = "Подарок: " + note
	}

	t, err := s.Transfer(ctx, TransferRequest{
		Sender:      &sender,
		Receiver:    receiver.ID,
		Amount:      amount,
		Type:        TxGift,
		Description: description,
	})
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		body := fmt.Sprintf("Вам подарили %s", common.FormatPoints(amount))
		if note != "" {
			body += ": " + note
		}
		if err := s.notifier.Notify(ctx, receiver.ID, "gift", "🎁 Подарок", body, map[string]any{
			"transaction_id": t.ID,
			"sender_id":      sender,
			"amount":         amount,
		}); err != nil {
			log.WithError(err).WithField("user_id", receiver.ID).Warn("Не удалось уведомить о подарке")
		}
	}
	return t, nil
}

// Claim выводит накопленные баллы в монеты. Остаток меньше курса остаётся на счёте.
func (s *Service) Claim(ctx context.Context, userID uuid.UUID) (*ClaimResult, error) {
	res, err := s.repo.Claim(ctx, userID)
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"user_id": userID,
		"points":  res.Claimed.Points,
		"coins":   res.Claimed.Coin,
		"wallet":  res.Wallet,
	}).Info("Вывод баллов оформлен")

	return res, nil
}

// Summary возвращает баланс, выведенное и доступное к выводу.
func (s *Service) Summary(ctx context.Context, userID uuid.UUID) (*Summary, error) {
	balance, claimed, wallet, err := s.repo.GetBalance(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Summary{
		Balance:      balance,
		TotalClaimed: claimed,
		Claimable:    ledger.ClaimableAmount(balance),
		Eligible:     ledger.IsClaimEligible(balance),
		MinimumClaim: ledger.MinimumClaim,
		Wallet:       wallet,
	}, nil
}

// GetBalance возвращает текущий баланс пользователя.
func (s *Service) GetBalance(ctx context.Context, userID uuid.UUID) (int64, error) {
	balance, _, _, err := s.repo.GetBalance(ctx, userID)
	return balance, err
}

// History возвращает последние транзакции пользователя.
func (s *Service) History(ctx context.Context, userID uuid.UUID, limit int, before *time.Time) ([]*Transaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.repo.GetTransactions(ctx, userID, limit, before)
}

// Reconcile сверяет баланс пользователя с журналом.
func (s *Service) Reconcile(ctx context.Context, userID uuid.UUID) (*Drift, error) {
	return s.repo.Reconcile(ctx, userID)
}

// ReconcileAll ищет все расхождения и логирует их.
func (s *Service) ReconcileAll(ctx context.Context) ([]Drift, error) {
	drifts, err := s.repo.ListDrifts(ctx)
	if err != nil {
		return nil, err
	}
	for _, d := range drifts {
		log.WithFields(log.Fields{
			"user_id":    d.UserID,
			"balance":    d.Balance,
			"ledger_sum": d.LedgerSum,
			"diff":       d.Diff(),
		}).Warn("Баланс расходится с журналом")
	}
	return drifts, nil
}

// FormatHistory возвращает историю в виде текста для бота.
// Последние транзакции, дата в зоне сервиса, знак с точки зрения пользователя.
func (s *Service) FormatHistory(ctx context.Context, userID uuid.UUID, limit int) (string, error) {
	transactions, err := s.History(ctx, userID, limit, nil)
	if err != nil {
		return "", err
	}
	if len(transactions) == 0 {
		return "📋 У вас пока нет транзакций", nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📋 Последние %d транзакций:\n\n", len(transactions)))
	for i, tx := range transactions {
		sb.WriteString(fmt.Sprintf("%d. %s | %s | %s\n",
			i+1,
			common.FormatDateTime(tx.CreatedAt, s.loc),
			common.FormatPointsAmount(tx.SignedAmount(userID)),
			tx.Description,
		))
	}
	return sb.String(), nil
}
