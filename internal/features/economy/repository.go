// Package economy: repository.go выполняет все операции с балансом в profiles
// и таблицами transactions и reward_claims.
//
// Баланс никогда не читается и не записывается целиком из кода:
// каждое изменение: атомарная дельта в одном UPDATE плюс строка журнала.
package economy

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
	"serotonyl.ru/green-earth/internal/features/ledger"
)

// Repository предоставляет методы для работы с балансами и транзакциями.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт новый репозиторий экономики.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Pool нужен сервису, чтобы открыть транзакцию над несколькими шагами.
func (r *Repository) Pool() *pgxpool.Pool {
	return r.db
}

// AddPoints увеличивает баланс на delta и возвращает новый баланс.
func (r *Repository) AddPoints(ctx context.Context, q postgres.Querier, userID uuid.UUID, delta int64) (int64, error) {
	var balance int64
	err := q.QueryRow(ctx, `
		UPDATE profiles
		SET green_points = green_points + $2, updated_at = NOW()
		WHERE id = $1
		RETURNING green_points
	`, userID, delta).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, common.ErrUserNotFound
		}
		return 0, fmt.Errorf("ошибка начисления: %w", err)
	}
	return balance, nil
}

// DeductPoints списывает amount, только если баланса хватает.
// Проверка и списание: один условный UPDATE, гонки нет.
func (r *Repository) DeductPoints(ctx context.Context, q postgres.Querier, userID uuid.UUID, amount int64) (int64, error) {
	var balance int64
	err := q.QueryRow(ctx, `
		UPDATE profiles
		SET green_points = green_points - $2, updated_at = NOW()
		WHERE id = $1 AND green_points >= $2
		RETURNING green_points
	`, userID, amount).Scan(&balance)
	if err == nil {
		return balance, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("ошибка списания: %w", err)
	}

	// Строк нет: либо нет профиля, либо не хватает баллов
	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM profiles WHERE id = $1)`, userID).Scan(&exists); err != nil {
		return 0, fmt.Errorf("ошибка проверки профиля: %w", err)
	}
	if !exists {
		return 0, common.ErrUserNotFound
	}
	return 0, common.ErrInsufficientBalance
}

// InsertTransaction добавляет запись в журнал. Записи никогда не меняются.
func (r *Repository) InsertTransaction(ctx context.Context, q postgres.Querier, t *Transaction) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	err := q.QueryRow(ctx, `
		INSERT INTO transactions (id, sender_id, receiver_id, amount, type, reference_id, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, t.ID, t.SenderID, t.ReceiverID, t.Amount, string(t.Type), t.ReferenceID, t.Description,
	).Scan(&t.CreatedAt)
	if err != nil {
		return fmt.Errorf("ошибка записи транзакции: %w", err)
	}
	return nil
}

// GetBalance возвращает баланс, сумму выведенного и кошелёк.
func (r *Repository) GetBalance(ctx context.Context, userID uuid.UUID) (int64, int64, *string, error) {
	var balance, claimed int64
	var wallet *string
	err := r.db.QueryRow(ctx,
		`SELECT green_points, total_camly_claimed, wallet_address FROM profiles WHERE id = $1`, userID,
	).Scan(&balance, &claimed, &wallet)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, 0, nil, common.ErrUserNotFound
		}
		return 0, 0, nil, fmt.Errorf("ошибка получения баланса: %w", err)
	}
	return balance, claimed, wallet, nil
}

// Claim выводит максимально возможную сумму в одной транзакции БД:
// блокирует профиль, списывает баллы, увеличивает total_camly_claimed,
// пишет строку журнала и заявку на вывод.
func (r *Repository) Claim(ctx context.Context, userID uuid.UUID) (*ClaimResult, error) {
	var res *ClaimResult
	err := postgres.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		var balance int64
		var wallet *string
		err := tx.QueryRow(ctx, `
			SELECT green_points, wallet_address FROM profiles WHERE id = $1 FOR UPDATE
		`, userID).Scan(&balance, &wallet)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return common.ErrUserNotFound
			}
			return fmt.Errorf("ошибка получения баланса: %w", err)
		}

		if !ledger.IsClaimEligible(balance) {
			return common.ErrNotEligibleForClaim
		}
		if wallet == nil || *wallet == "" {
			return common.ErrWalletRequired
		}
		claim := ledger.ClaimableAmount(balance)

		var newBalance, totalClaimed int64
		err = tx.QueryRow(ctx, `
			UPDATE profiles
			SET green_points = green_points - $2,
			    total_camly_claimed = total_camly_claimed + $3,
			    updated_at = NOW()
			WHERE id = $1
			RETURNING green_points, total_camly_claimed
		`, userID, claim.Points, claim.Coin).Scan(&newBalance, &totalClaimed)
		if err != nil {
			return fmt.Errorf("ошибка списания при выводе: %w", err)
		}

		t := &Transaction{
			SenderID:    &userID,
			Amount:      claim.Points,
			Type:        TxClaim,
			Description: fmt.Sprintf("Вывод %s", common.FormatCoins(claim.Coin)),
		}
		if err := r.InsertTransaction(ctx, tx, t); err != nil {
			return err
		}

		claimID := uuid.New()
		if _, err := tx.Exec(ctx, `
			INSERT INTO reward_claims (id, user_id, points, coins, wallet_address, transaction_id)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, claimID, userID, claim.Points, claim.Coin, *wallet, t.ID); err != nil {
			return fmt.Errorf("ошибка записи заявки на вывод: %w", err)
		}

		res = &ClaimResult{
			ClaimID:       claimID,
			TransactionID: t.ID,
			Claimed:       claim,
			Balance:       newBalance,
			TotalClaimed:  totalClaimed,
			Wallet:        *wallet,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// GetTransactions возвращает последние транзакции пользователя, входящие и исходящие.
// before: курсор для пагинации (nil = с самых новых).
func (r *Repository) GetTransactions(ctx context.Context, userID uuid.UUID, limit int, before *time.Time) ([]*Transaction, error) {
	query := `
		SELECT id, sender_id, receiver_id, amount, type, reference_id, description, created_at
		FROM transactions
		WHERE (sender_id = $1 OR receiver_id = $1)
		  AND ($3::timestamptz IS NULL OR created_at < $3)
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, userID, limit, before)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения транзакций: %w", err)
	}
	defer rows.Close()

	var transactions []*Transaction
	for rows.Next() {
		var t Transaction
		var txType string
		if err := rows.Scan(
			&t.ID, &t.SenderID, &t.ReceiverID, &t.Amount,
			&txType, &t.ReferenceID, &t.Description, &t.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования транзакции: %w", err)
		}
		t.Type = TxType(txType)
		transactions = append(transactions, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения транзакций: %w", err)
	}
	return transactions, nil
}

const driftQuery = `
	SELECT p.id, p.green_points,
	       (COALESCE((SELECT SUM(amount) FROM transactions WHERE receiver_id = p.id), 0)
	      - COALESCE((SELECT SUM(amount) FROM transactions WHERE sender_id = p.id), 0))::BIGINT
	FROM profiles p
`

// Reconcile сравнивает баланс пользователя с суммой журнала.
func (r *Repository) Reconcile(ctx context.Context, userID uuid.UUID) (*Drift, error) {
	var d Drift
	err := r.db.QueryRow(ctx, driftQuery+` WHERE p.id = $1`, userID).Scan(&d.UserID, &d.Balance, &d.LedgerSum)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.ErrUserNotFound
		}
		return nil, fmt.Errorf("ошибка сверки: %w", err)
	}
	return &d, nil
}

// ListDrifts возвращает всех пользователей, у которых баланс разошёлся с журналом.
func (r *Repository) ListDrifts(ctx context.Context) ([]Drift, error) {
	rows, err := r.db.Query(ctx, `SELECT * FROM (`+driftQuery+`) d(user_id, balance, ledger_sum) WHERE balance <> ledger_sum`)
	if err != nil {
		return nil, fmt.Errorf("ошибка сверки: %w", err)
	}
	defer rows.Close()

	var out []Drift
	for rows.Next() {
		var d Drift
		if err := rows.Scan(&d.UserID, &d.Balance, &d.LedgerSum); err != nil {
			return nil, fmt.Errorf("ошибка сканирования сверки: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
