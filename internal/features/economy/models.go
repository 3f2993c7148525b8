// Package economy ведёт журнал транзакций баллов: награды, подарки, вывод в монеты.
// models.go описывает структуры для транзакций, вывода и сверки балансов.
package economy

import (
	"time"

	"github.com/google/uuid"

	"serotonyl.ru/green-earth/internal/features/ledger"
)

// TxType: тип транзакции.
type TxType string

// Допустимые типы транзакций
const (
	TxGift        TxType = "gift"         // Подарок между пользователями
	TxShareBonus  TxType = "share_bonus"  // Репост и бонус автору
	TxNFTMint     TxType = "nft_mint"     // Минт NFT
	TxScanReward  TxType = "scan_reward"  // Скан мусора
	TxCheckIn     TxType = "check_in"     // Ежедневный чекин
	TxStreakBonus TxType = "streak_bonus" // Бонус за 7 дней серии
	TxContentView TxType = "content_view" // Просмотр обучающего контента
	TxClaim       TxType = "claim"        // Вывод баллов в монеты
)

// Valid: тип известен журналу.
func (t TxType) Valid() bool {
	switch t {
	case TxGift, TxShareBonus, TxNFTMint, TxScanReward, TxCheckIn, TxStreakBonus, TxContentView, TxClaim:
		return true
	}
	return false
}

// Transaction: неизменяемая запись журнала.
// Системные награды не имеют отправителя, вывод не имеет получателя.
type Transaction struct {
	ID          uuid.UUID  `json:"id"`
	SenderID    *uuid.UUID `json:"sender_id"`
	ReceiverID  *uuid.UUID `json:"receiver_id"`
	Amount      int64      `json:"amount"` // Всегда положительная
	Type        TxType     `json:"type"`
	ReferenceID *uuid.UUID `json:"reference_id"` // Пост, сообщение, скан и т.п.
	Description string     `json:"description"`
	CreatedAt   time.Time  `json:"created_at"`
}

// SignedAmount: сумма со знаком с точки зрения пользователя.
func (t *Transaction) SignedAmount(userID uuid.UUID) int64 {
	if t.SenderID != nil && *t.SenderID == userID {
		return -t.Amount
	}
	return t.Amount
}

// CreditRequest: начисление системной награды.
type CreditRequest struct {
	UserID      uuid.UUID
	Amount      int64
	Type        TxType
	ReferenceID *uuid.UUID
	Description string
}

// TransferRequest: перевод. Sender == nil означает системное начисление.
type TransferRequest struct {
	Sender      *uuid.UUID
	Receiver    uuid.UUID
	Amount      int64
	Type        TxType
	ReferenceID *uuid.UUID
	Description string
}

// Credited: результат начисления.
type Credited struct {
	Transaction *Transaction `json:"transaction"`
	Balance     int64        `json:"balance"` // Баланс получателя после начисления
}

// Summary: состояние кошелька пользователя.
type Summary struct {
	Balance      int64            `json:"balance"`
	TotalClaimed int64            `json:"total_camly_claimed"`
	Claimable    ledger.Claimable `json:"claimable"`
	Eligible     bool             `json:"eligible"`
	MinimumClaim int64            `json:"minimum_claim"`
	Wallet       *string          `json:"wallet_address"`
}

// ClaimResult: результат вывода баллов в монеты.
type ClaimResult struct {
	ClaimID       uuid.UUID        `json:"claim_id"`
	TransactionID uuid.UUID        `json:"transaction_id"`
	Claimed       ledger.Claimable `json:"claimed"`
	Balance       int64            `json:"balance"`
	TotalClaimed  int64            `json:"total_camly_claimed"`
	Wallet        string           `json:"wallet_address"`
}

// Drift: расхождение баланса с журналом.
type Drift struct {
	UserID    uuid.UUID `json:"user_id"`
	Balance   int64     `json:"balance"`
	LedgerSum int64     `json:"ledger_sum"`
}

// Diff: насколько баланс больше суммы журнала.
func (d Drift) Diff() int64 {
	return d.Balance - d.LedgerSum
}
