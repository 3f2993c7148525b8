package messaging

import "time"

// ReceiptStatus: статус сообщения для одного получателя.
type ReceiptStatus string

const (
	StatusSent      ReceiptStatus = "sent"
	StatusDelivered ReceiptStatus = "delivered"
	StatusSeen      ReceiptStatus = "seen"
)

func (s ReceiptStatus) rank() int {
	switch s {
	case StatusDelivered:
		return 1
	case StatusSeen:
		return 2
	}
	return 0
}

// Receipt: отметки доставки и просмотра одного получателя.
// Каждая отметка ставится один раз, как и условие "IS NULL" в SQL.
type Receipt struct {
	DeliveredAt *time.Time
	SeenAt      *time.Time
}

// MarkDelivered ставит отметку доставки. false: уже стояла
// или сообщение уже просмотрено.
func (r *Receipt) MarkDelivered(at time.Time) bool {
	if r.DeliveredAt != nil || r.SeenAt != nil {
		return false
	}
	r.DeliveredAt = &at
	return true
}

// MarkSeen ставит отметку просмотра. false: уже стояла.
func (r *Receipt) MarkSeen(at time.Time) bool {
	if r.SeenAt != nil {
		return false
	}
	r.SeenAt = &at
	return true
}

// Status: просмотр важнее доставки: просмотренное считается доставленным,
// даже если доставка не отмечалась.
func (r Receipt) Status() ReceiptStatus {
	switch {
	case r.SeenAt != nil:
		return StatusSeen
	case r.DeliveredAt != nil:
		return StatusDelivered
	}
	return StatusSent
}

// AggregateStatus: статус сообщения для отправителя: худший среди получателей.
// Без получателей сообщение считается отправленным.
func AggregateStatus(receipts []Receipt) ReceiptStatus {
	if len(receipts) == 0 {
		return StatusSent
	}
	worst := StatusSeen
	for _, r := range receipts {
		if s := r.Status(); s.rank() < worst.rank() {
			worst = s
		}
	}
	return worst
}
