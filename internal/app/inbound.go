package app

import (
	"context"

	"github.com/google/uuid"

	"serotonyl.ru/green-earth/internal/features/calls"
	"serotonyl.ru/green-earth/internal/features/messaging"
	"serotonyl.ru/green-earth/internal/realtime"
)

// inbound: команды WebSocket-клиента. Набор текста и беседы обслуживает
// messaging, подписку на call:<id> проверяет calls.
type inbound struct {
	*messaging.Service
	calls *calls.Service
}

func (i *inbound) CanSubscribe(ctx context.Context, userID uuid.UUID, topic string) error {
	if kind, id, ok := realtime.ParseTopic(topic); ok && kind == "call" {
		return i.calls.CanWatch(ctx, userID, id)
	}
	return i.Service.CanSubscribe(ctx, userID, topic)
}
