package messaging

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/green-earth/internal/common"
	"serotonyl.ru/green-earth/internal/db/postgres/pgtest"
	"serotonyl.ru/green-earth/internal/realtime"
)

type published struct {
	topic     string
	eventType string
	payload   any
	except    uuid.UUID
}

type fakePublisher struct {
	mu     sync.Mutex
	events []published
}

func (f *fakePublisher) Publish(topic, eventType string, payload any) {
	f.PublishExcept(topic, eventType, payload, uuid.Nil)
}

func (f *fakePublisher) PublishExcept(topic, eventType string, payload any, except uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, published{topic, eventType, payload, except})
}

func (f *fakePublisher) ofType(eventType string) []published {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []published
	for _, e := range f.events {
		if e.eventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

type fixture struct {
	s    *Service
	pub  *fakePublisher
	user func(name string) uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	pool := pgtest.NewPool(t)
	pub := &fakePublisher{}
	return &fixture{
		s:    NewService(NewRepository(pool), pub, time.Hour),
		pub:  pub,
		user: func(name string) uuid.UUID { return pgtest.CreateProfile(t, pool, name, 0) },
	}
}

func TestCreateDirectIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := f.user("alice"), f.user("bob")

	a, err := f.s.CreateDirect(ctx, alice, bob)
	require.NoError(t, err)
	b, err := f.s.CreateDirect(ctx, bob, alice)
	require.NoError(t, err)
	require.Equal(t, a, b)

	_, err = f.s.CreateDirect(ctx, alice, alice)
	require.ErrorIs(t, err, common.ErrSelfConversation)
}

func TestConcurrentCreateDirect(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := f.user("alice"), f.user("bob")

	ids := make([]uuid.UUID, 8)
	var wg sync.WaitGroup
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := f.s.CreateDirect(ctx, alice, bob)
			require.NoError(t, err)
			ids[i] = id
		}(i)
	}
	wg.Wait()
	for _, id := range ids {
		require.Equal(t, ids[0], id)
	}
}

func TestMessageLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := f.user("alice"), f.user("bob")
	conv, err := f.s.CreateDirect(ctx, alice, bob)
	require.NoError(t, err)

	m, err := f.s.SendMessage(ctx, alice, conv, "  привет  ")
	require.NoError(t, err)
	require.Equal(t, "привет", m.Content)
	require.Len(t, f.pub.ofType(realtime.EventMessageNew), 1)
	require.Equal(t, realtime.ConversationTopic(conv), f.pub.ofType(realtime.EventMessageNew)[0].topic)

	unread, err := f.s.Unread(ctx, bob)
	require.NoError(t, err)
	require.Equal(t, 1, unread.Total)
	require.Equal(t, 1, unread.ByConversation[conv])

	// отправитель не может отметить своё сообщение
	require.NoError(t, f.s.MarkDelivered(ctx, alice, m.ID))
	require.Empty(t, f.pub.ofType(realtime.EventMessageStatus))

	require.NoError(t, f.s.MarkDelivered(ctx, bob, m.ID))
	require.NoError(t, f.s.MarkDelivered(ctx, bob, m.ID))
	require.Len(t, f.pub.ofType(realtime.EventMessageStatus), 1)

	msgs, err := f.s.Messages(ctx, alice, conv, 50, nil)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, StatusDelivered, msgs[0].Status)

	n, err := f.s.MarkConversationSeen(ctx, bob, conv)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	n, err = f.s.MarkConversationSeen(ctx, bob, conv)
	require.NoError(t, err)
	require.Zero(t, n)
	require.Len(t, f.pub.ofType(realtime.EventMessageStatus), 2)

	msgs, err = f.s.Messages(ctx, alice, conv, 50, nil)
	require.NoError(t, err)
	require.Equal(t, StatusSeen, msgs[0].Status)

	unread, err = f.s.Unread(ctx, bob)
	require.NoError(t, err)
	require.Zero(t, unread.Total)
}

// Поздняя отметка доставки после просмотра не откатывает статус.
func TestDeliveredAfterSeenIsIgnored(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := f.user("alice"), f.user("bob")
	conv, err := f.s.CreateDirect(ctx, alice, bob)
	require.NoError(t, err)

	m, err := f.s.SendMessage(ctx, alice, conv, "привет")
	require.NoError(t, err)

	n, err := f.s.MarkConversationSeen(ctx, bob, conv)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	require.NoError(t, f.s.MarkDelivered(ctx, bob, m.ID))

	events := f.pub.ofType(realtime.EventMessageStatus)
	require.Len(t, events, 1)
	require.Equal(t, StatusSeen, events[0].payload.(StatusEvent).Status)

	msgs, err := f.s.Messages(ctx, alice, conv, 50, nil)
	require.NoError(t, err)
	require.Equal(t, StatusSeen, msgs[0].Status)
}

func TestSendValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob, eve := f.user("alice"), f.user("bob"), f.user("eve")
	conv, err := f.s.CreateDirect(ctx, alice, bob)
	require.NoError(t, err)

	_, err = f.s.SendMessage(ctx, alice, conv, "   ")
	require.ErrorIs(t, err, common.ErrEmptyMessage)

	_, err = f.s.SendMessage(ctx, eve, conv, "привет")
	require.ErrorIs(t, err, common.ErrNotParticipant)

	_, err = f.s.Messages(ctx, eve, conv, 10, nil)
	require.ErrorIs(t, err, common.ErrNotParticipant)

	_, err = f.s.MarkConversationSeen(ctx, eve, conv)
	require.ErrorIs(t, err, common.ErrNotParticipant)

	long, err := f.s.SendMessage(ctx, alice, conv, strings.Repeat("я", MaxMessageLength+10))
	require.NoError(t, err)
	require.Len(t, []rune(long.Content), MaxMessageLength)
}

func TestGroupConversation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob, carol := f.user("alice"), f.user("bob"), f.user("carol")

	conv, err := f.s.CreateGroup(ctx, alice, " Субботник ", []uuid.UUID{bob, carol, alice})
	require.NoError(t, err)

	m, err := f.s.SendMessage(ctx, bob, conv, "берём перчатки")
	require.NoError(t, err)

	// доставлено только одному из двух получателей
	require.NoError(t, f.s.MarkDelivered(ctx, alice, m.ID))
	msgs, err := f.s.Messages(ctx, bob, conv, 10, nil)
	require.NoError(t, err)
	require.Equal(t, StatusSent, msgs[0].Status)

	require.NoError(t, f.s.MarkDelivered(ctx, carol, m.ID))
	msgs, err = f.s.Messages(ctx, bob, conv, 10, nil)
	require.NoError(t, err)
	require.Equal(t, StatusDelivered, msgs[0].Status)

	list, err := f.s.List(ctx, carol)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.True(t, list[0].IsGroup)
	require.Equal(t, "Субботник", list[0].Title)
	require.Equal(t, 1, list[0].Unread)
}

func TestToggleReaction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := f.user("alice"), f.user("bob")
	conv, err := f.s.CreateDirect(ctx, alice, bob)
	require.NoError(t, err)
	m, err := f.s.SendMessage(ctx, alice, conv, "посадили дерево")
	require.NoError(t, err)

	added, err := f.s.ToggleReaction(ctx, bob, m.ID, "🌱")
	require.NoError(t, err)
	require.True(t, added)
	added, err = f.s.ToggleReaction(ctx, alice, m.ID, "🌱")
	require.NoError(t, err)
	require.True(t, added)

	groups, err := f.s.ListReactions(ctx, alice, m.ID)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	require.Equal(t, 2, groups[0].Count)
	require.Equal(t, []uuid.UUID{bob, alice}, groups[0].Users)

	added, err = f.s.ToggleReaction(ctx, bob, m.ID, "🌱")
	require.NoError(t, err)
	require.False(t, added)

	groups, err = f.s.ListReactions(ctx, alice, m.ID)
	require.NoError(t, err)
	require.Equal(t, 1, groups[0].Count)
	require.Len(t, f.pub.ofType(realtime.EventReaction), 3)

	_, err = f.s.ToggleReaction(ctx, bob, m.ID, "")
	require.ErrorIs(t, err, common.ErrInvalidEmoji)
	_, err = f.s.ToggleReaction(ctx, bob, m.ID, strings.Repeat("x", MaxEmojiLength+1))
	require.ErrorIs(t, err, common.ErrInvalidEmoji)
	_, err = f.s.ToggleReaction(ctx, bob, uuid.New(), "🌱")
	require.ErrorIs(t, err, common.ErrMessageNotFound)
}

func TestSendStopsTyping(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := f.user("alice"), f.user("bob")
	conv, err := f.s.CreateDirect(ctx, alice, bob)
	require.NoError(t, err)

	client := realtime.NewClient(alice, 4)
	f.s.Typing(ctx, client, conv, true)
	users, err := f.s.TypingUsers(ctx, bob, conv)
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{alice}, users)

	_, err = f.s.SendMessage(ctx, alice, conv, "готово")
	require.NoError(t, err)

	users, err = f.s.TypingUsers(ctx, bob, conv)
	require.NoError(t, err)
	require.Empty(t, users)

	typing := f.pub.ofType(realtime.EventTyping)
	require.Len(t, typing, 2)
	require.True(t, typing[0].payload.(TypingEvent).IsTyping)
	require.False(t, typing[1].payload.(TypingEvent).IsTyping)
	require.Equal(t, alice, typing[1].except)

	f.s.Disconnected(client)
	require.Len(t, f.pub.ofType(realtime.EventTyping), 2)
}

func TestCanSubscribe(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob, eve := f.user("alice"), f.user("bob"), f.user("eve")
	conv, err := f.s.CreateDirect(ctx, alice, bob)
	require.NoError(t, err)

	require.NoError(t, f.s.CanSubscribe(ctx, alice, realtime.ConversationTopic(conv)))
	require.ErrorIs(t, f.s.CanSubscribe(ctx, eve, realtime.ConversationTopic(conv)), common.ErrNotParticipant)
	require.NoError(t, f.s.CanSubscribe(ctx, eve, realtime.UserTopic(eve)))
	require.ErrorIs(t, f.s.CanSubscribe(ctx, eve, realtime.UserTopic(alice)), common.ErrNotParticipant)
	require.Error(t, f.s.CanSubscribe(ctx, eve, "garbage"))
}
