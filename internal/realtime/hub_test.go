package realtime

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func recv(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case raw := <-c.Send():
		var ev Event
		require.NoError(t, json.Unmarshal(raw, &ev))
		return ev
	default:
		t.Fatal("нет события")
		return Event{}
	}
}

func empty(t *testing.T, c *Client) {
	t.Helper()
	select {
	case raw := <-c.Send():
		t.Fatalf("лишнее событие: %s", raw)
	default:
	}
}

func TestParseTopic(t *testing.T) {
	id := uuid.New()
	kind, got, ok := ParseTopic(ConversationTopic(id))
	require.True(t, ok)
	require.Equal(t, "conversation", kind)
	require.Equal(t, id, got)

	_, _, ok = ParseTopic("room:" + id.String())
	require.False(t, ok)
	_, _, ok = ParseTopic("conversation:nope")
	require.False(t, ok)
	_, _, ok = ParseTopic("garbage")
	require.False(t, ok)
}

func TestHubPersonalTopic(t *testing.T) {
	h := NewHub()
	user := uuid.New()
	a := NewClient(user, 4)
	b := NewClient(user, 4)
	h.Register(a)
	h.Register(b)

	h.Publish(UserTopic(user), EventNotification, map[string]string{"title": "hi"})
	require.Equal(t, EventNotification, recv(t, a).Type)
	require.Equal(t, EventNotification, recv(t, b).Type)
}

func TestHubPublishExcept(t *testing.T) {
	h := NewHub()
	conv := ConversationTopic(uuid.New())
	alice := NewClient(uuid.New(), 4)
	bob := NewClient(uuid.New(), 4)
	h.Register(alice)
	h.Register(bob)
	h.Subscribe(alice, conv)
	h.Subscribe(bob, conv)

	h.PublishExcept(conv, EventTyping, map[string]bool{"is_typing": true}, alice.UserID)
	ev := recv(t, bob)
	require.Equal(t, EventTyping, ev.Type)
	require.Equal(t, conv, ev.Topic)
	empty(t, alice)
}

func TestHubUnregisterCleansTopics(t *testing.T) {
	h := NewHub()
	conv := ConversationTopic(uuid.New())
	c := NewClient(uuid.New(), 4)
	h.Register(c)
	h.Subscribe(c, conv)
	require.Equal(t, 1, h.Subscribers(conv))

	h.Unregister(c)
	require.Equal(t, 0, h.Subscribers(conv))
	require.Equal(t, 0, h.Subscribers(UserTopic(c.UserID)))

	_, ok := <-c.Send()
	require.False(t, ok)

	// после отключения публикация и повторный Unregister безопасны
	h.Publish(conv, EventMessageNew, nil)
	h.Unregister(c)
}

func TestHubDropsWhenFull(t *testing.T) {
	h := NewHub()
	c := NewClient(uuid.New(), 1)
	h.Register(c)

	h.Publish(UserTopic(c.UserID), EventNotification, 1)
	h.Publish(UserTopic(c.UserID), EventNotification, 2)
	ev := recv(t, c)
	require.EqualValues(t, 1, ev.Payload)
	empty(t, c)
}
