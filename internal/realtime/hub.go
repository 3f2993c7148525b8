// Package realtime рассылает события подписчикам по темам.
// Тема: строка вида "conversation:<id>", "user:<id>" или "call:<id>".
// Каждое подключение подписано на свою личную тему user:<id> автоматически.
package realtime

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Типы событий
const (
	EventMessageNew    = "message.new"
	EventMessageStatus = "message.status"
	EventReaction      = "reaction"
	EventTyping        = "typing"
	EventCallStatus    = "call.status"
	EventNotification  = "notification"
	EventError         = "error"
	EventSubscribed    = "subscribed"
)

// Event: сообщение, которое уходит клиенту одной JSON-строкой.
type Event struct {
	Type    string    `json:"type"`
	Topic   string    `json:"topic,omitempty"`
	Payload any       `json:"payload,omitempty"`
	SentAt  time.Time `json:"sent_at"`
}

// ConversationTopic: события беседы.
func ConversationTopic(id uuid.UUID) string { return "conversation:" + id.String() }

// UserTopic: личные события пользователя.
func UserTopic(id uuid.UUID) string { return "user:" + id.String() }

// CallTopic: события звонка.
func CallTopic(id uuid.UUID) string { return "call:" + id.String() }

// ParseTopic разбирает тему на вид и идентификатор.
func ParseTopic(topic string) (kind string, id uuid.UUID, ok bool) {
	kind, raw, found := strings.Cut(topic, ":")
	if !found {
		return "", uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", uuid.Nil, false
	}
	switch kind {
	case "conversation", "user", "call":
		return kind, id, true
	}
	return "", uuid.Nil, false
}

// Client: одно подключение. У пользователя их может быть несколько,
// каждое получает события независимо.
type Client struct {
	ID     uuid.UUID
	UserID uuid.UUID
	send   chan []byte

	closeOnce sync.Once
}

// NewClient создаёт клиента с буфером исходящих сообщений.
func NewClient(userID uuid.UUID, buffer int) *Client {
	if buffer <= 0 {
		buffer = 256
	}
	return &Client{ID: uuid.New(), UserID: userID, send: make(chan []byte, buffer)}
}

// Send: канал исходящих сообщений, закрывается при отключении.
func (c *Client) Send() <-chan []byte {
	return c.send
}

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.send) })
}

// Hub хранит подписки и рассылает события.
type Hub struct {
	mu     sync.RWMutex
	topics map[string]map[*Client]struct{}
	subs   map[*Client]map[string]struct{}
	now    func() time.Time
}

// NewHub создаёт пустой хаб.
func NewHub() *Hub {
	return &Hub{
		topics: make(map[string]map[*Client]struct{}),
		subs:   make(map[*Client]map[string]struct{}),
		now:    time.Now,
	}
}

// Register добавляет подключение и подписывает его на личную тему.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.subs[c] = make(map[string]struct{})
	h.mu.Unlock()
	h.Subscribe(c, UserTopic(c.UserID))
}

// Unregister удаляет подключение из всех тем и закрывает его канал.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	for topic := range h.subs[c] {
		h.removeLocked(topic, c)
	}
	delete(h.subs, c)
	h.mu.Unlock()
	c.close()
}

// Subscribe подписывает подключение на тему. Повторная подписка ничего не меняет.
func (h *Hub) Subscribe(c *Client, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	topics, ok := h.subs[c]
	if !ok {
		return
	}
	topics[topic] = struct{}{}
	if h.topics[topic] == nil {
		h.topics[topic] = make(map[*Client]struct{})
	}
	h.topics[topic][c] = struct{}{}
}

// Unsubscribe отписывает подключение от темы.
func (h *Hub) Unsubscribe(c *Client, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if topics, ok := h.subs[c]; ok {
		delete(topics, topic)
	}
	h.removeLocked(topic, c)
}

func (h *Hub) removeLocked(topic string, c *Client) {
	clients := h.topics[topic]
	delete(clients, c)
	if len(clients) == 0 {
		delete(h.topics, topic)
	}
}

// Subscribers: сколько подключений слушают тему.
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

// Publish рассылает событие всем подписчикам темы.
func (h *Hub) Publish(topic, eventType string, payload any) {
	h.publish(topic, eventType, payload, uuid.Nil)
}

// PublishExcept рассылает событие всем, кроме подключений пользователя except.
// Так автор не получает эхо своего "печатает".
func (h *Hub) PublishExcept(topic, eventType string, payload any, except uuid.UUID) {
	h.publish(topic, eventType, payload, except)
}

func (h *Hub) publish(topic, eventType string, payload any, except uuid.UUID) {
	data, err := json.Marshal(Event{Type: eventType, Topic: topic, Payload: payload, SentAt: h.now().UTC()})
	if err != nil {
		log.WithError(err).WithField("type", eventType).Error("Не удалось сериализовать событие")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.topics[topic] {
		if except != uuid.Nil && c.UserID == except {
			continue
		}
		// Медленный клиент не должен тормозить остальных
		select {
		case c.send <- data:
		default:
			log.WithFields(log.Fields{
				"user_id": c.UserID,
				"topic":   topic,
				"type":    eventType,
			}).Warn("Очередь клиента переполнена, событие отброшено")
		}
	}
}

// Direct отправляет событие одному подключению (ответ на его команду).
func (h *Hub) Direct(c *Client, eventType string, payload any) {
	data, err := json.Marshal(Event{Type: eventType, Payload: payload, SentAt: h.now().UTC()})
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.subs[c]; !ok {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}
