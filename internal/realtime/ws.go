// Package realtime: ws.go подключает клиентов по WebSocket.
//
// Команды клиента (JSON):
//
//	{"action": "subscribe", "topic": "conversation:<id>"}
//	{"action": "unsubscribe", "topic": "conversation:<id>"}
//	{"action": "typing", "conversation_id": "<id>"}
//	{"action": "typing_stop", "conversation_id": "<id>"}
package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/green-earth/internal/httpapi/middleware"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Inbound обрабатывает команды клиента, которые требуют доменной логики.
type Inbound interface {
	// CanSubscribe проверяет, может ли пользователь слушать тему.
	CanSubscribe(ctx context.Context, userID uuid.UUID, topic string) error
	// Typing: нажатие клавиши (typing=true) или явная остановка.
	Typing(ctx context.Context, c *Client, conversationID uuid.UUID, typing bool)
	// Disconnected вызывается ровно один раз при отключении.
	Disconnected(c *Client)
}

type command struct {
	Action         string    `json:"action"`
	Topic          string    `json:"topic"`
	ConversationID uuid.UUID `json:"conversation_id"`
}

// Handler: WebSocket-точка входа.
type Handler struct {
	hub      *Hub
	inbound  Inbound
	upgrader websocket.Upgrader
}

// NewHandler создаёт обработчик. Пустой allowedOrigins разрешает любой Origin.
func NewHandler(hub *Hub, inbound Inbound, allowedOrigins []string) *Handler {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = struct{}{}
	}
	return &Handler{
		hub:     hub,
		inbound: inbound,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				if len(allowed) == 0 {
					return true
				}
				_, ok := allowed[r.Header.Get("Origin")]
				return ok
			},
		},
	}
}

// Register подключает GET /realtime к группе с авторизацией.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.GET("/realtime", h.Serve)
}

// Serve: GET /realtime. Токен можно передать в ?access_token=, браузер не умеет заголовки для WS.
func (h *Handler) Serve(c *gin.Context) {
	userID := middleware.GetUserID(c)
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.WithError(err).WithField("user_id", userID).Debug("Не удалось открыть WebSocket")
		return
	}

	client := NewClient(userID, 256)
	h.hub.Register(client)
	log.WithFields(log.Fields{
		"user_id":   userID,
		"client_id": client.ID,
	}).Debug("WebSocket подключён")

	go writePump(client, conn)
	h.readPump(c.Request.Context(), client, conn)

	if h.inbound != nil {
		h.inbound.Disconnected(client)
	}
	h.hub.Unregister(client)
	log.WithField("client_id", client.ID).Debug("WebSocket отключён")
}

func (h *Handler) readPump(ctx context.Context, client *Client, conn *websocket.Conn) {
	defer conn.Close()
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.WithError(err).WithField("client_id", client.ID).Debug("WebSocket закрыт с ошибкой")
			}
			return
		}
		var cmd command
		if json.Unmarshal(raw, &cmd) != nil {
			h.hub.Direct(client, EventError, gin.H{"error": "некорректная команда"})
			continue
		}
		h.handle(ctx, client, cmd)
	}
}

func (h *Handler) handle(ctx context.Context, client *Client, cmd command) {
	switch cmd.Action {
	case "subscribe":
		if _, _, ok := ParseTopic(cmd.Topic); !ok {
			h.hub.Direct(client, EventError, gin.H{"error": "неизвестная тема", "topic": cmd.Topic})
			return
		}
		if h.inbound != nil {
			if err := h.inbound.CanSubscribe(ctx, client.UserID, cmd.Topic); err != nil {
				h.hub.Direct(client, EventError, gin.H{"error": err.Error(), "topic": cmd.Topic})
				return
			}
		}
		h.hub.Subscribe(client, cmd.Topic)
		h.hub.Direct(client, EventSubscribed, gin.H{"topic": cmd.Topic})
	case "unsubscribe":
		h.hub.Unsubscribe(client, cmd.Topic)
	case "typing", "typing_stop":
		if h.inbound == nil || cmd.ConversationID == uuid.Nil {
			return
		}
		h.inbound.Typing(ctx, client, cmd.ConversationID, cmd.Action == "typing")
	default:
		h.hub.Direct(client, EventError, gin.H{"error": "неизвестное действие", "action": cmd.Action})
	}
}

// writePump переносит сообщения из канала клиента в соединение и пингует его.
func writePump(client *Client, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()
	for {
		select {
		case msg, ok := <-client.Send():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
