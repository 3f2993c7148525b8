// Package messaging: handlers.go обслуживает запросы /conversations и /messages.
package messaging

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"serotonyl.ru/green-earth/internal/httpapi/middleware"
	"serotonyl.ru/green-earth/internal/httpapi/respond"
)

// Handler обрабатывает запросы сообщений.
type Handler struct {
	service *Service
}

// NewHandler создаёт новый обработчик.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Register подключает маршруты к группе с авторизацией.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.GET("/conversations", h.List)
	rg.POST("/conversations", h.Create)
	rg.GET("/conversations/:id/messages", h.Messages)
	rg.POST("/conversations/:id/messages", h.Send)
	rg.POST("/conversations/:id/seen", h.Seen)
	rg.GET("/conversations/:id/typing", h.TypingUsers)
	rg.POST("/conversations/:id/typing", h.Keystroke)
	rg.GET("/messages/unread", h.Unread)
	rg.POST("/messages/:id/delivered", h.Delivered)
	rg.GET("/messages/:id/reactions", h.Reactions)
	rg.POST("/messages/:id/reactions", h.ToggleReaction)
}

// List: GET /conversations
func (h *Handler) List(c *gin.Context) {
	list, err := h.service.List(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respond.Error(c, err)
		return
	}
	if list == nil {
		list = []*Conversation{}
	}
	c.JSON(http.StatusOK, gin.H{"conversations": list})
}

// Create: POST /conversations
//
//	{"user_id": "..."}                          личная беседа
//	{"title": "...", "members": ["...", "..."]} группа
func (h *Handler) Create(c *gin.Context) {
	var req struct {
		UserID  *uuid.UUID  `json:"user_id"`
		Title   string      `json:"title"`
		Members []uuid.UUID `json:"members"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "некорректное тело запроса")
		return
	}
	userID := middleware.GetUserID(c)

	var (
		id  uuid.UUID
		err error
	)
	switch {
	case req.UserID != nil:
		id, err = h.service.CreateDirect(c.Request.Context(), userID, *req.UserID)
	case len(req.Members) > 0:
		id, err = h.service.CreateGroup(c.Request.Context(), userID, req.Title, req.Members)
	default:
		respond.BadRequest(c, "укажите user_id или members")
		return
	}
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"conversation_id": id})
}

// Messages: GET /conversations/:id/messages?limit=50&before=RFC3339
func (h *Handler) Messages(c *gin.Context) {
	id, ok := respond.UUIDParam(c, "id")
	if !ok {
		return
	}
	var before *time.Time
	if raw := c.Query("before"); raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			respond.BadRequest(c, "before должен быть в формате RFC3339")
			return
		}
		before = &t
	}
	msgs, err := h.service.Messages(c.Request.Context(), middleware.GetUserID(c), id, respond.IntQuery(c, "limit", 50, 100), before)
	if err != nil {
		respond.Error(c, err)
		return
	}
	if msgs == nil {
		msgs = []*Message{}
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// Send: POST /conversations/:id/messages {"content": "..."}
func (h *Handler) Send(c *gin.Context) {
	id, ok := respond.UUIDParam(c, "id")
	if !ok {
		return
	}
	var req struct {
		Content string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "укажите content")
		return
	}
	m, err := h.service.SendMessage(c.Request.Context(), middleware.GetUserID(c), id, req.Content)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

// Seen: POST /conversations/:id/seen
func (h *Handler) Seen(c *gin.Context) {
	id, ok := respond.UUIDParam(c, "id")
	if !ok {
		return
	}
	n, err := h.service.MarkConversationSeen(c.Request.Context(), middleware.GetUserID(c), id)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"marked": n})
}

// TypingUsers: GET /conversations/:id/typing
func (h *Handler) TypingUsers(c *gin.Context) {
	id, ok := respond.UUIDParam(c, "id")
	if !ok {
		return
	}
	users, err := h.service.TypingUsers(c.Request.Context(), middleware.GetUserID(c), id)
	if err != nil {
		respond.Error(c, err)
		return
	}
	if users == nil {
		users = []uuid.UUID{}
	}
	c.JSON(http.StatusOK, gin.H{"typing": users})
}

// Keystroke: POST /conversations/:id/typing
func (h *Handler) Keystroke(c *gin.Context) {
	id, ok := respond.UUIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.service.Keystroke(c.Request.Context(), middleware.GetUserID(c), id); err != nil {
		respond.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Unread: GET /messages/unread
func (h *Handler) Unread(c *gin.Context) {
	u, err := h.service.Unread(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

// Delivered: POST /messages/:id/delivered
func (h *Handler) Delivered(c *gin.Context) {
	id, ok := respond.UUIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.service.MarkDelivered(c.Request.Context(), middleware.GetUserID(c), id); err != nil {
		respond.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Reactions: GET /messages/:id/reactions
func (h *Handler) Reactions(c *gin.Context) {
	id, ok := respond.UUIDParam(c, "id")
	if !ok {
		return
	}
	groups, err := h.service.ListReactions(c.Request.Context(), middleware.GetUserID(c), id)
	if err != nil {
		respond.Error(c, err)
		return
	}
	if groups == nil {
		groups = []ReactionGroup{}
	}
	c.JSON(http.StatusOK, gin.H{"reactions": groups})
}

// ToggleReaction: POST /messages/:id/reactions {"emoji": "🌱"}
func (h *Handler) ToggleReaction(c *gin.Context) {
	id, ok := respond.UUIDParam(c, "id")
	if !ok {
		return
	}
	var req struct {
		Emoji string `json:"emoji"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "укажите emoji")
		return
	}
	added, err := h.service.ToggleReaction(c.Request.Context(), middleware.GetUserID(c), id, req.Emoji)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"added": added})
}
