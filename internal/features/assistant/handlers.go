// Package assistant: handlers.go обслуживает запросы /scans и /assistant/chat.
package assistant

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/green-earth/internal/httpapi/middleware"
	"serotonyl.ru/green-earth/internal/httpapi/respond"
)

// Handler обрабатывает запросы сканов и чата.
type Handler struct {
	scans *ScanService
	chat  Streamer
}

// NewHandler создаёт новый обработчик. chat == nil: чат выключен.
func NewHandler(scans *ScanService, chat Streamer) *Handler {
	return &Handler{scans: scans, chat: chat}
}

// Register подключает маршруты к группе с авторизацией.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.POST("/scans", h.Scan)
	rg.GET("/scans", h.History)
	if h.chat != nil {
		rg.POST("/assistant/chat", h.Chat)
	}
}

// Scan: POST /scans {"image_base64": "..."} или {"image_url": "..."}
func (h *Handler) Scan(c *gin.Context) {
	var req ClassifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "некорректное тело запроса")
		return
	}
	res, err := h.scans.Scan(c.Request.Context(), middleware.GetUserID(c), req)
	if err != nil {
		var ue *UpstreamError
		if errors.As(err, &ue) {
			status, _ := respond.Status(err)
			c.AbortWithStatusJSON(status, gin.H{"error": DisplayMessage(err)})
			return
		}
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// History: GET /scans?limit=20
func (h *Handler) History(c *gin.Context) {
	list, err := h.scans.History(c.Request.Context(), middleware.GetUserID(c), respond.IntQuery(c, "limit", 20, 100))
	if err != nil {
		respond.Error(c, err)
		return
	}
	if list == nil {
		list = []*Scan{}
	}
	c.JSON(http.StatusOK, gin.H{"scans": list})
}

// Chat: POST /assistant/chat {"messages": [{"role": "user", "content": "..."}]}
// Ответ: поток "data: {"content": "..."}\n\n", в конце "data: [DONE]".
// Ошибка до начала потока: обычный JSON с кодом 429/402/502.
func (h *Handler) Chat(c *gin.Context) {
	var req struct {
		Messages []ChatMessage `json:"messages"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Messages) == 0 {
		respond.BadRequest(c, "укажите messages")
		return
	}
	for _, m := range req.Messages {
		if (m.Role != RoleUser && m.Role != RoleAssistant) || strings.TrimSpace(m.Content) == "" {
			respond.BadRequest(c, "сообщения должны иметь role user/assistant и непустой content")
			return
		}
	}

	userID := middleware.GetUserID(c)
	started := false
	start := func() {
		if started {
			return
		}
		started = true
		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Status(http.StatusOK)
	}

	_, err := h.chat.Stream(c.Request.Context(), req.Messages, func(delta string) error {
		start()
		payload, _ := json.Marshal(map[string]string{"content": delta})
		if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", payload); err != nil {
			return err
		}
		c.Writer.Flush()
		return nil
	})

	if err != nil && !started {
		status, _ := respond.Status(err)
		log.WithError(err).WithField("user_id", userID).Warn("Ошибка чат-ассистента")
		c.AbortWithStatusJSON(status, gin.H{"error": DisplayMessage(err)})
		return
	}
	start()
	if err != nil {
		log.WithError(err).WithField("user_id", userID).Warn("Поток чат-ассистента прерван")
		payload, _ := json.Marshal(map[string]string{"error": DisplayMessage(err)})
		fmt.Fprintf(c.Writer, "data: %s\n\n", payload)
	}
	fmt.Fprint(c.Writer, "data: [DONE]\n\n")
	c.Writer.Flush()
}
