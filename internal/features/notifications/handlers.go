package notifications

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"serotonyl.ru/green-earth/internal/httpapi/middleware"
	"serotonyl.ru/green-earth/internal/httpapi/respond"
)

// Handler обрабатывает запросы /notifications.
type Handler struct {
	service *Service
}

// NewHandler создаёт новый обработчик уведомлений.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Register подключает маршруты к группе с авторизацией.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.GET("/notifications", h.List)
	rg.POST("/notifications/:id/read", h.MarkRead)
	rg.POST("/notifications/read-all", h.MarkAllRead)
}

// List: GET /notifications?limit=30&unread=true
func (h *Handler) List(c *gin.Context) {
	items, unread, err := h.service.List(
		c.Request.Context(),
		middleware.GetUserID(c),
		respond.IntQuery(c, "limit", 30, 100),
		c.Query("unread") == "true",
	)
	if err != nil {
		respond.Error(c, err)
		return
	}
	if items == nil {
		items = []*Notification{}
	}
	c.JSON(http.StatusOK, gin.H{"notifications": items, "unread": unread})
}

// MarkRead: POST /notifications/:id/read
func (h *Handler) MarkRead(c *gin.Context) {
	id, ok := respond.UUIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.service.MarkRead(c.Request.Context(), middleware.GetUserID(c), id); err != nil {
		respond.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// MarkAllRead: POST /notifications/read-all
func (h *Handler) MarkAllRead(c *gin.Context) {
	n, err := h.service.MarkAllRead(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"marked": n})
}
