package content

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"serotonyl.ru/green-earth/internal/features/ledger"
	"serotonyl.ru/green-earth/internal/httpapi/middleware"
	"serotonyl.ru/green-earth/internal/httpapi/respond"
)

// Handler обрабатывает запросы /content.
type Handler struct {
	service *Service
}

// NewHandler создаёт новый обработчик контента.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Register подключает маршруты к группе с авторизацией.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.POST("/content/:id/views", h.RecordView)
	rg.GET("/content/views", h.ListViewed)
}

// RecordView: POST /content/:id/views {"kind": "article"}
func (h *Handler) RecordView(c *gin.Context) {
	var req struct {
		Kind string `json:"kind" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "укажите kind: article, infographic или video")
		return
	}

	res, err := h.service.RecordView(c.Request.Context(), middleware.GetUserID(c), c.Param("id"), ledger.ContentKind(req.Kind))
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// ListViewed: GET /content/views
func (h *Handler) ListViewed(c *gin.Context) {
	views, err := h.service.ListViewed(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respond.Error(c, err)
		return
	}
	if views == nil {
		views = []View{}
	}
	c.JSON(http.StatusOK, gin.H{"views": views})
}
