// Package streak: handlers.go обслуживает запросы /checkins.
package streak

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"serotonyl.ru/green-earth/internal/httpapi/middleware"
	"serotonyl.ru/green-earth/internal/httpapi/respond"
)

// Handler обрабатывает запросы чекинов.
type Handler struct {
	service *Service
}

// NewHandler создаёт новый обработчик чекинов.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Register подключает маршруты к группе с авторизацией.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.POST("/checkins", h.CheckIn)
	rg.GET("/checkins/status", h.Status)
}

// CheckIn: POST /checkins. Повторный чекин за день → 409.
func (h *Handler) CheckIn(c *gin.Context) {
	res, err := h.service.CheckIn(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// Status: GET /checkins/status
func (h *Handler) Status(c *gin.Context) {
	st, err := h.service.GetStatus(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}
