package limits

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"serotonyl.ru/green-earth/internal/httpapi/middleware"
	"serotonyl.ru/green-earth/internal/httpapi/respond"
)

// Handler обрабатывает GET /limits.
type Handler struct {
	service *Service
}

// NewHandler создаёт новый обработчик лимитов.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Register подключает маршруты к группе с авторизацией.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.GET("/limits", h.Status)
}

// Status: GET /limits
func (h *Handler) Status(c *gin.Context) {
	usage, err := h.service.Status(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"limits": usage})
}
