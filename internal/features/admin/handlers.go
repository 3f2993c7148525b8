package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"serotonyl.ru/green-earth/internal/httpapi/respond"
)

// TokenHeader: заголовок с токеном сессии администратора.
const TokenHeader = "X-Admin-Token"

// Handler обрабатывает /admin/*.
type Handler struct {
	service *Service
}

// NewHandler создаёт обработчик админки.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Register подключает маршруты. Группа не требует JWT пользователя:
// вход по паролю, остальное по токену сессии.
func (h *Handler) Register(rg *gin.RouterGroup) {
	g := rg.Group("/admin")
	g.POST("/sessions", h.Login)

	authed := g.Group("", h.RequireSession())
	authed.DELETE("/sessions", h.Logout)
	authed.GET("/reconciliation", h.Reconciliation)
	authed.POST("/calls/sweep", h.SweepCalls)
}

// RequireSession пропускает запрос только с действующим токеном сессии.
func (h *Handler) RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := h.service.Authorize(c.Request.Context(), c.GetHeader(TokenHeader)); err != nil {
			respond.Error(c, err)
			return
		}
		c.Next()
	}
}

// Login: POST /admin/sessions {password}
func (h *Handler) Login(c *gin.Context) {
	var req struct {
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "укажите пароль")
		return
	}
	session, err := h.service.Login(c.Request.Context(), c.ClientIP(), req.Password)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

// Logout: DELETE /admin/sessions
func (h *Handler) Logout(c *gin.Context) {
	if err := h.service.Logout(c.Request.Context(), c.GetHeader(TokenHeader)); err != nil {
		respond.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Reconciliation: GET /admin/reconciliation
func (h *Handler) Reconciliation(c *gin.Context) {
	drifts, err := h.service.Reconciliation(c.Request.Context())
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"drifts": drifts, "count": len(drifts)})
}

// SweepCalls: POST /admin/calls/sweep
func (h *Handler) SweepCalls(c *gin.Context) {
	n, err := h.service.SweepCalls(c.Request.Context())
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"expired": n})
}
