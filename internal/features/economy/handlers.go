// Package economy: handlers.go обслуживает запросы /economy.
package economy

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"serotonyl.ru/green-earth/internal/httpapi/middleware"
	"serotonyl.ru/green-earth/internal/httpapi/respond"
)

// Handler обрабатывает запросы экономики.
type Handler struct {
	service *Service
}

// NewHandler создаёт новый обработчик экономики.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Register подключает маршруты к группе с авторизацией.
func (h *Handler) Register(rg *gin.RouterGroup) {
	g := rg.Group("/economy")
	g.GET("/summary", h.Summary)
	g.GET("/transactions", h.Transactions)
	g.POST("/gifts", h.Gift)
	g.POST("/claims", h.Claim)
}

// Summary: GET /economy/summary
func (h *Handler) Summary(c *gin.Context) {
	s, err := h.service.Summary(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

// Transactions: GET /economy/transactions?limit=20&before=RFC3339
func (h *Handler) Transactions(c *gin.Context) {
	limit := respond.IntQuery(c, "limit", 20, 100)

	var before *time.Time
	if raw := c.Query("before"); raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			respond.BadRequest(c, "before должен быть в формате RFC3339")
			return
		}
		before = &t
	}

	items, err := h.service.History(c.Request.Context(), middleware.GetUserID(c), limit, before)
	if err != nil {
		respond.Error(c, err)
		return
	}
	if items == nil {
		items = []*Transaction{}
	}
	c.JSON(http.StatusOK, gin.H{"transactions": items})
}

// Gift: POST /economy/gifts {"username": "...", "amount": 50, "note": "..."}
func (h *Handler) Gift(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Amount   int64  `json:"amount" binding:"required"`
		Note     string `json:"note"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "укажите username и amount")
		return
	}

	t, err := h.service.Gift(c.Request.Context(), middleware.GetUserID(c), req.Username, req.Amount, req.Note)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"transaction": t})
}

// Claim: POST /economy/claims
func (h *Handler) Claim(c *gin.Context) {
	res, err := h.service.Claim(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}
