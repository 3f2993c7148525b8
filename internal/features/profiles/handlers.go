// Package profiles: handlers.go обслуживает запросы /me.
package profiles

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"serotonyl.ru/green-earth/internal/httpapi/middleware"
	"serotonyl.ru/green-earth/internal/httpapi/respond"
)

// Handler обрабатывает запросы профиля.
type Handler struct {
	service *Service
}

// NewHandler создаёт новый обработчик профиля.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Register подключает маршруты к группе с авторизацией.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.GET("/me", h.Me)
	rg.PUT("/me/wallet", h.SetWallet)
	rg.POST("/me/telegram-link", h.TelegramLink)
	rg.GET("/users/:username", h.ByUsername)
}

// Me: GET /me
func (h *Handler) Me(c *gin.Context) {
	p, err := h.service.Get(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"profile":         p,
		"telegram_linked": p.TelegramLinked(),
	})
}

// SetWallet: PUT /me/wallet {"wallet_address": "0x..."}
func (h *Handler) SetWallet(c *gin.Context) {
	var req struct {
		WalletAddress string `json:"wallet_address" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "укажите wallet_address")
		return
	}
	if err := h.service.SetWallet(c.Request.Context(), middleware.GetUserID(c), req.WalletAddress); err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"wallet_address": req.WalletAddress})
}

// TelegramLink: POST /me/telegram-link: токен для команды /start в боте.
func (h *Handler) TelegramLink(c *gin.Context) {
	token, expiresAt := h.service.IssueLinkToken(middleware.GetUserID(c))
	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"command":    "/start " + token,
		"expires_at": expiresAt,
	})
}

// ByUsername: GET /users/:username: публичная карточка для подарков.
func (h *Handler) ByUsername(c *gin.Context) {
	p, err := h.service.GetByUsername(c.Request.Context(), c.Param("username"))
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":             p.ID,
		"username":       p.Username,
		"display_name":   p.DisplayName,
		"current_streak": p.CurrentStreak,
	})
}
