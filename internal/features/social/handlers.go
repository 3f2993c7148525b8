// Package social: handlers.go обслуживает запросы /posts и /nft.
package social

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"serotonyl.ru/green-earth/internal/httpapi/middleware"
	"serotonyl.ru/green-earth/internal/httpapi/respond"
)

// Handler обрабатывает запросы ленты.
type Handler struct {
	service *Service
}

// NewHandler создаёт новый обработчик.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Register подключает маршруты к группе с авторизацией.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.GET("/posts", h.Feed)
	rg.POST("/posts", h.CreatePost)
	rg.GET("/posts/:id", h.GetPost)
	rg.POST("/posts/:id/likes", h.Like)
	rg.DELETE("/posts/:id/likes", h.Unlike)
	rg.POST("/posts/:id/shares", h.Share)
	rg.POST("/nft/mints", h.RecordMint)
}

// Feed: GET /posts?limit=20&before=RFC3339
func (h *Handler) Feed(c *gin.Context) {
	var before *time.Time
	if raw := c.Query("before"); raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			respond.BadRequest(c, "before должен быть в формате RFC3339")
			return
		}
		before = &t
	}
	posts, err := h.service.Feed(c.Request.Context(), respond.IntQuery(c, "limit", 20, 100), before)
	if err != nil {
		respond.Error(c, err)
		return
	}
	if posts == nil {
		posts = []*Post{}
	}
	c.JSON(http.StatusOK, gin.H{"posts": posts})
}

// CreatePost: POST /posts {"content": "...", "image_url": "..."}
func (h *Handler) CreatePost(c *gin.Context) {
	var req struct {
		Content  string  `json:"content" binding:"required"`
		ImageURL *string `json:"image_url"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "укажите content")
		return
	}
	p, err := h.service.CreatePost(c.Request.Context(), middleware.GetUserID(c), req.Content, req.ImageURL)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// GetPost: GET /posts/:id
func (h *Handler) GetPost(c *gin.Context) {
	id, ok := respond.UUIDParam(c, "id")
	if !ok {
		return
	}
	p, err := h.service.GetPost(c.Request.Context(), id)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// Like: POST /posts/:id/likes
func (h *Handler) Like(c *gin.Context) {
	id, ok := respond.UUIDParam(c, "id")
	if !ok {
		return
	}
	res, err := h.service.Like(c.Request.Context(), middleware.GetUserID(c), id)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Unlike: DELETE /posts/:id/likes
func (h *Handler) Unlike(c *gin.Context) {
	id, ok := respond.UUIDParam(c, "id")
	if !ok {
		return
	}
	res, err := h.service.Unlike(c.Request.Context(), middleware.GetUserID(c), id)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Share: POST /posts/:id/shares
func (h *Handler) Share(c *gin.Context) {
	id, ok := respond.UUIDParam(c, "id")
	if !ok {
		return
	}
	res, err := h.service.Share(c.Request.Context(), middleware.GetUserID(c), id)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// RecordMint: POST /nft/mints {"token_id": "...", "tx_hash": "0x...", "wallet_address": "0x..."}
func (h *Handler) RecordMint(c *gin.Context) {
	var req struct {
		TokenID       string `json:"token_id" binding:"required"`
		TxHash        string `json:"tx_hash" binding:"required"`
		WalletAddress string `json:"wallet_address" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "укажите token_id, tx_hash и wallet_address")
		return
	}
	res, err := h.service.RecordMint(c.Request.Context(), middleware.GetUserID(c), req.TokenID, req.TxHash, req.WalletAddress)
	if err != nil {
		respond.Error(c, err)
		return
	}
	status := http.StatusCreated
	if res.AlreadyRecorded {
		status = http.StatusOK
	}
	c.JSON(status, res)
}
