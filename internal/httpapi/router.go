// Package httpapi собирает gin-роутер: общие middleware, публичные
// маршруты и группу /api/v1 с проверкой токена пользователя.
package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"serotonyl.ru/green-earth/internal/common"
	"serotonyl.ru/green-earth/internal/httpapi/middleware"
)

// Module: набор маршрутов одной фичи.
type Module interface {
	Register(rg *gin.RouterGroup)
}

// RouterConfig: всё, что нужно роутеру.
type RouterConfig struct {
	Release     bool
	Verifier    *middleware.TokenVerifier
	Ensure      middleware.EnsureFunc
	RateLimiter *common.RateLimiter[string]
	// Public регистрируются в /api/v1 без токена пользователя (админка).
	Public []Module
	// Authed регистрируются в /api/v1 за AuthRequired.
	Authed []Module
}

// NewRouter создаёт движок со всеми маршрутами.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Release {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(middleware.Recovery(), middleware.Logger())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api/v1")

	// Без токена лимит считается по IP, с токеном по пользователю
	public := api.Group("")
	authed := api.Group("", middleware.AuthRequired(cfg.Verifier, cfg.Ensure))
	if cfg.RateLimiter != nil {
		public.Use(middleware.RateLimit(cfg.RateLimiter))
		authed.Use(middleware.RateLimit(cfg.RateLimiter))
	}

	for _, m := range cfg.Public {
		m.Register(public)
	}
	for _, m := range cfg.Authed {
		m.Register(authed)
	}
	return r
}
