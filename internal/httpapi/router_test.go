package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/green-earth/internal/common"
	"serotonyl.ru/green-earth/internal/httpapi/middleware"
)

type pingModule struct{ path string }

func (m pingModule) Register(rg *gin.RouterGroup) {
	rg.GET(m.path, func(c *gin.Context) { c.Status(http.StatusNoContent) })
}

func TestRouterGroups(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl := common.NewRateLimiter[string](2, time.Hour)
	t.Cleanup(rl.Close)

	r := NewRouter(RouterConfig{
		Verifier:    middleware.NewTokenVerifier("0123456789abcdef0123456789abcdef", "authenticated"),
		RateLimiter: rl,
		Public:      []Module{pingModule{"/open"}},
		Authed:      []Module{pingModule{"/closed"}},
	})

	get := func(path string) int {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		return w.Code
	}

	require.Equal(t, http.StatusOK, get("/healthz"))
	require.Equal(t, http.StatusUnauthorized, get("/api/v1/closed"))
	require.Equal(t, http.StatusNoContent, get("/api/v1/open"))
	require.Equal(t, http.StatusNoContent, get("/api/v1/open"))
	require.Equal(t, http.StatusTooManyRequests, get("/api/v1/open"))
}
