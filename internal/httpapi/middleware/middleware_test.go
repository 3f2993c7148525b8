package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/green-earth/internal/common"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func signToken(t *testing.T, sub string, aud string, exp time.Time) string {
	t.Helper()
	claims := Claims{
		Email:        "alice@example.test",
		UserMetadata: map[string]any{"username": "alice"},
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			Audience:  jwt.ClaimStrings{aud},
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func newAuthRouter(ensure EnsureFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AuthRequired(NewTokenVerifier(testSecret, "authenticated"), ensure))
	r.GET("/me", func(c *gin.Context) {
		c.String(http.StatusOK, GetUserID(c).String())
	})
	return r
}

func TestAuthRequiredAcceptsValidToken(t *testing.T) {
	userID := uuid.New()
	calls := 0
	r := newAuthRouter(func(ctx context.Context, id uuid.UUID, username, displayName string) error {
		calls++
		require.Equal(t, userID, id)
		require.Equal(t, "alice", username)
		require.Equal(t, "alice", displayName)
		return nil
	})
	token := signToken(t, userID.String(), "authenticated", time.Now().Add(time.Hour))

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		r.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, userID.String(), w.Body.String())
	}
	require.Equal(t, 1, calls)
}

func TestAuthRequiredRejects(t *testing.T) {
	r := newAuthRouter(nil)
	userID := uuid.New().String()

	cases := map[string]string{
		"missing":       "",
		"expired":       "Bearer " + signToken(t, userID, "authenticated", time.Now().Add(-time.Minute)),
		"wrong aud":     "Bearer " + signToken(t, userID, "anon", time.Now().Add(time.Hour)),
		"subject":       "Bearer " + signToken(t, "not-a-uuid", "authenticated", time.Now().Add(time.Hour)),
		"wrong scheme":  "Basic abc",
		"garbage token": "Bearer abc.def.ghi",
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			r.ServeHTTP(w, req)
			require.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestAuthRequiredQueryToken(t *testing.T) {
	r := newAuthRouter(nil)
	userID := uuid.New()
	token := signToken(t, userID.String(), "authenticated", time.Now().Add(time.Hour))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me?access_token="+token, nil))
	require.Equal(t, http.StatusOK, w.Code)
}

func TestAuthRequiredEnsureFailure(t *testing.T) {
	r := newAuthRouter(func(ctx context.Context, id uuid.UUID, username, displayName string) error {
		return errors.New("db down")
	})
	token := signToken(t, uuid.New().String(), "authenticated", time.Now().Add(time.Hour))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRecoveryAndRateLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl := common.NewRateLimiter[string](1, time.Minute)
	defer rl.Close()

	r := gin.New()
	r.Use(Recovery(), Logger(), RateLimit(rl))
	r.GET("/panic", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
	require.Equal(t, http.StatusInternalServerError, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
	require.Equal(t, http.StatusTooManyRequests, w.Code)
}
