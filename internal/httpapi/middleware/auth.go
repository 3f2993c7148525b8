// Package middleware содержит промежуточные обработчики HTTP:
// проверку токена, логирование, восстановление после паники и rate-limiting.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const userIDKey = "user_id"

// ErrInvalidToken: подпись, срок или аудитория токена не прошли проверку.
var ErrInvalidToken = errors.New("invalid token")

// Claims: поля access-токена провайдера аутентификации.
// Subject содержит UUID пользователя.
type Claims struct {
	Email        string         `json:"email"`
	Role         string         `json:"role"`
	UserMetadata map[string]any `json:"user_metadata"`
	jwt.RegisteredClaims
}

// Username: желаемый ник из метаданных (может быть пустым).
func (c *Claims) Username() string {
	if v, ok := c.UserMetadata["username"].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

// DisplayName: имя для отображения: full_name, иначе локальная часть email.
func (c *Claims) DisplayName() string {
	if v, ok := c.UserMetadata["full_name"].(string); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	if at := strings.IndexByte(c.Email, '@'); at > 0 {
		return c.Email[:at]
	}
	return ""
}

// TokenVerifier проверяет HS256-токены с заданным секретом и аудиторией.
type TokenVerifier struct {
	secret   []byte
	audience string
}

func NewTokenVerifier(secret, audience string) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret), audience: audience}
}

// Parse проверяет токен и возвращает claims с разобранным ID пользователя.
func (v *TokenVerifier) Parse(tokenString string) (*Claims, uuid.UUID, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, uuid.Nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, uuid.Nil, ErrInvalidToken
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, uuid.Nil, ErrInvalidToken
	}
	return claims, userID, nil
}

// EnsureFunc создаёт профиль пользователя при первом запросе.
type EnsureFunc func(ctx context.Context, userID uuid.UUID, username, displayName string) error

// AuthRequired проверяет Bearer-токен, гарантирует наличие профиля
// и кладёт user_id в контекст запроса.
//
// Для WebSocket браузер не умеет ставить заголовки, поэтому токен
// принимается и из query-параметра access_token.
func AuthRequired(verifier *TokenVerifier, ensure EnsureFunc) gin.HandlerFunc {
	var ensured sync.Map

	return func(c *gin.Context) {
		tokenString := bearerToken(c)
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "требуется авторизация"})
			return
		}
		claims, userID, err := verifier.Parse(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "токен недействителен или истёк"})
			return
		}

		if _, ok := ensured.Load(userID); !ok && ensure != nil {
			if err := ensure(c.Request.Context(), userID, claims.Username(), claims.DisplayName()); err != nil {
				log.WithError(err).WithField("user_id", userID).Error("Не удалось создать профиль")
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "внутренняя ошибка сервера"})
				return
			}
			ensured.Store(userID, struct{}{})
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return ""
		}
		return strings.TrimSpace(parts[1])
	}
	return c.Query("access_token")
}

// GetUserID возвращает ID пользователя из контекста (только после AuthRequired).
func GetUserID(c *gin.Context) uuid.UUID {
	v, ok := c.Get(userIDKey)
	if !ok {
		return uuid.Nil
	}
	id, _ := v.(uuid.UUID)
	return id
}
