// Package respond переводит ошибки сервисов в HTTP-ответы.
// Пользователь всегда получает понятное сообщение, а не код ошибки из БД.
package respond

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/green-earth/internal/common"
)

// statusBySentinel: HTTP-статус для каждой пользовательской ошибки.
var statusBySentinel = []struct {
	err    error
	status int
}{
	{common.ErrAlreadyCheckedIn, http.StatusConflict},
	{common.ErrAlreadyMinted, http.StatusConflict},
	{common.ErrRecordingNotActive, http.StatusConflict},

	{common.ErrInsufficientBalance, http.StatusUnprocessableEntity},
	{common.ErrDailyLimitReached, http.StatusUnprocessableEntity},
	{common.ErrNotEligibleForClaim, http.StatusUnprocessableEntity},
	{common.ErrWalletRequired, http.StatusUnprocessableEntity},
	{common.ErrSelfTransfer, http.StatusUnprocessableEntity},
	{common.ErrInvalidAmount, http.StatusUnprocessableEntity},
	{common.ErrInvalidTxType, http.StatusUnprocessableEntity},
	{common.ErrUnknownContentKind, http.StatusUnprocessableEntity},
	{common.ErrInvalidContentID, http.StatusUnprocessableEntity},
	{common.ErrInvalidTxHash, http.StatusUnprocessableEntity},
	{common.ErrImageRequired, http.StatusUnprocessableEntity},
	{common.ErrInvalidCallTransition, http.StatusUnprocessableEntity},
	{common.ErrSelfCall, http.StatusUnprocessableEntity},
	{common.ErrInvalidMedia, http.StatusUnprocessableEntity},
	{common.ErrSelfConversation, http.StatusUnprocessableEntity},
	{common.ErrEmptyMessage, http.StatusUnprocessableEntity},
	{common.ErrInvalidEmoji, http.StatusUnprocessableEntity},
	{common.ErrRecordingTooLarge, http.StatusRequestEntityTooLarge},

	{common.ErrUserNotFound, http.StatusNotFound},
	{common.ErrPostNotFound, http.StatusNotFound},
	{common.ErrConversationNotFound, http.StatusNotFound},
	{common.ErrMessageNotFound, http.StatusNotFound},
	{common.ErrCallNotFound, http.StatusNotFound},

	{common.ErrNotParticipant, http.StatusForbidden},
	{common.ErrNotAdmin, http.StatusForbidden},
	{common.ErrWrongPassword, http.StatusUnauthorized},
	{common.ErrTooManyAttempts, http.StatusTooManyRequests},
	{common.ErrLinkTokenInvalid, http.StatusBadRequest},

	{common.ErrUpstreamRateLimited, http.StatusTooManyRequests},
	{common.ErrUpstreamQuotaExhausted, http.StatusPaymentRequired},
	{common.ErrUpstreamUnavailable, http.StatusBadGateway},

	{common.ErrRecordingUnavailable, http.StatusServiceUnavailable},
	{common.ErrStorageDisabled, http.StatusServiceUnavailable},
}

// Status возвращает HTTP-статус и текст для ошибки сервиса.
// Неизвестная ошибка → 500 с общим текстом.
func Status(err error) (int, string) {
	for _, s := range statusBySentinel {
		if errors.Is(err, s.err) {
			return s.status, s.err.Error()
		}
	}
	return http.StatusInternalServerError, "внутренняя ошибка сервера"
}

// Error пишет ответ об ошибке. Внутренние ошибки логируются целиком.
func Error(c *gin.Context, err error) {
	status, msg := Status(err)
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		log.WithError(err).WithFields(log.Fields{
			"method": c.Request.Method,
			"path":   c.FullPath(),
		}).Error("Ошибка обработки запроса")
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

// BadRequest: некорректный запрос клиента.
func BadRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg})
}

// UUIDParam читает UUID из параметра пути. При ошибке отвечает 400 и возвращает false.
func UUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		BadRequest(c, "некорректный идентификатор "+name)
		return uuid.Nil, false
	}
	return id, true
}

// IntQuery читает целое из query с ограничением сверху.
func IntQuery(c *gin.Context, name string, def, max int) int {
	v, err := strconv.Atoi(c.Query(name))
	if err != nil || v <= 0 {
		return def
	}
	if v > max {
		return max
	}
	return v
}
