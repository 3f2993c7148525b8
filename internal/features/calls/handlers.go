// Package calls: handlers.go обслуживает запросы /calls и /group-calls.
package calls

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"serotonyl.ru/green-earth/internal/common"
	"serotonyl.ru/green-earth/internal/httpapi/middleware"
	"serotonyl.ru/green-earth/internal/httpapi/respond"
)

// Handler обрабатывает запросы звонков.
type Handler struct {
	service  *Service
	maxChunk int64
}

// NewHandler создаёт новый обработчик. maxChunk: предел тела одного куска записи.
func NewHandler(service *Service, maxChunk int64) *Handler {
	return &Handler{service: service, maxChunk: maxChunk}
}

// Register подключает маршруты к группе с авторизацией.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.POST("/calls", h.Start)
	rg.GET("/calls/log", h.Log)
	rg.POST("/calls/:id/accept", h.transition(h.service.Accept))
	rg.POST("/calls/:id/reject", h.transition(h.service.Reject))
	rg.POST("/calls/:id/connect", h.transition(h.service.Connect))
	rg.POST("/calls/:id/end", h.transition(h.service.End))

	rg.POST("/conversations/:id/calls", h.StartGroup)
	rg.POST("/group-calls/:id/end", h.EndGroup)

	for _, r := range []struct {
		prefix string
		target func(uuid.UUID) Target
	}{
		{"/calls/:id", CallTarget},
		{"/group-calls/:id", GroupTarget},
	} {
		rg.POST(r.prefix+"/recording/start", h.StartRecording(r.target))
		rg.POST(r.prefix+"/recording/chunks", h.AppendChunk(r.target))
		rg.POST(r.prefix+"/recording/stop", h.StopRecording(r.target))
		rg.GET(r.prefix+"/recordings", h.Recordings(r.target))
	}
}

// Start: POST /calls {"callee_id": "...", "media": "audio|video"}
func (h *Handler) Start(c *gin.Context) {
	var req struct {
		CalleeID uuid.UUID `json:"callee_id" binding:"required"`
		Media    Media     `json:"media"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "укажите callee_id")
		return
	}
	call, err := h.service.Start(c.Request.Context(), middleware.GetUserID(c), req.CalleeID, req.Media)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, call)
}

// transition: POST /calls/:id/{accept,reject,connect,end}
func (h *Handler) transition(fn func(ctx context.Context, userID, callID uuid.UUID) (*Call, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := respond.UUIDParam(c, "id")
		if !ok {
			return
		}
		call, err := fn(c.Request.Context(), middleware.GetUserID(c), id)
		if err != nil {
			respond.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, call)
	}
}

// Log: GET /calls/log?limit=50
func (h *Handler) Log(c *gin.Context) {
	entries, err := h.service.CallLog(c.Request.Context(), middleware.GetUserID(c), respond.IntQuery(c, "limit", 50, 100))
	if err != nil {
		respond.Error(c, err)
		return
	}
	if entries == nil {
		entries = []LogEntry{}
	}
	c.JSON(http.StatusOK, gin.H{"calls": entries})
}

// StartGroup: POST /conversations/:id/calls {"media": "audio|video"}
func (h *Handler) StartGroup(c *gin.Context) {
	id, ok := respond.UUIDParam(c, "id")
	if !ok {
		return
	}
	var req struct {
		Media Media `json:"media"`
	}
	_ = c.ShouldBindJSON(&req)
	g, err := h.service.StartGroup(c.Request.Context(), middleware.GetUserID(c), id, req.Media)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, g)
}

// EndGroup: POST /group-calls/:id/end
func (h *Handler) EndGroup(c *gin.Context) {
	id, ok := respond.UUIDParam(c, "id")
	if !ok {
		return
	}
	g, err := h.service.EndGroup(c.Request.Context(), middleware.GetUserID(c), id)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, g)
}

// StartRecording: POST .../recording/start
// Если запись недоступна, отвечаем 200 с пояснением: звонок продолжается.
func (h *Handler) StartRecording(target func(uuid.UUID) Target) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := respond.UUIDParam(c, "id")
		if !ok {
			return
		}
		r, err := h.service.StartRecording(c.Request.Context(), target(id), middleware.GetUserID(c))
		if errors.Is(err, common.ErrRecordingUnavailable) {
			c.JSON(http.StatusOK, gin.H{"recording": false, "notice": common.ErrRecordingUnavailable.Error()})
			return
		}
		if err != nil {
			respond.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"recording": true, "started_at": r.StartedAt})
	}
}

// AppendChunk: POST .../recording/chunks, тело, сырые байты куска.
func (h *Handler) AppendChunk(target func(uuid.UUID) Target) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := respond.UUIDParam(c, "id")
		if !ok {
			return
		}
		data, err := io.ReadAll(io.LimitReader(c.Request.Body, h.maxChunk+1))
		if err != nil {
			respond.BadRequest(c, "не удалось прочитать кусок записи")
			return
		}
		if int64(len(data)) > h.maxChunk {
			respond.Error(c, common.ErrRecordingTooLarge)
			return
		}
		size, err := h.service.AppendChunk(target(id), middleware.GetUserID(c), data)
		if err != nil {
			respond.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"bytes": size})
	}
}

// StopRecording: POST .../recording/stop
func (h *Handler) StopRecording(target func(uuid.UUID) Target) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := respond.UUIDParam(c, "id")
		if !ok {
			return
		}
		rec, err := h.service.StopRecording(c.Request.Context(), target(id), middleware.GetUserID(c))
		if err != nil {
			respond.Error(c, err)
			return
		}
		c.JSON(http.StatusCreated, rec)
	}
}

// Recordings: GET .../recordings
func (h *Handler) Recordings(target func(uuid.UUID) Target) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := respond.UUIDParam(c, "id")
		if !ok {
			return
		}
		list, err := h.service.Recordings(c.Request.Context(), target(id), middleware.GetUserID(c))
		if err != nil {
			respond.Error(c, err)
			return
		}
		if list == nil {
			list = []*CallRecording{}
		}
		c.JSON(http.StatusOK, gin.H{"recordings": list})
	}
}
