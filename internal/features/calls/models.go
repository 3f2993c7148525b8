// Package calls: звонки один-на-один и групповые, журнал звонков и запись.
// Сигналинг и медиа идут мимо сервера, здесь только состояние и метаданные.
package calls

import (
	"time"

	"github.com/google/uuid"
)

// Status: состояние звонка.
type Status string

const (
	StatusRinging   Status = "ringing"
	StatusAccepted  Status = "accepted"
	StatusRejected  Status = "rejected"
	StatusMissed    Status = "missed"
	StatusConnected Status = "connected"
	StatusEnded     Status = "ended"
)

// transitions: допустимые переходы. Всё, чего нет в таблице, запрещено.
var transitions = map[Status][]Status{
	StatusRinging:   {StatusAccepted, StatusRejected, StatusMissed},
	StatusAccepted:  {StatusConnected, StatusEnded},
	StatusConnected: {StatusEnded},
}

// CanTransition проверяет переход по таблице.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal: из состояния нет переходов, звонок попадает в журнал.
func (s Status) IsTerminal() bool {
	return s == StatusEnded || s == StatusRejected || s == StatusMissed
}

// Media: тип звонка.
type Media string

const (
	MediaAudio Media = "audio"
	MediaVideo Media = "video"
)

// Valid проверяет тип звонка.
func (m Media) Valid() bool {
	return m == MediaAudio || m == MediaVideo
}

// Call: звонок один-на-один.
type Call struct {
	ID              uuid.UUID  `json:"id"`
	CallerID        uuid.UUID  `json:"caller_id"`
	CalleeID        uuid.UUID  `json:"callee_id"`
	Media           Media      `json:"media"`
	Status          Status     `json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
	AnsweredAt      *time.Time `json:"answered_at,omitempty"`
	ConnectedAt     *time.Time `json:"connected_at,omitempty"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	DurationSeconds int        `json:"duration_seconds"`
}

// IsParticipant: пользователь звонит или принимает звонок.
func (c *Call) IsParticipant(userID uuid.UUID) bool {
	return c.CallerID == userID || c.CalleeID == userID
}

// Peer: собеседник пользователя.
func (c *Call) Peer(userID uuid.UUID) uuid.UUID {
	if c.CallerID == userID {
		return c.CalleeID
	}
	return c.CallerID
}

// Direction: направление звонка с точки зрения пользователя.
type Direction string

const (
	DirectionIncoming Direction = "incoming"
	DirectionOutgoing Direction = "outgoing"
)

// LogEntry: строка журнала звонков.
type LogEntry struct {
	CallID          uuid.UUID `json:"call_id"`
	PeerID          uuid.UUID `json:"peer_id"`
	PeerName        string    `json:"peer_name"`
	Direction       Direction `json:"direction"`
	Media           Media     `json:"media"`
	Status          Status    `json:"status"`
	DurationSeconds int       `json:"duration_seconds"`
	CreatedAt       time.Time `json:"created_at"`
	CanCallBack     bool      `json:"can_call_back"`
}

// EntryFor строит строку журнала для одного из участников.
// Пропущенные и отклонённые звонки всегда длятся 0 секунд,
// перезвонить предлагается только тому, кому звонили.
func EntryFor(c *Call, userID uuid.UUID, peerName string) LogEntry {
	e := LogEntry{
		CallID:          c.ID,
		PeerID:          c.Peer(userID),
		PeerName:        peerName,
		Direction:       DirectionOutgoing,
		Media:           c.Media,
		Status:          c.Status,
		DurationSeconds: c.DurationSeconds,
		CreatedAt:       c.CreatedAt,
	}
	if c.CalleeID == userID {
		e.Direction = DirectionIncoming
	}
	if c.Status == StatusMissed || c.Status == StatusRejected {
		e.DurationSeconds = 0
		e.CanCallBack = e.Direction == DirectionIncoming
	}
	return e
}

// GroupCall: звонок в групповой беседе.
type GroupCall struct {
	ID             uuid.UUID  `json:"id"`
	ConversationID uuid.UUID  `json:"conversation_id"`
	StartedBy      uuid.UUID  `json:"started_by"`
	Media          Media      `json:"media"`
	CreatedAt      time.Time  `json:"created_at"`
	EndedAt        *time.Time `json:"ended_at,omitempty"`
}

// Target: к чему относится запись: ровно одно из двух полей.
type Target struct {
	CallID      *uuid.UUID `json:"call_id,omitempty"`
	GroupCallID *uuid.UUID `json:"group_call_id,omitempty"`
}

// CallTarget: запись звонка один-на-один.
func CallTarget(id uuid.UUID) Target { return Target{CallID: &id} }

// GroupTarget: запись группового звонка.
func GroupTarget(id uuid.UUID) Target { return Target{GroupCallID: &id} }

// Valid: задано ровно одно поле.
func (t Target) Valid() bool {
	return (t.CallID == nil) != (t.GroupCallID == nil)
}

// ID: идентификатор звонка любого вида.
func (t Target) ID() uuid.UUID {
	if t.CallID != nil {
		return *t.CallID
	}
	if t.GroupCallID != nil {
		return *t.GroupCallID
	}
	return uuid.Nil
}

// CallRecording: метаданные загруженной записи.
type CallRecording struct {
	ID              uuid.UUID  `json:"id"`
	CallID          *uuid.UUID `json:"call_id,omitempty"`
	GroupCallID     *uuid.UUID `json:"group_call_id,omitempty"`
	RecordedBy      uuid.UUID  `json:"recorded_by"`
	FileURL         string     `json:"file_url"`
	PublicID        string     `json:"-"`
	DurationSeconds int        `json:"duration_seconds"`
	FileSizeBytes   int64      `json:"file_size_bytes"`
	CreatedAt       time.Time  `json:"created_at"`
}

// StatusEvent: событие call.status.
type StatusEvent struct {
	CallID   uuid.UUID `json:"call_id"`
	Status   Status    `json:"status"`
	CallerID uuid.UUID `json:"caller_id"`
	CalleeID uuid.UUID `json:"callee_id"`
	Media    Media     `json:"media"`
}
