package calls

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"serotonyl.ru/green-earth/internal/common"
)

// Blob: итог записи, собранный из всех кусков.
type Blob struct {
	Data     []byte
	Duration time.Duration
}

// Recording: сессия записи одного пользователя в одном звонке.
// Принадлежит сервису. Её закрывают на любом выходе: Stop, конец звонка, ошибка.
// В конце звонка непустая запись сохраняется так же, как при Stop.
//
//	active → stopped: Stop, куски склеиваются в Blob
//	active → closed:  Close, куски выбрасываются
//	stopped → closed: Close ничего не делает, кроме отметки
type Recording struct {
	Target    Target
	UserID    uuid.UUID
	StartedAt time.Time

	mu      sync.Mutex
	chunks  [][]byte
	size    int64
	max     int64
	stopped bool
	closed  bool
	now     func() time.Time
}

func newRecording(target Target, userID uuid.UUID, max int64, now func() time.Time) *Recording {
	return &Recording{Target: target, UserID: userID, StartedAt: now(), max: max, now: now}
}

// AppendChunk добавляет кусок записи. Кусок, который не помещается в лимит, отклоняется целиком,
// уже собранные куски остаются.
func (r *Recording) AppendChunk(p []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped || r.closed {
		return common.ErrRecordingNotActive
	}
	if len(p) == 0 {
		return nil
	}
	if r.size+int64(len(p)) > r.max {
		return common.ErrRecordingTooLarge
	}
	chunk := make([]byte, len(p))
	copy(chunk, p)
	r.chunks = append(r.chunks, chunk)
	r.size += int64(len(p))
	return nil
}

// Size: сколько байт собрано.
func (r *Recording) Size() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}

// Stop завершает запись и склеивает куски. Второй вызов: ErrRecordingNotActive.
func (r *Recording) Stop() (*Blob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped || r.closed {
		return nil, common.ErrRecordingNotActive
	}
	r.stopped = true

	data := make([]byte, 0, r.size)
	for _, c := range r.chunks {
		data = append(data, c...)
	}
	r.chunks = nil
	return &Blob{Data: data, Duration: r.now().Sub(r.StartedAt)}, nil
}

// Close освобождает буферы. Можно вызывать сколько угодно раз.
// true: запись была активна и её данные выброшены.
func (r *Recording) Close() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	r.closed = true
	discarded := !r.stopped
	r.chunks = nil
	r.size = 0
	return discarded
}

// Closed: сессия закрыта.
func (r *Recording) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

type recordingKey struct {
	target uuid.UUID
	user   uuid.UUID
}

// recorders: активные сессии записи.
type recorders struct {
	mu       sync.Mutex
	sessions map[recordingKey]*Recording
}

func newRecorders() *recorders {
	return &recorders{sessions: make(map[recordingKey]*Recording)}
}

// open возвращает активную сессию пользователя или создаёт новую.
func (rs *recorders) open(target Target, userID uuid.UUID, create func() *Recording) *Recording {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	key := recordingKey{target.ID(), userID}
	if r, ok := rs.sessions[key]; ok && !r.Closed() {
		return r
	}
	r := create()
	rs.sessions[key] = r
	return r
}

func (rs *recorders) get(target Target, userID uuid.UUID) (*Recording, bool) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	r, ok := rs.sessions[recordingKey{target.ID(), userID}]
	return r, ok
}

// take убирает сессию из реестра и отдаёт вызывающему.
func (rs *recorders) take(target Target, userID uuid.UUID) (*Recording, bool) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	key := recordingKey{target.ID(), userID}
	r, ok := rs.sessions[key]
	delete(rs.sessions, key)
	return r, ok
}

// takeAll убирает из реестра все сессии звонка и отдаёт их вызывающему.
func (rs *recorders) takeAll(targetID uuid.UUID) []*Recording {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	var list []*Recording
	for key, r := range rs.sessions {
		if key.target == targetID {
			list = append(list, r)
			delete(rs.sessions, key)
		}
	}
	return list
}

// drain убирает из реестра все сессии.
func (rs *recorders) drain() []*Recording {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	list := make([]*Recording, 0, len(rs.sessions))
	for key, r := range rs.sessions {
		list = append(list, r)
		delete(rs.sessions, key)
	}
	return list
}

func (rs *recorders) count() int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return len(rs.sessions)
}
