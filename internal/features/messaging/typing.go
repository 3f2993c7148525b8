package messaging

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type typingKey struct {
	conversation uuid.UUID
	user         uuid.UUID
}

// TypingEntry: истёкшая запись "печатает".
type TypingEntry struct {
	ConversationID uuid.UUID
	UserID         uuid.UUID
}

// TypingTracker хранит, кто сейчас печатает. Только в памяти, в БД не пишется.
// Запись живёт ttl после последнего нажатия.
type TypingTracker struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[typingKey]time.Time
	now     func() time.Time
}

// NewTypingTracker создаёт трекер с заданным временем жизни записи.
func NewTypingTracker(ttl time.Duration) *TypingTracker {
	return &TypingTracker{ttl: ttl, entries: make(map[typingKey]time.Time), now: time.Now}
}

// TTL: время жизни записи.
func (t *TypingTracker) TTL() time.Duration {
	return t.ttl
}

// Touch продлевает запись. true: пользователь только что начал печатать.
func (t *TypingTracker) Touch(conversationID, userID uuid.UUID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := typingKey{conversationID, userID}
	now := t.now()
	expires, ok := t.entries[key]
	t.entries[key] = now.Add(t.ttl)
	return !ok || !expires.After(now)
}

// Stop удаляет запись. true: запись была, и о ней ещё не сообщили как об истёкшей.
func (t *TypingTracker) Stop(conversationID, userID uuid.UUID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := typingKey{conversationID, userID}
	_, ok := t.entries[key]
	delete(t.entries, key)
	return ok
}

// Active возвращает, кто печатает в беседе, кроме except.
func (t *TypingTracker) Active(conversationID, except uuid.UUID) []uuid.UUID {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	var out []uuid.UUID
	for key, expires := range t.entries {
		if key.conversation == conversationID && key.user != except && expires.After(now) {
			out = append(out, key.user)
		}
	}
	return out
}

// Sweep удаляет истёкшие записи и возвращает их.
func (t *TypingTracker) Sweep() []TypingEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	var out []TypingEntry
	for key, expires := range t.entries {
		if !expires.After(now) {
			delete(t.entries, key)
			out = append(out, TypingEntry{ConversationID: key.conversation, UserID: key.user})
		}
	}
	return out
}

// Debouncer: индикатор одного подключения.
//
//	idle → typing: первое нажатие, событие is_typing=true
//	typing → typing: каждое нажатие перезапускает таймер
//	typing → idle: таймер, отправка сообщения или Close, событие is_typing=false
type Debouncer struct {
	userID  uuid.UUID
	tracker *TypingTracker
	emit    func(conversationID, userID uuid.UUID, typing bool)

	mu     sync.Mutex
	timers map[uuid.UUID]*time.Timer
	closed bool
}

// NewDebouncer создаёт индикатор. emit вызывается только при смене состояния.
func NewDebouncer(userID uuid.UUID, tracker *TypingTracker, emit func(conversationID, userID uuid.UUID, typing bool)) *Debouncer {
	return &Debouncer{userID: userID, tracker: tracker, emit: emit, timers: make(map[uuid.UUID]*time.Timer)}
}

// Keystroke: нажатие клавиши в беседе.
func (d *Debouncer) Keystroke(conversationID uuid.UUID) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	if timer, ok := d.timers[conversationID]; ok {
		timer.Stop()
	}
	var timer *time.Timer
	timer = time.AfterFunc(d.tracker.TTL(), func() { d.expire(conversationID, timer) })
	d.timers[conversationID] = timer
	d.mu.Unlock()

	if d.tracker.Touch(conversationID, d.userID) {
		d.emit(conversationID, d.userID, true)
	}
}

// Stop: пользователь перестал печатать (таймер, отправка, явная команда).
func (d *Debouncer) Stop(conversationID uuid.UUID) {
	d.mu.Lock()
	if timer, ok := d.timers[conversationID]; ok {
		timer.Stop()
		delete(d.timers, conversationID)
	}
	d.mu.Unlock()

	if d.tracker.Stop(conversationID, d.userID) {
		d.emit(conversationID, d.userID, false)
	}
}

// expire срабатывает по таймеру. Если после него пришло новое нажатие,
// в карте уже другой таймер и гасить индикатор нельзя.
func (d *Debouncer) expire(conversationID uuid.UUID, fired *time.Timer) {
	d.mu.Lock()
	if d.timers[conversationID] != fired {
		d.mu.Unlock()
		return
	}
	delete(d.timers, conversationID)
	d.mu.Unlock()

	if d.tracker.Stop(conversationID, d.userID) {
		d.emit(conversationID, d.userID, false)
	}
}

// Close останавливает все таймеры и гасит индикатор во всех беседах.
// Повторный вызов ничего не делает.
func (d *Debouncer) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	conversations := make([]uuid.UUID, 0, len(d.timers))
	for id := range d.timers {
		conversations = append(conversations, id)
	}
	d.mu.Unlock()

	for _, id := range conversations {
		d.Stop(id)
	}
}
