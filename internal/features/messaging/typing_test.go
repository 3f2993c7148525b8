package messaging

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type typingEvent struct {
	conv   uuid.UUID
	user   uuid.UUID
	typing bool
}

type recorder struct {
	mu     sync.Mutex
	events []typingEvent
}

func (r *recorder) emit(conv, user uuid.UUID, typing bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, typingEvent{conv, user, typing})
}

func (r *recorder) all() []typingEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]typingEvent(nil), r.events...)
}

func TestTrackerTouchAndExpire(t *testing.T) {
	tr := NewTypingTracker(3 * time.Second)
	now := time.Unix(1000, 0)
	tr.now = func() time.Time { return now }
	conv, alice, bob := uuid.New(), uuid.New(), uuid.New()

	require.True(t, tr.Touch(conv, alice))
	require.False(t, tr.Touch(conv, alice))
	require.Equal(t, []uuid.UUID{alice}, tr.Active(conv, bob))
	require.Empty(t, tr.Active(conv, alice))

	now = now.Add(2 * time.Second)
	require.Empty(t, tr.Sweep())

	now = now.Add(2 * time.Second)
	require.Empty(t, tr.Active(conv, bob))
	require.Equal(t, []TypingEntry{{ConversationID: conv, UserID: alice}}, tr.Sweep())
	require.Empty(t, tr.Sweep())

	// после истечения новое нажатие: снова начало
	require.True(t, tr.Touch(conv, alice))
}

func TestTrackerStop(t *testing.T) {
	tr := NewTypingTracker(time.Second)
	conv, user := uuid.New(), uuid.New()
	require.False(t, tr.Stop(conv, user))
	tr.Touch(conv, user)
	require.True(t, tr.Stop(conv, user))
	require.False(t, tr.Stop(conv, user))
}

func TestDebouncerEmitsOnlyOnChange(t *testing.T) {
	tr := NewTypingTracker(time.Hour)
	rec := &recorder{}
	user, conv := uuid.New(), uuid.New()
	d := NewDebouncer(user, tr, rec.emit)

	d.Keystroke(conv)
	d.Keystroke(conv)
	d.Keystroke(conv)
	d.Stop(conv)
	d.Stop(conv)

	require.Equal(t, []typingEvent{{conv, user, true}, {conv, user, false}}, rec.all())
}

func TestDebouncerTimerStops(t *testing.T) {
	tr := NewTypingTracker(20 * time.Millisecond)
	rec := &recorder{}
	user, conv := uuid.New(), uuid.New()
	d := NewDebouncer(user, tr, rec.emit)

	d.Keystroke(conv)
	require.Eventually(t, func() bool { return len(rec.all()) == 2 }, time.Second, 5*time.Millisecond)
	require.False(t, rec.all()[1].typing)
	require.Empty(t, tr.Active(conv, uuid.Nil))
}

func TestDebouncerClose(t *testing.T) {
	tr := NewTypingTracker(time.Hour)
	rec := &recorder{}
	user := uuid.New()
	a, b := uuid.New(), uuid.New()
	d := NewDebouncer(user, tr, rec.emit)

	d.Keystroke(a)
	d.Keystroke(b)
	d.Close()
	d.Close()
	d.Keystroke(a)

	var stops int
	for _, e := range rec.all() {
		if !e.typing {
			stops++
		}
	}
	require.Equal(t, 2, stops)
	require.Len(t, rec.all(), 4)
}

// Старый таймер, сработавший одновременно с новым нажатием, не гасит индикатор.
func TestDebouncerStaleTimerKeepsTyping(t *testing.T) {
	tr := NewTypingTracker(time.Hour)
	rec := &recorder{}
	user, conv := uuid.New(), uuid.New()
	d := NewDebouncer(user, tr, rec.emit)
	defer d.Close()

	d.Keystroke(conv)
	stale := time.NewTimer(time.Hour)
	stale.Stop()
	d.expire(conv, stale)

	require.Equal(t, []typingEvent{{conv, user, true}}, rec.all())
	require.Equal(t, []uuid.UUID{user}, tr.Active(conv, uuid.Nil))

	d.mu.Lock()
	current := d.timers[conv]
	d.mu.Unlock()
	require.NotNil(t, current)

	d.expire(conv, current)
	require.Equal(t, []typingEvent{{conv, user, true}, {conv, user, false}}, rec.all())
}
