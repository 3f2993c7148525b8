package calls

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/green-earth/internal/common"
	"serotonyl.ru/green-earth/internal/db/postgres/pgtest"
	"serotonyl.ru/green-earth/internal/features/messaging"
	"serotonyl.ru/green-earth/internal/realtime"
	"serotonyl.ru/green-earth/internal/storage"
)

type notice struct {
	user uuid.UUID
	kind string
	data map[string]any
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []notice
}

func (f *fakeNotifier) Notify(_ context.Context, userID uuid.UUID, kind, _, _ string, data map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, notice{userID, kind, data})
	return nil
}

func (f *fakeNotifier) kinds() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, n := range f.sent {
		out = append(out, n.kind)
	}
	return out
}

type fakeUploader struct {
	mu       sync.Mutex
	uploaded [][]byte
}

func (f *fakeUploader) Upload(_ context.Context, r io.Reader, kind storage.Kind, folder, publicID string) (*storage.Object, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploaded = append(f.uploaded, data)
	return &storage.Object{URL: "https://cdn.test/" + folder + "/" + publicID, PublicID: publicID, Bytes: int64(len(data))}, nil
}

type fixture struct {
	s        *Service
	hub      *realtime.Hub
	notes    *fakeNotifier
	uploader *fakeUploader
	msgs     *messaging.Service
	user     func(name string) uuid.UUID
}

func newFixture(t *testing.T, ring time.Duration) *fixture {
	pool := pgtest.NewPool(t)
	hub := realtime.NewHub()
	notes := &fakeNotifier{}
	up := &fakeUploader{}
	msgRepo := messaging.NewRepository(pool)
	s := NewService(NewRepository(pool), hub, notes, msgRepo, up, Options{
		RingTimeout:       ring,
		RecordingMaxBytes: 1 << 20,
		RecordingsEnabled: true,
	})
	t.Cleanup(s.Shutdown)
	return &fixture{
		s:        s,
		hub:      hub,
		notes:    notes,
		uploader: up,
		msgs:     messaging.NewService(msgRepo, hub, time.Second),
		user:     func(name string) uuid.UUID { return pgtest.CreateProfile(t, pool, name, 0) },
	}
}

func TestUnansweredCallBecomesMissed(t *testing.T) {
	f := newFixture(t, 50*time.Millisecond)
	ctx := context.Background()
	alice, bob := f.user("alice"), f.user("bob")

	call, err := f.s.Start(ctx, alice, bob, MediaAudio)
	require.NoError(t, err)
	require.Equal(t, StatusRinging, call.Status)

	require.Eventually(t, func() bool {
		c, err := f.s.repo.Get(ctx, call.ID)
		return err == nil && c.Status == StatusMissed
	}, 2*time.Second, 10*time.Millisecond)

	log, err := f.s.CallLog(ctx, bob, 10)
	require.NoError(t, err)
	require.Len(t, log, 1)
	require.Equal(t, DirectionIncoming, log[0].Direction)
	require.Zero(t, log[0].DurationSeconds)
	require.True(t, log[0].CanCallBack)
	require.Equal(t, "alice", log[0].PeerName)

	require.Eventually(t, func() bool {
		k := f.notes.kinds()
		return len(k) == 2 && k[1] == "missed_call"
	}, time.Second, 10*time.Millisecond)

	// поздний ответ уже невозможен
	_, err = f.s.Accept(ctx, bob, call.ID)
	require.ErrorIs(t, err, common.ErrInvalidCallTransition)
}

func TestAnsweredCallLifecycle(t *testing.T) {
	f := newFixture(t, time.Hour)
	ctx := context.Background()
	alice, bob, eve := f.user("alice"), f.user("bob"), f.user("eve")

	watcher := realtime.NewClient(alice, 16)
	f.hub.Register(watcher)

	call, err := f.s.Start(ctx, alice, bob, MediaVideo)
	require.NoError(t, err)

	_, err = f.s.Accept(ctx, alice, call.ID)
	require.ErrorIs(t, err, common.ErrNotParticipant)
	_, err = f.s.Connect(ctx, eve, call.ID)
	require.ErrorIs(t, err, common.ErrNotParticipant)
	_, err = f.s.Connect(ctx, bob, call.ID)
	require.ErrorIs(t, err, common.ErrInvalidCallTransition)

	call, err = f.s.Accept(ctx, bob, call.ID)
	require.NoError(t, err)
	require.NotNil(t, call.AnsweredAt)
	require.Zero(t, f.s.recordings.count())

	call, err = f.s.Connect(ctx, alice, call.ID)
	require.NoError(t, err)
	require.NotNil(t, call.ConnectedAt)

	call, err = f.s.End(ctx, bob, call.ID)
	require.NoError(t, err)
	require.Equal(t, StatusEnded, call.Status)
	require.GreaterOrEqual(t, call.DurationSeconds, 0)

	_, err = f.s.End(ctx, bob, call.ID)
	require.ErrorIs(t, err, common.ErrInvalidCallTransition)

	// ringing, accepted, connected, ended
	require.Len(t, watcher.Send(), 4)

	log, err := f.s.CallLog(ctx, alice, 10)
	require.NoError(t, err)
	require.Len(t, log, 1)
	require.Equal(t, DirectionOutgoing, log[0].Direction)
	require.False(t, log[0].CanCallBack)
}

func TestCallerCancelIsMissedForCallee(t *testing.T) {
	f := newFixture(t, time.Hour)
	ctx := context.Background()
	alice, bob := f.user("alice"), f.user("bob")

	call, err := f.s.Start(ctx, alice, bob, MediaAudio)
	require.NoError(t, err)
	call, err = f.s.End(ctx, alice, call.ID)
	require.NoError(t, err)
	require.Equal(t, StatusMissed, call.Status)

	_, err = f.s.Start(ctx, alice, alice, MediaAudio)
	require.ErrorIs(t, err, common.ErrSelfCall)
	_, err = f.s.Start(ctx, alice, bob, Media("fax"))
	require.ErrorIs(t, err, common.ErrInvalidMedia)
}

func TestRejectNotifiesCaller(t *testing.T) {
	f := newFixture(t, time.Hour)
	ctx := context.Background()
	alice, bob := f.user("alice"), f.user("bob")

	call, err := f.s.Start(ctx, alice, bob, MediaAudio)
	require.NoError(t, err)
	call, err = f.s.Reject(ctx, bob, call.ID)
	require.NoError(t, err)
	require.Equal(t, StatusRejected, call.Status)
	require.Equal(t, []string{"call", "call_rejected"}, f.notes.kinds())
}

func TestExpireStale(t *testing.T) {
	f := newFixture(t, time.Hour)
	ctx := context.Background()
	alice, bob := f.user("alice"), f.user("bob")

	call, err := f.s.Start(ctx, alice, bob, MediaAudio)
	require.NoError(t, err)

	n, err := f.s.ExpireStale(ctx, time.Hour)
	require.NoError(t, err)
	require.Zero(t, n)

	f.s.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	n, err = f.s.ExpireStale(ctx, time.Hour)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	got, err := f.s.repo.Get(ctx, call.ID)
	require.NoError(t, err)
	require.Equal(t, StatusMissed, got.Status)
}

func TestRecordingUploadAndCleanup(t *testing.T) {
	f := newFixture(t, time.Hour)
	ctx := context.Background()
	alice, bob := f.user("alice"), f.user("bob")

	call, err := f.s.Start(ctx, alice, bob, MediaAudio)
	require.NoError(t, err)

	// пока звонит, записывать нечего
	_, err = f.s.StartRecording(ctx, CallTarget(call.ID), alice)
	require.ErrorIs(t, err, common.ErrInvalidCallTransition)

	_, err = f.s.Accept(ctx, bob, call.ID)
	require.NoError(t, err)

	target := CallTarget(call.ID)
	_, err = f.s.StartRecording(ctx, target, alice)
	require.NoError(t, err)
	_, err = f.s.AppendChunk(target, alice, []byte("hello "))
	require.NoError(t, err)
	size, err := f.s.AppendChunk(target, alice, []byte("world"))
	require.NoError(t, err)
	require.Equal(t, int64(11), size)

	rec, err := f.s.StopRecording(ctx, target, alice)
	require.NoError(t, err)
	require.Equal(t, call.ID, *rec.CallID)
	require.Nil(t, rec.GroupCallID)
	require.Equal(t, int64(11), rec.FileSizeBytes)
	require.True(t, bytes.Equal([]byte("hello world"), f.uploader.uploaded[0]))

	_, err = f.s.StopRecording(ctx, target, alice)
	require.ErrorIs(t, err, common.ErrRecordingNotActive)

	// пустая запись выбрасывается вместе со звонком
	r, err := f.s.StartRecording(ctx, target, bob)
	require.NoError(t, err)
	_, err = f.s.End(ctx, alice, call.ID)
	require.NoError(t, err)
	require.True(t, r.Closed())
	require.Zero(t, f.s.recordings.count())

	list, err := f.s.Recordings(ctx, target, bob)
	require.NoError(t, err)
	require.Len(t, list, 1)
}

// Собеседник положил трубку посреди записи: запись сохраняется.
func TestCallEndFinishesRecording(t *testing.T) {
	f := newFixture(t, time.Hour)
	ctx := context.Background()
	alice, bob := f.user("alice"), f.user("bob")

	call, err := f.s.Start(ctx, alice, bob, MediaVideo)
	require.NoError(t, err)
	_, err = f.s.Accept(ctx, bob, call.ID)
	require.NoError(t, err)

	target := CallTarget(call.ID)
	r, err := f.s.StartRecording(ctx, target, alice)
	require.NoError(t, err)
	_, err = f.s.AppendChunk(target, alice, []byte("до конца"))
	require.NoError(t, err)

	endCtx, cancel := context.WithCancel(ctx)
	_, err = f.s.End(endCtx, bob, call.ID)
	cancel()
	require.NoError(t, err)
	require.True(t, r.Closed())
	require.Zero(t, f.s.recordings.count())

	list, err := f.s.Recordings(ctx, target, alice)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, alice, list[0].RecordedBy)
	require.Equal(t, int64(len("до конца")), list[0].FileSizeBytes)
	require.True(t, bytes.Equal([]byte("до конца"), f.uploader.uploaded[0]))

	_, err = f.s.StopRecording(ctx, target, alice)
	require.ErrorIs(t, err, common.ErrRecordingNotActive)
}

// Статус звонка приходит и подписчикам темы call:<id>.
func TestCallTopicReceivesStatus(t *testing.T) {
	f := newFixture(t, time.Hour)
	ctx := context.Background()
	alice, bob := f.user("alice"), f.user("bob")

	call, err := f.s.Start(ctx, alice, bob, MediaAudio)
	require.NoError(t, err)
	require.NoError(t, f.s.CanWatch(ctx, bob, call.ID))

	// отдельное подключение, чьи личные события сюда не попадают
	watcher := realtime.NewClient(uuid.New(), 16)
	f.hub.Register(watcher)
	f.hub.Subscribe(watcher, realtime.CallTopic(call.ID))

	_, err = f.s.Accept(ctx, bob, call.ID)
	require.NoError(t, err)
	_, err = f.s.End(ctx, alice, call.ID)
	require.NoError(t, err)

	var statuses []Status
	for len(watcher.Send()) > 0 {
		var ev struct {
			Type    string      `json:"type"`
			Topic   string      `json:"topic"`
			Payload StatusEvent `json:"payload"`
		}
		require.NoError(t, json.Unmarshal(<-watcher.Send(), &ev))
		require.Equal(t, realtime.EventCallStatus, ev.Type)
		require.Equal(t, realtime.CallTopic(call.ID), ev.Topic)
		statuses = append(statuses, ev.Payload.Status)
	}
	require.Equal(t, []Status{StatusAccepted, StatusEnded}, statuses)
}

func TestRecordingUnavailableKeepsCall(t *testing.T) {
	f := newFixture(t, time.Hour)
	f.s.uploader = storage.Disabled{}
	ctx := context.Background()
	alice, bob := f.user("alice"), f.user("bob")

	call, err := f.s.Start(ctx, alice, bob, MediaAudio)
	require.NoError(t, err)
	_, err = f.s.Accept(ctx, bob, call.ID)
	require.NoError(t, err)

	_, err = f.s.StartRecording(ctx, CallTarget(call.ID), alice)
	require.ErrorIs(t, err, common.ErrRecordingUnavailable)

	got, err := f.s.repo.Get(ctx, call.ID)
	require.NoError(t, err)
	require.Equal(t, StatusAccepted, got.Status)
}

func TestGroupCallRecording(t *testing.T) {
	f := newFixture(t, time.Hour)
	ctx := context.Background()
	alice, bob, eve := f.user("alice"), f.user("bob"), f.user("eve")

	conv, err := f.msgs.CreateGroup(ctx, alice, "Эко-патруль", []uuid.UUID{bob})
	require.NoError(t, err)

	_, err = f.s.StartGroup(ctx, eve, conv, MediaAudio)
	require.ErrorIs(t, err, common.ErrNotParticipant)

	g, err := f.s.StartGroup(ctx, alice, conv, MediaVideo)
	require.NoError(t, err)
	require.NoError(t, f.s.CanWatch(ctx, bob, g.ID))

	watcher := realtime.NewClient(uuid.New(), 16)
	f.hub.Register(watcher)
	f.hub.Subscribe(watcher, realtime.CallTopic(g.ID))
	require.ErrorIs(t, f.s.CanWatch(ctx, eve, g.ID), common.ErrNotParticipant)

	target := GroupTarget(g.ID)
	_, err = f.s.StartRecording(ctx, target, bob)
	require.NoError(t, err)
	_, err = f.s.AppendChunk(target, bob, []byte("group"))
	require.NoError(t, err)
	rec, err := f.s.StopRecording(ctx, target, bob)
	require.NoError(t, err)
	require.Nil(t, rec.CallID)
	require.Equal(t, g.ID, *rec.GroupCallID)

	g, err = f.s.EndGroup(ctx, bob, g.ID)
	require.NoError(t, err)
	require.NotNil(t, g.EndedAt)
	// завершение группового звонка видно по теме звонка
	require.Len(t, watcher.Send(), 1)
	_, err = f.s.EndGroup(ctx, alice, g.ID)
	require.NoError(t, err)

	_, err = f.s.StartRecording(ctx, target, alice)
	require.ErrorIs(t, err, common.ErrInvalidCallTransition)
}
