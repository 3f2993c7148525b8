package calls

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/green-earth/internal/common"
)

func TestRecordingCollectsChunks(t *testing.T) {
	now := time.Unix(1000, 0)
	r := newRecording(CallTarget(uuid.New()), uuid.New(), 10, func() time.Time { return now })

	require.NoError(t, r.AppendChunk([]byte("abc")))
	require.NoError(t, r.AppendChunk(nil))
	require.NoError(t, r.AppendChunk([]byte("def")))
	require.ErrorIs(t, r.AppendChunk([]byte("too-long")), common.ErrRecordingTooLarge)
	require.Equal(t, int64(6), r.Size())

	now = now.Add(7 * time.Second)
	blob, err := r.Stop()
	require.NoError(t, err)
	require.Equal(t, "abcdef", string(blob.Data))
	require.Equal(t, 7*time.Second, blob.Duration)

	_, err = r.Stop()
	require.ErrorIs(t, err, common.ErrRecordingNotActive)
	require.ErrorIs(t, r.AppendChunk([]byte("x")), common.ErrRecordingNotActive)

	require.False(t, r.Close())
	require.False(t, r.Close())
}

func TestRecordingCloseDiscards(t *testing.T) {
	r := newRecording(CallTarget(uuid.New()), uuid.New(), 100, time.Now)
	require.NoError(t, r.AppendChunk([]byte("data")))
	require.True(t, r.Close())
	require.False(t, r.Close())
	require.Zero(t, r.Size())
	_, err := r.Stop()
	require.ErrorIs(t, err, common.ErrRecordingNotActive)
}

func TestRecordersTakeAll(t *testing.T) {
	rs := newRecorders()
	call := uuid.New()
	other := uuid.New()
	alice, bob := uuid.New(), uuid.New()
	mk := func(target Target, user uuid.UUID) func() *Recording {
		return func() *Recording { return newRecording(target, user, 100, time.Now) }
	}

	a := rs.open(CallTarget(call), alice, mk(CallTarget(call), alice))
	require.Same(t, a, rs.open(CallTarget(call), alice, mk(CallTarget(call), alice)))
	rs.open(CallTarget(call), bob, mk(CallTarget(call), bob))
	o := rs.open(CallTarget(other), alice, mk(CallTarget(other), alice))

	taken := rs.takeAll(call)
	require.Len(t, taken, 2)
	require.Contains(t, taken, a)
	require.Equal(t, 1, rs.count())
	require.False(t, o.Closed())

	// после takeAll звонок начинает новую сессию
	b := rs.open(CallTarget(call), alice, mk(CallTarget(call), alice))
	require.NotSame(t, a, b)

	require.Len(t, rs.drain(), 2)
	require.Zero(t, rs.count())
}
