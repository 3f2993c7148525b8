package calls

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	all := []Status{StatusRinging, StatusAccepted, StatusRejected, StatusMissed, StatusConnected, StatusEnded}
	allowed := map[[2]Status]bool{
		{StatusRinging, StatusAccepted}:   true,
		{StatusRinging, StatusRejected}:   true,
		{StatusRinging, StatusMissed}:     true,
		{StatusAccepted, StatusConnected}: true,
		{StatusAccepted, StatusEnded}:     true,
		{StatusConnected, StatusEnded}:    true,
	}
	for _, from := range all {
		for _, to := range all {
			require.Equal(t, allowed[[2]Status{from, to}], CanTransition(from, to), "%s → %s", from, to)
		}
	}
}

func TestTerminalHasNoExits(t *testing.T) {
	for _, s := range []Status{StatusRejected, StatusMissed, StatusEnded} {
		require.True(t, s.IsTerminal())
		require.Empty(t, transitions[s])
	}
	require.False(t, StatusRinging.IsTerminal())
	require.False(t, StatusConnected.IsTerminal())
}

func TestEntryForMissedCall(t *testing.T) {
	caller, callee := uuid.New(), uuid.New()
	c := &Call{
		ID:              uuid.New(),
		CallerID:        caller,
		CalleeID:        callee,
		Media:           MediaVideo,
		Status:          StatusMissed,
		CreatedAt:       time.Now(),
		DurationSeconds: 12,
	}

	in := EntryFor(c, callee, "Аня")
	require.Equal(t, DirectionIncoming, in.Direction)
	require.Equal(t, caller, in.PeerID)
	require.Zero(t, in.DurationSeconds)
	require.True(t, in.CanCallBack)

	out := EntryFor(c, caller, "Боря")
	require.Equal(t, DirectionOutgoing, out.Direction)
	require.Equal(t, callee, out.PeerID)
	require.False(t, out.CanCallBack)
}

func TestEntryForEndedCall(t *testing.T) {
	caller, callee := uuid.New(), uuid.New()
	c := &Call{ID: uuid.New(), CallerID: caller, CalleeID: callee, Status: StatusEnded, DurationSeconds: 95}
	e := EntryFor(c, callee, "")
	require.Equal(t, 95, e.DurationSeconds)
	require.False(t, e.CanCallBack)
}

func TestTarget(t *testing.T) {
	id := uuid.New()
	require.True(t, CallTarget(id).Valid())
	require.True(t, GroupTarget(id).Valid())
	require.Equal(t, id, GroupTarget(id).ID())
	require.False(t, Target{}.Valid())
	require.False(t, Target{CallID: &id, GroupCallID: &id}.Valid())
}
