package common

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPluralizePoints(t *testing.T) {
	cases := map[int64]string{
		0: "баллов", 1: "балл", 2: "балла", 4: "балла", 5: "баллов",
		11: "баллов", 12: "баллов", 21: "балл", 22: "балла", 111: "баллов", -1: "балл",
	}
	for n, want := range cases {
		require.Equal(t, want, PluralizePoints(n), "n=%d", n)
	}
}

func TestFormatNumber(t *testing.T) {
	require.Equal(t, "0", FormatNumber(0))
	require.Equal(t, "999", FormatNumber(999))
	require.Equal(t, "2 350", FormatNumber(2350))
	require.Equal(t, "1 000 005", FormatNumber(1000005))
	require.Equal(t, "-12 000", FormatNumber(-12000))
}

func TestFormatPointsAmount(t *testing.T) {
	require.Equal(t, "+100 баллов", FormatPointsAmount(100))
	require.Equal(t, "-2 000 баллов", FormatPointsAmount(-2000))
	require.Equal(t, "+1 балл", FormatPointsAmount(1))
}

func TestDayOfUsesLocation(t *testing.T) {
	msk := time.FixedZone("MSK", 3*60*60)
	late := time.Date(2024, 3, 10, 22, 30, 0, 0, time.UTC)

	require.Equal(t, "2024-03-11", DayOf(late, msk).Format(DateLayout))
	require.Equal(t, "2024-03-10", DayOf(late, time.UTC).Format(DateLayout))
	require.Equal(t, time.UTC, DayOf(late, msk).Location())
}

func TestPrevDayAcrossMonth(t *testing.T) {
	d := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	require.Equal(t, "2024-02-29", PrevDay(d).Format(DateLayout))
	require.True(t, SameDay(PrevDay(d), time.Date(2024, 2, 29, 23, 0, 0, 0, time.UTC)))
}

func TestFormatDuration(t *testing.T) {
	require.Equal(t, "00:00", FormatDuration(0))
	require.Equal(t, "01:05", FormatDuration(65))
	require.Equal(t, "1:00:01", FormatDuration(3601))
	require.Equal(t, "00:00", FormatDuration(-4))
}

func TestRateLimiterSlidingWindow(t *testing.T) {
	rl := NewRateLimiter[string](2, 50*time.Millisecond)
	defer rl.Close()

	require.True(t, rl.Allow("a"))
	require.True(t, rl.Allow("a"))
	require.False(t, rl.Allow("a"))
	require.True(t, rl.Allow("b"))

	time.Sleep(80 * time.Millisecond)
	require.True(t, rl.Allow("a"))
}
