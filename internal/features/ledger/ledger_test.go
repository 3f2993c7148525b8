package ledger

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPointsToCoin(t *testing.T) {
	require.Equal(t, int64(1), PointsToCoin(10))
	require.Equal(t, int64(0), PointsToCoin(9))
	require.Equal(t, int64(0), PointsToCoin(0))
	require.Equal(t, int64(25), PointsToCoin(257))
	require.Equal(t, int64(-1), PointsToCoin(-1))
	require.Equal(t, int64(-1), PointsToCoin(-10))
	require.Equal(t, int64(-2), PointsToCoin(-11))
}

func TestPointsToCoinMonotonic(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	for i := 0; i < 10000; i++ {
		a := rnd.Int63n(2_000_000) - 1_000_000
		b := a + rnd.Int63n(1000)
		require.LessOrEqual(t, PointsToCoin(a), PointsToCoin(b), "a=%d b=%d", a, b)
	}
}

func TestIsClaimEligible(t *testing.T) {
	require.False(t, IsClaimEligible(99))
	require.True(t, IsClaimEligible(100))
	require.True(t, IsClaimEligible(101))
	require.False(t, IsClaimEligible(-100))
}

func TestClaimableAmountRoundTrip(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))
	for i := 0; i < 10000; i++ {
		p := rnd.Int63n(10_000_000)
		c := ClaimableAmount(p)
		require.Equal(t, c.Points, c.Coin*PointsPerCoin)
		require.LessOrEqual(t, c.Points, p)
		require.Less(t, p-c.Points, PointsPerCoin)
	}
}

func TestClaimableAmountExamples(t *testing.T) {
	require.Equal(t, Claimable{Points: 250, Coin: 25}, ClaimableAmount(250))
	require.Equal(t, Claimable{Points: 250, Coin: 25}, ClaimableAmount(259))
	require.Equal(t, Claimable{}, ClaimableAmount(9))
	require.Equal(t, Claimable{}, ClaimableAmount(-50))
}

func TestRewardTable(t *testing.T) {
	require.Equal(t, int64(100), Reward(ActionDailyCheckIn))
	require.Equal(t, int64(500), Reward(ActionStreak7Bonus))
	require.Equal(t, int64(2000), Reward(ActionSharePost))
	require.Equal(t, int64(500), Reward(ActionAuthorBonus))
	require.Equal(t, int64(0), Reward(Action("unknown")))

	for action, amount := range RewardTable {
		require.Positive(t, amount, action)
	}
}

func TestContentReward(t *testing.T) {
	amount, ok := ContentReward(ContentVideo)
	require.True(t, ok)
	require.Equal(t, Reward(ActionContentVideo), amount)

	_, ok = ContentReward(ContentKind("podcast"))
	require.False(t, ok)
}

func TestStreakBonus(t *testing.T) {
	require.False(t, StreakBonusApplies(0))
	require.False(t, StreakBonusApplies(6))
	require.True(t, StreakBonusApplies(7))
	require.True(t, StreakBonusApplies(14))
	require.False(t, StreakBonusApplies(15))

	require.Equal(t, 7, DaysToStreakBonus(0))
	require.Equal(t, 1, DaysToStreakBonus(6))
	require.Equal(t, 7, DaysToStreakBonus(7))
}
