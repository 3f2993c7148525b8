package economy

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/green-earth/internal/common"
	"serotonyl.ru/green-earth/internal/db/postgres/pgtest"
	"serotonyl.ru/green-earth/internal/features/profiles"
)

type fakeNotifier struct {
	mu    sync.Mutex
	calls []uuid.UUID
}

func (f *fakeNotifier) Notify(_ context.Context, userID uuid.UUID, _, _, _ string, _ map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, userID)
	return nil
}

func newTestService(t *testing.T) (*Service, *fakeNotifier, func(name string, points int64) uuid.UUID) {
	pool := pgtest.NewPool(t)
	n := &fakeNotifier{}
	users := profiles.NewService(profiles.NewRepository(pool), time.Minute)
	s := NewService(NewRepository(pool), users, n, time.UTC)
	create := func(name string, points int64) uuid.UUID {
		return pgtest.CreateProfile(t, pool, name, points)
	}
	return s, n, create
}

func TestTransactionSignedAmount(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	tx := &Transaction{SenderID: &a, ReceiverID: &b, Amount: 30}
	require.Equal(t, int64(-30), tx.SignedAmount(a))
	require.Equal(t, int64(30), tx.SignedAmount(b))

	reward := &Transaction{ReceiverID: &b, Amount: 100}
	require.Equal(t, int64(100), reward.SignedAmount(b))
}

func TestTxTypeValid(t *testing.T) {
	require.True(t, TxCheckIn.Valid())
	require.True(t, TxClaim.Valid())
	require.False(t, TxType("casino").Valid())
}

func TestCreditValidation(t *testing.T) {
	s := NewService(nil, nil, nil, nil)
	ctx := context.Background()

	_, err := s.CreditTx(ctx, nil, CreditRequest{UserID: uuid.New(), Amount: 0, Type: TxCheckIn})
	require.ErrorIs(t, err, common.ErrInvalidAmount)

	_, err = s.CreditTx(ctx, nil, CreditRequest{UserID: uuid.New(), Amount: 10, Type: "bogus"})
	require.ErrorIs(t, err, common.ErrInvalidTxType)

	_, err = s.CreditTx(ctx, nil, CreditRequest{UserID: uuid.New(), Amount: 10, Type: TxGift})
	require.ErrorIs(t, err, common.ErrInvalidTxType)
}

func TestGiftMovesPointsAtomically(t *testing.T) {
	s, n, create := newTestService(t)
	ctx := context.Background()

	alice := create("alice", 100)
	bob := create("bob", 0)

	tx, err := s.Gift(ctx, alice, "@bob", 40, "спасибо")
	require.NoError(t, err)
	require.Equal(t, TxGift, tx.Type)
	require.Equal(t, alice, *tx.SenderID)
	require.Equal(t, bob, *tx.ReceiverID)

	ab, err := s.GetBalance(ctx, alice)
	require.NoError(t, err)
	require.Equal(t, int64(60), ab)
	bb, err := s.GetBalance(ctx, bob)
	require.NoError(t, err)
	require.Equal(t, int64(40), bb)
	require.Equal(t, []uuid.UUID{bob}, n.calls)

	history, err := s.History(ctx, bob, 10, nil)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, tx.ID, history[0].ID)
}

func TestGiftRejections(t *testing.T) {
	s, n, create := newTestService(t)
	ctx := context.Background()

	alice := create("alice", 10)
	create("bob", 0)

	_, err := s.Gift(ctx, alice, "bob", 11, "")
	require.ErrorIs(t, err, common.ErrInsufficientBalance)

	_, err = s.Gift(ctx, alice, "alice", 5, "")
	require.ErrorIs(t, err, common.ErrSelfTransfer)

	_, err = s.Gift(ctx, alice, "bob", -5, "")
	require.ErrorIs(t, err, common.ErrInvalidAmount)

	_, err = s.Gift(ctx, alice, "nobody", 5, "")
	require.ErrorIs(t, err, common.ErrUserNotFound)

	b, err := s.GetBalance(ctx, alice)
	require.NoError(t, err)
	require.Equal(t, int64(10), b)
	require.Empty(t, n.calls)
}

func TestConcurrentGiftsNeverOverdraw(t *testing.T) {
	s, _, create := newTestService(t)
	ctx := context.Background()

	alice := create("alice", 100)
	bob := create("bob", 0)

	var wg sync.WaitGroup
	var mu sync.Mutex
	ok := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Transfer(ctx, TransferRequest{Sender: &alice, Receiver: bob, Amount: 30, Type: TxGift}); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 3, ok)
	ab, _ := s.GetBalance(ctx, alice)
	bb, _ := s.GetBalance(ctx, bob)
	require.Equal(t, int64(10), ab)
	require.Equal(t, int64(90), bb)
}

func TestClaimLeavesRemainder(t *testing.T) {
	s, _, create := newTestService(t)
	ctx := context.Background()

	user := create("claimer", 0)
	_, err := s.Credit(ctx, CreditRequest{UserID: user, Amount: 255, Type: TxScanReward, Description: "скан"})
	require.NoError(t, err)

	_, err = s.Claim(ctx, user)
	require.ErrorIs(t, err, common.ErrWalletRequired)

	_, err = s.repo.Pool().Exec(ctx, `UPDATE profiles SET wallet_address = '0xabc' WHERE id = $1`, user)
	require.NoError(t, err)

	res, err := s.Claim(ctx, user)
	require.NoError(t, err)
	require.Equal(t, int64(250), res.Claimed.Points)
	require.Equal(t, int64(25), res.Claimed.Coin)
	require.Equal(t, int64(5), res.Balance)
	require.Equal(t, int64(25), res.TotalClaimed)

	_, err = s.Claim(ctx, user)
	require.ErrorIs(t, err, common.ErrNotEligibleForClaim)

	sum, err := s.Summary(ctx, user)
	require.NoError(t, err)
	require.False(t, sum.Eligible)
	require.Equal(t, int64(0), sum.Claimable.Points)
}

func TestReconcileDetectsDrift(t *testing.T) {
	s, _, create := newTestService(t)
	ctx := context.Background()

	user := create("ledger", 0)
	_, err := s.Credit(ctx, CreditRequest{UserID: user, Amount: 100, Type: TxCheckIn})
	require.NoError(t, err)

	d, err := s.Reconcile(ctx, user)
	require.NoError(t, err)
	require.Zero(t, d.Diff())

	drifts, err := s.ReconcileAll(ctx)
	require.NoError(t, err)
	require.Empty(t, drifts)

	// баланс правят в обход журнала
	_, err = s.repo.Pool().Exec(ctx, `UPDATE profiles SET green_points = green_points + 7 WHERE id = $1`, user)
	require.NoError(t, err)

	drifts, err = s.ReconcileAll(ctx)
	require.NoError(t, err)
	require.Len(t, drifts, 1)
	require.Equal(t, int64(7), drifts[0].Diff())
}

func TestFormatHistoryEmpty(t *testing.T) {
	s, _, create := newTestService(t)
	user := create("quiet", 0)

	text, err := s.FormatHistory(context.Background(), user, 10)
	require.NoError(t, err)
	require.Contains(t, text, "нет транзакций")
}
