package profiles

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/green-earth/internal/common"
	"serotonyl.ru/green-earth/internal/db/postgres/pgtest"
)

func TestRedeemUnknownOrExpiredToken(t *testing.T) {
	s := NewService(nil, time.Millisecond)
	ctx := context.Background()

	_, err := s.RedeemLinkToken(ctx, "nope", 1)
	require.ErrorIs(t, err, common.ErrLinkTokenInvalid)

	token, _ := s.IssueLinkToken(uuid.New())
	time.Sleep(5 * time.Millisecond)
	_, err = s.RedeemLinkToken(ctx, token, 1)
	require.ErrorIs(t, err, common.ErrLinkTokenInvalid)
}

func TestProfileName(t *testing.T) {
	nick := "alice"
	require.Equal(t, "@alice", (&Profile{Username: &nick}).Name())
	require.Equal(t, "Alice", (&Profile{DisplayName: "Alice"}).Name())
	require.Equal(t, "пользователь", (&Profile{}).Name())
}

func TestEnsureProfileUsernameCollision(t *testing.T) {
	pool := pgtest.NewPool(t)
	s := NewService(NewRepository(pool), time.Minute)
	ctx := context.Background()

	first := uuid.New()
	second := uuid.New()
	require.NoError(t, s.EnsureProfile(ctx, Identity{ID: first, Username: "eco_hero", DisplayName: "A"}))
	require.NoError(t, s.EnsureProfile(ctx, Identity{ID: second, Username: "ECO_HERO", DisplayName: "B"}))
	// повторный вызов ничего не ломает
	require.NoError(t, s.EnsureProfile(ctx, Identity{ID: first, Username: "other", DisplayName: "A2"}))

	p1, err := s.Get(ctx, first)
	require.NoError(t, err)
	require.Equal(t, "eco_hero", *p1.Username)
	require.Equal(t, "A", p1.DisplayName)

	p2, err := s.Get(ctx, second)
	require.NoError(t, err)
	require.Nil(t, p2.Username)

	found, err := s.GetByUsername(ctx, "@Eco_Hero")
	require.NoError(t, err)
	require.Equal(t, first, found.ID)

	_, err = s.GetByUsername(ctx, "ghost")
	require.ErrorIs(t, err, common.ErrUserNotFound)
}

func TestSetWallet(t *testing.T) {
	pool := pgtest.NewPool(t)
	s := NewService(NewRepository(pool), time.Minute)
	ctx := context.Background()
	id := pgtest.CreateProfile(t, pool, "walleter", 0)

	require.ErrorIs(t, s.SetWallet(ctx, id, "not-a-wallet"), common.ErrWalletRequired)
	require.NoError(t, s.SetWallet(ctx, id, "0x52908400098527886E0F7030069857D2E4169EE7"))

	p, err := s.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "0x52908400098527886E0F7030069857D2E4169EE7", *p.WalletAddress)
}

func TestTelegramLinkMovesChat(t *testing.T) {
	pool := pgtest.NewPool(t)
	s := NewService(NewRepository(pool), time.Minute)
	ctx := context.Background()
	a := pgtest.CreateProfile(t, pool, "tg_a", 0)
	b := pgtest.CreateProfile(t, pool, "tg_b", 0)

	token, _ := s.IssueLinkToken(a)
	p, err := s.RedeemLinkToken(ctx, token, 777)
	require.NoError(t, err)
	require.Equal(t, a, p.ID)

	// токен одноразовый
	_, err = s.RedeemLinkToken(ctx, token, 777)
	require.ErrorIs(t, err, common.ErrLinkTokenInvalid)

	token, _ = s.IssueLinkToken(b)
	_, err = s.RedeemLinkToken(ctx, token, 777)
	require.NoError(t, err)

	owner, err := s.GetByTelegramChat(ctx, 777)
	require.NoError(t, err)
	require.Equal(t, b, owner.ID)

	chatID, err := s.TelegramChatID(ctx, a)
	require.NoError(t, err)
	require.Nil(t, chatID)

	require.NoError(t, s.UnlinkTelegram(ctx, 777))
	_, err = s.GetByTelegramChat(ctx, 777)
	require.ErrorIs(t, err, common.ErrTelegramNotLinked)
}
