package postgres_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/green-earth/internal/db/postgres"
	"serotonyl.ru/green-earth/internal/db/postgres/pgtest"
)

func TestMigrationsAreIdempotent(t *testing.T) {
	pool := pgtest.NewPool(t)
	ctx := context.Background()

	require.NoError(t, postgres.RunMigrations(ctx, pool))

	var count int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM schema_migrations`).Scan(&count))
	require.Equal(t, len(postgres.Migrations), count)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	pool := pgtest.NewPool(t)
	ctx := context.Background()
	id := uuid.New()
	boom := errors.New("boom")

	err := postgres.WithTx(ctx, pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `INSERT INTO profiles (id, username) VALUES ($1, 'ghost')`, id); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	var exists bool
	require.NoError(t, pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM profiles WHERE id = $1)`, id).Scan(&exists))
	require.False(t, exists)
}

func TestUniqueViolationDetection(t *testing.T) {
	pool := pgtest.NewPool(t)
	ctx := context.Background()

	pgtest.CreateProfile(t, pool, "alice", 0)
	_, err := pool.Exec(ctx, `INSERT INTO profiles (id, username) VALUES ($1, 'ALICE')`, uuid.New())
	require.Error(t, err)
	require.True(t, postgres.IsUniqueViolation(err))
	require.False(t, postgres.IsForeignKeyViolation(err))
}

func TestBalanceCannotGoNegative(t *testing.T) {
	pool := pgtest.NewPool(t)
	ctx := context.Background()

	id := pgtest.CreateProfile(t, pool, "bob", 10)
	_, err := pool.Exec(ctx, `UPDATE profiles SET green_points = green_points - 11 WHERE id = $1`, id)
	require.Error(t, err)
	require.Equal(t, int64(10), pgtest.Balance(t, pool, id))
}
