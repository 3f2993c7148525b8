// Package pgtest поднимает изолированную схему PostgreSQL для интеграционных тестов.
// Без DATABASE_URL тесты пропускаются.
package pgtest

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/green-earth/internal/db/postgres"
)

// NewPool создаёт пул, у которого search_path указывает на свежую схему
// с применёнными миграциями. Схема удаляется в t.Cleanup.
func NewPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx := context.Background()
	schema := fmt.Sprintf("test_%d", time.Now().UnixNano())

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	config.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, fmt.Sprintf("SET search_path TO %s", schema))
		return err
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if _, err := pool.Exec(ctx, fmt.Sprintf("CREATE SCHEMA %s", schema)); err != nil {
		pool.Close()
		t.Fatalf("create schema: %v", err)
	}
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		pool.Close()
		t.Fatalf("migrations: %v", err)
	}

	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), fmt.Sprintf("DROP SCHEMA %s CASCADE", schema))
		pool.Close()
	})
	return pool
}

// CreateProfile вставляет профиль с заданным балансом и возвращает его ID.
func CreateProfile(t *testing.T, pool *pgxpool.Pool, username string, points int64) uuid.UUID {
	t.Helper()

	id := uuid.New()
	_, err := pool.Exec(context.Background(), `
		INSERT INTO profiles (id, username, display_name, green_points)
		VALUES ($1, $2, $2, $3)
	`, id, username, points)
	if err != nil {
		t.Fatalf("create profile %s: %v", username, err)
	}
	return id
}

// Balance читает текущий баланс профиля.
func Balance(t *testing.T, pool *pgxpool.Pool, userID uuid.UUID) int64 {
	t.Helper()

	var points int64
	if err := pool.QueryRow(context.Background(),
		`SELECT green_points FROM profiles WHERE id = $1`, userID,
	).Scan(&points); err != nil {
		t.Fatalf("balance: %v", err)
	}
	return points
}
