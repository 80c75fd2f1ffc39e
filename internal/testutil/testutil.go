package testutil

import (
	"context"
	"fmt"
	"log"

	"github.com/HananR99/Ruhutickets/config"
	"github.com/HananR99/Ruhutickets/internal/database"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

func Setup() (*pgxpool.Pool, *redis.Client, func(), error) {
	cfg := config.LoadTestConfig()

	testDB, err := database.InitDatabase(&cfg.Database)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to initialize test database: %v", err)
	}

	if err := testDB.Ping(context.Background()); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to ping test database: %v", err)
	}

	if err := CreateSchema(context.Background(), testDB); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create schema: %v", err)
	}

	log.Println("Test database connected successfully")

	testRdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to initialize redis: %v", err)
	}
	log.Println("Test redis connected successfully")

	cleanup := func() {
		testDB.Close()
		log.Println("Test database closed")

		testRdb.Close()
		log.Println("Test redis closed")
	}

	return testDB, testRdb, cleanup, nil
}

// SetupRedisOnly 僅初始化 Redis，用於只依賴 Redis 的測試（如 broker、cache 整合測試）
func SetupRedisOnly() (*redis.Client, func(), error) {
	cfg := config.LoadTestConfig()
	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize redis: %v", err)
	}
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to ping redis: %v", err)
	}
	cleanup := func() { rdb.Close() }
	return rdb, cleanup, nil
}

// CreateSchema 測試環境的 schema bootstrap；正式環境的 migration 不在此 repo 範圍
func CreateSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
	create table if not exists events(
		id uuid primary key,
		name text not null,
		venue text,
		start_time timestamptz,
		end_time timestamptz
	);
	create table if not exists ticket_types(
		id uuid primary key,
		event_id uuid references events(id),
		name text not null,
		price_cents int not null,
		currency text not null,
		total_qty int not null,
		sold_qty int not null default 0,
		created_at timestamptz not null default now()
	);
	create table if not exists reservations(
		id uuid primary key,
		event_id uuid references events(id),
		ticket_type_id uuid references ticket_types(id),
		user_id text,
		qty int not null default 0,
		status text not null,
		expires_at timestamptz,
		committed_at timestamptz,
		created_at timestamptz not null default now()
	);
	create table if not exists outbox(
		id uuid primary key,
		aggregate text,
		payload_json jsonb,
		status text,
		created_at timestamptz not null default now()
	);
	`)
	return err
}

// TruncateAll 清空所有表；每個測試開始前呼叫
func TruncateAll(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, "TRUNCATE outbox, reservations, ticket_types, events CASCADE")
	return err
}
