package service_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/HananR99/Ruhutickets/config"
	"github.com/HananR99/Ruhutickets/internal/broker"
	"github.com/HananR99/Ruhutickets/internal/cache"
	"github.com/HananR99/Ruhutickets/internal/model"
	"github.com/HananR99/Ruhutickets/internal/repository"
	"github.com/HananR99/Ruhutickets/internal/service"
	"github.com/HananR99/Ruhutickets/internal/testutil"
	apperrors "github.com/HananR99/Ruhutickets/pkg/app_errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

var (
	testPool *pgxpool.Pool
	testRdb  *redis.Client
)

func TestMain(m *testing.M) {
	pool, rdb, cleanup, err := testutil.Setup()
	if err != nil {
		fmt.Printf("Failed to setup test environment: %v\n", err)
		os.Exit(1)
	}
	testPool = pool
	testRdb = rdb

	code := m.Run()
	cleanup()
	os.Exit(code)
}

func clearAll(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, testutil.TruncateAll(ctx, testPool))
	require.NoError(t, testRdb.FlushDB(ctx).Err())
}

func createTestEvent(t *testing.T) uuid.UUID {
	t.Helper()
	id := uuid.New()
	start := time.Now().Add(72 * time.Hour)
	_, err := testPool.Exec(context.Background(),
		`INSERT INTO events (id, name, venue, start_time) VALUES ($1, $2, $3, $4)`,
		id, "Ruhunu Live", "Colombo Arena", start)
	require.NoError(t, err)
	return id
}

func createTestTicketType(t *testing.T, eventID uuid.UUID, totalQty int) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := testPool.Exec(context.Background(),
		`INSERT INTO ticket_types (id, event_id, name, price_cents, currency, total_qty, sold_qty)
		 VALUES ($1, $2, $3, $4, $5, $6, 0)`,
		id, eventID, "GA", 4500, "LKR", totalQty)
	require.NoError(t, err)
	return id
}

// newTestService 組裝真實依賴的 service；notifier 用 MemoryBroker 觀察發佈
func newTestService(holdTTL time.Duration, notifier broker.NotificationBroker) (service.ReservationService, cache.HoldStore) {
	holdCfg := config.HoldConfig{
		HoldTTL:  holdTTL,
		LockTTL:  2 * time.Second,
		DedupTTL: time.Hour,
	}
	holdStore := cache.NewRedisHoldStore(testRdb, holdCfg.LockTTL)

	svc := service.NewReservationService(
		testPool,
		repository.NewReservationRepository(testPool),
		repository.NewTicketTypeRepository(testPool),
		repository.NewOutboxRepository(testPool),
		holdStore,
		notifier,
		holdCfg,
		2*time.Second,
	)
	return svc, holdStore
}

// reserveWithRetry 票種鎖被搶到時重試幾次；併發測試必備
func reserveWithRetry(ctx context.Context, svc service.ReservationService, req model.ReserveRequest) (*model.ReserveResponse, error) {
	var lastErr error
	for i := 0; i < 50; i++ {
		resp, err := svc.Reserve(ctx, req)
		if err == nil {
			return resp, nil
		}
		if !errors.Is(err, apperrors.ErrLockBusy) {
			return nil, err
		}
		lastErr = err
		time.Sleep(20 * time.Millisecond)
	}
	return nil, lastErr
}

func soldQty(t *testing.T, ticketTypeID uuid.UUID) int {
	t.Helper()
	var sold int
	err := testPool.QueryRow(context.Background(),
		`SELECT sold_qty FROM ticket_types WHERE id = $1`, ticketTypeID).Scan(&sold)
	require.NoError(t, err)
	return sold
}

func reservationStatus(t *testing.T, id uuid.UUID) model.ReservationStatus {
	t.Helper()
	var status model.ReservationStatus
	err := testPool.QueryRow(context.Background(),
		`SELECT status FROM reservations WHERE id = $1`, id).Scan(&status)
	require.NoError(t, err)
	return status
}

func outboxCount(t *testing.T, status model.OutboxStatus) int {
	t.Helper()
	var n int
	err := testPool.QueryRow(context.Background(),
		`SELECT count(*) FROM outbox WHERE status = $1`, status).Scan(&n)
	require.NoError(t, err)
	return n
}
