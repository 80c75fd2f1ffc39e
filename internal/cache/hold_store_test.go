package cache_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/HananR99/Ruhutickets/internal/cache"
	"github.com/HananR99/Ruhutickets/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHoldStore() cache.HoldStore {
	return cache.NewRedisHoldStore(testRdb, 5*time.Second)
}

func TestHoldStore_AcquireLock(t *testing.T) {
	ctx := context.Background()
	clearRedis(ctx, t)
	store := newHoldStore()
	ticketTypeID := uuid.New()

	t.Run("first acquisition succeeds", func(t *testing.T) {
		acquired, err := store.AcquireLock(ctx, ticketTypeID)
		require.NoError(t, err)
		assert.True(t, acquired)
	})

	t.Run("second acquisition is busy", func(t *testing.T) {
		acquired, err := store.AcquireLock(ctx, ticketTypeID)
		require.NoError(t, err)
		assert.False(t, acquired)
	})

	t.Run("release makes it acquirable again", func(t *testing.T) {
		require.NoError(t, store.ReleaseLock(ctx, ticketTypeID))
		acquired, err := store.AcquireLock(ctx, ticketTypeID)
		require.NoError(t, err)
		assert.True(t, acquired)
	})

	t.Run("release is idempotent", func(t *testing.T) {
		require.NoError(t, store.ReleaseLock(ctx, ticketTypeID))
		require.NoError(t, store.ReleaseLock(ctx, ticketTypeID))
	})
}

func TestHoldStore_LockLeaseExpires(t *testing.T) {
	ctx := context.Background()
	clearRedis(ctx, t)
	// 租期 1 秒；持有者 crash 最多卡住其他人 1 秒
	store := cache.NewRedisHoldStore(testRdb, time.Second)
	ticketTypeID := uuid.New()

	acquired, err := store.AcquireLock(ctx, ticketTypeID)
	require.NoError(t, err)
	require.True(t, acquired)

	time.Sleep(1100 * time.Millisecond)

	acquired, err = store.AcquireLock(ctx, ticketTypeID)
	require.NoError(t, err)
	assert.True(t, acquired, "lease 過期後應可再取得")
}

func TestHoldStore_HoldLifecycle(t *testing.T) {
	ctx := context.Background()
	clearRedis(ctx, t)
	store := newHoldStore()
	reservationID := uuid.New()
	record := model.HoldRecord{TicketTypeID: uuid.New(), Qty: 3}

	exists, err := store.HoldExists(ctx, reservationID)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, store.PutHold(ctx, reservationID, record, 30*time.Second))

	exists, err = store.HoldExists(ctx, reservationID)
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, store.DeleteHold(ctx, reservationID))

	exists, err = store.HoldExists(ctx, reservationID)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestHoldStore_HoldTTLExpiry(t *testing.T) {
	ctx := context.Background()
	clearRedis(ctx, t)
	store := newHoldStore()
	reservationID := uuid.New()

	require.NoError(t, store.PutHold(ctx, reservationID, model.HoldRecord{Qty: 1}, time.Second))

	time.Sleep(1100 * time.Millisecond)

	// key 消失就是 hold 過期的唯一真相
	exists, err := store.HoldExists(ctx, reservationID)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestHoldStore_ClaimProcessed(t *testing.T) {
	ctx := context.Background()
	clearRedis(ctx, t)
	store := newHoldStore()
	key := uuid.New().String()

	claimed, err := store.ClaimProcessed(ctx, key, time.Hour)
	require.NoError(t, err)
	assert.True(t, claimed)

	// 重複投遞時 claim 必敗
	claimed, err = store.ClaimProcessed(ctx, key, time.Hour)
	require.NoError(t, err)
	assert.False(t, claimed)
}

func TestHoldStore_Audit(t *testing.T) {
	ctx := context.Background()
	clearRedis(ctx, t)
	store := newHoldStore()
	key := uuid.New().String()

	records, err := store.ListAudit(ctx, key)
	require.NoError(t, err)
	assert.Empty(t, records)

	first := model.AuditRecord{
		Payload:    json.RawMessage(`{"type":"reservation.committed"}`),
		ReceivedAt: time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, store.AppendAudit(ctx, key, first))
	require.NoError(t, store.AppendAudit(ctx, key, model.AuditRecord{
		Payload:    json.RawMessage(`{"type":"second"}`),
		ReceivedAt: time.Now().UTC(),
	}))

	records, err = store.ListAudit(ctx, key)
	require.NoError(t, err)
	require.Len(t, records, 2)
	// LPUSH：新的在前
	assert.JSONEq(t, `{"type":"second"}`, string(records[0].Payload))
	assert.JSONEq(t, `{"type":"reservation.committed"}`, string(records[1].Payload))
}
