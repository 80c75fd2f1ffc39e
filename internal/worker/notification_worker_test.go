package worker_test

import (
	"context"
	"testing"
	"time"

	"github.com/HananR99/Ruhutickets/internal/broker"
	"github.com/HananR99/Ruhutickets/internal/cache"
	"github.com/HananR99/Ruhutickets/internal/worker"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startWorker(t *testing.T) (*broker.MemoryBroker, cache.HoldStore, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())

	notifier := broker.NewMemoryBroker(10)
	holdStore := cache.NewRedisHoldStore(testRdb, 2*time.Second)
	w := worker.NewNotificationWorker(notifier, holdStore, time.Hour)
	require.NoError(t, w.Start(ctx))

	t.Cleanup(cancel)
	return notifier, holdStore, cancel
}

func TestNotificationWorker_ProcessesOnce(t *testing.T) {
	clearAll(t)
	ctx := context.Background()
	notifier, holdStore, _ := startWorker(t)

	reservationID := uuid.New().String()
	body := []byte(`{"type":"reservation.committed","reservation":{"id":"` + reservationID + `"},"qty":2}`)

	// 同一通知投遞兩次，模擬 broker 的 at-least-once
	require.NoError(t, notifier.PublishRaw(ctx, body))
	require.NoError(t, notifier.PublishRaw(ctx, body))

	// 兩次都 ack，但只留下一筆稽核紀錄
	require.Eventually(t, func() bool {
		return notifier.Acks() == 2
	}, 3*time.Second, 50*time.Millisecond)

	records, err := holdStore.ListAudit(ctx, reservationID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.JSONEq(t, string(body), string(records[0].Payload))
	assert.False(t, records[0].ReceivedAt.IsZero())

	assert.Empty(t, notifier.DeadLetters())
}

func TestNotificationWorker_DedupKeyFallsBackToTo(t *testing.T) {
	clearAll(t)
	ctx := context.Background()
	notifier, holdStore, _ := startWorker(t)

	body := []byte(`{"type":"reservation.committed","to":"user@example.com"}`)
	require.NoError(t, notifier.PublishRaw(ctx, body))

	require.Eventually(t, func() bool {
		return notifier.Acks() == 1
	}, 3*time.Second, 50*time.Millisecond)

	records, err := holdStore.ListAudit(ctx, "user@example.com")
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestNotificationWorker_MalformedToDLQ(t *testing.T) {
	clearAll(t)
	ctx := context.Background()
	notifier, _, _ := startWorker(t)

	body := []byte("this is not json {{{")
	require.NoError(t, notifier.PublishRaw(ctx, body))

	// 永久性錯誤：DLQ 一份後 ack，不重投遞
	require.Eventually(t, func() bool {
		return notifier.Acks() == 1
	}, 3*time.Second, 50*time.Millisecond)

	dead := notifier.DeadLetters()
	require.Len(t, dead, 1)
	assert.Equal(t, body, dead[0])
}

func TestNotificationWorker_MissingIDToDLQ(t *testing.T) {
	clearAll(t)
	ctx := context.Background()
	notifier, _, _ := startWorker(t)

	// 合法 JSON 但無從歸屬：沒有 reservation.id / reservation_id / to
	body := []byte(`{"type":"reservation.committed","qty":1}`)
	require.NoError(t, notifier.PublishRaw(ctx, body))

	require.Eventually(t, func() bool {
		return notifier.Acks() == 1
	}, 3*time.Second, 50*time.Millisecond)

	require.Len(t, notifier.DeadLetters(), 1)
}
