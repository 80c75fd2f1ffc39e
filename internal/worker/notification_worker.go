package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/HananR99/Ruhutickets/internal/broker"
	"github.com/HananR99/Ruhutickets/internal/cache"
	"github.com/HananR99/Ruhutickets/internal/model"
	"github.com/HananR99/Ruhutickets/pkg/logger"

	"go.uber.org/zap"
)

// NotificationWorker 冪等消費通知：
// 解析失敗或缺 dedup key → DLQ 後 ack；
// dedup claim 搶輸 → 重複投遞，直接 ack；
// claim 成功 → 寫稽核紀錄再 ack；
// claim 後出錯 → 改送 DLQ 再 ack，DLQ 也失敗才 nack(不重排) 丟棄。
type NotificationWorker interface {
	Start(ctx context.Context) error
}

type NotificationWorkerImpl struct {
	notifier  broker.NotificationBroker
	holdStore cache.HoldStore
	dedupTTL  time.Duration
	log       *zap.Logger
}

func NewNotificationWorker(notifier broker.NotificationBroker, holdStore cache.HoldStore, dedupTTL time.Duration) NotificationWorker {
	return &NotificationWorkerImpl{
		notifier:  notifier,
		holdStore: holdStore,
		dedupTTL:  dedupTTL,
		log:       logger.WithComponent("notification-worker"),
	}
}

func (w *NotificationWorkerImpl) Start(ctx context.Context) error {
	msgs, err := w.notifier.Consume(ctx)
	if err != nil {
		return err
	}

	go func() {
		for msg := range msgs {
			w.handle(ctx, msg)
		}
	}()
	return nil
}

func (w *NotificationWorkerImpl) handle(ctx context.Context, msg broker.Delivery) {
	// 1. 解析；非 JSON 是永久性錯誤，不重試
	var incoming model.IncomingNotification
	if err := json.Unmarshal(msg.Body, &incoming); err != nil {
		w.log.Error("failed to parse incoming message, sending to DLQ", zap.Error(err))
		w.deadLetterAndAck(ctx, msg)
		return
	}

	// 2. dedup key：reservation.id 或 to；沒有就無從歸屬，同樣 DLQ
	dedupKey := incoming.DedupKey()
	if dedupKey == "" {
		w.log.Warn("message missing reservation id, sending to DLQ")
		w.deadLetterAndAck(ctx, msg)
		return
	}

	// 3. 去重 claim：SET NX EX。搶輸代表 broker 重投遞，ack 掉即可，
	//    at-least-once delivery 在這裡收斂成 at-most-once effect
	claimed, err := w.holdStore.ClaimProcessed(ctx, dedupKey, w.dedupTTL)
	if err != nil {
		w.failAfterClaim(ctx, msg, dedupKey, err)
		return
	}
	if !claimed {
		w.log.Info("already processed", zap.String("reservation_id", dedupKey))
		msg.Ack()
		return
	}

	// 4. 實際工作：append 稽核紀錄，成功才 ack
	record := model.AuditRecord{
		Payload:    json.RawMessage(msg.Body),
		ReceivedAt: time.Now().UTC(),
	}
	if err := w.holdStore.AppendAudit(ctx, dedupKey, record); err != nil {
		w.failAfterClaim(ctx, msg, dedupKey, err)
		return
	}

	w.log.Info("notification processed", zap.String("reservation_id", dedupKey))
	msg.Ack()
}

func (w *NotificationWorkerImpl) deadLetterAndAck(ctx context.Context, msg broker.Delivery) {
	if err := w.notifier.PublishToDeadLetter(ctx, msg.Body); err != nil {
		w.log.Error("DLQ send failed", zap.Error(err))
		// 最後手段：不重排直接丟棄，避免無限重投遞
		msg.Nack(false)
		return
	}
	msg.Ack()
}

// failAfterClaim claim 之後的處理錯誤：送 DLQ 終止重投遞循環
func (w *NotificationWorkerImpl) failAfterClaim(ctx context.Context, msg broker.Delivery, dedupKey string, cause error) {
	w.log.Error("processing error, moving message to DLQ",
		zap.String("reservation_id", dedupKey), zap.Error(cause))
	w.deadLetterAndAck(ctx, msg)
}
