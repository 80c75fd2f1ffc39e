package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/HananR99/Ruhutickets/internal/broker"
	"github.com/HananR99/Ruhutickets/internal/repository"
	"github.com/HananR99/Ruhutickets/pkg/logger"

	"go.uber.org/zap"
)

const relayBatchSize = 100

// OutboxRelay 定時掃描 pending 的 outbox rows 補發通知。
// commit 當下的立即發佈失敗時，這裡是持久化意圖的第二條路；
// 重複發佈由 consumer 的 dedup claim 吸收。
type OutboxRelay interface {
	Start(ctx context.Context)
	// Sweep 跑一輪掃描；Start 的 ticker 之外也可手動觸發
	Sweep(ctx context.Context)
}

type OutboxRelayImpl struct {
	outbox   repository.OutboxRepository
	notifier broker.NotificationBroker
	interval time.Duration
	log      *zap.Logger
}

func NewOutboxRelay(outbox repository.OutboxRepository, notifier broker.NotificationBroker, interval time.Duration) OutboxRelay {
	return &OutboxRelayImpl{
		outbox:   outbox,
		notifier: notifier,
		interval: interval,
		log:      logger.WithComponent("outbox-relay"),
	}
}

func (r *OutboxRelayImpl) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.Sweep(ctx)
			}
		}
	}()
}

// Sweep 單次掃描；發佈失敗的 row 維持 pending，下一輪再試
func (r *OutboxRelayImpl) Sweep(ctx context.Context) {
	entries, err := r.outbox.ListPending(ctx, relayBatchSize)
	if err != nil {
		r.log.Error("poll outbox failed", zap.Error(err))
		return
	}

	for _, entry := range entries {
		if err := r.notifier.PublishNotification(ctx, json.RawMessage(entry.Payload)); err != nil {
			r.log.Warn("relay publish failed",
				zap.String("outbox_id", entry.ID.String()), zap.Error(err))
			continue
		}
		if err := r.outbox.MarkSent(ctx, entry.ID); err != nil {
			r.log.Error("mark outbox sent failed",
				zap.String("outbox_id", entry.ID.String()), zap.Error(err))
			continue
		}
		r.log.Info("outbox entry relayed", zap.String("outbox_id", entry.ID.String()))
	}
}
