package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/HananR99/Ruhutickets/config"
	"github.com/HananR99/Ruhutickets/internal/broker"
	"github.com/HananR99/Ruhutickets/internal/cache"
	"github.com/HananR99/Ruhutickets/internal/model"
	"github.com/HananR99/Ruhutickets/internal/repository"
	apperrors "github.com/HananR99/Ruhutickets/pkg/app_errors"
	"github.com/HananR99/Ruhutickets/pkg/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type ReservationService interface {
	// Reserve 建立 time-boxed hold；可用量檢查只是樂觀預檢，
	// 真正的稀缺性把關在 Commit 的 row lock 之下
	Reserve(ctx context.Context, req model.ReserveRequest) (*model.ReserveResponse, error)
	// Commit 把 hold 轉成已售庫存；單一交易內完成計數更新與 outbox 寫入
	Commit(ctx context.Context, reservationID uuid.UUID) (*model.CommitResult, error)
	GetReservation(ctx context.Context, id uuid.UUID) (*model.Reservation, error)
}

type ReservationServiceImpl struct {
	pool           *pgxpool.Pool
	reservations   repository.ReservationRepository
	ticketTypes    repository.TicketTypeRepository
	outbox         repository.OutboxRepository
	holdStore      cache.HoldStore
	notifier       broker.NotificationBroker
	holdCfg        config.HoldConfig
	publishTimeout time.Duration
	log            *zap.Logger
}

func NewReservationService(
	pool *pgxpool.Pool,
	reservations repository.ReservationRepository,
	ticketTypes repository.TicketTypeRepository,
	outbox repository.OutboxRepository,
	holdStore cache.HoldStore,
	notifier broker.NotificationBroker,
	holdCfg config.HoldConfig,
	publishTimeout time.Duration,
) ReservationService {
	return &ReservationServiceImpl{
		pool:           pool,
		reservations:   reservations,
		ticketTypes:    ticketTypes,
		outbox:         outbox,
		holdStore:      holdStore,
		notifier:       notifier,
		holdCfg:        holdCfg,
		publishTimeout: publishTimeout,
		log:            logger.WithComponent("reservation"),
	}
}

func (s *ReservationServiceImpl) Reserve(ctx context.Context, req model.ReserveRequest) (*model.ReserveResponse, error) {
	if req.Qty <= 0 {
		return nil, apperrors.ErrInvalidInput
	}

	// 1. 票種鎖：建議性排他，降低 read-then-decide 的競爭；拿不到就請 caller 重試
	acquired, err := s.holdStore.AcquireLock(ctx, req.TicketTypeID)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, apperrors.ErrLockBusy
	}
	// 用 context.Background() 釋放，確保請求被取消時鎖照樣放掉
	defer func() {
		if err := s.holdStore.ReleaseLock(context.Background(), req.TicketTypeID); err != nil {
			s.log.Warn("release ticket type lock failed",
				zap.String("ticket_type_id", req.TicketTypeID.String()), zap.Error(err))
		}
	}()

	// 2. 讀取櫃檯數字。注意：不扣除其他未 commit 的 hold，
	//    hold 超賣是允許的，commit 才是權威檢查
	ticketType, err := s.ticketTypes.FindByID(ctx, req.TicketTypeID)
	if err != nil {
		return nil, err
	}
	if ticketType.Available() < req.Qty {
		return nil, apperrors.ErrInsufficientInventory
	}

	reservationID := uuid.New()
	now := time.Now().UTC()

	// 3. hold key 先進 redis；它的 TTL 是 hold 存活與否的唯一真相
	err = s.holdStore.PutHold(ctx, reservationID, model.HoldRecord{
		TicketTypeID: req.TicketTypeID,
		Qty:          req.Qty,
	}, s.holdCfg.HoldTTL)
	if err != nil {
		return nil, err
	}

	// 4. HELD row 落庫；expires_at 僅供參考
	_, err = s.reservations.Create(ctx, &model.Reservation{
		ID:           reservationID,
		EventID:      ticketType.EventID,
		TicketTypeID: req.TicketTypeID,
		UserID:       "buyer",
		Qty:          req.Qty,
		Status:       model.ReservationStatusHeld,
		ExpiresAt:    now.Add(s.holdCfg.HoldTTL),
	})
	if err != nil {
		// row 沒寫成就順手清掉 hold key；失敗也無妨，TTL 會收尾
		_ = s.holdStore.DeleteHold(context.Background(), reservationID)
		return nil, err
	}

	return &model.ReserveResponse{
		ReservationID:    reservationID,
		ExpiresInSeconds: int(s.holdCfg.HoldTTL.Seconds()),
	}, nil
}

func (s *ReservationServiceImpl) Commit(ctx context.Context, reservationID uuid.UUID) (*model.CommitResult, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	// 1. joined FOR UPDATE：同票種的 commit 在這裡被完全序列化
	row, err := s.reservations.FindWithInventoryForUpdate(ctx, tx, reservationID)
	if err != nil {
		if errors.Is(err, apperrors.ErrReservationNotFound) {
			return &model.CommitResult{OK: false, Reason: model.CommitReasonNotFound}, nil
		}
		return nil, err
	}

	// 2. commit 不可重放：第二次 commit 一律拒絕
	if row.Status != model.ReservationStatusHeld {
		return &model.CommitResult{OK: false, Reason: model.CommitReasonBadStatus}, nil
	}

	// 3. hold key 是否還活著才是權威的過期判斷
	alive, err := s.holdStore.HoldExists(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if !alive {
		if err := s.reservations.MarkExpiredIfHeld(ctx, tx, reservationID); err != nil {
			return nil, err
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, err
		}
		return &model.CommitResult{OK: false, Reason: model.CommitReasonExpired}, nil
	}

	// 4. row lock 下重算可用量；這才是真正的稀缺性閘門。
	//    不足時 rollback，reservation 維持 HELD，等 caller 重試或 lazy expiry
	if row.TotalQty-row.SoldQty < row.Qty {
		return &model.CommitResult{OK: false, Reason: model.CommitReasonInsufficient}, nil
	}

	// 5. 計數更新、狀態轉移、outbox 寫入：同一交易
	now := time.Now().UTC()
	if err := s.ticketTypes.IncrementSold(ctx, tx, row.TicketTypeID, row.Qty); err != nil {
		return nil, err
	}
	if err := s.reservations.MarkCommitted(ctx, tx, reservationID, now); err != nil {
		return nil, err
	}

	payload := model.CommittedNotification{
		Type:          model.NotificationTypeCommitted,
		To:            reservationID.String(),
		ReservationID: reservationID,
		EventID:       row.EventID,
		TicketTypeID:  row.TicketTypeID,
		Qty:           row.Qty,
		CommittedAt:   now,
		ProducedAt:    now,
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	entry := &model.OutboxEntry{
		Aggregate: "reservation",
		Payload:   payloadJSON,
		Status:    model.OutboxStatusPending,
	}
	if err := s.outbox.Create(ctx, tx, entry); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	// 6. 交易外的 best-effort 收尾：hold key 清理與立即發佈。
	//    發佈失敗只記 log，outbox row 已保住發佈意圖，relay 會補送
	if err := s.holdStore.DeleteHold(context.Background(), reservationID); err != nil {
		s.log.Warn("delete hold key failed",
			zap.String("reservation_id", reservationID.String()), zap.Error(err))
	}

	summary, err := s.reservations.GetSummary(ctx, reservationID)
	if err != nil {
		s.log.Warn("load reservation summary failed",
			zap.String("reservation_id", reservationID.String()), zap.Error(err))
	} else {
		payload.Reservation = summary
	}

	s.publishCommitted(entry.ID, payload)

	return &model.CommitResult{OK: true, Reservation: summary}, nil
}

// publishCommitted 立即發佈；成功就把 outbox row 標成 sent，失敗留給 relay
func (s *ReservationServiceImpl) publishCommitted(outboxID uuid.UUID, payload model.CommittedNotification) {
	pubCtx, cancel := context.WithTimeout(context.Background(), s.publishTimeout)
	defer cancel()

	if err := s.notifier.PublishNotification(pubCtx, payload); err != nil {
		s.log.Warn("immediate publish failed, outbox relay will retry",
			zap.String("reservation_id", payload.ReservationID.String()), zap.Error(err))
		return
	}

	s.log.Info("published reservation.committed",
		zap.String("reservation_id", payload.ReservationID.String()))

	if err := s.outbox.MarkSent(pubCtx, outboxID); err != nil {
		s.log.Warn("mark outbox sent failed", zap.String("outbox_id", outboxID.String()), zap.Error(err))
	}
}

func (s *ReservationServiceImpl) GetReservation(ctx context.Context, id uuid.UUID) (*model.Reservation, error) {
	return s.reservations.FindByID(ctx, id)
}
