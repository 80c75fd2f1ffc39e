package model

import (
	"time"

	"github.com/google/uuid"
)

// ReservationStatus 預約狀態類型
type ReservationStatus string

const (
	ReservationStatusHeld      ReservationStatus = "HELD"
	ReservationStatusCommitted ReservationStatus = "COMMITTED"
	ReservationStatusExpired   ReservationStatus = "EXPIRED"
)

// IsValid 驗證狀態是否有效
func (s ReservationStatus) IsValid() bool {
	switch s {
	case ReservationStatusHeld, ReservationStatusCommitted, ReservationStatusExpired:
		return true
	}
	return false
}

// CanTransitionTo 檢查是否可以轉換到目標狀態；COMMITTED / EXPIRED 都是終態
func (s ReservationStatus) CanTransitionTo(target ReservationStatus) bool {
	transitions := map[ReservationStatus][]ReservationStatus{
		ReservationStatusHeld:      {ReservationStatusCommitted, ReservationStatusExpired},
		ReservationStatusCommitted: {},
		ReservationStatusExpired:   {},
	}

	allowed, ok := transitions[s]
	if !ok {
		return false
	}

	for _, status := range allowed {
		if status == target {
			return true
		}
	}
	return false
}

// Reservation 預約模型。ExpiresAt 只是參考值，hold key 消失才是真正的過期訊號。
type Reservation struct {
	ID           uuid.UUID         `json:"id" db:"id"`
	EventID      uuid.UUID         `json:"event_id" db:"event_id"`
	TicketTypeID uuid.UUID         `json:"ticket_type_id" db:"ticket_type_id"`
	UserID       string            `json:"user_id" db:"user_id"`
	Qty          int               `json:"qty" db:"qty"`
	Status       ReservationStatus `json:"status" db:"status"`
	ExpiresAt    time.Time         `json:"expires_at" db:"expires_at"`
	CommittedAt  *time.Time        `json:"committed_at,omitempty" db:"committed_at"`
	CreatedAt    time.Time         `json:"created_at" db:"created_at"`
}

// HoldRecord redis 中的 hold 內容 (key: reservation:<id>)
type HoldRecord struct {
	TicketTypeID uuid.UUID `json:"ticket_type_id"`
	Qty          int       `json:"qty"`
}

// ReserveRequest 下 hold 請求
type ReserveRequest struct {
	TicketTypeID uuid.UUID `json:"ticket_type_id" binding:"required"`
	Qty          int       `json:"qty" binding:"required,min=1"`
}

// ReserveResponse 下 hold 回應
type ReserveResponse struct {
	ReservationID    uuid.UUID `json:"reservation_id"`
	ExpiresInSeconds int       `json:"expires_in_seconds"`
}

// CommitResult commit 的結構化結果；Reason 只在 OK=false 時有值
type CommitResult struct {
	OK          bool                `json:"ok"`
	Reason      string              `json:"reason,omitempty"`
	Reservation *ReservationSummary `json:"reservation,omitempty"`
}

// commit 失敗的 reason codes
const (
	CommitReasonNotFound     = "not_found"
	CommitReasonBadStatus    = "bad_status"
	CommitReasonExpired      = "expired"
	CommitReasonInsufficient = "insufficient"
	CommitReasonError        = "error"
)

// ReservationSummary join events / ticket_types 後的摘要，回給 caller 並放進通知 payload
type ReservationSummary struct {
	ID             uuid.UUID         `json:"id"`
	EventName      string            `json:"event_name"`
	EventStartTime *time.Time        `json:"event_start_time,omitempty"`
	TicketType     string            `json:"ticket_type"`
	TicketTypeID   uuid.UUID         `json:"ticket_type_id"`
	Qty            int               `json:"qty"`
	Status         ReservationStatus `json:"status"`
	CommittedAt    *time.Time        `json:"committed_at,omitempty"`
}
