package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// OutboxStatus outbox row 狀態
type OutboxStatus string

const (
	OutboxStatusPending OutboxStatus = "pending"
	OutboxStatusSent    OutboxStatus = "sent"
)

// OutboxEntry 與 commit 同一交易寫入的發佈意圖；broker 掛掉也不會遺失
type OutboxEntry struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	Aggregate string          `json:"aggregate" db:"aggregate"`
	Payload   json.RawMessage `json:"payload" db:"payload_json"`
	Status    OutboxStatus    `json:"status" db:"status"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

// NotificationTypeCommitted reservation.committed 通知的 type 欄位
const NotificationTypeCommitted = "reservation.committed"

// CommittedNotification commit 成功後發佈的通知 payload
type CommittedNotification struct {
	Type          string              `json:"type"`
	To            string              `json:"to"`
	ReservationID uuid.UUID           `json:"reservation_id"`
	EventID       uuid.UUID           `json:"event_id"`
	TicketTypeID  uuid.UUID           `json:"ticket_type_id"`
	Qty           int                 `json:"qty"`
	CommittedAt   time.Time           `json:"committed_at"`
	Reservation   *ReservationSummary `json:"reservation,omitempty"`
	ProducedAt    time.Time           `json:"produced_at"`
}
