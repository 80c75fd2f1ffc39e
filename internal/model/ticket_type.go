package model

import (
	"time"

	"github.com/google/uuid"
)

// TicketType 票種模型；SoldQty 只會在 commit 交易內遞增
type TicketType struct {
	ID         uuid.UUID `json:"id" db:"id"`
	EventID    uuid.UUID `json:"event_id" db:"event_id"`
	Name       string    `json:"name" db:"name"`
	PriceCents int       `json:"price_cents" db:"price_cents"`
	Currency   string    `json:"currency" db:"currency"`
	TotalQty   int       `json:"total_qty" db:"total_qty"`
	SoldQty    int       `json:"sold_qty" db:"sold_qty"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// Available 目前可售數量；不扣除其他尚未 commit 的 hold
func (t *TicketType) Available() int {
	return t.TotalQty - t.SoldQty
}

// CreateTicketTypeRequest 建立票種請求
type CreateTicketTypeRequest struct {
	EventID    uuid.UUID `json:"event_id" binding:"required"`
	Name       string    `json:"name" binding:"required"`
	PriceCents int       `json:"price_cents" binding:"min=0"`
	Currency   string    `json:"currency" binding:"required,len=3"`
	TotalQty   int       `json:"total_qty" binding:"required,min=1"`
}
