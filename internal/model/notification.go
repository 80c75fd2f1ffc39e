package model

import (
	"encoding/json"
	"time"
)

// IncomingNotification consumer 解析進來的通知；只取 dedup 需要的欄位，其餘保留原文
type IncomingNotification struct {
	Reservation *struct {
		ID string `json:"id"`
	} `json:"reservation"`
	ReservationID string `json:"reservation_id"`
	To            string `json:"to"`
}

// DedupKey 取出去重用的 key：優先 reservation.id，其次 reservation_id，最後 to
func (n *IncomingNotification) DedupKey() string {
	if n.Reservation != nil && n.Reservation.ID != "" {
		return n.Reservation.ID
	}
	if n.ReservationID != "" {
		return n.ReservationID
	}
	return n.To
}

// AuditRecord 每筆處理成功的通知都 append 一筆稽核紀錄
type AuditRecord struct {
	Payload    json.RawMessage `json:"payload"`
	ReceivedAt time.Time       `json:"received_at"`
}
