package broker

import (
	"context"
	"errors"
)

// State broker 連線狀態機：
// DISCONNECTED → CONNECTING → READY → (error|closed) → DISCONNECTED → CONNECTING …
// SHUTTING_DOWN 為終態，進入後不再重連。
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateReady
	StateShuttingDown
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateReady:
		return "READY"
	case StateShuttingDown:
		return "SHUTTING_DOWN"
	}
	return "UNKNOWN"
}

var (
	ErrShuttingDown = errors.New("broker is shutting down")
	// ErrConnectInFlight 等待其他 goroutine 的連線嘗試超過上限
	ErrConnectInFlight = errors.New("broker connect attempt still in flight")
)

// Delivery 一筆待處理的通知訊息；consumer 必須呼叫 Ack 或 Nack
type Delivery struct {
	Body []byte
	Ack  func()
	Nack func(requeue bool)
}

// NotificationBroker 通知隊列的抽象。publish 一律 best-effort：
// 失敗回傳 error 由 caller log 後吞掉，持久性靠 outbox row 保證。
type NotificationBroker interface {
	// PublishNotification JSON 編碼 payload 後送進主隊列（persistent）
	PublishNotification(ctx context.Context, payload interface{}) error
	// PublishToDeadLetter 將原始 body 送進死信隊列
	PublishToDeadLetter(ctx context.Context, body []byte) error
	// Consume 訂閱主隊列；channel 在 ctx 結束後關閉
	Consume(ctx context.Context) (<-chan Delivery, error)
	// State 目前連線狀態
	State() State
	// Close 進入 SHUTTING_DOWN，停止所有重連
	Close() error
}
