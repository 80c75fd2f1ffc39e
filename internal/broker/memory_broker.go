package broker

import (
	"context"
	"encoding/json"
	"sync"
)

// MemoryBroker 以 Go channel 模擬通知隊列；worker 單元測試用
type MemoryBroker struct {
	ch chan []byte

	mu    sync.Mutex
	dead  [][]byte
	acks  int
	state State
}

func NewMemoryBroker(bufferSize int) *MemoryBroker {
	return &MemoryBroker{
		ch:    make(chan []byte, bufferSize),
		state: StateReady,
	}
}

func (b *MemoryBroker) PublishNotification(ctx context.Context, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return b.PublishRaw(ctx, data)
}

// PublishRaw 不經 JSON 編碼直接入隊；模擬外部發來的任意 body
func (b *MemoryBroker) PublishRaw(ctx context.Context, body []byte) error {
	select {
	case b.ch <- body:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *MemoryBroker) PublishToDeadLetter(ctx context.Context, body []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dead = append(b.dead, body)
	return nil
}

func (b *MemoryBroker) Consume(ctx context.Context) (<-chan Delivery, error) {
	out := make(chan Delivery)

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case body, ok := <-b.ch:
				if !ok {
					return
				}

				out <- Delivery{
					Body: body,
					Ack:  func() { b.countAck() },
					Nack: func(requeue bool) {
						if requeue {
							b.ch <- body // 簡單模擬重回隊列
						}
					},
				}
			}
		}
	}()

	return out, nil
}

func (b *MemoryBroker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateShuttingDown
	return nil
}

// DeadLetters 測試用：目前累積的 DLQ body
func (b *MemoryBroker) DeadLetters() [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([][]byte, len(b.dead))
	copy(out, b.dead)
	return out
}

// Acks 測試用：目前收到的 ack 數
func (b *MemoryBroker) Acks() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.acks
}

func (b *MemoryBroker) countAck() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.acks++
}
