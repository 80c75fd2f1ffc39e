package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/HananR99/Ruhutickets/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	ConsumerGroupName  = "notification-workers"
	ConsumerNamePrefix = "worker"
	bodyField          = "body"
)

// Role 決定重連的退避策略：publisher 用固定級距、consumer 用指數退避
type Role int

const (
	RolePublisher Role = iota
	RoleConsumer
)

// Config 可注入的隊列與逾時設定；零值使用預設
type Config struct {
	Queue              string        // 主隊列名稱；DLQ 為 <Queue>_dlq
	ConsumerID         string        // 空字串時自動產生 uuid
	ClaimMinIdleTime   time.Duration // PEL 中超過此時間才被 XAUTOCLAIM 領取
	MaxRetryCount      int           // 超過此次數視為毒藥消息並丟棄
	ReadGroupBlockTime time.Duration // XReadGroup 阻塞時間
	ConnectPollTime    time.Duration // 等待 in-flight 連線的輪詢間隔
	ConnectPollLimit   int           // 等待 in-flight 連線的輪詢次數上限
}

func defaultConfig() Config {
	return Config{
		Queue:              "notifications",
		ClaimMinIdleTime:   5 * time.Second,
		MaxRetryCount:      5,
		ReadGroupBlockTime: 2 * time.Second,
		ConnectPollTime:    500 * time.Millisecond,
		ConnectPollLimit:   30,
	}
}

// publisherBackoff 固定級距、上限 30 秒
func publisherBackoff(attempt int) time.Duration {
	wait := time.Duration(attempt) * 2 * time.Second
	if wait > 30*time.Second {
		return 30 * time.Second
	}
	return wait
}

// consumerBackoff 指數退避 min(30s, 1s × 2^min(attempt,7))
func consumerBackoff(attempt int) time.Duration {
	n := attempt
	if n > 7 {
		n = 7
	}
	wait := time.Second << n
	if wait > 30*time.Second {
		return 30 * time.Second
	}
	return wait
}

// RedisStreamBroker 以 Redis Streams 實作 NotificationBroker。
// 主隊列與 DLQ 各是一個 stream；consumer group + XACK 做手動確認，
// XAUTOCLAIM 做 broker 端重投遞。go-redis 沒有連線事件可掛，
// 所以以「PING + 斷言兩個 stream 的 consumer group」作為 connect，
// 操作層級的錯誤視為 close 事件，觸發非同步重連。
type RedisStreamBroker struct {
	client   *redis.Client
	queue    string
	dlq      string
	group    string
	consumer string
	cfg      Config
	backoff  func(attempt int) time.Duration
	log      *zap.Logger

	mu    sync.Mutex
	state State
}

func NewRedisStreamBroker(client *redis.Client, config *Config, role Role) *RedisStreamBroker {
	cfg := defaultConfig()
	if config != nil {
		if config.Queue != "" {
			cfg.Queue = config.Queue
		}
		if config.ConsumerID != "" {
			cfg.ConsumerID = config.ConsumerID
		}
		if config.ClaimMinIdleTime > 0 {
			cfg.ClaimMinIdleTime = config.ClaimMinIdleTime
		}
		if config.MaxRetryCount > 0 {
			cfg.MaxRetryCount = config.MaxRetryCount
		}
		if config.ReadGroupBlockTime > 0 {
			cfg.ReadGroupBlockTime = config.ReadGroupBlockTime
		}
		if config.ConnectPollTime > 0 {
			cfg.ConnectPollTime = config.ConnectPollTime
		}
		if config.ConnectPollLimit > 0 {
			cfg.ConnectPollLimit = config.ConnectPollLimit
		}
	}

	consumerID := cfg.ConsumerID
	if consumerID == "" {
		consumerID = uuid.New().String()
	}

	backoff := publisherBackoff
	if role == RoleConsumer {
		backoff = consumerBackoff
	}

	return &RedisStreamBroker{
		client:   client,
		queue:    cfg.Queue,
		dlq:      cfg.Queue + "_dlq",
		group:    ConsumerGroupName,
		consumer: fmt.Sprintf("%s:%s", ConsumerNamePrefix, consumerID),
		cfg:      cfg,
		backoff:  backoff,
		log:      logger.WithComponent("broker"),
		state:    StateDisconnected,
	}
}

func (b *RedisStreamBroker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *RedisStreamBroker) setState(s State) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateShuttingDown {
		return
	}
	b.state = s
}

func (b *RedisStreamBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateShuttingDown
	return nil
}

// connect 單次連線嘗試：PING 加上主隊列與 DLQ 的 group 斷言
func (b *RedisStreamBroker) connect(ctx context.Context) error {
	if err := b.client.Ping(ctx).Err(); err != nil {
		return err
	}
	if err := b.ensureGroup(ctx, b.queue); err != nil {
		return err
	}
	return b.ensureGroup(ctx, b.dlq)
}

func (b *RedisStreamBroker) ensureGroup(ctx context.Context, stream string) error {
	err := b.client.XGroupCreateMkStream(ctx, stream, b.group, "0").Err()
	if err != nil && err.Error() != "BUSYGROUP Consumer Group name already exists" {
		return err
	}
	return nil
}

// ConnectWithRetry 將狀態推進到 READY。已 READY 時直接返回；
// 已有其他 goroutine 在連線時做有上限的等待（預設 30×500ms），
// 避免併發 caller 疊出第二條連線。不在關閉流程時會無限重試。
func (b *RedisStreamBroker) ConnectWithRetry(ctx context.Context) error {
	b.mu.Lock()
	switch b.state {
	case StateShuttingDown:
		b.mu.Unlock()
		return ErrShuttingDown
	case StateReady:
		b.mu.Unlock()
		return nil
	case StateConnecting:
		b.mu.Unlock()
		return b.waitForReady(ctx)
	}
	b.state = StateConnecting
	b.mu.Unlock()

	attempt := 0
	for {
		attempt++
		b.log.Info("attempting broker connect",
			zap.Int("attempt", attempt),
			zap.String("queue", b.queue))

		err := b.connect(ctx)
		if err == nil {
			b.setState(StateReady)
			if b.State() == StateShuttingDown {
				return ErrShuttingDown
			}
			b.log.Info("broker connected, queues asserted",
				zap.String("queue", b.queue), zap.String("dlq", b.dlq))
			return nil
		}

		if b.State() == StateShuttingDown {
			return ErrShuttingDown
		}

		wait := b.backoff(attempt)
		b.log.Error("broker connect failed",
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", wait),
			zap.Error(err))

		select {
		case <-ctx.Done():
			b.setState(StateDisconnected)
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (b *RedisStreamBroker) waitForReady(ctx context.Context) error {
	for i := 0; i < b.cfg.ConnectPollLimit; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(b.cfg.ConnectPollTime):
		}
		switch b.State() {
		case StateReady:
			return nil
		case StateShuttingDown:
			return ErrShuttingDown
		}
	}
	return ErrConnectInFlight
}

// markDisconnected 操作層級錯誤視為 close 事件：清狀態並排程非同步重連。
// 重連不在呼叫路徑上執行，避免阻塞正在失敗的操作。
func (b *RedisStreamBroker) markDisconnected(err error) {
	b.mu.Lock()
	if b.state == StateShuttingDown || b.state == StateDisconnected {
		b.mu.Unlock()
		return
	}
	b.state = StateDisconnected
	b.mu.Unlock()

	b.log.Warn("broker connection lost, scheduling reconnect", zap.Error(err))
	go func() {
		if err := b.ConnectWithRetry(context.Background()); err != nil {
			b.log.Error("broker reconnect aborted", zap.Error(err))
		}
	}()
}

func (b *RedisStreamBroker) PublishNotification(ctx context.Context, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	return b.publish(ctx, b.queue, data)
}

func (b *RedisStreamBroker) PublishToDeadLetter(ctx context.Context, body []byte) error {
	return b.publish(ctx, b.dlq, body)
}

func (b *RedisStreamBroker) publish(ctx context.Context, stream string, body []byte) error {
	if err := b.ConnectWithRetry(ctx); err != nil {
		return err
	}

	// stream entry 由 redis 持久化；等同 persistent delivery mode
	err := b.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		ID:     "*",
		Values: map[string]interface{}{bodyField: string(body)},
	}).Err()

	if err != nil {
		b.markDisconnected(err)
		return fmt.Errorf("xadd %s: %w", stream, err)
	}
	return nil
}

func (b *RedisStreamBroker) Consume(ctx context.Context) (<-chan Delivery, error) {
	if err := b.ConnectWithRetry(ctx); err != nil {
		return nil, err
	}

	// out 只能在兩個迴圈都退出後才關，否則 runAutoClaim 的送出會撞上 closed channel
	out := make(chan Delivery)
	go func() {
		defer close(out)
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			b.runAutoClaim(ctx, out)
		}()
		go func() {
			defer wg.Done()
			b.runReadLoop(ctx, out)
		}()
		wg.Wait()
	}()
	return out, nil
}

// runReadLoop 主讀取循環；只讀 ">"（新訊息），PEL 的重試交給 XAUTOCLAIM
func (b *RedisStreamBroker) runReadLoop(ctx context.Context, out chan<- Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			if b.State() == StateShuttingDown {
				return
			}
			b.readAndDeliver(ctx, out)
		}
	}
}

func (b *RedisStreamBroker) readAndDeliver(ctx context.Context, out chan<- Delivery) {
	streams, err := b.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    b.group,
		Consumer: b.consumer,
		Streams:  []string{b.queue, ">"},
		Count:    10,
		Block:    b.cfg.ReadGroupBlockTime,
	}).Result()

	if err == redis.Nil {
		return
	}
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		b.markDisconnected(err)
		// 等重連循環把狀態拉回 READY 再繼續讀
		if err := b.ConnectWithRetry(ctx); err != nil {
			return
		}
		return
	}

	for _, stream := range streams {
		if stream.Stream != b.queue {
			continue
		}
		for _, msg := range stream.Messages {
			d := b.newDelivery(ctx, msg)
			if d != nil {
				select {
				case out <- *d:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

// runAutoClaim 定時領取超時未確認的訊息，實現 broker 端重投遞
func (b *RedisStreamBroker) runAutoClaim(ctx context.Context, out chan<- Delivery) {
	ticker := time.NewTicker(b.cfg.ClaimMinIdleTime)
	defer ticker.Stop()
	startID := "0-0"

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if b.State() == StateShuttingDown {
				return
			}
			claimed, nextID, err := b.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
				Stream:   b.queue,
				Group:    b.group,
				Consumer: b.consumer,
				MinIdle:  b.cfg.ClaimMinIdleTime,
				Count:    10,
				Start:    startID,
			}).Result()

			if err != nil && err != redis.Nil {
				if ctx.Err() != nil {
					return
				}
				b.log.Error("XAutoClaim failed", zap.Error(err))
				continue
			}
			if nextID != "" && nextID != "0-0" {
				startID = nextID
			} else {
				startID = "0-0"
			}

			for _, msg := range claimed {
				if !b.shouldProcessMessage(ctx, msg.ID) {
					continue
				}
				d := b.newDelivery(ctx, msg)
				if d != nil {
					select {
					case out <- *d:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}
}

// shouldProcessMessage 毒藥消息判斷：重投遞超過上限就丟棄
func (b *RedisStreamBroker) shouldProcessMessage(ctx context.Context, messageID string) bool {
	n, err := b.getMessageRetryCount(ctx, messageID)
	if err != nil {
		b.log.Warn("getMessageRetryCount failed", zap.String("message_id", messageID), zap.Error(err))
		return true
	}
	if n >= b.cfg.MaxRetryCount {
		b.log.Warn("discard poison message",
			zap.String("message_id", messageID),
			zap.Int("retries", n),
			zap.Int("max_retries", b.cfg.MaxRetryCount))
		_ = b.client.XAck(ctx, b.queue, b.group, messageID).Err()
		return false
	}
	return true
}

func (b *RedisStreamBroker) getMessageRetryCount(ctx context.Context, messageID string) (int, error) {
	pending, err := b.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: b.queue,
		Group:  b.group,
		Start:  messageID,
		End:    messageID,
		Count:  1,
	}).Result()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}
	return int(pending[0].RetryCount), nil
}

// newDelivery 從 stream 訊息組裝 Delivery（含 Ack/Nack）
func (b *RedisStreamBroker) newDelivery(ctx context.Context, msg redis.XMessage) *Delivery {
	body, ok := msg.Values[bodyField].(string)
	if !ok {
		// 不是我們發的格式；直接確認掉避免卡在 PEL
		b.log.Warn("invalid message: missing body field", zap.String("message_id", msg.ID))
		_ = b.client.XAck(ctx, b.queue, b.group, msg.ID).Err()
		return nil
	}
	msgID := msg.ID
	return &Delivery{
		Body: []byte(body),
		Ack: func() {
			if err := b.client.XAck(ctx, b.queue, b.group, msgID).Err(); err != nil {
				b.log.Error("XAck failed", zap.String("message_id", msgID), zap.Error(err))
			}
		},
		Nack: func(requeue bool) {
			if requeue {
				// 留在 PEL，等 ClaimMinIdleTime 後由 XAUTOCLAIM 領回重試
				b.log.Info("message nack(requeue), will retry",
					zap.String("message_id", msgID),
					zap.Duration("claim_min_idle", b.cfg.ClaimMinIdleTime))
				return
			}
			if err := b.client.XAck(ctx, b.queue, b.group, msgID).Err(); err != nil {
				b.log.Error("XAck discard failed", zap.String("message_id", msgID), zap.Error(err))
			}
		},
	}
}

// DeadLetters 測試與除錯用：讀出 DLQ 內全部訊息的 body
func (b *RedisStreamBroker) DeadLetters(ctx context.Context) ([][]byte, error) {
	msgs, err := b.client.XRange(ctx, b.dlq, "-", "+").Result()
	if err != nil {
		return nil, err
	}
	bodies := make([][]byte, 0, len(msgs))
	for _, msg := range msgs {
		if body, ok := msg.Values[bodyField].(string); ok {
			bodies = append(bodies, []byte(body))
		}
	}
	return bodies, nil
}
