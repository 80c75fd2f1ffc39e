package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/HananR99/Ruhutickets/internal/model"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// HoldStore 管理 redis 中的短期狀態：
//   - lock:<ticket_type_id>       reserve 用的建議性鎖 (SET NX EX)
//   - reservation:<id>            hold 本體；key 消失即代表 hold 過期
//   - notifications:processed:<id> consumer 的去重 claim
//   - notifications:<id>          稽核紀錄 list
type HoldStore interface {
	// AcquireLock 嘗試取得票種鎖；已被持有時回傳 false（caller 重試即可）
	AcquireLock(ctx context.Context, ticketTypeID uuid.UUID) (bool, error)
	// ReleaseLock 釋放票種鎖；冪等，key 不存在也不算錯
	ReleaseLock(ctx context.Context, ticketTypeID uuid.UUID) error

	// PutHold 寫入 hold record 並掛上 TTL
	PutHold(ctx context.Context, reservationID uuid.UUID, record model.HoldRecord, ttl time.Duration) error
	// HoldExists commit 時的權威過期判斷：key 還在才算 hold 存活
	HoldExists(ctx context.Context, reservationID uuid.UUID) (bool, error)
	// DeleteHold commit 成功後的 best-effort 清理
	DeleteHold(ctx context.Context, reservationID uuid.UUID) error

	// ClaimProcessed 嘗試取得去重 claim；回傳 false 代表同一通知已處理過
	ClaimProcessed(ctx context.Context, dedupKey string, ttl time.Duration) (bool, error)
	// AppendAudit 新增一筆稽核紀錄
	AppendAudit(ctx context.Context, dedupKey string, record model.AuditRecord) error
	// ListAudit 讀取某 reservation 的全部稽核紀錄（新的在前）
	ListAudit(ctx context.Context, dedupKey string) ([]model.AuditRecord, error)
}

type RedisHoldStore struct {
	client  *redis.Client
	lockTTL time.Duration
}

// NewRedisHoldStore lockTTL 為票種鎖的租期；持有者 crash 也只會卡到租期結束
func NewRedisHoldStore(client *redis.Client, lockTTL time.Duration) HoldStore {
	return &RedisHoldStore{client: client, lockTTL: lockTTL}
}

func (s *RedisHoldStore) lockKey(ticketTypeID uuid.UUID) string {
	return fmt.Sprintf("lock:%s", ticketTypeID)
}

func (s *RedisHoldStore) holdKey(reservationID uuid.UUID) string {
	return fmt.Sprintf("reservation:%s", reservationID)
}

func (s *RedisHoldStore) processedKey(dedupKey string) string {
	return fmt.Sprintf("notifications:processed:%s", dedupKey)
}

func (s *RedisHoldStore) auditKey(dedupKey string) string {
	return fmt.Sprintf("notifications:%s", dedupKey)
}

func (s *RedisHoldStore) AcquireLock(ctx context.Context, ticketTypeID uuid.UUID) (bool, error) {
	return s.client.SetNX(ctx, s.lockKey(ticketTypeID), "1", s.lockTTL).Result()
}

func (s *RedisHoldStore) ReleaseLock(ctx context.Context, ticketTypeID uuid.UUID) error {
	return s.client.Del(ctx, s.lockKey(ticketTypeID)).Err()
}

func (s *RedisHoldStore) PutHold(ctx context.Context, reservationID uuid.UUID, record model.HoldRecord, ttl time.Duration) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal hold record: %w", err)
	}
	return s.client.Set(ctx, s.holdKey(reservationID), data, ttl).Err()
}

func (s *RedisHoldStore) HoldExists(ctx context.Context, reservationID uuid.UUID) (bool, error) {
	n, err := s.client.Exists(ctx, s.holdKey(reservationID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *RedisHoldStore) DeleteHold(ctx context.Context, reservationID uuid.UUID) error {
	return s.client.Del(ctx, s.holdKey(reservationID)).Err()
}

func (s *RedisHoldStore) ClaimProcessed(ctx context.Context, dedupKey string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, s.processedKey(dedupKey), "1", ttl).Result()
}

func (s *RedisHoldStore) AppendAudit(ctx context.Context, dedupKey string, record model.AuditRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal audit record: %w", err)
	}
	return s.client.LPush(ctx, s.auditKey(dedupKey), data).Err()
}

func (s *RedisHoldStore) ListAudit(ctx context.Context, dedupKey string) ([]model.AuditRecord, error) {
	raw, err := s.client.LRange(ctx, s.auditKey(dedupKey), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	records := make([]model.AuditRecord, 0, len(raw))
	for _, item := range raw {
		var record model.AuditRecord
		if err := json.Unmarshal([]byte(item), &record); err != nil {
			return nil, fmt.Errorf("unmarshal audit record: %w", err)
		}
		records = append(records, record)
	}
	return records, nil
}
