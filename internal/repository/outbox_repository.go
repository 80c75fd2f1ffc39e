package repository

import (
	"context"
	"fmt"

	"github.com/HananR99/Ruhutickets/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type OutboxRepository interface {
	// Create 必須跟 commit 在同一個交易內，確保計數更新與發佈意圖同生共死
	Create(ctx context.Context, tx pgx.Tx, entry *model.OutboxEntry) error
	// ListPending relay 掃描用；依建立時間舊的優先
	ListPending(ctx context.Context, limit int) ([]*model.OutboxEntry, error)
	MarkSent(ctx context.Context, id uuid.UUID) error
}

type OutboxRepositoryImpl struct {
	pool *pgxpool.Pool
}

func NewOutboxRepository(pool *pgxpool.Pool) OutboxRepository {
	return &OutboxRepositoryImpl{
		pool: pool,
	}
}

func (r *OutboxRepositoryImpl) Create(ctx context.Context, tx pgx.Tx, entry *model.OutboxEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.Status == "" {
		entry.Status = model.OutboxStatusPending
	}

	query := `
		INSERT INTO outbox (id, aggregate, payload_json, status, created_at)
		VALUES ($1, $2, $3::jsonb, $4, now())
		RETURNING created_at
	`

	err := tx.QueryRow(ctx, query,
		entry.ID, entry.Aggregate, []byte(entry.Payload), entry.Status,
	).Scan(&entry.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create outbox entry: %w", err)
	}

	return nil
}

func (r *OutboxRepositoryImpl) ListPending(ctx context.Context, limit int) ([]*model.OutboxEntry, error) {
	query := `
		SELECT id, aggregate, payload_json, status, created_at
		FROM outbox
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, model.OutboxStatusPending, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]*model.OutboxEntry, 0)

	for rows.Next() {
		var entry model.OutboxEntry
		err := rows.Scan(
			&entry.ID,
			&entry.Aggregate,
			&entry.Payload,
			&entry.Status,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}

func (r *OutboxRepositoryImpl) MarkSent(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE outbox
		SET status = $1
		WHERE id = $2
	`

	_, err := r.pool.Exec(ctx, query, model.OutboxStatusSent, id)
	return err
}
