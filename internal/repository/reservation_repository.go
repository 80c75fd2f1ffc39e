package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/HananR99/Ruhutickets/internal/model"
	apperrors "github.com/HananR99/Ruhutickets/pkg/app_errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ReservationWithInventory commit 交易內的 joined row：reservation 加上票種櫃檯數字
type ReservationWithInventory struct {
	model.Reservation
	TotalQty int
	SoldQty  int
}

type ReservationRepository interface {
	Create(ctx context.Context, reservation *model.Reservation) (*model.Reservation, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.Reservation, error)
	// GetSummary join events / ticket_types 的摘要，commit 成功後回給 caller
	GetSummary(ctx context.Context, id uuid.UUID) (*model.ReservationSummary, error)

	// Transaction methods
	// FindWithInventoryForUpdate 鎖住 reservation 與 ticket_types row；commit 的序列化點
	FindWithInventoryForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*ReservationWithInventory, error)
	MarkCommitted(ctx context.Context, tx pgx.Tx, id uuid.UUID, committedAt time.Time) error
	// MarkExpiredIfHeld 只在仍是 HELD 時標記 EXPIRED，避免跟成功的 commit 競爭
	MarkExpiredIfHeld(ctx context.Context, tx pgx.Tx, id uuid.UUID) error
}

type ReservationRepositoryImpl struct {
	pool *pgxpool.Pool
}

func NewReservationRepository(pool *pgxpool.Pool) ReservationRepository {
	return &ReservationRepositoryImpl{
		pool: pool,
	}
}

func (r *ReservationRepositoryImpl) Create(ctx context.Context, reservation *model.Reservation) (*model.Reservation, error) {
	query := `
		INSERT INTO reservations (id, event_id, ticket_type_id, user_id, qty, status, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, event_id, ticket_type_id, user_id, qty, status, expires_at, committed_at, created_at
	`

	err := r.pool.QueryRow(ctx, query,
		reservation.ID, reservation.EventID, reservation.TicketTypeID,
		reservation.UserID, reservation.Qty, reservation.Status, reservation.ExpiresAt,
	).Scan(
		&reservation.ID,
		&reservation.EventID,
		&reservation.TicketTypeID,
		&reservation.UserID,
		&reservation.Qty,
		&reservation.Status,
		&reservation.ExpiresAt,
		&reservation.CommittedAt,
		&reservation.CreatedAt,
	)

	if err != nil {
		return nil, fmt.Errorf("failed to create reservation: %w", err)
	}

	return reservation, nil
}

func (r *ReservationRepositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*model.Reservation, error) {
	query := `
		SELECT id, event_id, ticket_type_id, user_id, qty, status, expires_at, committed_at, created_at
		FROM reservations
		WHERE id = $1
	`

	var reservation model.Reservation
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&reservation.ID,
		&reservation.EventID,
		&reservation.TicketTypeID,
		&reservation.UserID,
		&reservation.Qty,
		&reservation.Status,
		&reservation.ExpiresAt,
		&reservation.CommittedAt,
		&reservation.CreatedAt,
	)

	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrReservationNotFound
		}
		return nil, err
	}

	return &reservation, nil
}

func (r *ReservationRepositoryImpl) FindWithInventoryForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*ReservationWithInventory, error) {
	query := `
		SELECT r.id, r.event_id, r.ticket_type_id, r.user_id, r.qty, r.status,
		       r.expires_at, r.committed_at, r.created_at,
		       tt.total_qty, tt.sold_qty
		FROM reservations r
		JOIN ticket_types tt ON tt.id = r.ticket_type_id
		WHERE r.id = $1
		FOR UPDATE
	`

	var row ReservationWithInventory
	err := tx.QueryRow(ctx, query, id).Scan(
		&row.ID,
		&row.EventID,
		&row.TicketTypeID,
		&row.UserID,
		&row.Qty,
		&row.Status,
		&row.ExpiresAt,
		&row.CommittedAt,
		&row.CreatedAt,
		&row.TotalQty,
		&row.SoldQty,
	)

	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrReservationNotFound
		}
		return nil, err
	}

	return &row, nil
}

func (r *ReservationRepositoryImpl) MarkCommitted(ctx context.Context, tx pgx.Tx, id uuid.UUID, committedAt time.Time) error {
	query := `
		UPDATE reservations
		SET status = $1, committed_at = $2
		WHERE id = $3
	`

	result, err := tx.Exec(ctx, query, model.ReservationStatusCommitted, committedAt, id)
	if err != nil {
		return fmt.Errorf("failed to mark reservation committed: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrReservationNotFound
	}

	return nil
}

func (r *ReservationRepositoryImpl) MarkExpiredIfHeld(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	query := `
		UPDATE reservations
		SET status = $1
		WHERE id = $2 AND status = $3
	`

	// RowsAffected 為 0 代表已被其他交易改到終態，這裡不視為錯誤
	_, err := tx.Exec(ctx, query, model.ReservationStatusExpired, id, model.ReservationStatusHeld)
	return err
}

func (r *ReservationRepositoryImpl) GetSummary(ctx context.Context, id uuid.UUID) (*model.ReservationSummary, error) {
	query := `
		SELECT r.id, r.qty, r.status, r.committed_at, r.ticket_type_id,
		       e.name AS event_name, e.start_time,
		       COALESCE(tt.name, '') AS ticket_type
		FROM reservations r
		JOIN events e ON e.id = r.event_id
		LEFT JOIN ticket_types tt ON tt.id = r.ticket_type_id
		WHERE r.id = $1
	`

	var summary model.ReservationSummary
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&summary.ID,
		&summary.Qty,
		&summary.Status,
		&summary.CommittedAt,
		&summary.TicketTypeID,
		&summary.EventName,
		&summary.EventStartTime,
		&summary.TicketType,
	)

	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrReservationNotFound
		}
		return nil, err
	}

	return &summary, nil
}
