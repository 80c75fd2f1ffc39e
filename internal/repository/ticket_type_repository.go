package repository

import (
	"context"

	"github.com/HananR99/Ruhutickets/internal/model"
	apperrors "github.com/HananR99/Ruhutickets/pkg/app_errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type TicketTypeRepository interface {
	Create(ctx context.Context, ticketType *model.TicketType) (*model.TicketType, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.TicketType, error)
	ListByEvent(ctx context.Context, eventID uuid.UUID) ([]*model.TicketType, error)

	// Transaction methods
	IncrementSold(ctx context.Context, tx pgx.Tx, id uuid.UUID, qty int) error
}

type TicketTypeRepositoryImpl struct {
	pool *pgxpool.Pool
}

func NewTicketTypeRepository(pool *pgxpool.Pool) TicketTypeRepository {
	return &TicketTypeRepositoryImpl{
		pool: pool,
	}
}

func (r *TicketTypeRepositoryImpl) Create(ctx context.Context, ticketType *model.TicketType) (*model.TicketType, error) {
	if ticketType.ID == uuid.Nil {
		ticketType.ID = uuid.New()
	}

	query := `
		INSERT INTO ticket_types (id, event_id, name, price_cents, currency, total_qty, sold_qty)
		VALUES ($1, $2, $3, $4, $5, $6, 0)
		RETURNING id, event_id, name, price_cents, currency, total_qty, sold_qty, created_at
	`

	err := r.pool.QueryRow(ctx, query,
		ticketType.ID, ticketType.EventID, ticketType.Name,
		ticketType.PriceCents, ticketType.Currency, ticketType.TotalQty,
	).Scan(
		&ticketType.ID,
		&ticketType.EventID,
		&ticketType.Name,
		&ticketType.PriceCents,
		&ticketType.Currency,
		&ticketType.TotalQty,
		&ticketType.SoldQty,
		&ticketType.CreatedAt,
	)

	if err != nil {
		return nil, err
	}

	return ticketType, nil
}

func (r *TicketTypeRepositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*model.TicketType, error) {
	query := `
		SELECT id, event_id, name, price_cents, currency, total_qty, sold_qty, created_at
		FROM ticket_types
		WHERE id = $1
	`

	var ticketType model.TicketType
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&ticketType.ID,
		&ticketType.EventID,
		&ticketType.Name,
		&ticketType.PriceCents,
		&ticketType.Currency,
		&ticketType.TotalQty,
		&ticketType.SoldQty,
		&ticketType.CreatedAt,
	)

	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrTicketTypeNotFound
		}
		return nil, err
	}

	return &ticketType, nil
}

func (r *TicketTypeRepositoryImpl) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]*model.TicketType, error) {
	query := `
		SELECT id, event_id, name, price_cents, currency, total_qty, sold_qty, created_at
		FROM ticket_types
		WHERE event_id = $1
		ORDER BY name ASC
	`

	rows, err := r.pool.Query(ctx, query, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ticketTypes := make([]*model.TicketType, 0)

	for rows.Next() {
		var ticketType model.TicketType
		err := rows.Scan(
			&ticketType.ID,
			&ticketType.EventID,
			&ticketType.Name,
			&ticketType.PriceCents,
			&ticketType.Currency,
			&ticketType.TotalQty,
			&ticketType.SoldQty,
			&ticketType.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		ticketTypes = append(ticketTypes, &ticketType)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return ticketTypes, nil
}

// IncrementSold 只能在 commit 交易內呼叫；row lock 已由 FindWithInventoryForUpdate 取得
func (r *TicketTypeRepositoryImpl) IncrementSold(ctx context.Context, tx pgx.Tx, id uuid.UUID, qty int) error {
	query := `
		UPDATE ticket_types
		SET sold_qty = sold_qty + $1
		WHERE id = $2
	`

	result, err := tx.Exec(ctx, query, qty, id)
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrTicketTypeNotFound
	}

	return nil
}
