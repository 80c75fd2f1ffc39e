package service

import (
	"context"
	"strings"

	"github.com/HananR99/Ruhutickets/internal/model"
	"github.com/HananR99/Ruhutickets/internal/repository"
	apperrors "github.com/HananR99/Ruhutickets/pkg/app_errors"

	"github.com/google/uuid"
)

type TicketTypeService interface {
	CreateTicketType(ctx context.Context, req model.CreateTicketTypeRequest) (*model.TicketType, error)
	GetTicketType(ctx context.Context, id uuid.UUID) (*model.TicketType, error)
	ListTicketTypes(ctx context.Context, eventID uuid.UUID) ([]*model.TicketType, error)
}

type TicketTypeServiceImpl struct {
	repository repository.TicketTypeRepository
}

func NewTicketTypeService(repo repository.TicketTypeRepository) TicketTypeService {
	return &TicketTypeServiceImpl{repository: repo}
}

func (s *TicketTypeServiceImpl) CreateTicketType(ctx context.Context, req model.CreateTicketTypeRequest) (*model.TicketType, error) {
	if req.TotalQty <= 0 || req.PriceCents < 0 || len(req.Currency) != 3 {
		return nil, apperrors.ErrInvalidInput
	}

	return s.repository.Create(ctx, &model.TicketType{
		EventID:    req.EventID,
		Name:       req.Name,
		PriceCents: req.PriceCents,
		Currency:   strings.ToUpper(req.Currency),
		TotalQty:   req.TotalQty,
	})
}

func (s *TicketTypeServiceImpl) GetTicketType(ctx context.Context, id uuid.UUID) (*model.TicketType, error) {
	return s.repository.FindByID(ctx, id)
}

func (s *TicketTypeServiceImpl) ListTicketTypes(ctx context.Context, eventID uuid.UUID) ([]*model.TicketType, error) {
	return s.repository.ListByEvent(ctx, eventID)
}
