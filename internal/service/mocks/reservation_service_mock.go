package mocks

import (
	"context"

	"github.com/HananR99/Ruhutickets/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type ReservationServiceMock struct {
	mock.Mock
}

func NewReservationServiceMock() *ReservationServiceMock {
	return &ReservationServiceMock{}
}

func (m *ReservationServiceMock) Reserve(ctx context.Context, req model.ReserveRequest) (*model.ReserveResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ReserveResponse), args.Error(1)
}

func (m *ReservationServiceMock) Commit(ctx context.Context, reservationID uuid.UUID) (*model.CommitResult, error) {
	args := m.Called(ctx, reservationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CommitResult), args.Error(1)
}

func (m *ReservationServiceMock) GetReservation(ctx context.Context, id uuid.UUID) (*model.Reservation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Reservation), args.Error(1)
}

type TicketTypeServiceMock struct {
	mock.Mock
}

func NewTicketTypeServiceMock() *TicketTypeServiceMock {
	return &TicketTypeServiceMock{}
}

func (m *TicketTypeServiceMock) CreateTicketType(ctx context.Context, req model.CreateTicketTypeRequest) (*model.TicketType, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.TicketType), args.Error(1)
}

func (m *TicketTypeServiceMock) GetTicketType(ctx context.Context, id uuid.UUID) (*model.TicketType, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.TicketType), args.Error(1)
}

func (m *TicketTypeServiceMock) ListTicketTypes(ctx context.Context, eventID uuid.UUID) ([]*model.TicketType, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.TicketType), args.Error(1)
}
