package apperrors

import "errors"

var (
	ErrTicketTypeNotFound    = errors.New("ticket type not found")
	ErrReservationNotFound   = errors.New("reservation not found")
	ErrInsufficientInventory = errors.New("insufficient inventory")
	ErrLockBusy              = errors.New("ticket type lock busy")
	ErrInvalidInput          = errors.New("invalid input")
	ErrInternalServerError   = errors.New("internal server error")
)
