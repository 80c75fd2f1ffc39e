package handler

import (
	"errors"
	"net/http"

	"github.com/HananR99/Ruhutickets/internal/model"
	"github.com/HananR99/Ruhutickets/internal/service"
	apperrors "github.com/HananR99/Ruhutickets/pkg/app_errors"
	"github.com/HananR99/Ruhutickets/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ReservationHandler struct {
	service service.ReservationService
}

func NewReservationHandler(service service.ReservationService) *ReservationHandler {
	return &ReservationHandler{service: service}
}

func (h *ReservationHandler) RegisterRoutes(r *gin.Engine) {
	router := r.Group("/api/v1")
	{
		router.POST("reservations", h.Reserve)
		router.GET("reservations/:id", h.GetReservation)
		// commit 由信任的內部 caller (payment 確認方) 呼叫
		router.POST("reservations/:id/commit", h.Commit)
	}
}

func (h *ReservationHandler) Reserve(c *gin.Context) {
	var req model.ReserveRequest

	if err := BindJson(c, &req); err != nil {
		return
	}

	resp, err := h.service.Reserve(c, req)
	if err != nil {
		h.handleReserveError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (h *ReservationHandler) Commit(c *gin.Context) {
	id, ok := ParseUUIDParam(c, "id")
	if !ok {
		return
	}

	result, err := h.service.Commit(c, id)
	if err != nil {
		logger.WithComponent("handler").Error("commit failed",
			zap.String("operation", "Commit"), zap.Error(err))
		// 內部錯誤不外漏原文，降級成結構化 reason code
		c.JSON(http.StatusInternalServerError, model.CommitResult{
			OK:     false,
			Reason: model.CommitReasonError,
		})
		return
	}

	if !result.OK {
		c.JSON(http.StatusConflict, result)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *ReservationHandler) GetReservation(c *gin.Context) {
	id, ok := ParseUUIDParam(c, "id")
	if !ok {
		return
	}

	reservation, err := h.service.GetReservation(c, id)
	if err != nil {
		h.handleReserveError(c, err)
		return
	}

	c.JSON(http.StatusOK, reservation)
}

// Helper functions

func (h *ReservationHandler) handleReserveError(c *gin.Context, err error) {
	log := logger.WithComponent("handler").With(zap.String("operation", "Reserve"), zap.Error(err))
	switch {
	case errors.Is(err, apperrors.ErrLockBusy):
		log.Warn("Ticket type busy")
		c.JSON(http.StatusConflict, gin.H{
			"error": "busy",
		})
	case errors.Is(err, apperrors.ErrInsufficientInventory):
		log.Warn("Insufficient inventory")
		c.JSON(http.StatusConflict, gin.H{
			"error": "insufficient inventory",
		})
	case errors.Is(err, apperrors.ErrTicketTypeNotFound):
		log.Warn("Ticket type not found")
		c.JSON(http.StatusNotFound, gin.H{
			"error": "not_found",
		})
	case errors.Is(err, apperrors.ErrReservationNotFound):
		log.Warn("Reservation not found")
		c.JSON(http.StatusNotFound, gin.H{
			"error": "not_found",
		})
	case errors.Is(err, apperrors.ErrInvalidInput):
		log.Warn("Invalid input")
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "invalid input",
		})
	default:
		log.Error("Unexpected error")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Internal server error",
		})
	}
}
