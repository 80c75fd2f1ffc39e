package handler

import (
	"errors"
	"net/http"

	"github.com/HananR99/Ruhutickets/internal/model"
	"github.com/HananR99/Ruhutickets/internal/service"
	apperrors "github.com/HananR99/Ruhutickets/pkg/app_errors"
	"github.com/HananR99/Ruhutickets/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type TicketTypeHandler struct {
	service service.TicketTypeService
}

func NewTicketTypeHandler(service service.TicketTypeService) *TicketTypeHandler {
	return &TicketTypeHandler{service: service}
}

func (h *TicketTypeHandler) RegisterRoutes(r *gin.Engine) {
	router := r.Group("/api/v1")
	{
		router.POST("ticket-types", h.CreateTicketType)
		router.GET("ticket-types/:id", h.GetTicketType)
		router.GET("ticket-types", h.ListTicketTypes)
	}
}

func (h *TicketTypeHandler) CreateTicketType(c *gin.Context) {
	var req model.CreateTicketTypeRequest

	if err := BindJson(c, &req); err != nil {
		return
	}

	created, err := h.service.CreateTicketType(c, req)
	if err != nil {
		h.handleError(c, err, "CreateTicketType")
		return
	}

	c.JSON(http.StatusCreated, created)
}

func (h *TicketTypeHandler) GetTicketType(c *gin.Context) {
	id, ok := ParseUUIDParam(c, "id")
	if !ok {
		return
	}

	ticketType, err := h.service.GetTicketType(c, id)
	if err != nil {
		h.handleError(c, err, "GetTicketType")
		return
	}

	c.JSON(http.StatusOK, ticketType)
}

func (h *TicketTypeHandler) ListTicketTypes(c *gin.Context) {
	eventID, err := uuid.Parse(c.Query("event_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "event_id required"})
		return
	}

	ticketTypes, err := h.service.ListTicketTypes(c, eventID)
	if err != nil {
		h.handleError(c, err, "ListTicketTypes")
		return
	}

	c.JSON(http.StatusOK, ticketTypes)
}

func (h *TicketTypeHandler) handleError(c *gin.Context, err error, operation string) {
	log := logger.WithComponent("handler").With(zap.String("operation", operation), zap.Error(err))
	switch {
	case errors.Is(err, apperrors.ErrTicketTypeNotFound):
		log.Warn("Ticket type not found")
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
