package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/HananR99/Ruhutickets/internal/broker"
	"github.com/HananR99/Ruhutickets/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NotificationHandler /notify 入隊端點；payload 為任意 JSON，
// 內容的歸屬檢查 (reservation.id / to) 留給 consumer 做
type NotificationHandler struct {
	notifier broker.NotificationBroker
}

func NewNotificationHandler(notifier broker.NotificationBroker) *NotificationHandler {
	return &NotificationHandler{notifier: notifier}
}

func (h *NotificationHandler) RegisterRoutes(r *gin.Engine) {
	r.POST("/notify", h.Notify)
}

func (h *NotificationHandler) Notify(c *gin.Context) {
	log := logger.WithComponent("handler")

	if h.notifier.State() != broker.StateReady {
		// broker 還沒好時回 503，caller 可重試；不讓連線卡住
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "notification service not ready",
		})
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil || !json.Valid(body) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request format",
		})
		return
	}

	if err := h.notifier.PublishNotification(c, json.RawMessage(body)); err != nil {
		log.Error("failed to enqueue notification", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to enqueue",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}
