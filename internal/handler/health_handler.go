package handler

import (
	"net/http"

	"github.com/HananR99/Ruhutickets/internal/broker"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// HealthHandler /health 回報各依賴的連線狀態；pool 與 rdb 可為 nil (notifier 沒有 DB)
type HealthHandler struct {
	serviceName string
	pool        *pgxpool.Pool
	rdb         *redis.Client
	notifier    broker.NotificationBroker
}

func NewHealthHandler(serviceName string, pool *pgxpool.Pool, rdb *redis.Client, notifier broker.NotificationBroker) *HealthHandler {
	return &HealthHandler{
		serviceName: serviceName,
		pool:        pool,
		rdb:         rdb,
		notifier:    notifier,
	}
}

func (h *HealthHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)
}

func (h *HealthHandler) Health(c *gin.Context) {
	resp := gin.H{
		"service": h.serviceName,
		"ok":      true,
	}

	if h.pool != nil {
		dbOK := h.pool.Ping(c) == nil
		resp["db"] = dbOK
		if !dbOK {
			resp["ok"] = false
		}
	}

	if h.rdb != nil {
		resp["redis_connected"] = h.rdb.Ping(c).Err() == nil
	}

	if h.notifier != nil {
		state := h.notifier.State()
		resp["broker_state"] = state.String()
		resp["broker_connected"] = state == broker.StateReady
	}

	if ok, _ := resp["ok"].(bool); !ok {
		c.JSON(http.StatusInternalServerError, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}
