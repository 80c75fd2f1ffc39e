package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/HananR99/Ruhutickets/config"
	"github.com/HananR99/Ruhutickets/internal/broker"
	"github.com/HananR99/Ruhutickets/internal/cache"
	"github.com/HananR99/Ruhutickets/internal/database"
	"github.com/HananR99/Ruhutickets/internal/handler"
	"github.com/HananR99/Ruhutickets/internal/repository"
	"github.com/HananR99/Ruhutickets/internal/service"
	"github.com/HananR99/Ruhutickets/internal/worker"
	"github.com/HananR99/Ruhutickets/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg := config.LoadConfig()
	log := logger.WithComponent("server")
	defer logger.Sync()

	pool, err := database.InitDatabase(&cfg.Database)
	if err != nil {
		log.Fatal("failed to initialize database", zap.Error(err))
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		log.Fatal("failed to initialize redis", zap.Error(err))
	}

	holdStore := cache.NewRedisHoldStore(rdb, cfg.Hold.LockTTL)

	notifier := broker.NewRedisStreamBroker(rdb, &broker.Config{
		Queue:      cfg.Broker.Queue,
		ConsumerID: cfg.Broker.ConsumerID,
	}, broker.RolePublisher)

	ticketTypeRepo := repository.NewTicketTypeRepository(pool)
	reservationRepo := repository.NewReservationRepository(pool)
	outboxRepo := repository.NewOutboxRepository(pool)

	reservationService := service.NewReservationService(
		pool, reservationRepo, ticketTypeRepo, outboxRepo,
		holdStore, notifier, cfg.Hold, cfg.Broker.PublishLimit,
	)
	ticketTypeService := service.NewTicketTypeService(ticketTypeRepo)

	// broker 連線在背景建立；連不上時 publish 會自己觸發重連
	go func() {
		if err := notifier.ConnectWithRetry(context.Background()); err != nil {
			log.Error("broker connect aborted", zap.Error(err))
		}
	}()

	relayCtx, stopRelay := context.WithCancel(context.Background())
	relay := worker.NewOutboxRelay(outboxRepo, notifier, cfg.Broker.OutboxPoll)
	relay.Start(relayCtx)

	router := gin.Default()
	handler.NewReservationHandler(reservationService).RegisterRoutes(router)
	handler.NewTicketTypeHandler(ticketTypeService).RegisterRoutes(router)
	handler.NewHealthHandler("inventory", pool, rdb, notifier).RegisterRoutes(router)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		log.Info("inventory listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down...")

	// 依序釋放資源；任何一步失敗都只記 log，繼續放掉其餘資源
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http server shutdown failed", zap.Error(err))
	}

	stopRelay()

	if err := notifier.Close(); err != nil {
		log.Warn("broker close failed", zap.Error(err))
	}
	if err := rdb.Close(); err != nil {
		log.Warn("redis close failed", zap.Error(err))
	}
	pool.Close()

	log.Info("shutdown complete")
}
