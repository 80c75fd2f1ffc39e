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
	"github.com/HananR99/Ruhutickets/internal/worker"
	"github.com/HananR99/Ruhutickets/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg := config.LoadConfig()
	log := logger.WithComponent("notifier")
	defer logger.Sync()

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		log.Fatal("failed to initialize redis", zap.Error(err))
	}

	holdStore := cache.NewRedisHoldStore(rdb, cfg.Hold.LockTTL)

	notifier := broker.NewRedisStreamBroker(rdb, &broker.Config{
		Queue:      cfg.Broker.Queue,
		ConsumerID: cfg.Broker.ConsumerID,
	}, broker.RoleConsumer)

	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	notificationWorker := worker.NewNotificationWorker(notifier, holdStore, cfg.Hold.DedupTTL)

	// consumer 的連線循環在背景跑；連上後 Start 開始消費
	go func() {
		if err := notificationWorker.Start(consumerCtx); err != nil {
			log.Error("notification worker aborted", zap.Error(err))
		}
	}()

	router := gin.Default()
	handler.NewNotificationHandler(notifier).RegisterRoutes(router)
	handler.NewHealthHandler("notification", nil, rdb, notifier).RegisterRoutes(router)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		log.Info("notification listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down...")

	// 依序釋放；每一步獨立容錯
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http server shutdown failed", zap.Error(err))
	}

	stopConsumer()

	if err := notifier.Close(); err != nil {
		log.Warn("broker close failed", zap.Error(err))
	}
	if err := rdb.Close(); err != nil {
		log.Warn("redis close failed", zap.Error(err))
	}

	log.Info("shutdown complete")
}
