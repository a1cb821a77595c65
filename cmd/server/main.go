package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"habitsync/config"
	"habitsync/internal/httpserver"
	"habitsync/internal/hub"
	"habitsync/internal/relay"
	"habitsync/internal/repository"
	"habitsync/internal/service"
	"habitsync/internal/tracker"
	pkgconfig "habitsync/pkg/config"
	"habitsync/pkg/logger"
)

func main() {
	// 1. Load config
	if err := pkgconfig.LoadDotEnv(); err != nil {
		panic(err)
	}
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}

	log := logger.NewLogger(cfg.Log.Level)
	defer log.Sync()

	log.Info("Starting habitsync server...",
		zap.String("db_driver", cfg.DB.Driver),
		zap.String("timezone", cfg.Tracker.Timezone),
		zap.String("relay", cfg.Sync.Relay),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. Init store
	store, err := repository.Open(ctx, cfg.DB, log)
	if err != nil {
		log.Fatal("Failed to open store", zap.Error(err))
	}
	defer store.Close()
	log.Info("Store opened successfully")

	calendar, err := tracker.LoadCalendar(cfg.Tracker.Timezone)
	if err != nil {
		log.Fatal("Invalid tracker timezone", zap.String("timezone", cfg.Tracker.Timezone), zap.Error(err))
	}

	// 3. Init sync channel and relay
	h := hub.New(cfg.Sync.QueueSize, log)

	origin := uuid.NewString()
	rel, err := relay.Open(ctx, cfg.Sync.Relay, cfg.Redis, cfg.MQ, origin, log)
	if err != nil {
		log.Fatal("Failed to init relay", zap.String("relay", cfg.Sync.Relay), zap.Error(err))
	}
	defer rel.Close()
	go relay.RunForever(ctx, rel, h.Publish, log)

	// 4. Init gateway
	gateway := service.NewGateway(store, service.Publishers(h, rel), calendar, log,
		service.WithHistoryDays(cfg.Tracker.HistoryDays),
	)

	// 5. HTTP server
	router := httpserver.NewRouter(gateway, h, log)
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("HTTP server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	log.Info("habitsync server is fully initialized and running",
		zap.String("http_port", cfg.Server.Port),
		zap.String("instance", origin),
	)

	// 优雅退出处理
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down habitsync server gracefully...")

	// 停止 relay 订阅并断开所有 websocket 连接
	cancel()
	h.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		log.Info("HTTP server stopped")
	}

	log.Info("habitsync server shutdown complete")
}
