package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	appcfg "github.com/vcporto/sketchdash/internal/config"
	"github.com/vcporto/sketchdash/internal/archive"
	"github.com/vcporto/sketchdash/internal/deck"
	"github.com/vcporto/sketchdash/internal/game"
	"github.com/vcporto/sketchdash/internal/msgcat"
	"github.com/vcporto/sketchdash/internal/obslog"
	"github.com/vcporto/sketchdash/internal/registry"
	"github.com/vcporto/sketchdash/internal/transport/httpapi"
	"github.com/vcporto/sketchdash/internal/transport/ws"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()
	defer func() { _ = logger.Sync() }()

	d, err := deck.Load(cfg.WordsFile)
	if err != nil {
		logger.Fatal("deck_load_error", zap.Error(err))
	}
	cat, err := msgcat.New(cfg.MsgDir)
	if err != nil {
		logger.Fatal("msgcat_load_error", zap.Error(err))
	}

	var reg game.Registry
	if cfg.RedisURL != "" {
		reg, err = registry.NewRedis(cfg.RedisURL, cfg.RoomTTL, logger)
		if err != nil {
			logger.Fatal("registry_init_error", zap.Error(err))
		}
		logger.Info("registry_redis", zap.Duration("room_ttl", cfg.RoomTTL))
	} else {
		reg = registry.NewMemory(cfg.RoomTTL, logger)
		logger.Info("registry_memory", zap.Duration("room_ttl", cfg.RoomTTL))
	}

	mgr, err := game.NewManager(reg, d, logger)
	if err != nil {
		logger.Fatal("manager_init_error", zap.Error(err))
	}

	if cfg.DatabaseURL != "" {
		repo, err := archive.NewRepository(cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("archive_init_error", zap.Error(err))
		}
		defer repo.Close()
		mgr.AttachArchiver(repo)
		logger.Info("archive_enabled")
	}

	pushSrv := ws.NewServer(mgr, cat, cfg.AllowedOrigins, logger)
	mgr.AttachNotifier(pushSrv)
	pollSrv := httpapi.NewServer(mgr, cat, logger)

	errCh := make(chan error, 2)
	go func() { errCh <- pollSrv.ListenAndServe(cfg.Addr) }()
	go func() { errCh <- pushSrv.ListenAndServe(cfg.WSAddr) }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown_signal", zap.String("signal", sig.String()))
	case err := <-errCh:
		logger.Error("server_error", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := pushSrv.Shutdown(ctx); err != nil {
		logger.Error("ws_shutdown_error", zap.Error(err))
	}
	if err := pollSrv.Shutdown(); err != nil {
		logger.Error("http_shutdown_error", zap.Error(err))
	}
	if err := reg.Close(); err != nil {
		logger.Error("registry_close_error", zap.Error(err))
	}
}
