package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/vodforge/vodforge/internal/config"
	"github.com/vodforge/vodforge/internal/database"
	"github.com/vodforge/vodforge/internal/logger"
	"github.com/vodforge/vodforge/internal/server"
)

func main() {
	configPath := os.Getenv("VODFORGE_CONFIG_PATH")
	if configPath == "" {
		if _, err := os.Stat("./vodforge.yaml"); err == nil {
			configPath = "./vodforge.yaml"
		}
	}
	if err := config.Load(configPath); err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	cfg := config.Get()

	if err := database.Initialize(); err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}

	hclogger := hclog.New(&hclog.LoggerOptions{
		Name:       "vodforge",
		Level:      hclog.LevelFromString(cfg.Logging.Level),
		JSONFormat: cfg.Logging.Format == "json",
	})

	srv, err := server.New(cfg, hclogger)
	if err != nil {
		log.Fatalf("failed to build server: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(ctx)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Fatalf("server failed: %v", err)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown incomplete", logger.Err(err))
	}
}
