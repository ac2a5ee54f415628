package main

import (
	"fmt"
	"os"

	"cargo-backend/internal/clock"
	"cargo-backend/internal/config"
	"cargo-backend/internal/database"
	"cargo-backend/internal/logger"
	"cargo-backend/internal/server"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	defer func() { _ = log.Sync() }()

	for _, w := range cfg.Warnings() {
		log.Warn(w)
	}

	if err := database.Init(cfg, log); err != nil {
		log.Fatal("database init failed", zap.Error(err))
	}

	svc := server.NewServices(cfg, database.DB, clock.System(), log)
	app := server.New(cfg, database.DB, svc, log)

	log.Info("server listening", zap.String("port", cfg.HTTPPort), zap.String("env", cfg.Env))
	if err := app.Listen(":" + cfg.HTTPPort); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}
