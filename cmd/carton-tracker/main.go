// Package main Carton Tracker API
//
// @title           Carton Tracker API
// @version         1.0
// @description     API учета замеров коробок: регистрация, замеры и запуск сегментации на устройстве.

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @host      localhost:5001
// @BasePath  /api

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/magabrotheeeer/carton-tracker/docs"
	cartontracker "github.com/magabrotheeeer/carton-tracker/internal/app/carton-tracker"
	"github.com/magabrotheeeer/carton-tracker/internal/config"
)

func main() {
	cfg := config.MustLoad()
	logger := setupLogger(cfg)

	logger.Info("starting carton-tracker", slog.String("env", cfg.Env))
	logger.Debug("config loaded", slog.String("config", cfg.String()))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := cartontracker.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize app", slog.Any("err", err))
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("app stopped with error", slog.Any("err", err))
		os.Exit(1)
	}

	logger.Info("carton-tracker stopped gracefully")
}

func setupLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelDebug
	if cfg.IsProduction() {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}
