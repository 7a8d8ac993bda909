package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/krau/fruitlens/config"
	"github.com/krau/fruitlens/logging"
	"github.com/krau/fruitlens/server"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg := config.C()
	logs := logging.Setup(cfg.LogLevel, cfg.LogFile)
	defer logs.Close()
	slog.Info("Starting FruitLens", slog.String("model", cfg.ModelName))

	clf, release, err := server.LoadClassifier(ctx, cfg)
	if err != nil {
		slog.Error("Failed to load classifier", slog.String("error", err.Error()))
		return
	}
	defer release()

	if err := server.New(cfg, clf).Run(ctx); err != nil {
		slog.Error("Server error", slog.String("error", err.Error()))
		return
	}
	slog.Info("shutting down")
}
