package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/mitsuha/hoyo-qr-bot/internal/app"
	"github.com/mitsuha/hoyo-qr-bot/internal/config"
	"github.com/mitsuha/hoyo-qr-bot/internal/platform/logger"
)

func main() {
	cfg := config.Load()

	if err := logger.Init(cfg.LogPath); err != nil {
		println(err.Error())
		os.Exit(1)
	}
	defer logger.Close()

	if err := cfg.Validate(); err != nil {
		println(err.Error())
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(cfg)
	if err != nil {
		println(err.Error())
		os.Exit(1)
	}
	if err := a.Run(ctx); err != nil {
		println(err.Error())
		os.Exit(1)
	}
}
