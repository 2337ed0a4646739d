package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"invysia-calendar/internal/app"
	"invysia-calendar/internal/config"
	"invysia-calendar/internal/handlers"
	"invysia-calendar/internal/httpclient"
	"invysia-calendar/internal/session"
	"invysia-calendar/internal/telegram"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := app.NewLogger(cfg.LogLevel, os.Stdout)

	a, err := app.New(cfg, logger, prometheus.NewRegistry())
	if err != nil {
		logger.Error("app init failed", "err", err)
		os.Exit(1)
	}

	tg, err := telegram.New(telegram.Options{
		Token: cfg.TelegramToken,
		HTTPClient: httpclient.New(httpclient.Options{
			PreferIPv4: cfg.PreferIPv4,
			Timeout:    cfg.HTTPTimeout,
		}),
		Logger: logger,
		Debug:  cfg.Debug,
	})
	if err != nil {
		logger.Error("telegram init failed", "err", err)
		os.Exit(1)
	}

	sessions := session.NewStore(session.Options{
		MaxIdle: cfg.SessionMaxIdle,
	})

	handler := handlers.New(handlers.Options{
		Telegram: tg,
		Prompts:  a.Gemini,
		Runner:   a.Orchestrator,
		Sessions: sessions,
		Logger:   logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := sessions.Prune(); n > 0 {
					logger.Debug("sessions pruned", "count", n)
				}
			}
		}
	}()

	// a calendar run is bounded by its own batch timeout; leave room for delivery
	requestTimeout := cfg.HTTPTimeout
	if cfg.BatchTimeout > 0 {
		requestTimeout += cfg.BatchTimeout
	}

	sem := make(chan struct{}, cfg.BotWorkers)

	logger.Info("bot started", "username", tg.Username())

	updates := tg.Updates(telegram.UpdatesOptions{
		Timeout: 30 * time.Second,
	})
	defer tg.StopUpdates()

	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			return
		case update, ok := <-updates:
			if !ok {
				logger.Info("updates channel closed")
				return
			}

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}

			go func(update telegram.Update) {
				defer func() { <-sem }()

				reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
				defer cancel()

				if err := handler.HandleUpdate(reqCtx, update); err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("handle update failed", "err", err)
				}
			}(update)
		}
	}
}
