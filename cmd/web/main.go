package main

import (
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"invysia-calendar/internal/app"
	"invysia-calendar/internal/config"
	"invysia-calendar/internal/metrics"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := app.NewLogger(cfg.LogLevel, os.Stdout)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	a, err := app.New(cfg, logger, reg)
	if err != nil {
		logger.Error("app init failed", "err", err)
		os.Exit(1)
	}

	s := &server{
		runner:  a.Orchestrator,
		writer:  a.Gemini,
		metrics: metrics.Handler(reg),
		logger:  logger,
	}

	writeTimeout := 5 * time.Minute
	if cfg.BatchTimeout > 0 {
		writeTimeout = cfg.BatchTimeout + time.Minute
	}

	srv := &http.Server{
		Addr:              cfg.WebAddr,
		Handler:           withLogging(s.routes(), logger),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       90 * time.Second,
	}

	logger.Info("web started", "addr", cfg.WebAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "err", err)
	}
}
