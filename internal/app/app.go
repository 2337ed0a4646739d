package app

import (
	"io"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"invysia-calendar/internal/calendar"
	"invysia-calendar/internal/config"
	"invysia-calendar/internal/gemini"
	"invysia-calendar/internal/generation"
	"invysia-calendar/internal/httpclient"
	"invysia-calendar/internal/metrics"
	"invysia-calendar/internal/output"
	"invysia-calendar/internal/prompts"
	"invysia-calendar/internal/templates"
)

// App holds the pipeline shared by every binary.
type App struct {
	Gemini       *gemini.Client
	Orchestrator *calendar.Orchestrator
	Metrics      *metrics.Metrics
}

func New(cfg config.Config, logger *slog.Logger, reg prometheus.Registerer) (*App, error) {
	httpClient := httpclient.New(httpclient.Options{
		PreferIPv4:      cfg.PreferIPv4,
		Timeout:         cfg.HTTPTimeout,
		MaxConnsPerHost: prompts.Size,
	})

	gem := gemini.New(gemini.Options{
		APIKey:     cfg.GeminiAPIKey,
		BaseURL:    cfg.GeminiBaseURL,
		APIVersion: cfg.GeminiAPIVersion,
		ImageModel: cfg.ImageModel,
		TextModel:  cfg.TextModel,
		HTTPClient: httpClient,
		Logger:     logger,
	})

	store, err := output.NewStore(output.Options{
		Root: cfg.OutputDir,
		Year: cfg.CalendarYear,
	})
	if err != nil {
		return nil, err
	}

	m := metrics.New(reg)

	var limiter *rate.Limiter
	if cfg.GenerationRPS > 0 {
		burst := int(cfg.GenerationRPS)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.GenerationRPS), burst)
	}

	gen := generation.New(generation.Options{
		Editor:         gem,
		Writer:         store,
		MaxAttempts:    cfg.MaxAttempts,
		InitialBackoff: cfg.InitialBackoff,
		AttemptTimeout: cfg.AttemptTimeout,
		Limiter:        limiter,
		Metrics:        m,
		Logger:         logger,
	})

	orch := calendar.New(calendar.Options{
		Generator: gen,
		Templates: templates.New(templates.Options{
			Root: cfg.TemplatesDir,
			Year: cfg.CalendarYear,
		}),
		Sink:          store,
		Size:          prompts.Size,
		MaxConcurrent: cfg.MaxConcurrent,
		Timeout:       cfg.BatchTimeout,
		Metrics:       m,
		Logger:        logger,
	})

	return &App{Gemini: gem, Orchestrator: orch, Metrics: m}, nil
}

func NewLogger(level string, w io.Writer) *slog.Logger {
	lvl := slog.LevelInfo
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}

	if w == nil {
		w = os.Stdout
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: lvl,
	}))
}
