package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	GeminiAPIKey     string
	GeminiBaseURL    string
	GeminiAPIVersion string
	ImageModel       string
	TextModel        string

	TelegramToken  string
	BotWorkers     int
	SessionMaxIdle time.Duration

	TemplatesDir string
	OutputDir    string
	CalendarYear int

	MaxAttempts    int
	InitialBackoff time.Duration
	AttemptTimeout time.Duration
	BatchTimeout   time.Duration
	MaxConcurrent  int
	GenerationRPS  float64

	LogLevel string
	Debug    bool

	PreferIPv4  bool
	HTTPTimeout time.Duration
	WebAddr     string
}

func Load() (Config, error) {
	cfg := Config{
		GeminiBaseURL:    strings.TrimSpace(getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com")),
		GeminiAPIVersion: strings.TrimSpace(getEnv("GEMINI_API_VERSION", "v1beta")),
		ImageModel:       strings.TrimSpace(getEnv("GEMINI_IMAGE_MODEL", "gemini-3-pro-image-preview")),
		TextModel:        strings.TrimSpace(getEnv("GEMINI_TEXT_MODEL", "gemini-2.5-flash")),
		TemplatesDir:     getEnv("TEMPLATES_DIR", "templates"),
		OutputDir:        getEnv("OUTPUT_DIR", "."),
		CalendarYear:     getEnvInt("CALENDAR_YEAR", 2026),
		MaxAttempts:      getEnvInt("MAX_ATTEMPTS", 3),
		InitialBackoff:   time.Duration(getEnvInt("INITIAL_BACKOFF_MS", 1000)) * time.Millisecond,
		AttemptTimeout:   time.Duration(getEnvInt("ATTEMPT_TIMEOUT_SECONDS", 60)) * time.Second,
		BatchTimeout:     time.Duration(getEnvInt("BATCH_TIMEOUT_SECONDS", 600)) * time.Second,
		MaxConcurrent:    getEnvInt("MAX_CONCURRENT", 0),
		GenerationRPS:    getEnvFloat("GENERATION_RPS", 0),
		BotWorkers:       getEnvInt("BOT_WORKERS", 8),
		SessionMaxIdle:   time.Duration(getEnvInt("SESSION_IDLE_MINUTES", 720)) * time.Minute,
		LogLevel:         strings.ToLower(strings.TrimSpace(getEnv("LOG_LEVEL", "info"))),
		Debug:            getEnvBool("DEBUG", false),
		PreferIPv4:       getEnvBool("PREFER_IPV4", true),
		HTTPTimeout:      time.Duration(getEnvInt("HTTP_TIMEOUT_SECONDS", 180)) * time.Second,
		WebAddr:          strings.TrimSpace(getEnv("WEB_ADDR", ":8080")),
	}

	cfg.GeminiAPIKey = strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
	if cfg.GeminiAPIKey == "" {
		cfg.GeminiAPIKey = strings.TrimSpace(os.Getenv("GOOGLE_API_KEY"))
	}
	cfg.TelegramToken = strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN"))

	if cfg.GeminiAPIKey == "" {
		return Config{}, errors.New("GEMINI_API_KEY is required")
	}

	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = time.Second
	}
	if cfg.AttemptTimeout < 0 {
		cfg.AttemptTimeout = 0
	}
	if cfg.BatchTimeout < 0 {
		cfg.BatchTimeout = 0
	}
	if cfg.MaxConcurrent < 0 {
		cfg.MaxConcurrent = 0
	}
	if cfg.GenerationRPS < 0 {
		cfg.GenerationRPS = 0
	}
	if cfg.BotWorkers < 1 {
		cfg.BotWorkers = 1
	}
	if cfg.SessionMaxIdle < 0 {
		cfg.SessionMaxIdle = 0
	}
	if cfg.CalendarYear <= 0 {
		cfg.CalendarYear = 2026
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 180 * time.Second
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
