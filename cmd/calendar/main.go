package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"invysia-calendar/internal/app"
	"invysia-calendar/internal/calendar"
	"invysia-calendar/internal/config"
	"invysia-calendar/internal/prompts"
)

func main() {
	var (
		promptsFile = flag.String("prompts", "", "File with the prompt list (list literal, JSON array or one prompt per line)")
		theme       = flag.String("theme", "", "Write prompts for this theme instead of reading a file")
		aspectRatio = flag.String("aspect", "3:4", "Page aspect ratio (9:16, 4:3, 3:4)")
		resolution  = flag.String("resolution", "2K", "Output resolution (1K, 2K, 4K)")
	)
	flag.Parse()

	os.Exit(run(*promptsFile, *theme, *aspectRatio, *resolution))
}

func run(promptsFile, theme, aspectRatio, resolution string) int {
	_ = godotenv.Load()

	if (promptsFile == "") == (theme == "") {
		fmt.Fprintln(os.Stderr, "exactly one of -prompts or -theme is required")
		return 2
	}

	ar, err := calendar.ParseAspectRatio(aspectRatio)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	res, err := calendar.ParseResolution(resolution)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	logger := app.NewLogger(cfg.LogLevel, os.Stderr)

	a, err := app.New(cfg, logger, prometheus.NewRegistry())
	if err != nil {
		logger.Error("app init failed", "err", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var list []string
	if theme != "" {
		text, err := a.Gemini.GeneratePrompts(ctx, theme)
		if err != nil {
			logger.Error("prompt generation failed", "err", err)
			return 1
		}
		list = prompts.FromText(text)
	} else {
		data, err := os.ReadFile(promptsFile)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		list = prompts.FromText(string(data))
	}

	report, err := a.Orchestrator.Run(ctx, list, ar, res)
	fmt.Println(calendar.Describe(report, err))
	if err != nil || len(report.Failures()) > 0 {
		return 1
	}
	return 0
}
