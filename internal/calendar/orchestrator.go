package calendar

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"invysia-calendar/internal/generation"
	"invysia-calendar/internal/ids"
	"invysia-calendar/internal/metrics"
	"invysia-calendar/internal/output"
	"invysia-calendar/internal/prompts"
	"invysia-calendar/internal/templates"
)

type Generator interface {
	Generate(ctx context.Context, task generation.Task) generation.Outcome
}

type TemplateSource interface {
	ResolveAll(aspectRatio string, n int) ([]templates.Template, error)
}

type Sink interface {
	Allocate() (output.Folder, error)
	WritePrompts(ctx context.Context, folder output.Folder, prompts []string) error
}

type Options struct {
	Generator Generator
	Templates TemplateSource
	Sink      Sink

	// Size is the required number of prompts. Defaults to prompts.Size.
	Size int
	// MaxConcurrent bounds in-flight tasks; 0 runs the whole batch at once.
	MaxConcurrent int
	// Timeout bounds the whole run, backoff waits included.
	Timeout time.Duration

	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

type Orchestrator struct {
	generator     Generator
	templates     TemplateSource
	sink          Sink
	size          int
	maxConcurrent int
	timeout       time.Duration
	metrics       *metrics.Metrics
	logger        *slog.Logger
}

func New(opts Options) *Orchestrator {
	size := opts.Size
	if size <= 0 {
		size = prompts.Size
	}

	maxConcurrent := opts.MaxConcurrent
	if maxConcurrent < 0 {
		maxConcurrent = 0
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Orchestrator{
		generator:     opts.Generator,
		templates:     opts.Templates,
		sink:          opts.Sink,
		size:          size,
		maxConcurrent: maxConcurrent,
		timeout:       opts.Timeout,
		metrics:       opts.Metrics,
		logger:        logger,
	}
}

func (o *Orchestrator) Size() int {
	return o.size
}

// Run generates one calendar. Validation and template errors are returned
// before any remote call; per-page failures are reported in Report.Outcomes
// and never cancel the other pages.
func (o *Orchestrator) Run(ctx context.Context, list []string, aspectRatio, resolution string) (Report, error) {
	batch, err := prompts.NewBatch(list, o.size)
	if err != nil {
		o.logger.Warn("calendar rejected", "err", err)
		return Report{}, err
	}

	report := Report{RunID: ids.NewRunID()}
	logger := o.logger.With("run_id", report.RunID)
	start := time.Now()

	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	folder, err := o.sink.Allocate()
	if err != nil {
		o.metrics.Batch("error", time.Since(start))
		return report, fmt.Errorf("allocate output folder: %w", err)
	}
	report.Folder = folder.Path
	logger = logger.With("folder", folder.Path)

	if err := o.sink.WritePrompts(ctx, folder, batch.Prompts()); err != nil {
		o.metrics.Batch("error", time.Since(start))
		return report, fmt.Errorf("write prompts: %w", err)
	}

	tpls, err := o.templates.ResolveAll(aspectRatio, o.size)
	if err != nil {
		logger.Error("template resolution failed", "aspect_ratio", aspectRatio, "err", err)
		o.metrics.Batch("error", time.Since(start))
		return report, err
	}

	logger.Info("calendar started", "aspect_ratio", aspectRatio, "resolution", resolution, "pages", o.size)

	outcomes := make([]generation.Outcome, o.size)
	var g errgroup.Group
	if o.maxConcurrent > 0 {
		g.SetLimit(o.maxConcurrent)
	}

	for i := 1; i <= o.size; i++ {
		task := generation.Task{
			Index:       i,
			Prompt:      batch.Prompt(i),
			Template:    tpls[i-1],
			AspectRatio: aspectRatio,
			Resolution:  resolution,
			OutputPath:  folder.ImagePath(i),
		}
		g.Go(func() error {
			outcomes[task.Index-1] = o.generate(ctx, task)
			return nil
		})
	}
	_ = g.Wait()

	report.Outcomes = outcomes

	status := "ok"
	if failed := len(report.Failures()); failed > 0 {
		status = "partial"
		logger.Warn("calendar completed with errors", "failed", failed, "succeeded", report.Succeeded())
	} else {
		logger.Info("calendar completed", "dur_ms", time.Since(start).Milliseconds())
	}
	o.metrics.Batch(status, time.Since(start))

	return report, nil
}

func (o *Orchestrator) generate(ctx context.Context, task generation.Task) (out generation.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = generation.Outcome{
				Index:      task.Index,
				OutputPath: task.OutputPath,
				Err:        fmt.Errorf("generator panic: %v", r),
			}
		}
	}()
	return o.generator.Generate(ctx, task)
}
