package generation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"invysia-calendar/internal/gemini"
	"invysia-calendar/internal/metrics"
	"invysia-calendar/internal/templates"
)

const (
	DefaultMaxAttempts    = 3
	DefaultInitialBackoff = time.Second
)

var ErrNoImage = errors.New("response contained no image")

type Editor interface {
	EditImage(ctx context.Context, req gemini.EditRequest) (gemini.EditResult, error)
}

type Writer interface {
	WriteFile(ctx context.Context, path string, data []byte) error
}

// Task is one calendar page: a prompt applied to its template.
type Task struct {
	Index       int
	Prompt      string
	Template    templates.Template
	AspectRatio string
	Resolution  string
	OutputPath  string
}

// Outcome is the final result of one Task. Err is nil on success.
type Outcome struct {
	Index      int
	OutputPath string
	Attempts   int
	Err        error
}

func (o Outcome) OK() bool {
	return o.Err == nil
}

// AttemptsError reports a task that failed on every attempt.
type AttemptsError struct {
	Attempts int
	Last     error
}

func (e *AttemptsError) Error() string {
	return fmt.Sprintf("%v (after %d attempts)", e.Last, e.Attempts)
}

func (e *AttemptsError) Unwrap() error {
	return e.Last
}

type Options struct {
	Editor         Editor
	Writer         Writer
	MaxAttempts    int
	InitialBackoff time.Duration
	AttemptTimeout time.Duration
	Limiter        *rate.Limiter
	Metrics        *metrics.Metrics
	Logger         *slog.Logger

	// Sleep waits between attempts; tests replace it to avoid real delays.
	Sleep func(ctx context.Context, d time.Duration) error
}

type Client struct {
	editor         Editor
	writer         Writer
	maxAttempts    int
	initialBackoff time.Duration
	attemptTimeout time.Duration
	limiter        *rate.Limiter
	metrics        *metrics.Metrics
	logger         *slog.Logger
	sleep          func(ctx context.Context, d time.Duration) error
}

func New(opts Options) *Client {
	maxAttempts := opts.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}

	backoff := opts.InitialBackoff
	if backoff <= 0 {
		backoff = DefaultInitialBackoff
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	sleep := opts.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	return &Client{
		editor:         opts.Editor,
		writer:         opts.Writer,
		maxAttempts:    maxAttempts,
		initialBackoff: backoff,
		attemptTimeout: opts.AttemptTimeout,
		limiter:        opts.Limiter,
		metrics:        opts.Metrics,
		logger:         logger,
		sleep:          sleep,
	}
}

// Generate runs the task with retry and exponential backoff. It never
// panics or returns an error directly; every failure ends up in Outcome.Err.
func (c *Client) Generate(ctx context.Context, task Task) Outcome {
	logger := c.logger.With("index", task.Index)
	out := Outcome{Index: task.Index, OutputPath: task.OutputPath}

	c.metrics.TaskStarted()
	defer c.metrics.TaskDone()

	delay := c.initialBackoff
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		out.Attempts = attempt

		img, err := c.attempt(ctx, logger, task)
		if err == nil {
			c.metrics.Attempt("ok")
			if err := c.save(ctx, task.OutputPath, img.Data); err != nil {
				out.Err = fmt.Errorf("save image: %w", err)
				logger.Error("save image failed", "path", task.OutputPath, "err", err)
				c.metrics.Outcome(false)
				return out
			}
			logger.Info("image generated", "attempt", attempt, "path", task.OutputPath)
			c.metrics.Outcome(true)
			return out
		}

		lastErr = err
		c.metrics.Attempt("error")

		if ctxErr := ctx.Err(); ctxErr != nil {
			out.Err = fmt.Errorf("generation aborted: %w", ctxErr)
			logger.Error("generation aborted", "attempt", attempt, "err", err)
			c.metrics.Outcome(false)
			return out
		}

		if attempt == c.maxAttempts {
			logger.Error("edit failed, giving up", "attempts", attempt, "err", err)
			break
		}

		logger.Warn("edit attempt failed, retrying",
			"attempt", attempt,
			"max_attempts", c.maxAttempts,
			"delay", delay.String(),
			"err", err,
		)
		if err := c.sleep(ctx, delay); err != nil {
			out.Err = fmt.Errorf("generation aborted: %w", err)
			c.metrics.Outcome(false)
			return out
		}
		delay *= 2
	}

	out.Err = &AttemptsError{Attempts: c.maxAttempts, Last: lastErr}
	c.metrics.Outcome(false)
	return out
}

func (c *Client) attempt(ctx context.Context, logger *slog.Logger, task Task) (img gemini.Image, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("editor panic: %v", r)
		}
	}()

	if c.editor == nil {
		return gemini.Image{}, errors.New("no editor configured")
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return gemini.Image{}, fmt.Errorf("rate limit: %w", err)
		}
	}

	attemptCtx := ctx
	if c.attemptTimeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, c.attemptTimeout)
		defer cancel()
	}

	res, err := c.editor.EditImage(attemptCtx, gemini.EditRequest{
		Prompt:      task.Prompt,
		Image:       task.Template.Data,
		MimeType:    task.Template.MimeType,
		AspectRatio: task.AspectRatio,
		Resolution:  task.Resolution,
	})
	if err != nil {
		return gemini.Image{}, err
	}

	if res.Text != "" {
		logger.Debug("model text", "text", res.Text)
	}
	if len(res.Images) == 0 {
		return gemini.Image{}, ErrNoImage
	}
	return res.Images[0], nil
}

func (c *Client) save(ctx context.Context, path string, data []byte) error {
	if c.writer == nil {
		return errors.New("no writer configured")
	}
	return c.writer.WriteFile(ctx, path, data)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
