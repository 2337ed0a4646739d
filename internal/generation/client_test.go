package generation

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"invysia-calendar/internal/gemini"
	"invysia-calendar/internal/metrics"
	"invysia-calendar/internal/output"
	"invysia-calendar/internal/templates"
)

type editorFunc func(ctx context.Context, req gemini.EditRequest) (gemini.EditResult, error)

func (f editorFunc) EditImage(ctx context.Context, req gemini.EditRequest) (gemini.EditResult, error) {
	return f(ctx, req)
}

type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleepRecorder) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

func okResult(data string) gemini.EditResult {
	return gemini.EditResult{Images: []gemini.Image{{MimeType: "image/png", Data: []byte(data)}}}
}

func newWriter(t *testing.T) *output.Store {
	t.Helper()
	store, err := output.NewStore(output.Options{Root: t.TempDir()})
	require.NoError(t, err)
	return store
}

func testTask(t *testing.T) Task {
	return Task{
		Index:       5,
		Prompt:      "Edit this image with autumn leaves",
		Template:    templates.Template{Index: 5, Data: []byte("template"), MimeType: "image/png"},
		AspectRatio: "9:16",
		Resolution:  "1K",
		OutputPath:  filepath.Join(t.TempDir(), "run", "5-2026.png"),
	}
}

func TestGenerateSucceedsFirstTry(t *testing.T) {
	var got gemini.EditRequest
	client := New(Options{
		Editor: editorFunc(func(ctx context.Context, req gemini.EditRequest) (gemini.EditResult, error) {
			got = req
			return okResult("edited"), nil
		}),
		Writer: newWriter(t),
	})
	task := testTask(t)

	out := client.Generate(context.Background(), task)

	require.True(t, out.OK(), "%v", out.Err)
	assert.Equal(t, 1, out.Attempts)
	assert.Equal(t, 5, out.Index)
	data, err := os.ReadFile(task.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, "edited", string(data))

	assert.Equal(t, task.Prompt, got.Prompt)
	assert.Equal(t, []byte("template"), got.Image)
	assert.Equal(t, "9:16", got.AspectRatio)
	assert.Equal(t, "1K", got.Resolution)
}

func TestGenerateAlwaysFailingMakesThreeAttempts(t *testing.T) {
	var calls int32
	sleeps := &sleepRecorder{}
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	client := New(Options{
		Editor: editorFunc(func(ctx context.Context, req gemini.EditRequest) (gemini.EditResult, error) {
			atomic.AddInt32(&calls, 1)
			return gemini.EditResult{}, errors.New("503 overloaded")
		}),
		Writer:  newWriter(t),
		Sleep:   sleeps.Sleep,
		Metrics: m,
	})
	task := testTask(t)

	out := client.Generate(context.Background(), task)

	require.False(t, out.OK())
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
	assert.Equal(t, 3, out.Attempts)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, sleeps.delays)

	var attemptsErr *AttemptsError
	require.True(t, errors.As(out.Err, &attemptsErr))
	assert.Equal(t, 3, attemptsErr.Attempts)
	assert.Contains(t, out.Err.Error(), "503 overloaded")

	_, err := os.Stat(task.OutputPath)
	assert.True(t, os.IsNotExist(err))

	assert.Equal(t, 1.0, counterValue(t, reg, "calendar_generation_outcomes_total", "failed"))
	assert.Equal(t, 3.0, counterValue(t, reg, "calendar_generation_attempts_total", "error"))
}

func TestGenerateRecoversOnRetry(t *testing.T) {
	var calls int32
	sleeps := &sleepRecorder{}
	client := New(Options{
		Editor: editorFunc(func(ctx context.Context, req gemini.EditRequest) (gemini.EditResult, error) {
			if atomic.AddInt32(&calls, 1) < 3 {
				return gemini.EditResult{}, errors.New("timeout")
			}
			return okResult("third time"), nil
		}),
		Writer: newWriter(t),
		Sleep:  sleeps.Sleep,
	})
	task := testTask(t)

	out := client.Generate(context.Background(), task)

	require.True(t, out.OK())
	assert.Equal(t, 3, out.Attempts)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, sleeps.delays)
	data, err := os.ReadFile(task.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, "third time", string(data))
}

func TestGenerateTextOnlyResponseIsRetriedThenFails(t *testing.T) {
	var calls int32
	client := New(Options{
		Editor: editorFunc(func(ctx context.Context, req gemini.EditRequest) (gemini.EditResult, error) {
			atomic.AddInt32(&calls, 1)
			return gemini.EditResult{Text: "I can't do that"}, nil
		}),
		Writer: newWriter(t),
		Sleep:  (&sleepRecorder{}).Sleep,
	})

	out := client.Generate(context.Background(), testTask(t))

	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
	assert.ErrorIs(t, out.Err, ErrNoImage)
}

func TestGenerateUsesFirstImagePart(t *testing.T) {
	client := New(Options{
		Editor: editorFunc(func(ctx context.Context, req gemini.EditRequest) (gemini.EditResult, error) {
			return gemini.EditResult{Text: "done", Images: []gemini.Image{
				{Data: []byte("first")}, {Data: []byte("second")},
			}}, nil
		}),
		Writer: newWriter(t),
	})
	task := testTask(t)

	out := client.Generate(context.Background(), task)

	require.True(t, out.OK())
	data, err := os.ReadFile(task.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))
}

func TestGenerateRecoversEditorPanic(t *testing.T) {
	client := New(Options{
		Editor: editorFunc(func(ctx context.Context, req gemini.EditRequest) (gemini.EditResult, error) {
			panic("boom")
		}),
		Writer:      newWriter(t),
		MaxAttempts: 2,
		Sleep:       (&sleepRecorder{}).Sleep,
	})

	out := client.Generate(context.Background(), testTask(t))

	require.Error(t, out.Err)
	assert.Contains(t, out.Err.Error(), "editor panic: boom")
	assert.Equal(t, 2, out.Attempts)
}

func TestGenerateStopsWhenContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls int32
	client := New(Options{
		Editor: editorFunc(func(ctx context.Context, req gemini.EditRequest) (gemini.EditResult, error) {
			atomic.AddInt32(&calls, 1)
			cancel()
			return gemini.EditResult{}, ctx.Err()
		}),
		Writer: newWriter(t),
	})

	out := client.Generate(ctx, testTask(t))

	assert.ErrorIs(t, out.Err, context.Canceled)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestGenerateBackoffHonoursDeadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	client := New(Options{
		Editor: editorFunc(func(ctx context.Context, req gemini.EditRequest) (gemini.EditResult, error) {
			return gemini.EditResult{}, errors.New("unavailable")
		}),
		Writer:         newWriter(t),
		InitialBackoff: time.Hour,
	})

	start := time.Now()
	out := client.Generate(ctx, testTask(t))

	assert.ErrorIs(t, out.Err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestGenerateAttemptTimeout(t *testing.T) {
	client := New(Options{
		Editor: editorFunc(func(ctx context.Context, req gemini.EditRequest) (gemini.EditResult, error) {
			<-ctx.Done()
			return gemini.EditResult{}, ctx.Err()
		}),
		Writer:         newWriter(t),
		AttemptTimeout: 10 * time.Millisecond,
		Sleep:          (&sleepRecorder{}).Sleep,
	})

	out := client.Generate(context.Background(), testTask(t))

	var attemptsErr *AttemptsError
	require.True(t, errors.As(out.Err, &attemptsErr))
	assert.ErrorIs(t, out.Err, context.DeadlineExceeded)
	assert.Equal(t, 3, out.Attempts)
}

func TestGenerateWriteFailureIsNotRetried(t *testing.T) {
	var calls int32
	client := New(Options{
		Editor: editorFunc(func(ctx context.Context, req gemini.EditRequest) (gemini.EditResult, error) {
			atomic.AddInt32(&calls, 1)
			return okResult("x"), nil
		}),
		Writer: newWriter(t),
	})
	task := testTask(t)
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("not a dir"), 0o644))
	task.OutputPath = filepath.Join(blocker, "5-2026.png")

	out := client.Generate(context.Background(), task)

	require.Error(t, out.Err)
	assert.Contains(t, out.Err.Error(), "save image")
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestGenerateWaitsOnLimiter(t *testing.T) {
	limiter := rate.NewLimiter(rate.Every(time.Hour), 1)
	require.True(t, limiter.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	var calls int32
	client := New(Options{
		Editor: editorFunc(func(ctx context.Context, req gemini.EditRequest) (gemini.EditResult, error) {
			atomic.AddInt32(&calls, 1)
			return okResult("x"), nil
		}),
		Writer:  newWriter(t),
		Limiter: limiter,
	})

	out := client.Generate(ctx, testTask(t))

	require.Error(t, out.Err)
	assert.EqualValues(t, 0, atomic.LoadInt32(&calls))
}

func counterValue(t *testing.T, reg *prometheus.Registry, name, label string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetValue() == label {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}
