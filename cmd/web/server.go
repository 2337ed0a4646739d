package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"invysia-calendar/internal/calendar"
	"invysia-calendar/internal/prompts"
	"invysia-calendar/internal/templates"
)

type runner interface {
	Run(ctx context.Context, list []string, aspectRatio, resolution string) (calendar.Report, error)
}

type promptWriter interface {
	GeneratePrompts(ctx context.Context, theme string) (string, error)
}

type server struct {
	runner  runner
	writer  promptWriter
	metrics http.Handler
	logger  *slog.Logger
}

type apiError struct {
	Error string `json:"error"`
}

type calendarRequest struct {
	// Prompts may be a JSON array or a string holding a list literal.
	Prompts     json.RawMessage `json:"prompts"`
	AspectRatio string          `json:"aspect_ratio"`
	Resolution  string          `json:"resolution"`
}

type pageResult struct {
	Index    int    `json:"index"`
	Path     string `json:"path,omitempty"`
	Attempts int    `json:"attempts"`
	Error    string `json:"error,omitempty"`
}

type calendarResponse struct {
	RunID     string       `json:"run_id"`
	Folder    string       `json:"folder"`
	Message   string       `json:"message"`
	Succeeded int          `json:"succeeded"`
	Pages     []pageResult `json:"pages"`
}

type promptsRequest struct {
	Theme string `json:"theme"`
}

type promptsResponse struct {
	Prompts []string `json:"prompts"`
	Warning string   `json:"warning,omitempty"`
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/calendar", s.handleCalendar)
	mux.HandleFunc("/api/prompts", s.handlePrompts)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics)
	}
	return mux
}

func (s *server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, apiError{Error: "method not allowed"})
		return
	}

	const maxBodyBytes = 1 << 20
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req calendarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid json body"})
		return
	}

	ar, err := calendar.ParseAspectRatio(req.AspectRatio)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: err.Error()})
		return
	}
	res, err := calendar.ParseResolution(req.Resolution)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: err.Error()})
		return
	}

	var raw any
	if len(req.Prompts) > 0 {
		if err := json.Unmarshal(req.Prompts, &raw); err != nil {
			writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid prompts"})
			return
		}
	}

	var list []string
	if raw != nil {
		list = prompts.Normalize(raw)
	}

	report, err := s.runner.Run(r.Context(), list, ar, res)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, prompts.ErrCount):
			status = http.StatusUnprocessableEntity
		case errors.Is(err, templates.ErrAspectRatio):
			status = http.StatusBadRequest
		case errors.Is(err, context.DeadlineExceeded):
			status = http.StatusGatewayTimeout
		}
		s.logger.Warn("calendar request failed", "err", err, "status", status)
		writeJSON(w, status, apiError{Error: calendar.Describe(report, err)})
		return
	}

	out := calendarResponse{
		RunID:     report.RunID,
		Folder:    report.Folder,
		Message:   calendar.Describe(report, nil),
		Succeeded: report.Succeeded(),
		Pages:     make([]pageResult, 0, len(report.Outcomes)),
	}
	for _, o := range report.Outcomes {
		p := pageResult{Index: o.Index, Attempts: o.Attempts}
		if o.OK() {
			p.Path = o.OutputPath
		} else {
			p.Error = o.Err.Error()
		}
		out.Pages = append(out.Pages, p)
	}

	writeJSON(w, http.StatusOK, out)
}

func (s *server) handlePrompts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, apiError{Error: "method not allowed"})
		return
	}

	var req promptsRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid json body"})
		return
	}
	theme := strings.TrimSpace(req.Theme)
	if theme == "" {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "theme is required"})
		return
	}

	text, err := s.writer.GeneratePrompts(r.Context(), theme)
	if err != nil {
		s.logger.Error("prompt generation failed", "err", err)
		writeJSON(w, http.StatusBadGateway, apiError{Error: err.Error()})
		return
	}

	out := promptsResponse{Prompts: prompts.FromText(text)}
	if len(out.Prompts) != prompts.Size {
		out.Warning = "model returned a different prompt count"
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func withLogging(next http.Handler, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Info("http", "method", r.Method, "path", r.URL.Path, "dur_ms", time.Since(start).Milliseconds())
	})
}
