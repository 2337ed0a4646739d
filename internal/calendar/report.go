package calendar

import (
	"errors"
	"fmt"
	"strings"

	"invysia-calendar/internal/generation"
	"invysia-calendar/internal/prompts"
)

// Report is the result of one run. Outcomes are ordered by page index.
type Report struct {
	RunID    string
	Folder   string
	Outcomes []generation.Outcome
}

func (r Report) Failures() []generation.Outcome {
	var out []generation.Outcome
	for _, o := range r.Outcomes {
		if !o.OK() {
			out = append(out, o)
		}
	}
	return out
}

func (r Report) Succeeded() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.OK() {
			n++
		}
	}
	return n
}

func (r Report) String() string {
	failures := r.Failures()
	if len(failures) == 0 {
		return "Calendar generated successfully in folder: " + r.Folder
	}

	lines := make([]string, 0, len(failures))
	for _, f := range failures {
		lines = append(lines, fmt.Sprintf("Image %d: %v", f.Index, f.Err))
	}
	return "Calendar generation completed with some errors:\n" +
		strings.Join(lines, "\n") +
		"\nOutput folder: " + r.Folder
}

// Describe renders the user-facing message for the result of Run.
func Describe(report Report, err error) string {
	if err == nil {
		return report.String()
	}

	var countErr *prompts.CountError
	if errors.As(err, &countErr) {
		return fmt.Sprintf("Error: Could not find exactly %d prompts in user state. Please generate prompts first.", countErr.Expected)
	}
	return "Error: " + err.Error()
}
