package prompts

import (
	"errors"
	"fmt"
)

// Size is the number of prompts in one calendar batch, one per month.
const Size = 12

var ErrCount = errors.New("prompt count mismatch")

type CountError struct {
	Expected int
	Actual   int
}

func (e *CountError) Error() string {
	return fmt.Sprintf("expected exactly %d prompts, got %d", e.Expected, e.Actual)
}

func (e *CountError) Is(target error) bool {
	return target == ErrCount
}

// Batch is an immutable, ordered list of prompts. Position i (1-based) is the
// prompt for calendar page i.
type Batch struct {
	items []string
}

func NewBatch(list []string, n int) (Batch, error) {
	if len(list) != n {
		return Batch{}, &CountError{Expected: n, Actual: len(list)}
	}

	items := make([]string, len(list))
	copy(items, list)
	return Batch{items: items}, nil
}

func (b Batch) Len() int {
	return len(b.items)
}

// Prompt returns the prompt for the 1-based index, or "" when out of range.
func (b Batch) Prompt(index int) string {
	if index < 1 || index > len(b.items) {
		return ""
	}
	return b.items[index-1]
}

func (b Batch) Prompts() []string {
	out := make([]string, len(b.items))
	copy(out, b.items)
	return out
}
