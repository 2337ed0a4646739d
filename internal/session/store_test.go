package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSetAndGetPromptsCopies(t *testing.T) {
	s := NewStore(Options{})
	in := []string{"a", "b"}

	s.SetPrompts(1, "ann", "winter", in)
	in[0] = "changed"

	got, theme := s.Prompts(1)
	assert.Equal(t, []string{"a", "b"}, got)
	assert.Equal(t, "winter", theme)

	got[1] = "changed"
	again, _ := s.Prompts(1)
	assert.Equal(t, []string{"a", "b"}, again)
}

func TestPromptsUnknownUser(t *testing.T) {
	got, theme := NewStore(Options{}).Prompts(42)
	assert.Nil(t, got)
	assert.Empty(t, theme)
}

func TestClear(t *testing.T) {
	s := NewStore(Options{})
	s.SetPrompts(1, "", "t", []string{"a"})

	s.Clear(1)

	got, theme := s.Prompts(1)
	assert.Empty(t, got)
	assert.Empty(t, theme)
}

func TestPruneIdleSessions(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := NewStore(Options{MaxIdle: time.Hour, Now: func() time.Time { return now }})

	s.SetPrompts(1, "", "", []string{"a"})
	now = now.Add(30 * time.Minute)
	s.SetPrompts(2, "", "", []string{"b"})
	now = now.Add(45 * time.Minute)

	assert.Equal(t, 1, s.Prune())
	got, _ := s.Prompts(1)
	assert.Nil(t, got)
	got, _ = s.Prompts(2)
	assert.Equal(t, []string{"b"}, got)
}

func TestPruneDisabled(t *testing.T) {
	s := NewStore(Options{})
	s.SetPrompts(1, "", "", []string{"a"})
	assert.Zero(t, s.Prune())
}
