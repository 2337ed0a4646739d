package ids

import (
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRunIDIsMonotonic(t *testing.T) {
	prev := NewRunID()
	for i := 0; i < 100; i++ {
		next := NewRunID()
		_, err := ulid.ParseStrict(next)
		require.NoError(t, err)
		assert.Less(t, prev, next)
		prev = next
	}
}
