package telegram

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitByBytes(t *testing.T) {
	assert.Equal(t, []string{"short"}, splitByBytes("short", 10))

	parts := splitByBytes(strings.Repeat("a", 25), 10)
	assert.Equal(t, []string{strings.Repeat("a", 10), strings.Repeat("a", 10), "aaaaa"}, parts)
}

func TestSplitByBytesKeepsRunesWhole(t *testing.T) {
	parts := splitByBytes("ééé", 3)
	require.Len(t, parts, 3)
	for _, p := range parts {
		assert.Equal(t, "é", p)
	}
}

func TestTruncateByBytes(t *testing.T) {
	assert.Equal(t, "abc", truncateByBytes("abc", 5))
	assert.Equal(t, "ab", truncateByBytes("abcdef", 2))
	assert.Equal(t, "é", truncateByBytes("éé", 3))
}

func TestChunkPaths(t *testing.T) {
	paths := make([]string, 12)
	for i := range paths {
		paths[i] = string(rune('a' + i))
	}

	chunks := chunkPaths(paths, maxAlbumSize)

	require.Len(t, chunks, 2)
	assert.Len(t, chunks[0], 10)
	assert.Equal(t, []string{"k", "l"}, chunks[1])
	assert.Empty(t, chunkPaths(nil, maxAlbumSize))
}

func TestNewRejectsEmptyToken(t *testing.T) {
	_, err := New(Options{Token: "  "})
	require.Error(t, err)
}
