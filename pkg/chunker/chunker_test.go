package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, Config{Size: 800, Overlap: 200}.Validate())
	require.Error(t, Config{Size: 100, Overlap: 100}.Validate())
	require.Error(t, Config{Size: 100, Overlap: 200}.Validate())
}

func TestFixedWindow_EmptyInput(t *testing.T) {
	c := NewFixedWindow(Config{Size: 10, Overlap: 2})
	require.Empty(t, c.Chunk(""))
}

func TestFixedWindow_ShortText(t *testing.T) {
	c := NewFixedWindow(Config{Size: 100, Overlap: 20})
	chunks := c.Chunk("short text")
	require.Equal(t, []string{"short text"}, chunks)
}

func TestFixedWindow_MultipleWindows(t *testing.T) {
	c := NewFixedWindow(Config{Size: 10, Overlap: 4})
	text := strings.Repeat("a", 25)
	chunks := c.Chunk(text)
	require.Greater(t, len(chunks), 1)
	for _, chunk := range chunks {
		require.LessOrEqual(t, len([]rune(chunk)), 10)
	}
	require.True(t, strings.HasSuffix(text, chunks[len(chunks)-1]))
}

func TestRecursiveSeparator_EmptyInput(t *testing.T) {
	c := NewRecursiveSeparator(Config{Size: 50, Overlap: 10})
	require.Empty(t, c.Chunk(""))
}

func TestRecursiveSeparator_ShortText(t *testing.T) {
	c := NewRecursiveSeparator(Config{Size: 100, Overlap: 20})
	chunks := c.Chunk("a single short paragraph")
	require.Equal(t, []string{"a single short paragraph"}, chunks)
}

func TestRecursiveSeparator_ParagraphSplit(t *testing.T) {
	c := NewRecursiveSeparator(Config{Size: 20, Overlap: 5})
	text := "first paragraph here.\n\nsecond paragraph here.\n\nthird paragraph here."
	chunks := c.Chunk(text)
	require.Greater(t, len(chunks), 1)
}

func TestRecursiveSeparator_HardCutFallback(t *testing.T) {
	c := NewRecursiveSeparator(Config{Size: 10, Overlap: 2})
	text := strings.Repeat("x", 50)
	chunks := c.Chunk(text)
	require.Greater(t, len(chunks), 1)
}
