package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewCounter(t *testing.T) {
	tests := []struct {
		name  string
		model string
	}{
		{"gpt-4o model", "gpt-4o"},
		{"gpt-4 model", "gpt-4"},
		{"unknown model falls back to cl100k_base", "llama3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewCounter(tt.model)
			require.NoError(t, err)
			require.NotNil(t, c)
			require.Equal(t, tt.model, c.Model())
		})
	}
}

func TestCounter_Count(t *testing.T) {
	c, err := NewCounter("gpt-4o")
	require.NoError(t, err)

	require.Equal(t, 0, c.Count(""))
	require.Greater(t, c.Count("Hello, world!"), 0)
	require.Greater(t, c.Count("a longer sentence with several words in it"), c.Count("short"))
}

func TestCounter_FitWithinBudget(t *testing.T) {
	c, err := NewCounter("gpt-4o")
	require.NoError(t, err)

	turns := []Turn{
		{Role: "user", Content: "message one"},
		{Role: "assistant", Content: "reply one"},
		{Role: "user", Content: "message two"},
		{Role: "assistant", Content: "reply two"},
	}

	fitted := c.FitWithinBudget(turns, 5)
	require.Empty(t, fitted)

	fitted = c.FitWithinBudget(turns, 10000)
	require.Equal(t, turns, fitted)

	fitted = c.FitWithinBudget(turns, 20)
	require.LessOrEqual(t, c.CountTurns(fitted), 20)
	if len(fitted) > 0 {
		require.Equal(t, turns[len(turns)-1].Content, fitted[len(fitted)-1].Content)
	}
}

func TestEstimateChars(t *testing.T) {
	require.Equal(t, 0, EstimateChars(""))
	require.Equal(t, 2, EstimateChars("hellohello"))
}
