package batch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePrompts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "plain line breaks never split",
			input:    "a cat\na dog",
			expected: []string{"a cat\na dog"},
		},
		{
			name:     "separator line splits",
			input:    "a cat\n---\na dog",
			expected: []string{"a cat", "a dog"},
		},
		{
			name:     "more than three dashes still separates",
			input:    "first\n--------\nsecond",
			expected: []string{"first", "second"},
		},
		{
			name:     "two dashes are content",
			input:    "first\n--\nsecond",
			expected: []string{"first\n--\nsecond"},
		},
		{
			name:     "dashes inside a line are content",
			input:    "a long --- dashed prompt",
			expected: []string{"a long --- dashed prompt"},
		},
		{
			name:     "separator with surrounding spaces",
			input:    "one\n  ---  \ntwo",
			expected: []string{"one", "two"},
		},
		{
			name:     "empty segments dropped",
			input:    "---\none\n---\n---\ntwo\n---",
			expected: []string{"one", "two"},
		},
		{
			name:     "multi-line prompt preserved",
			input:    "scene: a harbor\nstyle: watercolor\n---\nscene: a forest",
			expected: []string{"scene: a harbor\nstyle: watercolor", "scene: a forest"},
		},
		{
			name:     "whitespace-only input yields nothing",
			input:    "  \n\t\n",
			expected: []string{},
		},
		{
			name:     "empty input yields nothing",
			input:    "",
			expected: []string{},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.expected, ParsePrompts(tc.input))
		})
	}
}
