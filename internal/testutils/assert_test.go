package testutils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJSONAsserter_Diff(t *testing.T) {
	tests := []struct {
		name     string
		opts     []Option
		actual   string
		expected string
		equal    bool
	}{
		{
			name:     "identical documents",
			actual:   `{"id":"AA:01","name":"fzone-01"}`,
			expected: `{"id":"AA:01","name":"fzone-01"}`,
			equal:    true,
		},
		{
			name:     "extra keys ignored by default",
			actual:   `{"id":"AA:01","name":"fzone-01","rssi":-60}`,
			expected: `{"id":"AA:01","name":"fzone-01"}`,
			equal:    true,
		},
		{
			name:     "extra keys reported when strict",
			opts:     []Option{WithIgnoreExtraKeys(false)},
			actual:   `{"id":"AA:01","rssi":-60}`,
			expected: `{"id":"AA:01"}`,
			equal:    false,
		},
		{
			name:     "presence placeholder matches any value",
			actual:   `[{"id":"AA:01","rssi":-42}]`,
			expected: `[{"id":"AA:01","rssi":"<<PRESENCE>>"}]`,
			equal:    true,
		},
		{
			name:     "ignored fields",
			opts:     []Option{WithIgnoredFields("seen_at")},
			actual:   `{"id":"AA:01","seen_at":"now"}`,
			expected: `{"id":"AA:01","seen_at":"then"}`,
			equal:    true,
		},
		{
			name:     "value mismatch",
			actual:   `{"id":"AA:01"}`,
			expected: `{"id":"AA:02"}`,
			equal:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			diff := NewJSONAsserter(t).WithOptions(tt.opts...).diff(tt.actual, tt.expected)
			if tt.equal {
				assert.Empty(t, diff)
			} else {
				assert.NotEmpty(t, diff)
			}
		})
	}
}

func TestTextAsserter_Diff(t *testing.T) {
	ta := NewTextAsserter(t)

	assert.Empty(t, ta.diff("frame 0: 3535\n", "frame 0: 3535"), "trailing newline MUST be trimmed by default")
	assert.Empty(t, ta.diff("a  \nb", "a\nb"), "trailing whitespace MUST be ignored by default")

	diff := ta.diff("a\nc", "a\nb")
	assert.Contains(t, diff, "-b")
	assert.Contains(t, diff, "+c")
}
