package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "hello world", "hello world"},
		{"keeps newline and tab", "a\n\tb", "a\n\tb"},
		{"drops carriage return", "a\r\nb", "a\nb"},
		{"drops nul", "a\x00b", "ab"},
		{"drops line separator", "a\u2028b\u2029c", "abc"},
		{"drops other controls", "a\x07b\x1bc", "abc"},
		{"nfkc normalizes", "ａｂ", "ab"}, // fullwidth letters
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanText(tt.in))
		})
	}
}
