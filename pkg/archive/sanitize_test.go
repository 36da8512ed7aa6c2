package archive

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain ascii", "Weekend Trip", "Weekend Trip"},
		{"accents folded", "Café Réunion à Orléans", "Cafe Reunion a Orleans"},
		{"path separators dropped", "a/b\\c", "abc"},
		{"reserved characters dropped", `what? "quotes" <and> |pipes|`, "what quotes and pipes"},
		{"whitespace collapsed", "too   many    spaces", "too many spaces"},
		{"leading space trimmed", "  padded  ", "padded"},
		{"trailing dots trimmed", "ends badly...", "ends badly"},
		{"safe punctuation kept", "Tom & Jerry's (2nd!)", "Tom & Jerry's (2nd!)"},
		{"control characters dropped", "line\nbreak\ttab", "linebreak tab"},
		{"non latin letters kept", "日本語の会話", "日本語の会話"},
		{"nothing survives", "///***", ""},
		{"empty input", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizeName(tt.input))
		})
	}
}

func TestSanitizeNameLength(t *testing.T) {
	long := strings.Repeat("a", 500)
	out := SanitizeName(long)
	assert.Len(t, out, maxNameRunes)

	accented := strings.Repeat("é", 500)
	assert.Equal(t, maxNameRunes, len([]rune(SanitizeName(accented))))
}
