package archive

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// maxNameRunes caps directory name length, leaving headroom for the id
// prefix on long group names
const maxNameRunes = 120

// asciiFold strips combining marks so accented names survive as their
// base letters
var asciiFold = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// SanitizeName makes a conversation name safe to use as a directory name.
// Diacritics are folded, path separators and characters filesystems
// reject are dropped, whitespace is collapsed. Returns "" when nothing
// survives the filter.
func SanitizeName(name string) string {
	if folded, _, err := transform.String(asciiFold, name); err == nil {
		name = folded
	}

	var b strings.Builder
	lastSpace := false
	for _, r := range name {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		case r == ' ' || r == '\t':
			if !lastSpace && b.Len() > 0 {
				b.WriteRune(' ')
				lastSpace = true
			}
		case strings.ContainsRune("-_.,'()!&@+=", r):
			b.WriteRune(r)
			lastSpace = false
		}
	}

	out := strings.TrimSpace(b.String())
	out = strings.TrimRight(out, ".")

	if all := []rune(out); len(all) > maxNameRunes {
		out = strings.TrimSpace(string(all[:maxNameRunes]))
	}

	return out
}
