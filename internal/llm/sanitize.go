package llm

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// CleanText prepares chat content for transport: NFKC-normalize, then strip
// NUL, CR, the Unicode line/paragraph separators and all other control
// characters except tab and newline.
func CleanText(s string) string {
	s = norm.NFKC.String(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\t' || r == '\n':
			b.WriteRune(r)
		case r == '\r' || r == 0 || r == '\u2028' || r == '\u2029':
			// dropped
		case r < 0x20 || (r >= 0x7f && r <= 0x9f):
			// other control characters dropped
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
