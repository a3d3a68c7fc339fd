// Package textproc holds the text handling shared by phrase filtering,
// query building and reason generation.
package textproc

import (
	"strings"
	"unicode"
)

// SplitSentences splits on '.', '!' or '?' followed by whitespace, and on
// line breaks. Terminal punctuation stays with its sentence. Empty pieces
// are dropped.
func SplitSentences(text string) []string {
	var out []string
	runes := []rune(text)
	start := 0

	flush := func(end int) {
		if s := strings.TrimSpace(string(runes[start:end])); s != "" {
			out = append(out, s)
		}
		start = end
	}

	for i, r := range runes {
		switch {
		case r == '\n' || r == '\r':
			flush(i)
		case (r == '.' || r == '!' || r == '?') && i+1 < len(runes) && unicode.IsSpace(runes[i+1]):
			flush(i + 1)
		}
	}
	flush(len(runes))
	return out
}

// Words lower-cases s, replaces every non-letter with a space and splits
// on whitespace
func Words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
}

// ContainsFold reports whether s contains substr, ignoring case
func ContainsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// NormalizePhrase trims, collapses inner whitespace and lower-cases p; the
// form used for case-insensitive comparison of phrases
func NormalizePhrase(p string) string {
	return strings.ToLower(strings.Join(strings.Fields(p), " "))
}
