package textutil

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/width"
)

// NormalizeAlnum lowercases text and keeps only letters and digits.
// Full-width forms are folded to their narrow equivalents first so "ＡＢ１"
// and "ab1" compare equal.
func NormalizeAlnum(text string) string {
	folded := strings.ToLower(width.Fold.String(text))
	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// RuneLen returns the number of runes in text.
func RuneLen(text string) int {
	return utf8.RuneCountInString(text)
}

// TruncateRunes returns at most limit runes of text.
func TruncateRunes(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
