package textutil

import (
	"strings"
	"unicode"
)

// IsTerminal reports whether r ends a sentence.
func IsTerminal(r rune) bool {
	switch r {
	case '。', '！', '？', '!', '?':
		return true
	}
	return false
}

// HasTerminalSuffix reports whether text ends with sentence punctuation.
func HasTerminalSuffix(text string) bool {
	runes := []rune(text)
	if len(runes) == 0 {
		return false
	}
	return IsTerminal(runes[len(runes)-1])
}

// SplitSentences breaks text after every terminal punctuation mark. Each piece
// keeps its punctuation, is trimmed, and empty pieces are dropped.
func SplitSentences(text string) []string {
	var (
		out     []string
		current strings.Builder
	)
	flush := func() {
		if piece := strings.TrimSpace(current.String()); piece != "" {
			out = append(out, piece)
		}
		current.Reset()
	}
	for _, r := range text {
		current.WriteRune(r)
		if IsTerminal(r) {
			flush()
		}
	}
	flush()
	return out
}

// SplitLines splits text on runs of newlines, dropping blank lines.
func SplitLines(text string) []string {
	raw := strings.Split(text, "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

// CollapseWhitespace folds every whitespace run into one space and trims.
func CollapseWhitespace(text string) string {
	return strings.Join(strings.FieldsFunc(text, unicode.IsSpace), " ")
}

// StripWhitespace removes every whitespace rune.
func StripWhitespace(text string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, text)
}
