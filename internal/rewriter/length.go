package rewriter

import (
	"math"
	"strings"

	"copyengine/internal/textutil"
)

// LengthBounds returns the accepted rune range for drafts of source:
// [ceil(0.9·L), max(min, floor(1.1·L))] with L at least 1.
func LengthBounds(source string) (minLen, maxLen int) {
	sourceLen := float64(max(1, textutil.RuneLen(source)))
	minLen = int(math.Ceil(sourceLen * 0.9))
	maxLen = max(minLen, int(math.Floor(sourceLen*1.1)))
	return minLen, maxLen
}

// ClampLength trims draft from the end or pads it with filler sentences until
// it fits the length band of source, then makes sure it ends with terminal
// punctuation without leaving the band.
func ClampLength(source, draft string) string {
	minLen, maxLen := LengthBounds(source)
	out := []rune(strings.TrimSpace(draft))
	filler := []rune(FillerText)

	if len(out) > maxLen {
		out = out[:maxLen]
	}
	for len(out) < minLen {
		remain := minLen - len(out)
		if remain <= len(filler) {
			out = append(out, filler[:remain]...)
			break
		}
		out = append(out, filler...)
	}
	if len(out) > maxLen {
		out = out[:maxLen]
	}

	if len(out) > 0 && !textutil.IsTerminal(out[len(out)-1]) {
		if len(out) >= maxLen {
			out = append(out[:max(0, maxLen-1)], '。')
		} else {
			out = append(out, '。')
		}
	}

	if len(out) > maxLen {
		out = out[:maxLen]
	}
	for len(out) < minLen {
		out = append(out, '。')
	}
	return string(out)
}

// ClampAll applies ClampLength to every draft.
func ClampAll(source string, drafts []string) []string {
	out := make([]string, len(drafts))
	for i, draft := range drafts {
		out[i] = ClampLength(source, draft)
	}
	return out
}
