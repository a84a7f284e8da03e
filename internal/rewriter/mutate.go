package rewriter

import (
	"regexp"
	"slices"
	"strings"
	"unicode"

	"copyengine/internal/textutil"
)

var (
	doubleCommaPattern  = regexp.MustCompile(`，{2,}`)
	platformTailPattern = regexp.MustCompile(`(?i)(?:[。！？!?，,\s\p{Zs}]*(?:抖音|douyin)[。！？!?，,\s\p{Zs}]*)+$`)
)

// Pick returns options[seed mod len(options)] using a non-negative modulo.
func Pick(options []string, seed int) string {
	if len(options) == 0 {
		return ""
	}
	idx := seed % len(options)
	if idx < 0 {
		idx += len(options)
	}
	return options[idx]
}

func pickDifferent(options []string, original string, seed int) string {
	filtered := make([]string, 0, len(options))
	for _, option := range options {
		if option != original {
			filtered = append(filtered, option)
		}
	}
	if len(filtered) == 0 {
		return original
	}
	return Pick(filtered, seed)
}

// ApplySynonyms replaces every occurrence of each synonym-table key with the
// alternative selected by seed.
func ApplySynonyms(text string, seed int) string {
	for _, entry := range synonymTable {
		text = strings.ReplaceAll(text, entry.from, Pick(entry.to, seed))
	}
	return text
}

// RewriteSegment applies synonyms to every sentence of segment and prefixes
// even sentences with a rhythm word and odd sentences with a connector.
func RewriteSegment(segment string, seed int) string {
	sentences := textutil.SplitSentences(segment)
	if len(sentences) == 0 {
		return segment
	}
	var b strings.Builder
	for i, sentence := range sentences {
		current := ApplySynonyms(sentence, seed+i)
		prefix := Pick(connectorWords, seed+i)
		if i%2 == 0 {
			prefix = Pick(rhythmWords, seed+i)
		}
		b.WriteString(collapseCommas(prefix + "，" + current))
	}
	return b.String()
}

func normalizeForCompare(sentence string) string {
	stripped := strings.Map(func(r rune) rune {
		switch r {
		case '。', '！', '？', '!', '?', '、', '，', ',':
			return -1
		}
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, sentence)
	return strings.ToLower(stripped)
}

// ShouldSkipSentence reports whether a sentence is too short to rewrite or is
// just the platform name.
func ShouldSkipSentence(sentence string) bool {
	normalized := normalizeForCompare(sentence)
	if normalized == "" || normalized == "抖音" || normalized == "douyin" {
		return true
	}
	return textutil.RuneLen(normalized) <= 3
}

// LexicalEqual compares sentences ignoring whitespace, case, and punctuation.
func LexicalEqual(a, b string) bool {
	return normalizeForCompare(a) == normalizeForCompare(b)
}

// StripTrailingPlatformTag removes a trailing platform name and the
// punctuation around it. Text that would become empty is returned trimmed.
func StripTrailingPlatformTag(text string) string {
	stripped := strings.TrimSpace(platformTailPattern.ReplaceAllString(text, ""))
	if stripped == "" {
		return strings.TrimSpace(text)
	}
	return stripped
}

// MicroRewrite forces a small lexical change into sentence. It tries a table
// substitution first, then a pronoun or intensifier swap, then inserts a
// particle next to the first comma or period. Short and platform-only
// sentences are returned untouched.
func MicroRewrite(sentence string, seed int) string {
	if ShouldSkipSentence(sentence) {
		return sentence
	}
	output, changed := microSubstitute(sentence, seed)
	if !changed {
		output, changed = pronounSubstitute(sentence, seed)
	}
	if !changed {
		switch {
		case strings.Contains(sentence, "，"):
			output = strings.Replace(sentence, "，", "，"+Pick(commaParticles, seed), 1)
			changed = true
		case strings.Contains(sentence, "。"):
			output = strings.Replace(sentence, "。", "，"+Pick(periodParticles, seed)+"。", 1)
			changed = true
		}
	}
	if !changed {
		return sentence
	}
	return collapseCommas(output)
}

func microSubstitute(sentence string, seed int) (string, bool) {
	for _, entry := range microTable {
		if !strings.Contains(sentence, entry.from) || slices.Contains(entry.to, entry.from) {
			continue
		}
		return strings.Replace(sentence, entry.from, pickDifferent(entry.to, entry.from, seed), 1), true
	}
	return sentence, false
}

func pronounSubstitute(sentence string, seed int) (string, bool) {
	for _, entry := range pronounTable {
		if strings.Contains(sentence, entry.from) {
			return strings.Replace(sentence, entry.from, Pick(entry.to, seed), 1), true
		}
	}
	return sentence, false
}

// MutateAllSentences micro-rewrites every sentence of text for the given
// variant index.
func MutateAllSentences(text string, variant int) string {
	trimmed := strings.TrimSpace(text)
	sentences := textutil.SplitSentences(trimmed)
	if len(sentences) == 0 {
		return trimmed
	}
	var b strings.Builder
	for i, sentence := range sentences {
		b.WriteString(MicroRewrite(sentence, variant*31+i*7+11))
	}
	return b.String()
}

// SanitizeForbidden removes every occurrence of each non-blank forbidden word.
func SanitizeForbidden(text string, forbidden []string) string {
	for _, word := range forbidden {
		if strings.TrimSpace(word) == "" {
			continue
		}
		text = strings.ReplaceAll(text, word, "")
	}
	return text
}

func collapseCommas(text string) string {
	return doubleCommaPattern.ReplaceAllString(text, "，")
}
