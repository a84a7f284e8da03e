// Package framework decomposes marketing copy into its five narrative slots
// (hook, pain point, solution, evidence, call to action) and rejoins them.
package framework

import (
	"strings"

	"copyengine/internal/textutil"
)

// Framework is the slot decomposition of one text.
type Framework struct {
	Hook      string `json:"hook"`
	PainPoint string `json:"painPoint"`
	Solution  string `json:"solution"`
	Evidence  string `json:"evidence"`
	CTA       string `json:"cta"`
}

// Slots returns the slots in narrative order.
func (f Framework) Slots() [5]string {
	return [5]string{f.Hook, f.PainPoint, f.Solution, f.Evidence, f.CTA}
}

// Sentences splits text into lines first and then after terminal punctuation,
// collapsing whitespace inside every sentence.
func Sentences(text string) []string {
	var out []string
	for _, line := range textutil.SplitLines(text) {
		for _, sentence := range textutil.SplitSentences(line) {
			if sentence = textutil.CollapseWhitespace(sentence); sentence != "" {
				out = append(out, sentence)
			}
		}
	}
	return out
}

// Extract assigns the first sentence to the hook and the last (when there are
// at least two) to the call to action. The middle sentences fill the pain
// point and solution, and any remainder is joined into the evidence.
//
// Empty slots fall back to the whole middle text and then to the whole
// source, so every slot is non-empty unless the source is blank. An empty
// call to action falls back to the hook.
func Extract(text string) Framework {
	sentences := Sentences(text)
	if len(sentences) == 0 {
		return Framework{}
	}

	hook := sentences[0]
	var cta string
	if len(sentences) > 1 {
		cta = sentences[len(sentences)-1]
	}
	middle := sentences[1:max(1, len(sentences)-1)]

	var painPoint, solution, evidence string
	if len(middle) > 0 {
		painPoint = middle[0]
	}
	if len(middle) > 1 {
		solution = middle[1]
	}
	if len(middle) > 2 {
		evidence = strings.Join(middle[2:], " ")
	}
	merged := strings.Join(middle, " ")
	source := strings.TrimSpace(text)

	return Framework{
		Hook:      fallback(hook, source),
		PainPoint: fallback(painPoint, merged, source),
		Solution:  fallback(solution, merged, source),
		Evidence:  fallback(evidence, merged, source),
		CTA:       fallback(cta, hook, source),
	}
}

// Compose rejoins the non-empty slots in narrative order, one per line.
func Compose(f Framework) string {
	parts := make([]string, 0, 5)
	for _, slot := range f.Slots() {
		if slot = strings.TrimSpace(slot); slot != "" {
			parts = append(parts, slot)
		}
	}
	return strings.Join(parts, "\n")
}

func fallback(candidates ...string) string {
	for _, candidate := range candidates {
		if trimmed := strings.TrimSpace(candidate); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
