package rewriter

import (
	"strconv"
	"strings"

	"copyengine/internal/textutil"
)

const distinctAttempts = 4

// EnforceSentenceDifferences aligns each version with the source sentence by
// sentence. A version sentence that is lexically equal to its source
// counterpart is replaced by a micro-rewrite of the source sentence. Short and
// platform-only source sentences are kept verbatim, missing sentences are
// taken from the source, and extra trailing sentences are kept.
func EnforceSentenceDifferences(source string, versions []string) []string {
	sourceSentences := textutil.SplitSentences(strings.TrimSpace(source))
	if len(sourceSentences) == 0 {
		return versions
	}
	out := make([]string, len(versions))
	for v, version := range versions {
		current := textutil.SplitSentences(strings.TrimSpace(version))
		var b strings.Builder
		for i, sourceSentence := range sourceSentences {
			sentence := sourceSentence
			if i < len(current) {
				sentence = current[i]
			}
			switch {
			case ShouldSkipSentence(sourceSentence):
				sentence = sourceSentence
			case LexicalEqual(sentence, sourceSentence):
				sentence = MicroRewrite(sourceSentence, v*29+i*5+3)
			}
			b.WriteString(sentence)
		}
		for i := len(sourceSentences); i < len(current); i++ {
			b.WriteString(current[i])
		}
		out[v] = b.String()
	}
	return out
}

// Canonical strips whitespace so versions differing only in spacing collide.
func Canonical(text string) string {
	return textutil.StripWhitespace(text)
}

// EnsureDistinct replaces versions whose canonical form was already produced
// by an earlier version. A colliding version is rebuilt by mutating its basis
// with escalating seeds; after the last attempt a forced variant with seed
// index+9 is used. basis[i] defaults to source when basis is short.
func EnsureDistinct(source string, versions, basis []string) []string {
	seen := make(map[string]struct{}, len(versions))
	out := make([]string, len(versions))
	for index, version := range versions {
		base := source
		if index < len(basis) {
			base = basis[index]
		}
		current := version
		placed := false
		for attempt := 0; attempt < distinctAttempts; attempt++ {
			key := Canonical(current)
			if _, dup := seen[key]; !dup {
				seen[key] = struct{}{}
				out[index] = current
				placed = true
				break
			}
			current = ClampLength(source, MutateAllSentences(base, index+attempt+1))
		}
		if placed {
			continue
		}
		forced := ClampLength(source, MutateAllSentences(base, index+9))
		seen[Canonical(forced)+"#"+strconv.Itoa(index)] = struct{}{}
		out[index] = forced
	}
	return out
}

// StripAllPlatformTags applies StripTrailingPlatformTag to every version.
func StripAllPlatformTags(versions []string) []string {
	out := make([]string, len(versions))
	for i, version := range versions {
		out[i] = StripTrailingPlatformTag(version)
	}
	return out
}
