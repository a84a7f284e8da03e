// Package textutil provides the text primitives shared by the framework
// extractor, the heuristic rewriter, and the quality gate.
//
// The primary use cases are:
//   - Splitting copy into sentences on terminal punctuation
//   - Normalizing text to its letters and digits for comparison
//   - Computing bigram sets and Jaccard overlap
//   - Rune-aware length helpers for clamping drafts
//
// All lengths are measured in runes so CJK copy is counted per character.
package textutil
