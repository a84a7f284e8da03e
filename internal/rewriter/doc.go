// Package rewriter implements the deterministic, seed-driven text mutations
// used to draft copy variants without an external model.
//
// Every function is pure: the same input and seed always produce the same
// output. Seeds are small integers derived from the attempt, variant, and
// sentence indexes, and Pick maps a seed onto a fixed option list.
//
// The package also owns the post-processing shared by every draft source:
// strict length clamping, per-sentence distinctness against the source, and
// cross-version distinctness.
package rewriter
