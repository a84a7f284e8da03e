// Package copygen turns a source script into publishable copy variants.
//
// The Engine drafts variants with the chat model when one is configured and
// with the heuristic rewriter otherwise (or when the model fails), normalizes
// length and distinctness, and scores each attempt with the quality gate. It
// regenerates a bounded number of times before trying a model-free safe
// generation. Service wraps the engine in asynchronous jobs.
package copygen
