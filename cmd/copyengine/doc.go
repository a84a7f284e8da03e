// Package main hosts the copyengine CLI.
//
// The Cobra command tree submits transcript and copy jobs to a running daemon
// over its HTTP API, polls them, and can run the copy engine and quality gate
// locally without a daemon. Results print as tables on a terminal and as JSON
// otherwise (or with --json).
package main
