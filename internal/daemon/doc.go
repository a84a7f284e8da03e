// Package daemon coordinates the long-running copyengine process.
//
// It wires configuration, the job store, the task launcher, the transcript
// pipeline, copy generation, and the media relay into a single lifecycle with
// flock-based locking to prevent multiple instances on one runtime
// directory. The HTTP API lives here as well; handlers stay thin and delegate
// to the transcript and copygen packages.
//
// Keep orchestration logic here: individual pipeline steps should live in
// their respective packages while the daemon focuses on startup, shutdown,
// and request routing.
package daemon
