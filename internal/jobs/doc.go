// Package jobs stores transcript and copy-generation jobs along with their
// outputs, client request mappings, and product profile snapshots.
//
// Two Store implementations exist. MemoryStore keeps everything in maps and is
// the default. SQLStore runs on a private in-memory SQLite database so the
// same data lives in tables with the busy-retry handling of a regular
// database. Neither survives a process restart.
//
// Status changes go through CanTransition: a job only moves forward along its
// kind's flow, failed is reachable from any non-terminal status, and terminal
// jobs never change again.
package jobs
