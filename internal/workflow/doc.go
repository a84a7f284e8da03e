// Package workflow runs job tasks in the background.
//
// A Launcher starts one goroutine per job, detached from the request that
// created it, and records the failure code and message when a task returns
// an error or panics. Tasks mark their own success. Stop cancels every task
// and waits out a grace period, so jobs cut short by shutdown still end in a
// terminal state. Finished jobs can raise ntfy alerts through the
// notifications package.
package workflow
