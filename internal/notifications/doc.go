// Package notifications sends operator alerts about finished jobs to ntfy.
//
// Only failures are published by default; successes are opt-in. Without a
// configured topic the service is a no-op, so callers never need to check.
// Alerts are for whoever runs the daemon. API callers still learn about job
// outcomes by polling.
package notifications
