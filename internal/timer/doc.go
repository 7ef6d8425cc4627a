// Package timer provides the scheduling port used by the escalation state
// machine: one-shot and repeating timers, each cancellable through a single
// Handle whose Stop is idempotent.
package timer
