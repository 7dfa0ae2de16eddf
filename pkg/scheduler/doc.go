// Package scheduler provides the task scheduling service that drives
// reconciliation.
//
// A Service multiplexes submitted tasks over a fixed worker pool with
// one hard rule: at most one task per resource key is ever in flight.
// A submission for a key whose task is queued but not started replaces
// the queued payload in place; a submission for a key whose task is
// already running marks the key dirty and the task is requeued once
// after the running one completes, so the rerun always observes the
// latest object state (queue-then-rerun coalescing). Submissions for
// distinct keys run concurrently in FIFO admission order with no
// cross-key guarantees.
//
// BlockTillDone suspends the caller until no task is running, queued,
// or pending rerun. It re-evaluates after every completion, so
// dependency cascades that enqueue further tasks from inside a running
// task are fully settled before it returns.
//
// Close cancels the context handed to every task; a draining task is
// expected to observe cancellation at its next await point and record a
// terminal status for its resource. Panics are recovered at the task
// boundary and never take down a worker.
package scheduler
