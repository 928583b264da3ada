// Package scheduler is the reminder scheduling core.
//
// A single loop goroutine owns the job table: one entry per armed task, each
// with its next fire instant, kept in a min-heap. Callers talk to the loop
// through an unbounded mailbox (Arm, Disarm, Reconcile) and never block on
// it. Due jobs are handed to the task engine; when a fire finishes it posts a
// settled command back so recurring jobs are re-armed from the loop.
//
// Readers get a copy of the table through Snapshot, published by the loop
// after every iteration.
package scheduler
