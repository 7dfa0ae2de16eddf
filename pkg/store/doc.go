// Package store holds the in-memory object graph and drives
// change-triggered reconciliation.
//
// Every AddObject/UpdateObject upserts the object under its identity
// tuple, resets its status to pending with a new generation, clears any
// current artifact, refreshes the reverse dependency index, and submits
// a reconcile task to the scheduler. When the task completes the store
// records the outcome and resubmits the direct dependents of the
// resource, which is how a HelmRelease is re-templated after its source
// repository becomes ready. Cascades progress one hop per completion;
// the scheduler's BlockTillDone observes the whole chain because each
// hop enqueues the next before its own task finishes.
//
// Status transitions: pending -> reconciling -> ready | failed, with an
// update always resetting to pending. A dependent whose source is not
// ready returns to pending rather than failing, so a failed source
// leaves its dependents pending, never falsely ready.
//
// Per-key writes are serialized by the scheduler's one-task-per-key
// rule; the store's own mutex only guards map access, and artifact
// values are swapped whole so concurrent cross-key readers never see a
// partial value.
package store
