package store

import "fmt"

// Phase represents where a resource is in its reconciliation lifecycle.
type Phase string

const (
	// PhasePending indicates the resource is waiting for its first (or
	// next) reconcile task, or for a dependency to become ready.
	PhasePending Phase = "pending"

	// PhaseReconciling indicates a reconcile task is running.
	PhaseReconciling Phase = "reconciling"

	// PhaseReady indicates the last reconcile succeeded and a current
	// artifact is available.
	PhaseReady Phase = "ready"

	// PhaseFailed indicates the last reconcile failed; Error carries the
	// reason.
	PhaseFailed Phase = "failed"
)

// IsTerminal returns true when no further work is scheduled for the
// resource unless it is updated or a dependency completes.
func (p Phase) IsTerminal() bool {
	return p == PhaseReady || p == PhaseFailed
}

// Validate checks if the phase is a known value.
func (p Phase) Validate() error {
	switch p {
	case PhasePending, PhaseReconciling, PhaseReady, PhaseFailed:
		return nil
	default:
		return fmt.Errorf("invalid phase: %s", p)
	}
}

// Status is the reconciliation state of one resource. Generation
// increases monotonically with each object upsert; completion results
// from superseded generations are discarded.
type Status struct {
	Phase      Phase
	Error      string
	Generation int64
}
