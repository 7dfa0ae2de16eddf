package manifest

// Artifact is the materialized local result of reconciling a resource: a
// directory of fetched or rendered files plus the identifying key it was
// produced from. Immutable once stored; a changed source always produces
// a new Artifact value, never an in-place edit.
type Artifact struct {
	Kind      Kind
	URL       string
	Revision  string
	LocalPath string
}
