package tools

import (
	"context"

	"github.com/fluxlite/fluxlite/pkg/manifest"
)

// Fetcher materializes a remote source into a local destination
// directory. The object decides the protocol (git checkout, OCI pull,
// repository index download).
type Fetcher interface {
	// Fetch downloads the source declared by src into dest. dest exists
	// and may contain the output of a previous fetch; implementations
	// overwrite idempotently.
	Fetch(ctx context.Context, src manifest.Source, dest string) error
}

// DependencyBuilder resolves the declared dependencies of a Helm chart.
type DependencyBuilder interface {
	// BuildDependencies runs a dependency build with chartDir as the
	// working directory. Called only for charts that declare at least
	// one dependency.
	BuildDependencies(ctx context.Context, chartDir string) error
}

// ChartSource locates the chart a release templates against: a local
// directory for git/OCI sources, or a repository URL for Helm
// repository sources. Exactly one field is set.
type ChartSource struct {
	Dir     string
	RepoURL string
}

// Templater renders a Helm release into a manifest stream.
type Templater interface {
	// Template renders the release against the resolved chart source and
	// returns the rendered manifests.
	Template(ctx context.Context, release *manifest.HelmRelease, chart ChartSource) ([]byte, error)
}

// KustomizeBuilder renders a kustomize overlay directory.
type KustomizeBuilder interface {
	// Build runs a kustomize build over dir and returns the rendered
	// manifests.
	Build(ctx context.Context, dir string) ([]byte, error)
}
