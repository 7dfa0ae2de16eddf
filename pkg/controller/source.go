package controller

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/fluxlite/fluxlite/pkg/cache"
	"github.com/fluxlite/fluxlite/pkg/manifest"
	"github.com/fluxlite/fluxlite/pkg/telemetry"
	"github.com/fluxlite/fluxlite/pkg/tools"
)

// ArtifactReader is the store surface dependent controllers read their
// source's artifact through.
type ArtifactReader interface {
	GetArtifact(key manifest.NamedResource, kind manifest.Kind) (*manifest.Artifact, bool)
}

// SourceController reconciles repository sources into fetched artifact
// directories. One instance per source kind; chart-producing kinds
// (git, OCI) additionally build chart dependencies after fetching.
type SourceController struct {
	logger  zerolog.Logger
	metrics *telemetry.Metrics
	cache   *cache.Cache
	fetcher tools.Fetcher
	deps    tools.DependencyBuilder

	// scanCharts enables Chart.yaml discovery after a fetch.
	scanCharts bool
}

// NewGitController creates the controller for GitRepository objects.
func NewGitController(c *cache.Cache, fetcher tools.Fetcher, deps tools.DependencyBuilder, logger zerolog.Logger, metrics *telemetry.Metrics) *SourceController {
	return &SourceController{
		logger:     logger.With().Str("controller", "gitrepository").Logger(),
		metrics:    metrics,
		cache:      c,
		fetcher:    fetcher,
		deps:       deps,
		scanCharts: true,
	}
}

// NewOCIController creates the controller for OCIRepository objects.
func NewOCIController(c *cache.Cache, fetcher tools.Fetcher, deps tools.DependencyBuilder, logger zerolog.Logger, metrics *telemetry.Metrics) *SourceController {
	return &SourceController{
		logger:     logger.With().Str("controller", "ocirepository").Logger(),
		metrics:    metrics,
		cache:      c,
		fetcher:    fetcher,
		deps:       deps,
		scanCharts: true,
	}
}

// NewHelmRepoController creates the controller for HelmRepository
// objects. Repository indexes contain no chart trees, so no dependency
// scan runs.
func NewHelmRepoController(c *cache.Cache, fetcher tools.Fetcher, logger zerolog.Logger, metrics *telemetry.Metrics) *SourceController {
	return &SourceController{
		logger:  logger.With().Str("controller", "helmrepository").Logger(),
		metrics: metrics,
		cache:   c,
		fetcher: fetcher,
	}
}

// Reconcile fetches the source into its cache-assigned directory and
// returns the resulting artifact.
func (c *SourceController) Reconcile(ctx context.Context, obj manifest.Object) (*manifest.Artifact, error) {
	src, ok := obj.(manifest.Source)
	if !ok {
		return nil, fmt.Errorf("object %s is not a source", obj.ObjectRef())
	}

	key := src.ObjectRef()
	url := src.SourceURL()
	revision := src.Revision()

	dest, err := c.cache.RepoPath(url, revision)
	if err != nil {
		return nil, NewFetchError("failed to reserve artifact directory", err).WithResource(key.String())
	}

	// A pinned revision that already completed a fetch in this process
	// cannot have changed; skip the external invocation entirely.
	if src.Pinned() && c.cache.Fetched(url, revision) {
		c.metrics.CacheHit(string(key.Kind))
		c.logger.Debug().Stringer("key", key).Str("revision", revision).Msg("Artifact cache hit, skipping fetch")
	} else {
		if err := c.fetcher.Fetch(ctx, src, dest); err != nil {
			return nil, NewFetchError(fmt.Sprintf("failed to fetch %s", url), err).WithResource(key.String())
		}
		c.cache.MarkFetched(url, revision)

		if c.scanCharts {
			if err := c.buildChartDependencies(ctx, dest); err != nil {
				return nil, err
			}
		}
	}

	return &manifest.Artifact{
		Kind:      key.Kind,
		URL:       url,
		Revision:  revision,
		LocalPath: dest,
	}, nil
}
