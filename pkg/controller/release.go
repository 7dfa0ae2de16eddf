package controller

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/fluxlite/fluxlite/pkg/cache"
	"github.com/fluxlite/fluxlite/pkg/manifest"
	"github.com/fluxlite/fluxlite/pkg/telemetry"
	"github.com/fluxlite/fluxlite/pkg/tools"
)

// HelmReleaseController templates releases against their source's
// artifact and materializes the rendered manifests.
type HelmReleaseController struct {
	logger    zerolog.Logger
	metrics   *telemetry.Metrics
	cache     *cache.Cache
	templater tools.Templater
	reader    ArtifactReader
}

// NewHelmReleaseController creates the controller for HelmRelease
// objects.
func NewHelmReleaseController(c *cache.Cache, templater tools.Templater, reader ArtifactReader, logger zerolog.Logger, metrics *telemetry.Metrics) *HelmReleaseController {
	return &HelmReleaseController{
		logger:    logger.With().Str("controller", "helmrelease").Logger(),
		metrics:   metrics,
		cache:     c,
		templater: templater,
		reader:    reader,
	}
}

// Reconcile resolves the release's chart source, templates it, and
// writes the rendered manifests into a cache-assigned directory.
func (c *HelmReleaseController) Reconcile(ctx context.Context, obj manifest.Object) (*manifest.Artifact, error) {
	release, ok := obj.(*manifest.HelmRelease)
	if !ok {
		return nil, fmt.Errorf("object %s is not a HelmRelease", obj.ObjectRef())
	}

	key := release.ObjectRef()
	srcKey, ok := release.SourceRef()
	if !ok {
		return nil, NewTemplateError("release has no chart sourceRef", nil).WithResource(key.String())
	}

	srcArt, ok := c.reader.GetArtifact(srcKey, srcKey.Kind)
	if !ok {
		return nil, NewWaitError(fmt.Sprintf("source %s is not ready", srcKey)).WithResource(key.String())
	}

	chart, err := resolveChartSource(release, srcKey, srcArt)
	if err != nil {
		return nil, err
	}

	rendered, err := c.templater.Template(ctx, release, chart)
	if err != nil {
		return nil, NewTemplateError(fmt.Sprintf("failed to template release %s", release.TargetName()), err).WithResource(key.String())
	}

	return writeRendered(c.cache, key, srcArt.Revision, rendered)
}

// resolveChartSource maps the source artifact to what helm template
// needs: a chart directory inside the fetched tree for git/OCI sources,
// or the repository URL for Helm repository sources.
func resolveChartSource(release *manifest.HelmRelease, srcKey manifest.NamedResource, art *manifest.Artifact) (tools.ChartSource, error) {
	switch srcKey.Kind {
	case manifest.KindGitRepository, manifest.KindOCIRepository:
		return tools.ChartSource{Dir: filepath.Join(art.LocalPath, release.Chart.Chart)}, nil
	case manifest.KindHelmRepository:
		return tools.ChartSource{RepoURL: art.URL}, nil
	default:
		return tools.ChartSource{}, NewTemplateError(fmt.Sprintf("unsupported source kind %s for release", srcKey.Kind), nil)
	}
}

// writeRendered materializes a rendered manifest stream as the
// resource's artifact. The output directory is keyed by the resource
// identity and the source revision, so a changed source yields a new
// artifact value.
func writeRendered(c *cache.Cache, key manifest.NamedResource, revision string, rendered []byte) (*manifest.Artifact, error) {
	dir, err := c.RepoPath(key.String(), revision)
	if err != nil {
		return nil, NewTemplateError("failed to reserve output directory", err).WithResource(key.String())
	}
	out := filepath.Join(dir, "manifest.yaml")
	if err := os.WriteFile(out, rendered, 0o644); err != nil {
		return nil, NewTemplateError("failed to write rendered manifests", err).WithResource(key.String())
	}
	return &manifest.Artifact{
		Kind:      key.Kind,
		URL:       key.String(),
		Revision:  revision,
		LocalPath: dir,
	}, nil
}
