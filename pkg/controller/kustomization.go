package controller

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/fluxlite/fluxlite/pkg/cache"
	"github.com/fluxlite/fluxlite/pkg/manifest"
	"github.com/fluxlite/fluxlite/pkg/telemetry"
	"github.com/fluxlite/fluxlite/pkg/tools"
)

// KustomizationController renders kustomize overlays from within their
// source's artifact.
type KustomizationController struct {
	logger  zerolog.Logger
	metrics *telemetry.Metrics
	cache   *cache.Cache
	builder tools.KustomizeBuilder
	reader  ArtifactReader
}

// NewKustomizationController creates the controller for Kustomization
// objects.
func NewKustomizationController(c *cache.Cache, builder tools.KustomizeBuilder, reader ArtifactReader, logger zerolog.Logger, metrics *telemetry.Metrics) *KustomizationController {
	return &KustomizationController{
		logger:  logger.With().Str("controller", "kustomization").Logger(),
		metrics: metrics,
		cache:   c,
		builder: builder,
		reader:  reader,
	}
}

// Reconcile builds the kustomization's path inside its source artifact
// and materializes the rendered manifests.
func (c *KustomizationController) Reconcile(ctx context.Context, obj manifest.Object) (*manifest.Artifact, error) {
	ks, ok := obj.(*manifest.Kustomization)
	if !ok {
		return nil, fmt.Errorf("object %s is not a Kustomization", obj.ObjectRef())
	}

	key := ks.ObjectRef()
	srcKey, _ := ks.SourceRef()

	srcArt, ok := c.reader.GetArtifact(srcKey, srcKey.Kind)
	if !ok {
		return nil, NewWaitError(fmt.Sprintf("source %s is not ready", srcKey)).WithResource(key.String())
	}

	dir := filepath.Join(srcArt.LocalPath, filepath.Clean(ks.Path))
	rendered, err := c.builder.Build(ctx, dir)
	if err != nil {
		return nil, NewTemplateError(fmt.Sprintf("failed to build kustomization at %s", ks.Path), err).WithResource(key.String())
	}

	return writeRendered(c.cache, key, srcArt.Revision, rendered)
}
