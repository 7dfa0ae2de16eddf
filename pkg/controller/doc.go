// Package controller implements the per-kind reconcilers.
//
// Each controller is a small state machine driven entirely by the
// scheduler: given a resource object, it performs the fetch, build, or
// template operation (delegating to the external collaborators in
// pkg/tools) and returns either an artifact or a classified
// ReconcileError. Controllers never mutate the input object and never
// write statuses; the store owns both.
//
// Source controllers (git, OCI, Helm repository) consult the artifact
// cache first: a pinned revision with a completed fetch is not fetched
// again. Chart-producing sources additionally discover Chart.yaml
// descriptors under the fetched tree and run a dependency build for
// each chart declaring dependencies.
//
// The HelmRelease and Kustomization controllers read their source's
// artifact through the ArtifactReader; an absent artifact yields a
// wait-classified error, returning the resource to pending until the
// source's completion cascade resubmits it.
package controller
