// Package manifest defines the typed resource objects fluxlite reconciles
// and the YAML parsing that produces them.
//
// Five resource kinds are supported, mirroring the Flux source and release
// vocabulary:
//
//   - GitRepository, OCIRepository, HelmRepository: remote sources that are
//     fetched into local artifact directories
//   - HelmRelease: a chart templated against its source's artifact
//   - Kustomization: a kustomize build over a path inside its source's
//     artifact
//
// Objects are identified by a NamedResource tuple (kind, namespace, name)
// and are immutable once parsed: the store replaces an object wholesale on
// update and controllers never write back into it.
//
// Parsing accepts multi-document YAML streams. Unknown kinds are skipped
// with a warning so that a manifest directory containing unrelated
// Kubernetes objects remains usable as input.
package manifest
