// Package tools defines the external collaborator contracts the
// controllers delegate to, plus implementations that shell out to the
// real binaries (git, oras, helm, kustomize) and fetch Helm repository
// indexes over HTTP.
//
// The reconciliation core treats every operation here as an opaque
// asynchronous call: success, or a plain error the controller wraps into
// its classified form. All operations honour context cancellation and are
// expected to bound their own runtime.
//
// Tests substitute these interfaces with in-memory fakes; nothing in the
// core imports the exec implementations directly.
package tools
