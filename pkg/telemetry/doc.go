// Package telemetry provides the observability stack for fluxlite:
// structured logging (zerolog), reconciliation metrics (Prometheus), and
// distributed tracing (OpenTelemetry).
//
// All three are configured from a single Config value and constructed
// explicitly; nothing here is global state. Components receive child
// loggers via Component and propagate them through context where a call
// chain crosses package boundaries.
//
// Metrics use a private registry so tests can construct isolated
// instances; the HTTP handler is only mounted by long-running commands
// (watch mode).
package telemetry
