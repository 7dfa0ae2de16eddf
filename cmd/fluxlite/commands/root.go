package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	logLevel      string
	logFormat     string
	cacheDir      string
	concurrency   int
	traceExporter string
	traceEndpoint string
)

// Execute runs the root command.
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "fluxlite",
		Short: "fluxlite - local GitOps control plane emulator",
		Long: `fluxlite reconciles declarative GitOps manifests (Git/Helm/OCI
repository sources, Helm releases, Kustomizations) into materialized
artifacts on local disk, without a cluster.

Sources are fetched into a content-addressed artifact cache, Helm
releases are templated against their source's artifact, and dependents
are re-reconciled automatically whenever the resource they reference
changes.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "console", "log format (console, json)")
	rootCmd.PersistentFlags().StringVar(&cacheDir, "cache-dir", "", "artifact cache directory (default: a temporary directory)")
	rootCmd.PersistentFlags().IntVar(&concurrency, "concurrency", 4, "max concurrent reconcile tasks")
	rootCmd.PersistentFlags().StringVar(&traceExporter, "trace-exporter", "", "trace exporter (otlp, stdout; empty disables tracing)")
	rootCmd.PersistentFlags().StringVar(&traceEndpoint, "trace-endpoint", "localhost:4317", "OTLP trace exporter endpoint")

	rootCmd.AddCommand(newBuildCommand())
	rootCmd.AddCommand(newGetCommand())
	rootCmd.AddCommand(newWatchCommand())

	return rootCmd
}
