package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newBuildCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build <path>",
		Short: "Reconcile all manifests under a path",
		Long: `Parse every manifest under the given path, reconcile all resources
(fetching sources, building chart dependencies, templating releases),
wait for the dependency graph to settle, and print the result.

The exit code is non-zero if any resource failed to reconcile.`,
		Example: `  # Reconcile a manifest directory
  fluxlite build ./clusters/prod

  # Keep fetched artifacts in a stable cache across runs
  fluxlite build --cache-dir ~/.cache/fluxlite ./clusters/prod`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := newEngine(false)
			if err != nil {
				return err
			}
			defer engine.close()

			if err := engine.load(args[0]); err != nil {
				return err
			}
			engine.store.Wait()

			failed := engine.printSummary(os.Stdout)
			if failed > 0 {
				return fmt.Errorf("%d resource(s) failed to reconcile", failed)
			}
			return nil
		},
	}
	return cmd
}
