package commands

import (
	"os"

	"github.com/spf13/cobra"
)

func newGetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <path>",
		Short: "Show reconciliation status for manifests under a path",
		Long: `Reconcile the manifests under the given path and print the status
table. Unlike build, the exit code is zero even when resources failed;
the command reports state rather than enforcing it.`,
		Example: `  fluxlite get ./clusters/prod`,
		Args:    cobra.ExactArgs(1),
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

			engine.printSummary(os.Stdout)
			return nil
		},
	}
	return cmd
}
