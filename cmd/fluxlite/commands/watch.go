package commands

import (
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

func newWatchCommand() *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "watch <path>",
		Short: "Continuously reconcile manifests as they change",
		Long: `Reconcile the manifests under the given path, then keep watching the
path for changes. Edited or added manifest files are re-parsed and
their objects updated in place, which re-triggers reconciliation of
the objects and everything that depends on them.

When --metrics-addr is set, Prometheus metrics are served on that
address for the lifetime of the watch.`,
		Example: `  fluxlite watch ./clusters/prod

  # With metrics
  fluxlite watch --metrics-addr :9090 ./clusters/prod`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := newEngine(metricsAddr != "")
			if err != nil {
				return err
			}
			defer engine.close()

			path := args[0]
			if err := engine.load(path); err != nil {
				return err
			}

			if metricsAddr != "" {
				go func() {
					mux := http.NewServeMux()
					mux.Handle("/metrics", engine.metrics.Handler())
					if err := http.ListenAndServe(metricsAddr, mux); err != nil {
						engine.logger.Error().Err(err).Msg("Metrics server stopped")
					}
				}()
				engine.logger.Info().Str("addr", metricsAddr).Msg("Serving metrics")
			}

			watcher, err := fsnotify.NewWatcher()
			if err != nil {
				return err
			}
			defer watcher.Close()
			if err := watchTree(watcher, path); err != nil {
				return err
			}

			engine.store.Wait()
			engine.printSummary(os.Stdout)
			engine.logger.Info().Str("path", path).Msg("Watching for changes")

			ctx := cmd.Context()
			// Editors produce bursts of events per save; a short debounce
			// collapses them into one re-parse.
			var pending map[string]struct{}
			var debounce <-chan time.Time
			for {
				select {
				case <-ctx.Done():
					return nil
				case event, ok := <-watcher.Events:
					if !ok {
						return nil
					}
					if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
						continue
					}
					ext := filepath.Ext(event.Name)
					if ext != ".yaml" && ext != ".yml" {
						continue
					}
					if pending == nil {
						pending = make(map[string]struct{})
					}
					pending[event.Name] = struct{}{}
					debounce = time.After(250 * time.Millisecond)
				case err, ok := <-watcher.Errors:
					if !ok {
						return nil
					}
					engine.logger.Warn().Err(err).Msg("Watcher error")
				case <-debounce:
					for file := range pending {
						engine.reloadFile(file)
					}
					pending = nil
					debounce = nil
					engine.store.Wait()
					engine.logger.Info().Int("active", engine.sched.NumActive()).Msg("Settled after change")
				}
			}
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "address to serve Prometheus metrics on (empty disables)")
	return cmd
}

// watchTree registers every directory under root with the watcher.
func watchTree(watcher *fsnotify.Watcher, root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return watcher.Add(filepath.Dir(root))
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
}

// reloadFile re-parses one manifest file and updates its objects in the
// store. Parse errors are logged, not fatal; the previous object
// versions stay active.
func (e *engine) reloadFile(path string) {
	objects, err := e.parser.ParseFile(path)
	if err != nil {
		e.logger.Warn().Err(err).Str("file", path).Msg("Skipping unparseable manifest")
		return
	}
	for _, obj := range objects {
		e.store.UpdateObject(obj)
	}
	e.logger.Info().Str("file", path).Int("objects", len(objects)).Msg("Reloaded manifest")
}
