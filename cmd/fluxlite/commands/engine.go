package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"

	"github.com/fluxlite/fluxlite/pkg/cache"
	"github.com/fluxlite/fluxlite/pkg/controller"
	"github.com/fluxlite/fluxlite/pkg/manifest"
	"github.com/fluxlite/fluxlite/pkg/scheduler"
	"github.com/fluxlite/fluxlite/pkg/store"
	"github.com/fluxlite/fluxlite/pkg/telemetry"
	"github.com/fluxlite/fluxlite/pkg/tools"
)

// engine wires the reconciliation core for one CLI invocation: cache,
// scheduler, store, controllers, and the exec-backed collaborators.
type engine struct {
	logger  zerolog.Logger
	metrics *telemetry.Metrics
	tracer  *telemetry.Tracer
	sched   *scheduler.Service
	store   *store.Store
	parser  *manifest.Parser
	cache   *cache.Cache
}

func newEngine(metricsEnabled bool) (*engine, error) {
	cfg := telemetry.DefaultConfig()
	cfg.Logging.Level = logLevel
	cfg.Logging.Format = logFormat
	cfg.Metrics.Enabled = metricsEnabled
	cfg.Tracing.Enabled = traceExporter != ""
	if traceExporter != "" {
		cfg.Tracing.Exporter = traceExporter
		cfg.Tracing.Endpoint = traceEndpoint
	}

	logger := telemetry.NewLogger(cfg.Logging)
	metrics := telemetry.NewMetrics(cfg.Metrics)
	tracer, err := telemetry.NewTracer(cfg.Tracing, cfg.ServiceName, cfg.ServiceVersion, cfg.Environment)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	dir := cacheDir
	if dir == "" {
		tmp, err := os.MkdirTemp("", "fluxlite-cache-")
		if err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
		dir = tmp
	}
	artifactCache := cache.New(dir)

	sched := scheduler.New(concurrency, logger, metrics)
	st := store.New(sched, tracer, logger, metrics)

	fetcher := tools.NewFetcher(logger)
	depBuilder := tools.NewHelmDependencyBuilder(logger)
	templater := tools.NewHelmTemplater(logger)
	kustomize := tools.NewKustomizeBuilder(logger)

	st.Register(manifest.KindGitRepository,
		controller.NewGitController(artifactCache, fetcher, depBuilder, logger, metrics))
	st.Register(manifest.KindOCIRepository,
		controller.NewOCIController(artifactCache, fetcher, depBuilder, logger, metrics))
	st.Register(manifest.KindHelmRepository,
		controller.NewHelmRepoController(artifactCache, fetcher, logger, metrics))
	st.Register(manifest.KindHelmRelease,
		controller.NewHelmReleaseController(artifactCache, templater, st, logger, metrics))
	st.Register(manifest.KindKustomization,
		controller.NewKustomizationController(artifactCache, kustomize, st, logger, metrics))

	return &engine{
		logger:  logger,
		metrics: metrics,
		tracer:  tracer,
		sched:   sched,
		store:   st,
		parser:  manifest.NewParser(logger),
		cache:   artifactCache,
	}, nil
}

// load parses the manifest path (file or directory) and adds every
// object to the store, triggering reconciliation.
func (e *engine) load(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to read manifest path: %w", err)
	}

	var objects []manifest.Object
	if info.IsDir() {
		objects, err = e.parser.ParseDir(path)
	} else {
		objects, err = e.parser.ParseFile(path)
	}
	if err != nil {
		return err
	}
	if len(objects) == 0 {
		return fmt.Errorf("no resource objects found under %s", path)
	}

	for _, obj := range objects {
		e.store.AddObject(obj)
	}
	return nil
}

// close tears down the scheduler, cancelling in-flight tasks, and
// flushes any buffered trace spans.
func (e *engine) close() {
	e.sched.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.tracer.Shutdown(ctx); err != nil {
		e.logger.Warn().Err(err).Msg("Failed to shut down tracer")
	}
}

// printSummary writes a status table and returns the number of failed
// resources.
func (e *engine) printSummary(w io.Writer) int {
	keys := e.store.Keys()
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tNAMESPACE\tNAME\tSTATUS\tARTIFACT\tMESSAGE")

	failed := 0
	for _, key := range keys {
		status, _ := e.store.GetStatus(key)
		if status.Phase == store.PhaseFailed {
			failed++
		}
		artifact := ""
		if art, ok := e.store.GetArtifact(key, key.Kind); ok {
			artifact = art.LocalPath
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			key.Kind, key.Namespace, key.Name, status.Phase, artifact, status.Error)
	}
	tw.Flush()
	return failed
}
