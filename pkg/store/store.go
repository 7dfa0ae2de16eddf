package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fluxlite/fluxlite/pkg/controller"
	"github.com/fluxlite/fluxlite/pkg/manifest"
	"github.com/fluxlite/fluxlite/pkg/scheduler"
	"github.com/fluxlite/fluxlite/pkg/telemetry"
)

// Controller reconciles one resource kind. Implementations must not
// mutate the object and must honour context cancellation.
type Controller interface {
	Reconcile(ctx context.Context, obj manifest.Object) (*manifest.Artifact, error)
}

// Store is the in-memory object graph with per-object status and
// artifact slots. Mutations trigger reconcile tasks on the scheduler.
type Store struct {
	logger  zerolog.Logger
	metrics *telemetry.Metrics
	tracer  *telemetry.Tracer
	sched   *scheduler.Service

	controllers map[manifest.Kind]Controller

	mu        sync.RWMutex
	objects   map[manifest.NamedResource]manifest.Object
	statuses  map[manifest.NamedResource]Status
	artifacts map[manifest.NamedResource]*manifest.Artifact

	// dependents is the reverse dependency index: source key to the set
	// of keys whose spec references it. sourceOf remembers each
	// dependent's current edge so upserts can retarget it.
	dependents map[manifest.NamedResource]map[manifest.NamedResource]struct{}
	sourceOf   map[manifest.NamedResource]manifest.NamedResource
}

// New creates a store bound to a scheduler. Controllers are registered
// per kind before objects are added.
func New(sched *scheduler.Service, tracer *telemetry.Tracer, logger zerolog.Logger, metrics *telemetry.Metrics) *Store {
	return &Store{
		logger:      logger.With().Str("component", "store").Logger(),
		metrics:     metrics,
		tracer:      tracer,
		sched:       sched,
		controllers: make(map[manifest.Kind]Controller),
		objects:     make(map[manifest.NamedResource]manifest.Object),
		statuses:    make(map[manifest.NamedResource]Status),
		artifacts:   make(map[manifest.NamedResource]*manifest.Artifact),
		dependents:  make(map[manifest.NamedResource]map[manifest.NamedResource]struct{}),
		sourceOf:    make(map[manifest.NamedResource]manifest.NamedResource),
	}
}

// Register binds a controller to a resource kind.
func (s *Store) Register(kind manifest.Kind, c Controller) {
	s.controllers[kind] = c
}

// AddObject inserts a new object and schedules its reconciliation.
func (s *Store) AddObject(obj manifest.Object) {
	s.upsert(obj)
}

// UpdateObject replaces an object wholesale and schedules its
// reconciliation. Adding and updating are the same operation on an
// in-memory graph; both reset status to pending.
func (s *Store) UpdateObject(obj manifest.Object) {
	s.upsert(obj)
}

func (s *Store) upsert(obj manifest.Object) {
	key := obj.ObjectRef()

	s.mu.Lock()
	s.objects[key] = obj
	gen := s.statuses[key].Generation + 1
	s.statuses[key] = Status{Phase: PhasePending, Generation: gen}
	delete(s.artifacts, key)

	// Retarget the reverse index edge for this object.
	if old, ok := s.sourceOf[key]; ok {
		delete(s.dependents[old], key)
		delete(s.sourceOf, key)
	}
	if src, ok := obj.SourceRef(); ok {
		if s.dependents[src] == nil {
			s.dependents[src] = make(map[manifest.NamedResource]struct{})
		}
		s.dependents[src][key] = struct{}{}
		s.sourceOf[key] = src
	}
	s.mu.Unlock()

	s.logger.Debug().Stringer("key", key).Int64("generation", gen).Msg("Object upserted")
	s.enqueue(key)
}

// GetStatus returns the current status for the key.
func (s *Store) GetStatus(key manifest.NamedResource) (Status, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.statuses[key]
	return st, ok
}

// GetArtifact returns the current artifact for the key if it exists and
// matches the expected kind. An artifact exists only while the resource
// is ready.
func (s *Store) GetArtifact(key manifest.NamedResource, kind manifest.Kind) (*manifest.Artifact, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	art, ok := s.artifacts[key]
	if !ok || art.Kind != kind {
		return nil, false
	}
	return art, true
}

// Keys returns all known resource keys.
func (s *Store) Keys() []manifest.NamedResource {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]manifest.NamedResource, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	return keys
}

// Wait blocks until all reconciliation activity, including cascades,
// has settled.
func (s *Store) Wait() {
	s.sched.BlockTillDone()
}

func (s *Store) enqueue(key manifest.NamedResource) {
	s.sched.Submit(key.String(), func(ctx context.Context) {
		s.reconcile(ctx, key)
	})
}

// reconcile runs one task for a key: snapshot the object, mark it
// reconciling, delegate to the kind's controller, and record the result.
// All failures are converted into status updates here; nothing escapes
// the task boundary.
func (s *Store) reconcile(ctx context.Context, key manifest.NamedResource) {
	s.mu.Lock()
	obj, ok := s.objects[key]
	if !ok {
		s.mu.Unlock()
		return
	}
	gen := s.statuses[key].Generation
	s.statuses[key] = Status{Phase: PhaseReconciling, Generation: gen}
	ctrl := s.controllers[key.Kind]
	s.mu.Unlock()

	ctx, span := s.tracer.StartSpan(ctx, "store.reconcile",
		attribute.String("kind", string(key.Kind)),
		attribute.String("namespace", key.Namespace),
		attribute.String("name", key.Name),
	)
	defer span.End()

	s.metrics.ReconcileStarted(string(key.Kind))
	started := time.Now()

	var art *manifest.Artifact
	var err error
	switch {
	case ctrl == nil:
		err = errors.New("no controller registered for kind " + string(key.Kind))
	case ctx.Err() != nil:
		err = controller.NewCancelledError("reconciliation cancelled", ctx.Err())
	default:
		art, err = ctrl.Reconcile(ctx, obj)
		if err != nil && ctx.Err() != nil && !controller.IsCancelled(err) {
			err = controller.NewCancelledError("reconciliation cancelled", err)
		}
	}

	telemetry.RecordError(span, err)
	s.complete(key, gen, art, err, time.Since(started))
}

// complete records a task result and cascades to direct dependents on
// success. Results for superseded generations are dropped: the upsert
// that bumped the generation has already reset the status and a
// coalesced rerun is on its way.
func (s *Store) complete(key manifest.NamedResource, gen int64, art *manifest.Artifact, err error, elapsed time.Duration) {
	s.mu.Lock()
	if s.statuses[key].Generation != gen {
		s.mu.Unlock()
		s.logger.Debug().Stringer("key", key).Int64("generation", gen).Msg("Dropping superseded result")
		return
	}

	var result string
	switch {
	case err == nil:
		s.statuses[key] = Status{Phase: PhaseReady, Generation: gen}
		s.artifacts[key] = art
		result = "ready"
	case controller.IsWait(err):
		s.statuses[key] = Status{Phase: PhasePending, Error: err.Error(), Generation: gen}
		delete(s.artifacts, key)
		result = "waiting"
	default:
		s.statuses[key] = Status{Phase: PhaseFailed, Error: err.Error(), Generation: gen}
		delete(s.artifacts, key)
		result = "failed"
	}

	var deps []manifest.NamedResource
	if err == nil {
		for d := range s.dependents[key] {
			deps = append(deps, d)
		}
	}
	s.mu.Unlock()

	s.metrics.ReconcileCompleted(string(key.Kind), result, elapsed)
	switch result {
	case "ready":
		s.logger.Info().Stringer("key", key).Dur("elapsed", elapsed).Msg("Reconciled")
	case "waiting":
		s.logger.Debug().Stringer("key", key).Str("reason", err.Error()).Msg("Waiting for dependency")
	default:
		s.logger.Error().Stringer("key", key).Err(err).Msg("Reconciliation failed")
	}

	// One hop of the cascade; the dependents' own completions trigger
	// the next hop.
	for _, d := range deps {
		s.enqueue(d)
	}
}
