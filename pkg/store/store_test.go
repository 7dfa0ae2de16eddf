package store

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxlite/fluxlite/pkg/controller"
	"github.com/fluxlite/fluxlite/pkg/manifest"
	"github.com/fluxlite/fluxlite/pkg/scheduler"
	"github.com/fluxlite/fluxlite/pkg/telemetry"
)

// fakeController records calls and delegates to a configurable function.
type fakeController struct {
	mu    sync.Mutex
	calls []manifest.NamedResource
	fn    func(ctx context.Context, obj manifest.Object) (*manifest.Artifact, error)
}

func (f *fakeController) Reconcile(ctx context.Context, obj manifest.Object) (*manifest.Artifact, error) {
	f.mu.Lock()
	f.calls = append(f.calls, obj.ObjectRef())
	f.mu.Unlock()
	return f.fn(ctx, obj)
}

func (f *fakeController) numCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newTestStore(t *testing.T) (*Store, *scheduler.Service) {
	t.Helper()
	sched := scheduler.New(2, zerolog.Nop(), telemetry.NewMetrics(telemetry.MetricsConfig{}))
	t.Cleanup(sched.Close)
	return New(sched, noTracer(t), zerolog.Nop(), telemetry.NewMetrics(telemetry.MetricsConfig{})), sched
}

func noTracer(t *testing.T) *telemetry.Tracer {
	t.Helper()
	tracer, err := telemetry.NewTracer(telemetry.TracingConfig{}, "test", "dev", "test")
	require.NoError(t, err)
	return tracer
}

func gitRepo(name string) *manifest.GitRepository {
	return &manifest.GitRepository{
		Meta: manifest.Metadata{Name: name, Namespace: "default"},
		URL:  "https://example.com/" + name + ".git",
		Ref:  manifest.GitRef{Branch: "main"},
	}
}

func helmRelease(name, sourceName string) *manifest.HelmRelease {
	return &manifest.HelmRelease{
		Meta: manifest.Metadata{Name: name, Namespace: "default"},
		Chart: manifest.HelmChartSpec{
			Chart: "charts/app",
			SourceRef: manifest.CrossRef{
				Kind: manifest.KindGitRepository,
				Name: sourceName,
			},
		},
	}
}

// sourceOK is a controller that always succeeds with a fresh artifact.
func sourceOK() *fakeController {
	return &fakeController{fn: func(ctx context.Context, obj manifest.Object) (*manifest.Artifact, error) {
		key := obj.ObjectRef()
		return &manifest.Artifact{
			Kind:      key.Kind,
			URL:       "https://example.com/" + key.Name + ".git",
			Revision:  "main",
			LocalPath: "/tmp/" + key.Name,
		}, nil
	}}
}

// releaseFrom is a controller that requires its source's artifact, like
// the real HelmRelease controller does.
func releaseFrom(s *Store) *fakeController {
	return &fakeController{fn: func(ctx context.Context, obj manifest.Object) (*manifest.Artifact, error) {
		srcKey, _ := obj.SourceRef()
		srcArt, ok := s.GetArtifact(srcKey, srcKey.Kind)
		if !ok {
			return nil, controller.NewWaitError("source " + srcKey.String() + " is not ready")
		}
		key := obj.ObjectRef()
		return &manifest.Artifact{
			Kind:      key.Kind,
			URL:       key.String(),
			Revision:  srcArt.Revision,
			LocalPath: srcArt.LocalPath + "/rendered",
		}, nil
	}}
}

func TestAddObjectReconcilesToReady(t *testing.T) {
	s, _ := newTestStore(t)
	s.Register(manifest.KindGitRepository, sourceOK())

	repo := gitRepo("app")
	s.AddObject(repo)
	s.Wait()

	status, ok := s.GetStatus(repo.ObjectRef())
	require.True(t, ok)
	assert.Equal(t, PhaseReady, status.Phase)
	assert.Empty(t, status.Error)

	art, ok := s.GetArtifact(repo.ObjectRef(), manifest.KindGitRepository)
	require.True(t, ok)
	assert.Equal(t, "/tmp/app", art.LocalPath)
}

func TestStatusDefaultsToPendingBeforeReconcile(t *testing.T) {
	s, _ := newTestStore(t)
	// No controller registered: the task will fail, but the status is
	// defined from the moment the object is inserted.
	repo := gitRepo("app")
	s.AddObject(repo)

	status, ok := s.GetStatus(repo.ObjectRef())
	require.True(t, ok)
	assert.Contains(t, []Phase{PhasePending, PhaseReconciling, PhaseFailed}, status.Phase)
}

func TestFailureRecordsFailedStatus(t *testing.T) {
	s, _ := newTestStore(t)
	s.Register(manifest.KindGitRepository, &fakeController{
		fn: func(ctx context.Context, obj manifest.Object) (*manifest.Artifact, error) {
			return nil, controller.NewFetchError("failed to fetch", errors.New("connection refused"))
		},
	})

	repo := gitRepo("app")
	s.AddObject(repo)
	s.Wait()

	status, _ := s.GetStatus(repo.ObjectRef())
	assert.Equal(t, PhaseFailed, status.Phase)
	assert.Contains(t, status.Error, "fetch")
	assert.Contains(t, status.Error, "connection refused")

	_, ok := s.GetArtifact(repo.ObjectRef(), manifest.KindGitRepository)
	assert.False(t, ok, "a failed resource has no artifact")
}

func TestCascadeSourceThenRelease(t *testing.T) {
	s, _ := newTestStore(t)
	s.Register(manifest.KindGitRepository, sourceOK())
	s.Register(manifest.KindHelmRelease, releaseFrom(s))

	repo := gitRepo("app")
	rel := helmRelease("app-release", "app")
	s.AddObject(repo)
	s.AddObject(rel)
	s.Wait()

	repoStatus, _ := s.GetStatus(repo.ObjectRef())
	relStatus, _ := s.GetStatus(rel.ObjectRef())
	assert.Equal(t, PhaseReady, repoStatus.Phase)
	assert.Equal(t, PhaseReady, relStatus.Phase)

	art, ok := s.GetArtifact(rel.ObjectRef(), manifest.KindHelmRelease)
	require.True(t, ok)
	assert.Equal(t, "/tmp/app/rendered", art.LocalPath, "release artifact reflects the source's content")
}

func TestCascadeReleaseBeforeSource(t *testing.T) {
	s, _ := newTestStore(t)
	s.Register(manifest.KindGitRepository, sourceOK())
	s.Register(manifest.KindHelmRelease, releaseFrom(s))

	// Dependent first: it goes pending-on-wait, then the source's
	// completion cascade resubmits it.
	rel := helmRelease("app-release", "app")
	repo := gitRepo("app")
	s.AddObject(rel)
	s.AddObject(repo)
	s.Wait()

	relStatus, _ := s.GetStatus(rel.ObjectRef())
	require.Equal(t, PhaseReady, relStatus.Phase)

	art, ok := s.GetArtifact(rel.ObjectRef(), manifest.KindHelmRelease)
	require.True(t, ok)
	assert.Equal(t, "main", art.Revision)
}

func TestFailedSourceLeavesDependentPending(t *testing.T) {
	s, _ := newTestStore(t)
	s.Register(manifest.KindGitRepository, &fakeController{
		fn: func(ctx context.Context, obj manifest.Object) (*manifest.Artifact, error) {
			return nil, controller.NewFetchError("failed to fetch", errors.New("boom"))
		},
	})
	s.Register(manifest.KindHelmRelease, releaseFrom(s))

	repo := gitRepo("app")
	rel := helmRelease("app-release", "app")
	s.AddObject(repo)
	s.AddObject(rel)
	s.Wait()

	repoStatus, _ := s.GetStatus(repo.ObjectRef())
	relStatus, _ := s.GetStatus(rel.ObjectRef())
	assert.Equal(t, PhaseFailed, repoStatus.Phase)
	assert.Equal(t, PhasePending, relStatus.Phase, "dependent never cascades a false ready")
	assert.Contains(t, relStatus.Error, "not ready")
}

func TestUpdateResetsStatusAndArtifact(t *testing.T) {
	s, _ := newTestStore(t)
	ctrl := sourceOK()
	s.Register(manifest.KindGitRepository, ctrl)

	repo := gitRepo("app")
	s.AddObject(repo)
	s.Wait()

	first, _ := s.GetStatus(repo.ObjectRef())
	require.Equal(t, PhaseReady, first.Phase)

	updated := gitRepo("app")
	updated.Ref.Branch = "develop"
	s.UpdateObject(updated)
	s.Wait()

	second, _ := s.GetStatus(repo.ObjectRef())
	assert.Equal(t, PhaseReady, second.Phase)
	assert.Equal(t, first.Generation+1, second.Generation)
	assert.Equal(t, 2, ctrl.numCalls(), "the update triggered a second reconcile")
}

func TestUpdateRetriggersDependents(t *testing.T) {
	s, _ := newTestStore(t)
	s.Register(manifest.KindGitRepository, sourceOK())
	relCtrl := releaseFrom(s)
	s.Register(manifest.KindHelmRelease, relCtrl)

	repo := gitRepo("app")
	rel := helmRelease("app-release", "app")
	s.AddObject(repo)
	s.AddObject(rel)
	s.Wait()
	callsAfterSettle := relCtrl.numCalls()

	s.UpdateObject(gitRepo("app"))
	s.Wait()

	assert.Greater(t, relCtrl.numCalls(), callsAfterSettle,
		"the source update cascaded to the release")
	relStatus, _ := s.GetStatus(rel.ObjectRef())
	assert.Equal(t, PhaseReady, relStatus.Phase)
}

func TestFailureOnRerunClearsArtifact(t *testing.T) {
	s, _ := newTestStore(t)
	s.Register(manifest.KindGitRepository, sourceOK())

	// Succeeds until the test flips the switch, then fails on the
	// cascade rerun.
	var failNow atomic.Bool
	s.Register(manifest.KindHelmRelease, &fakeController{
		fn: func(ctx context.Context, obj manifest.Object) (*manifest.Artifact, error) {
			if failNow.Load() {
				return nil, controller.NewTemplateError("failed to template", errors.New("boom"))
			}
			key := obj.ObjectRef()
			return &manifest.Artifact{Kind: key.Kind, URL: key.String()}, nil
		},
	})

	repo := gitRepo("app")
	rel := helmRelease("app-release", "app")
	s.AddObject(repo)
	s.AddObject(rel)
	s.Wait()

	_, ok := s.GetArtifact(rel.ObjectRef(), manifest.KindHelmRelease)
	require.True(t, ok)

	// The source update cascades to the release without an upsert.
	failNow.Store(true)
	s.UpdateObject(gitRepo("app"))
	s.Wait()

	relStatus, _ := s.GetStatus(rel.ObjectRef())
	assert.Equal(t, PhaseFailed, relStatus.Phase)
	_, ok = s.GetArtifact(rel.ObjectRef(), manifest.KindHelmRelease)
	assert.False(t, ok, "a failed rerun leaves no stale artifact behind")
}

func TestGetArtifactKindMismatch(t *testing.T) {
	s, _ := newTestStore(t)
	s.Register(manifest.KindGitRepository, sourceOK())

	repo := gitRepo("app")
	s.AddObject(repo)
	s.Wait()

	_, ok := s.GetArtifact(repo.ObjectRef(), manifest.KindOCIRepository)
	assert.False(t, ok, "kind mismatch reads as not ready")
}

func TestNoControllerRecordsFailed(t *testing.T) {
	s, _ := newTestStore(t)

	repo := gitRepo("app")
	s.AddObject(repo)
	s.Wait()

	status, _ := s.GetStatus(repo.ObjectRef())
	assert.Equal(t, PhaseFailed, status.Phase)
	assert.Contains(t, status.Error, "no controller")
}

func TestCancelledTaskEndsFailed(t *testing.T) {
	sched := scheduler.New(1, zerolog.Nop(), telemetry.NewMetrics(telemetry.MetricsConfig{}))
	s := New(sched, noTracer(t), zerolog.Nop(), telemetry.NewMetrics(telemetry.MetricsConfig{}))

	started := make(chan struct{})
	s.Register(manifest.KindGitRepository, &fakeController{
		fn: func(ctx context.Context, obj manifest.Object) (*manifest.Artifact, error) {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		},
	})

	repo := gitRepo("app")
	s.AddObject(repo)
	<-started
	sched.Close()

	status, _ := s.GetStatus(repo.ObjectRef())
	assert.Equal(t, PhaseFailed, status.Phase)
	assert.Contains(t, status.Error, "cancelled")
}
