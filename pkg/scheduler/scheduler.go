package scheduler

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fluxlite/fluxlite/pkg/telemetry"
)

// Task is a unit of reconciliation work. The context is cancelled when
// the service shuts down; tasks must not outlive it.
type Task func(ctx context.Context)

// Service runs submitted tasks on a fixed worker pool while enforcing
// the one-in-flight-task-per-key rule.
type Service struct {
	logger  zerolog.Logger
	metrics *telemetry.Metrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu   sync.Mutex
	cond *sync.Cond

	// queue holds keys admitted in FIFO order. Each key appears at most
	// once; its payload lives in pending.
	queue   []string
	pending map[string]Task

	// running tracks keys whose task a worker currently executes.
	running map[string]bool

	// dirty holds the payload for keys resubmitted while running; the
	// key is requeued once when the running task completes.
	dirty map[string]Task

	// active counts tasks that are queued, running, or pending rerun.
	active int

	closed bool
}

// New creates a scheduling service with the given worker count and
// starts its workers. metrics may be a disabled instance.
func New(workers int, logger zerolog.Logger, metrics *telemetry.Metrics) *Service {
	if workers <= 0 {
		workers = 4
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		logger:  logger.With().Str("component", "scheduler").Logger(),
		metrics: metrics,
		ctx:     ctx,
		cancel:  cancel,
		pending: make(map[string]Task),
		running: make(map[string]bool),
		dirty:   make(map[string]Task),
	}
	s.cond = sync.NewCond(&s.mu)

	for i := 0; i < workers; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}
	s.logger.Debug().Int("workers", workers).Msg("Scheduler started")
	return s
}

// Submit schedules a task for the given key and returns immediately.
// If a task for the key is queued but not started, the queued payload is
// replaced. If one is running, the key is marked dirty and rerun once
// after it completes. Submissions after Close are dropped.
func (s *Service) Submit(key string, task Task) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		s.logger.Debug().Str("key", key).Msg("Dropping submission after close")
		return
	}

	switch {
	case s.running[key]:
		if _, ok := s.dirty[key]; !ok {
			s.active++
		}
		s.dirty[key] = task
	case s.pending[key] != nil:
		s.pending[key] = task
	default:
		s.pending[key] = task
		s.queue = append(s.queue, key)
		s.active++
	}

	s.metrics.SetActiveTasks(s.active)
	s.cond.Broadcast()
}

// NumActive returns the number of tasks currently running, queued, or
// pending rerun.
func (s *Service) NumActive() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// BlockTillDone suspends the caller until the active-task count reaches
// zero, including tasks enqueued while waiting. Idempotent: calling it
// on an already quiescent service returns immediately.
func (s *Service) BlockTillDone() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.active > 0 {
		s.cond.Wait()
	}
}

// Close cancels in-flight tasks and waits for the workers to drain.
// Queued tasks still run, observing the cancelled context, so every
// resource reaches a consistent terminal state. Safe to call twice.
func (s *Service) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.wg.Wait()
		return
	}
	s.closed = true
	s.cancel()
	s.cond.Broadcast()
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Debug().Msg("Scheduler stopped")
}

func (s *Service) worker(id int) {
	defer s.wg.Done()

	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.cond.Wait()
		}
		if len(s.queue) == 0 {
			// Closed and drained.
			s.mu.Unlock()
			return
		}
		key := s.queue[0]
		s.queue = s.queue[1:]
		task := s.pending[key]
		delete(s.pending, key)
		s.running[key] = true
		s.mu.Unlock()

		s.runTask(id, key, task)

		s.mu.Lock()
		delete(s.running, key)
		if t, ok := s.dirty[key]; ok {
			// Coalesced resubmission: the dirty slot becomes a queued
			// slot, so the active count is unchanged by the move.
			delete(s.dirty, key)
			s.pending[key] = t
			s.queue = append(s.queue, key)
		}
		s.active--
		s.metrics.SetActiveTasks(s.active)
		s.cond.Broadcast()
		s.mu.Unlock()
	}
}

// runTask executes one task, containing panics at the boundary so a
// broken task never takes down its worker or siblings.
func (s *Service) runTask(worker int, key string, task Task) {
	taskID := uuid.NewString()[:8]
	logger := s.logger.With().Str("key", key).Str("task_id", taskID).Int("worker", worker).Logger()

	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("Task panicked")
		}
	}()

	logger.Trace().Msg("Task started")
	task(s.ctx)
	logger.Trace().Msg("Task finished")
}
