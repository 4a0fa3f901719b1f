package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Shenoy37/Voice-to-Text-sub002/internal/job"
	"github.com/Shenoy37/Voice-to-Text-sub002/internal/stats"
)

// ProgressFunc receives a runner's progress as a percentage.
type ProgressFunc func(percent int)

// Runner performs the work of one job kind. The returned string becomes the
// job's result; a non-nil error fails the job with err.Error() as reason.
type Runner interface {
	Run(ctx context.Context, j job.Job, progress ProgressFunc) (string, error)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, j job.Job, progress ProgressFunc) (string, error)

func (f RunnerFunc) Run(ctx context.Context, j job.Job, progress ProgressFunc) (string, error) {
	return f(ctx, j, progress)
}

// Journal records job transitions. Failures are logged and never affect
// scheduling.
type Journal interface {
	Append(ctx context.Context, j job.Job, event string) error
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// Notifier delivers terminal jobs to their callback URL. Notify must not
// block.
type Notifier interface {
	Notify(ctx context.Context, j job.Job)
}

type Config struct {
	MaxConcurrent int
	MaxQueueSize  int
	// JobTimeout bounds each runner call. Zero means no deadline.
	JobTimeout time.Duration
	// JobDurationEstimate is the fixed per-job figure used by EstimatedWait.
	JobDurationEstimate time.Duration
	// JobTTL is how long terminal records are kept. Zero disables sweeping.
	JobTTL          time.Duration
	CleanupInterval time.Duration

	Now   func() time.Time
	NewID func() string
}

type Option func(*Scheduler)

func WithJournal(j Journal) Option { return func(s *Scheduler) { s.journal = j } }

func WithNotifier(n Notifier) Option { return func(s *Scheduler) { s.notifier = n } }

func WithLogger(l *slog.Logger) Option { return func(s *Scheduler) { s.logger = l } }

func WithHub(h *Hub) Option { return func(s *Scheduler) { s.hub = h } }

// Scheduler admits queued jobs into at most MaxConcurrent concurrent runner
// calls. Every store mutation goes through s.mu; each terminal transition
// re-runs admission before the lock is released.
type Scheduler struct {
	mu      sync.Mutex
	// emitMu is taken before mu is released so effects leave in mutation order.
	emitMu  sync.Mutex
	store   *Store
	runners map[job.Kind]Runner
	cancels map[string]context.CancelFunc
	started bool
	closed  bool

	cfg      Config
	hub      *Hub
	journal  Journal
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// effect is a side effect of a store mutation, emitted by unlockAndEmit.
type effect struct {
	j      job.Job
	event  string
	close  bool
	notify bool
}

func NewScheduler(cfg Config, runners map[job.Kind]Runner, opts ...Option) *Scheduler {
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 10 * time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		store: NewStore(StoreConfig{
			MaxQueueSize:  cfg.MaxQueueSize,
			MaxConcurrent: cfg.MaxConcurrent,
			Now:           cfg.Now,
			NewID:         cfg.NewID,
		}),
		runners: make(map[job.Kind]Runner, len(runners)),
		cancels: make(map[string]context.CancelFunc),
		cfg:     cfg,
		logger:  slog.Default(),
		now:     cfg.Now,
		ctx:     ctx,
		cancel:  cancel,
	}
	for k, r := range runners {
		s.runners[k] = r
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.hub == nil {
		s.hub = NewHub(0)
	}
	s.logger = s.logger.With("component", "scheduler")
	return s
}

// Hub returns the event hub streams subscribe to.
func (s *Scheduler) Hub() *Hub { return s.hub }

// Start begins admitting jobs and launches the retention sweeper. Jobs
// enqueued before Start wait in the backlog and are admitted in order.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.started || s.closed {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.unlockAndEmit(s.admitLocked())

	if s.cfg.JobTTL > 0 {
		s.wg.Add(1)
		go s.sweepLoop()
	}
	s.logger.Info("scheduler started",
		"max_concurrent", s.store.MaxConcurrent(),
		"max_queue_size", s.cfg.MaxQueueSize,
		"runners", len(s.runners),
	)
}

// Shutdown stops admissions, cancels in-flight runners and waits for them to
// record their outcome or for ctx to expire.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for runners: %w", ctx.Err())
	}
}

// Enqueue stores a new job built from j and admits it if capacity allows.
func (s *Scheduler) Enqueue(j job.Job) (job.Job, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return job.Job{}, job.ErrClosed
	}
	rec, err := s.store.Enqueue(j)
	if err != nil {
		s.mu.Unlock()
		return job.Job{}, err
	}
	effects := append([]effect{{j: rec, event: string(job.StateQueued)}}, s.admitLocked()...)
	s.logger.Info("job queued", "job_id", rec.ID, "kind", rec.Kind, "owner", rec.Owner, "priority", rec.Priority)
	s.unlockAndEmit(effects)
	return rec, nil
}

// Tick admits queued jobs into every free concurrency slot.
func (s *Scheduler) Tick() {
	s.mu.Lock()
	s.unlockAndEmit(s.admitLocked())
}

func (s *Scheduler) Inspect(id string) (job.Job, error) {
	return s.store.Find(id)
}

// List returns owner's jobs (every owner when empty) in admission order.
func (s *Scheduler) List(owner string, f Filter) []job.Job {
	return s.store.ListFor(owner, f)
}

// Cancel removes a queued or terminal job owned by requester. Active jobs
// cannot be cancelled.
func (s *Scheduler) Cancel(id, requester string) error {
	s.mu.Lock()
	rec, err := s.store.Remove(id, requester)
	if err != nil {
		s.mu.Unlock()
		return err
	}

	s.logger.Info("job removed", "job_id", rec.ID, "owner", rec.Owner, "state", rec.State)
	s.unlockAndEmit([]effect{{j: rec, event: EventRemoved, close: true}})
	return nil
}

// ReportProgress records runner progress. Values are clamped to [0,99];
// 100 is only reached by completing the job.
func (s *Scheduler) ReportProgress(id string, percent int) error {
	percent = min(max(percent, 0), 99)

	s.mu.Lock()
	rec, err := s.store.MarkProgress(id, percent)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.unlockAndEmit([]effect{{j: rec, event: EventProgress}})
	return nil
}

// ReportDone moves an active job to completed when ok, otherwise to failed
// with reason.
func (s *Scheduler) ReportDone(id string, ok bool, reason string) error {
	if ok {
		_, err := s.finish(id, job.StateCompleted, "")
		return err
	}
	_, err := s.finish(id, job.StateFailed, reason)
	return err
}

// UpdateProgress applies externally driven progress on behalf of requester,
// who must own the job. A progress of 100 without a state completes the job,
// and an error without a state fails it.
func (s *Scheduler) UpdateProgress(id, requester string, req job.UpdateRequest) (job.Job, error) {
	if err := req.Validate(); err != nil {
		return job.Job{}, err
	}

	s.mu.Lock()
	rec, err := s.store.Find(id)
	if err != nil {
		s.mu.Unlock()
		return job.Job{}, err
	}
	if rec.Owner != requester {
		s.mu.Unlock()
		return job.Job{}, fmt.Errorf("%w: %s", job.ErrForbidden, id)
	}

	target := job.StateActive
	switch {
	case req.State != nil:
		target = *req.State
	case req.Error != "":
		target = job.StateFailed
	case req.Progress != nil && *req.Progress == 100:
		target = job.StateCompleted
	}

	var effects []effect
	switch target {
	case job.StateCompleted:
		effects, rec, err = s.finishLocked(id, target, "")
	case job.StateFailed:
		effects, rec, err = s.finishLocked(id, target, req.Error)
	default:
		if rec.State != job.StateActive {
			err = fmt.Errorf("%w: %s -> active on job %s", job.ErrInvalidTransition, rec.State, id)
			break
		}
		if req.Progress != nil {
			rec, err = s.store.MarkProgress(id, min(*req.Progress, 99))
			effects = []effect{{j: rec, event: EventProgress}}
		}
	}
	if err != nil {
		s.mu.Unlock()
		return job.Job{}, err
	}
	s.unlockAndEmit(effects)
	return rec, nil
}

// Stats returns global stats and the stats of owner's jobs.
func (s *Scheduler) Stats(owner string) (stats.Global, stats.Owner) {
	snap := s.store.Snapshot()
	return stats.Compute(snap, s.store.ActiveCount()), stats.ForOwner(snap, owner)
}

// EstimatedWait returns the heuristic wait for job id.
func (s *Scheduler) EstimatedWait(id string) (stats.Estimate, error) {
	return stats.EstimatedWait(s.store.Snapshot(), id, s.cfg.JobDurationEstimate)
}

// Backlog is the number of queued and active jobs.
func (s *Scheduler) Backlog() int { return s.store.Backlog() }

func (s *Scheduler) ActiveCount() int { return s.store.ActiveCount() }

// Sweep drops terminal records finished more than JobTTL ago and prunes the
// journal with the same cutoff.
func (s *Scheduler) Sweep(ctx context.Context) int {
	if s.cfg.JobTTL <= 0 {
		return 0
	}
	cutoff := s.now().Add(-s.cfg.JobTTL)
	swept := s.store.SweepTerminal(cutoff)

	if s.journal != nil {
		n, err := s.journal.Prune(ctx, cutoff)
		if err != nil {
			s.logger.Error("journal prune failed", "error", err)
		} else if n > 0 {
			s.logger.Debug("journal pruned", "entries", n)
		}
	}
	if len(swept) > 0 {
		s.logger.Info("swept terminal jobs", "count", len(swept))
	}
	return len(swept)
}

func (s *Scheduler) sweepLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(s.ctx)
		}
	}
}

// admitLocked fills free concurrency slots in admission order. Jobs whose
// kind has no runner are failed on the spot.
func (s *Scheduler) admitLocked() []effect {
	if !s.started || s.closed {
		return nil
	}

	var effects []effect
	for s.store.ActiveCount() < s.store.MaxConcurrent() {
		next, ok := s.store.NextQueued()
		if !ok {
			break
		}
		rec, err := s.store.MarkActive(next.ID)
		if err != nil {
			s.logger.Error("admission failed", "job_id", next.ID, "error", err)
			break
		}
		effects = append(effects, effect{j: rec, event: string(job.StateActive)})

		r, ok := s.runners[rec.Kind]
		if !ok {
			failed, err := s.store.MarkTerminal(rec.ID, job.StateFailed,
				fmt.Sprintf("no runner registered for kind %q", rec.Kind))
			if err != nil {
				s.logger.Error("failing unrunnable job", "job_id", rec.ID, "error", err)
				break
			}
			effects = append(effects, effect{j: failed, event: string(job.StateFailed), close: true, notify: true})
			continue
		}

		ctx, cancel := s.jobContext()
		s.cancels[rec.ID] = cancel
		s.wg.Add(1)
		go s.run(ctx, rec, r)
	}
	return effects
}

func (s *Scheduler) jobContext() (context.Context, context.CancelFunc) {
	if s.cfg.JobTimeout > 0 {
		return context.WithTimeout(s.ctx, s.cfg.JobTimeout)
	}
	return context.WithCancel(s.ctx)
}

func (s *Scheduler) run(ctx context.Context, j job.Job, r Runner) {
	defer s.wg.Done()
	logger := s.logger.With("job_id", j.ID, "kind", j.Kind, "owner", j.Owner)
	logger.Info("job started")

	result, err := s.invoke(ctx, j, r)
	if err != nil {
		logger.Warn("job failed", "error", err)
		if _, ferr := s.finish(j.ID, job.StateFailed, err.Error()); ferr != nil {
			logger.Debug("runner outcome ignored", "error", ferr)
		}
		return
	}
	if _, ferr := s.finish(j.ID, job.StateCompleted, result); ferr != nil {
		logger.Debug("runner outcome ignored", "error", ferr)
		return
	}
	logger.Info("job completed")
}

// invoke calls the runner, converting a panic into an error.
func (s *Scheduler) invoke(ctx context.Context, j job.Job, r Runner) (result string, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("runner panic: %v", p)
		}
	}()

	progress := func(percent int) {
		if err := s.ReportProgress(j.ID, percent); err != nil && !errors.Is(err, job.ErrInvalidTransition) {
			s.logger.Warn("progress dropped", "job_id", j.ID, "error", err)
		}
	}
	return r.Run(ctx, j, progress)
}

func (s *Scheduler) finish(id string, state job.State, detail string) (job.Job, error) {
	s.mu.Lock()
	effects, rec, err := s.finishLocked(id, state, detail)
	if err != nil {
		s.mu.Unlock()
		return job.Job{}, err
	}
	s.unlockAndEmit(effects)
	return rec, nil
}

// finishLocked records the terminal state, releases the runner context and
// admits the next jobs.
func (s *Scheduler) finishLocked(id string, state job.State, detail string) ([]effect, job.Job, error) {
	rec, err := s.store.MarkTerminal(id, state, detail)
	if err != nil {
		return nil, job.Job{}, err
	}
	if cancel, ok := s.cancels[id]; ok {
		cancel()
		delete(s.cancels, id)
	}
	effects := []effect{{j: rec, event: string(state), close: true, notify: true}}
	return append(effects, s.admitLocked()...), rec, nil
}

// unlockAndEmit releases s.mu, which the caller holds, and emits effects. A
// runner that finishes before its Enqueue call returns cannot overtake the
// queued and active events.
func (s *Scheduler) unlockAndEmit(effects []effect) {
	s.emitMu.Lock()
	s.mu.Unlock()
	defer s.emitMu.Unlock()
	s.emit(effects)
}

func (s *Scheduler) emit(effects []effect) {
	for _, e := range effects {
		ev := newEvent(hubEventType(e.event), e.j)
		if e.close {
			s.hub.Close(e.j.ID, ev)
		} else {
			s.hub.Publish(e.j.ID, ev)
		}

		if s.journal != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := s.journal.Append(ctx, e.j, e.event); err != nil {
				s.logger.Error("journal append failed", "job_id", e.j.ID, "event", e.event, "error", err)
			}
			cancel()
		}

		if e.notify && e.j.CallbackURL != "" && s.notifier != nil {
			// Deliveries outlive Shutdown; the notifier bounds them itself.
			s.notifier.Notify(context.WithoutCancel(s.ctx), e.j)
		}
	}
}

func hubEventType(event string) string {
	switch event {
	case EventProgress, EventRemoved:
		return event
	case string(job.StateCompleted), string(job.StateFailed):
		return EventResult
	default:
		return EventStatus
	}
}
