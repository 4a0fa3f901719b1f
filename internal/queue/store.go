package queue

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/Shenoy37/Voice-to-Text-sub002/internal/job"
	"github.com/google/uuid"
)

// StoreConfig bounds the store. Now and NewID may be nil.
type StoreConfig struct {
	MaxQueueSize  int
	MaxConcurrent int
	Now           func() time.Time
	NewID         func() string
}

// Filter narrows ListFor results. Zero fields match everything; Limit <= 0
// means no limit.
type Filter struct {
	State job.State
	Kind  job.Kind
	Limit int
}

// Store holds every job record in admission order (priority descending,
// then submission time, then submission sequence) plus the set of active
// job ids. The store is the only place job records are mutated.
type Store struct {
	mu     sync.RWMutex
	jobs   []*job.Job
	byID   map[string]*job.Job
	active map[string]struct{}
	seen   map[string]struct{}
	seq    uint64

	maxQueueSize  int
	maxConcurrent int
	now           func() time.Time
	newID         func() string
}

func NewStore(cfg StoreConfig) *Store {
	if cfg.MaxQueueSize < 1 {
		cfg.MaxQueueSize = 1
	}
	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 1
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	if cfg.NewID == nil {
		cfg.NewID = func() string { return uuid.New().String() }
	}
	return &Store{
		byID:          make(map[string]*job.Job),
		active:        make(map[string]struct{}),
		seen:          make(map[string]struct{}),
		maxQueueSize:  cfg.MaxQueueSize,
		maxConcurrent: cfg.MaxConcurrent,
		now:           cfg.Now,
		newID:         cfg.NewID,
	}
}

// Enqueue stores a new queued record built from j's kind, priority, owner,
// payload and callback URL. It returns job.ErrQueueFull when the backlog
// already holds MaxQueueSize non-terminal records.
func (s *Store) Enqueue(j job.Job) (job.Job, error) {
	if !j.Kind.Valid() {
		return job.Job{}, fmt.Errorf("%w: %q", job.ErrUnknownKind, j.Kind)
	}
	if j.Priority < job.MinPriority || j.Priority > job.MaxPriority {
		return job.Job{}, fmt.Errorf("%w: priority %d outside [%d,%d]",
			job.ErrInvalidRequest, j.Priority, job.MinPriority, job.MaxPriority)
	}
	if j.Payload == nil || j.Payload.Kind() != j.Kind {
		return job.Job{}, fmt.Errorf("%w: payload does not match kind %q", job.ErrInvalidRequest, j.Kind)
	}
	if j.Owner == "" {
		return job.Job{}, fmt.Errorf("%w: owner must not be empty", job.ErrInvalidRequest)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if n := s.backlogLocked(); n >= s.maxQueueSize {
		return job.Job{}, fmt.Errorf("%w: backlog %d reached capacity %d", job.ErrQueueFull, n, s.maxQueueSize)
	}

	id := s.newID()
	for {
		if _, dup := s.seen[id]; !dup {
			break
		}
		id = s.newID()
	}
	s.seen[id] = struct{}{}
	s.seq++
	now := s.now()

	rec := &job.Job{
		ID:          id,
		Kind:        j.Kind,
		State:       job.StateQueued,
		Priority:    j.Priority,
		Owner:       j.Owner,
		Payload:     j.Payload,
		CallbackURL: j.CallbackURL,
		SubmittedAt: now,
		UpdatedAt:   now,
		Seq:         s.seq,
	}

	pos, _ := slices.BinarySearchFunc(s.jobs, rec, func(a, b *job.Job) int {
		return job.Compare(*a, *b)
	})
	s.jobs = slices.Insert(s.jobs, pos, rec)
	s.byID[id] = rec
	return *rec, nil
}

func (s *Store) Find(id string) (job.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.byID[id]
	if !ok {
		return job.Job{}, fmt.Errorf("%w: %s", job.ErrNotFound, id)
	}
	return *rec, nil
}

// ListFor returns the records of owner (all owners when empty) matching f,
// in admission order.
func (s *Store) ListFor(owner string, f Filter) []job.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]job.Job, 0)
	for _, rec := range s.jobs {
		if owner != "" && rec.Owner != owner {
			continue
		}
		if f.State != "" && rec.State != f.State {
			continue
		}
		if f.Kind != "" && rec.Kind != f.Kind {
			continue
		}
		out = append(out, *rec)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out
}

// Remove deletes a record that is not active. Only the owner may remove it.
func (s *Store) Remove(id, requester string) (job.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[id]
	if !ok {
		return job.Job{}, fmt.Errorf("%w: %s", job.ErrNotFound, id)
	}
	if rec.Owner != requester {
		return job.Job{}, fmt.Errorf("%w: %s", job.ErrForbidden, id)
	}
	if rec.State == job.StateActive {
		return job.Job{}, fmt.Errorf("%w: job %s is active", job.ErrConflict, id)
	}
	s.deleteLocked(rec)
	return *rec, nil
}

// NextQueued returns the first queued record in admission order.
func (s *Store) NextQueued() (job.Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rec := range s.jobs {
		if rec.State == job.StateQueued {
			return *rec, true
		}
	}
	return job.Job{}, false
}

// MarkActive moves a queued record into the active set. It fails if the
// record is not queued or the active set is full.
func (s *Store) MarkActive(id string) (job.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.transitionLocked(id, job.StateActive)
	if err != nil {
		return job.Job{}, err
	}
	if len(s.active) >= s.maxConcurrent {
		return job.Job{}, fmt.Errorf("%w: active set full (%d)", job.ErrInvalidTransition, s.maxConcurrent)
	}

	now := s.now()
	rec.State = job.StateActive
	rec.StartedAt = &now
	rec.UpdatedAt = now
	s.active[id] = struct{}{}
	return *rec, nil
}

// MarkProgress sets the progress of an active record. Progress never
// regresses and stays below 100 until completion.
func (s *Store) MarkProgress(id string, value int) (job.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[id]
	if !ok {
		return job.Job{}, fmt.Errorf("%w: %s", job.ErrNotFound, id)
	}
	if rec.State != job.StateActive {
		return job.Job{}, fmt.Errorf("%w: progress on %s job %s", job.ErrInvalidTransition, rec.State, id)
	}
	if value < rec.Progress || value > 99 {
		return job.Job{}, fmt.Errorf("%w: progress %d -> %d on job %s", job.ErrInvalidTransition, rec.Progress, value, id)
	}
	if value != rec.Progress {
		rec.Progress = value
		rec.UpdatedAt = s.now()
	}
	return *rec, nil
}

// MarkTerminal moves an active record to completed or failed and frees its
// concurrency slot. detail becomes the result for completed jobs and the
// failure reason for failed ones.
func (s *Store) MarkTerminal(id string, state job.State, detail string) (job.Job, error) {
	if !state.IsTerminal() {
		return job.Job{}, fmt.Errorf("%w: %s is not terminal", job.ErrInvalidTransition, state)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.transitionLocked(id, state)
	if err != nil {
		return job.Job{}, err
	}

	now := s.now()
	rec.State = state
	rec.FinishedAt = &now
	rec.UpdatedAt = now
	if state == job.StateCompleted {
		rec.Progress = 100
		rec.Result = detail
	} else {
		if detail == "" {
			detail = "unknown failure"
		}
		rec.FailureReason = detail
	}
	delete(s.active, id)
	return *rec, nil
}

// SweepTerminal drops terminal records finished before the cutoff and
// returns them.
func (s *Store) SweepTerminal(before time.Time) []job.Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	var swept []job.Job
	for _, rec := range slices.Clone(s.jobs) {
		if rec.State.IsTerminal() && rec.FinishedAt != nil && rec.FinishedAt.Before(before) {
			s.deleteLocked(rec)
			swept = append(swept, *rec)
		}
	}
	return swept
}

// Snapshot returns copies of every record in admission order.
func (s *Store) Snapshot() []job.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]job.Job, len(s.jobs))
	for i, rec := range s.jobs {
		out[i] = *rec
	}
	return out
}

func (s *Store) ActiveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.active)
}

// Backlog is the number of non-terminal records.
func (s *Store) Backlog() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.backlogLocked()
}

func (s *Store) MaxConcurrent() int { return s.maxConcurrent }

func (s *Store) backlogLocked() int {
	n := 0
	for _, rec := range s.jobs {
		if !rec.State.IsTerminal() {
			n++
		}
	}
	return n
}

func (s *Store) transitionLocked(id string, to job.State) (*job.Job, error) {
	rec, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", job.ErrNotFound, id)
	}
	if !job.CanTransition(rec.State, to) {
		return nil, fmt.Errorf("%w: %s -> %s on job %s", job.ErrInvalidTransition, rec.State, to, id)
	}
	return rec, nil
}

func (s *Store) deleteLocked(rec *job.Job) {
	delete(s.byID, rec.ID)
	delete(s.active, rec.ID)
	if i := slices.Index(s.jobs, rec); i >= 0 {
		s.jobs = slices.Delete(s.jobs, i, i+1)
	}
}
