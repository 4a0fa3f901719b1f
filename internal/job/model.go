package job

import (
	"cmp"
	"time"
)

// Kind selects which runner performs a job.
type Kind string

const (
	KindTranscription Kind = "transcription"
	KindSummarization Kind = "summarization"
	KindProcessing    Kind = "processing"
)

// Valid reports whether k is one of the known job kinds.
func (k Kind) Valid() bool {
	return k == KindTranscription || k == KindSummarization || k == KindProcessing
}

type State string

const (
	StateQueued    State = "queued"
	StateActive    State = "active"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// IsTerminal returns true for states no transition can leave.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed
}

func (s State) Valid() bool {
	return s == StateQueued || s == StateActive || s.IsTerminal()
}

const (
	MinPriority     = 1
	MaxPriority     = 10
	DefaultPriority = 5
)

// Job is one unit of background work and its lifecycle.
//
// ID, Kind, Priority, Owner, Payload and SubmittedAt never change after
// enqueue. StartedAt and FinishedAt are set exactly once. Progress is 100
// only in the completed state.
type Job struct {
	ID            string     `json:"job_id"`
	Kind          Kind       `json:"kind"`
	State         State      `json:"state"`
	Priority      int        `json:"priority"`
	Owner         string     `json:"owner"`
	Payload       Payload    `json:"payload"`
	Progress      int        `json:"progress"`
	Result        string     `json:"result,omitempty"`
	FailureReason string     `json:"failure_reason,omitempty"`
	CallbackURL   string     `json:"callback_url,omitempty"`
	SubmittedAt   time.Time  `json:"submitted_at"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
	UpdatedAt     time.Time  `json:"updated_at"`

	// Seq is the per-process submission sequence; it breaks ties between
	// jobs submitted at the same instant.
	Seq uint64 `json:"-"`
}

// Compare orders jobs by priority descending, then submission time
// ascending, then submission sequence ascending.
func Compare(a, b Job) int {
	if c := cmp.Compare(b.Priority, a.Priority); c != 0 {
		return c
	}
	if c := a.SubmittedAt.Compare(b.SubmittedAt); c != 0 {
		return c
	}
	return cmp.Compare(a.Seq, b.Seq)
}

// WaitTime is the time spent queued. ok is false if the job never started.
func (j Job) WaitTime() (d time.Duration, ok bool) {
	if j.StartedAt == nil {
		return 0, false
	}
	return j.StartedAt.Sub(j.SubmittedAt), true
}

// ProcessingTime is the time between start and finish. ok is false unless
// both timestamps are set.
func (j Job) ProcessingTime() (d time.Duration, ok bool) {
	if j.StartedAt == nil || j.FinishedAt == nil {
		return 0, false
	}
	return j.FinishedAt.Sub(*j.StartedAt), true
}
