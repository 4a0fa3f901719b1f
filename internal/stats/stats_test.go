package stats

import (
	"slices"
	"testing"
	"time"

	"github.com/Shenoy37/Voice-to-Text-sub002/internal/job"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)

func at(sec int) *time.Time {
	t := base.Add(time.Duration(sec) * time.Second)
	return &t
}

func record(id, owner string, state job.State, priority int, submitted int, started, finished *time.Time) job.Job {
	return job.Job{
		ID:          id,
		Owner:       owner,
		State:       state,
		Priority:    priority,
		SubmittedAt: *at(submitted),
		StartedAt:   started,
		FinishedAt:  finished,
		Seq:         uint64(submitted + 1),
	}
}

func snapshot() []job.Job {
	return []job.Job{
		record("done1", "alice", job.StateCompleted, 5, 0, at(2), at(12)),
		record("done2", "bob", job.StateCompleted, 5, 1, at(5), at(25)),
		record("fail", "alice", job.StateFailed, 5, 2, at(8), at(9)),
		record("run", "alice", job.StateActive, 5, 3, at(9), nil),
		record("wait1", "bob", job.StateQueued, 8, 4, nil, nil),
		record("wait2", "alice", job.StateQueued, 5, 5, nil, nil),
	}
}

func TestCompute(t *testing.T) {
	g := Compute(snapshot(), 1)

	assert.Equal(t, Counts{Queued: 2, Active: 1, Completed: 2, Failed: 1, Total: 6}, g.Counts)
	assert.Equal(t, 1, g.ActiveJobs)
	// waits: 2, 4, 6, 6
	assert.Equal(t, 4500*time.Millisecond, g.AverageWaitTime)
	// processing over completed only: 10, 20
	assert.Equal(t, 15*time.Second, g.AverageProcessingTime)
}

func TestCompute_Empty(t *testing.T) {
	g := Compute(nil, 0)
	assert.Zero(t, g.Total)
	assert.Zero(t, g.AverageWaitTime)
	assert.Zero(t, g.AverageProcessingTime)
}

func TestForOwner(t *testing.T) {
	o := ForOwner(snapshot(), "alice")
	assert.Equal(t, "alice", o.Owner)
	assert.Equal(t, Counts{Queued: 1, Active: 1, Completed: 1, Failed: 1, Total: 4}, o.Counts)

	assert.Zero(t, ForOwner(snapshot(), "carol").Total)
}

func TestEstimatedWait(t *testing.T) {
	snap := snapshot()

	est, err := EstimatedWait(snap, "wait1", 30*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 0, est.Ahead)
	assert.Zero(t, est.Wait)

	est, err = EstimatedWait(snap, "wait2", 30*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 2, est.Ahead, "run and wait1 are ahead; terminal jobs never count")
	assert.Equal(t, time.Minute, est.Wait)

	_, err = EstimatedWait(snap, "nope", time.Second)
	assert.ErrorIs(t, err, job.ErrNotFound)
}

func TestEstimatedWait_MonotonicInPosition(t *testing.T) {
	var snap []job.Job
	for i := range 30 {
		snap = append(snap, record(string(rune('a'+i)), "alice", job.StateQueued, 1+(i*7)%10, i, nil, nil))
	}
	slices.SortFunc(snap, job.Compare)

	prev := time.Duration(-1)
	for _, j := range snap {
		est, err := EstimatedWait(snap, j.ID, 10*time.Second)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, est.Wait, prev)
		prev = est.Wait
	}
}
