// Package stats derives queue metrics from a snapshot of job records.
// Nothing here is stored; every figure is recomputed on demand.
package stats

import (
	"fmt"
	"time"

	"github.com/Shenoy37/Voice-to-Text-sub002/internal/job"
)

// Counts tallies records by state.
type Counts struct {
	Queued    int `json:"queued"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Total     int `json:"total"`
}

func (c *Counts) add(s job.State) {
	switch s {
	case job.StateQueued:
		c.Queued++
	case job.StateActive:
		c.Active++
	case job.StateCompleted:
		c.Completed++
	case job.StateFailed:
		c.Failed++
	}
	c.Total++
}

// Global summarises the whole store.
type Global struct {
	Counts
	ActiveJobs int `json:"active_jobs"`
	// AverageWaitTime is the mean of startedAt - submittedAt over every job
	// that reached active or later.
	AverageWaitTime time.Duration `json:"-"`
	// AverageProcessingTime is the mean of finishedAt - startedAt over
	// completed jobs.
	AverageProcessingTime time.Duration `json:"-"`
}

// Owner restricts the counts to one principal's jobs.
type Owner struct {
	Owner string `json:"owner"`
	Counts
}

// Estimate is a heuristic wait for one job.
type Estimate struct {
	JobID string        `json:"job_id"`
	Ahead int           `json:"ahead"`
	Wait  time.Duration `json:"-"`
}

// Compute derives global stats. activeJobs is the size of the active set.
func Compute(snapshot []job.Job, activeJobs int) Global {
	g := Global{ActiveJobs: activeJobs}

	var waitSum, procSum time.Duration
	var waitN, procN int64
	for _, j := range snapshot {
		g.add(j.State)
		if d, ok := j.WaitTime(); ok {
			waitSum += d
			waitN++
		}
		if j.State == job.StateCompleted {
			if d, ok := j.ProcessingTime(); ok {
				procSum += d
				procN++
			}
		}
	}
	if waitN > 0 {
		g.AverageWaitTime = waitSum / time.Duration(waitN)
	}
	if procN > 0 {
		g.AverageProcessingTime = procSum / time.Duration(procN)
	}
	return g
}

func ForOwner(snapshot []job.Job, owner string) Owner {
	o := Owner{Owner: owner}
	for _, j := range snapshot {
		if j.Owner == owner {
			o.add(j.State)
		}
	}
	return o
}

// EstimatedWait counts the queued or active records ordered ahead of id and
// multiplies by perJob. The per-job figure is a fixed estimate, not an
// observed average.
func EstimatedWait(snapshot []job.Job, id string, perJob time.Duration) (Estimate, error) {
	var target *job.Job
	for i := range snapshot {
		if snapshot[i].ID == id {
			target = &snapshot[i]
			break
		}
	}
	if target == nil {
		return Estimate{}, fmt.Errorf("%w: %s", job.ErrNotFound, id)
	}

	ahead := 0
	for _, j := range snapshot {
		if j.ID == id {
			continue
		}
		if j.State != job.StateQueued && j.State != job.StateActive {
			continue
		}
		if job.Compare(j, *target) < 0 {
			ahead++
		}
	}
	return Estimate{JobID: id, Ahead: ahead, Wait: time.Duration(ahead) * perJob}, nil
}
