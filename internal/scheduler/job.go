package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Anuar-boop/teamrankrise/internal/audit"
)

// State is the lifecycle stage of a Job.
type State int32

// Job states.
const (
	StatePending State = iota
	StateRunning
	StateSettled
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	case StateSettled:
		return "settled"
	default:
		return "unknown"
	}
}

// Job is one submitted audit. It is settled exactly once.
type Job struct {
	ID        string
	URL       string
	Submitted time.Time

	state  atomic.Int32
	done   chan struct{}
	once   sync.Once
	result audit.Result
	err    error
}

func newJob(id, targetURL string, submitted time.Time) *Job {
	return &Job{
		ID:        id,
		URL:       targetURL,
		Submitted: submitted,
		done:      make(chan struct{}),
	}
}

// State returns the job's current stage.
func (j *Job) State() State {
	return State(j.state.Load())
}

// Done is closed once the job has a result or an error.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Wait blocks until the job settles or ctx ends. Giving up on ctx does not
// cancel the audit.
func (j *Job) Wait(ctx context.Context) (audit.Result, error) {
	select {
	case <-j.done:
		return j.result, j.err
	case <-ctx.Done():
		return audit.Result{}, ctx.Err()
	}
}

func (j *Job) markRunning() {
	j.state.Store(int32(StateRunning))
}

// settle records the outcome. Later calls are ignored and report false.
func (j *Job) settle(res audit.Result, err error) bool {
	settled := false
	j.once.Do(func() {
		j.result = res
		j.err = err
		j.state.Store(int32(StateSettled))
		close(j.done)
		settled = true
	})
	return settled
}
