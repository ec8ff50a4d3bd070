package batch

import (
	"context"
	"sync"
	"time"

	"github.com/atsdesk/atsdesk/app/store"
)

// Status of a job lifecycle
type Status string

// job statuses
const (
	StatusRunning    Status = "running"
	StatusCancelling Status = "cancelling"
	StatusDone       Status = "done"
)

// Progress of a job, Total is 1 (JD) + number of CVs + 1 (bulk match)
type Progress struct {
	Done    int    `json:"done"`
	Total   int    `json:"total"`
	Message string `json:"message"`
}

// Info is a point-in-time snapshot of a job
type Info struct {
	Key       string       `json:"key"`
	Label     string       `json:"label"`
	Detail    string       `json:"detail"`
	Status    Status       `json:"status"`
	Outcome   store.Status `json:"outcome,omitempty"` // set once the job is done
	Progress  Progress     `json:"progress"`
	StartedAt time.Time    `json:"started_at"`
	Error     string       `json:"error,omitempty"`
}

// Job is a single batch run. Safe for concurrent use, readers get snapshots with Info.
type Job struct {
	Key    string
	Label  string
	Detail string

	mu       sync.RWMutex
	status   Status
	outcome  store.Status
	progress Progress
	started  time.Time
	cancel   context.CancelFunc
	done     chan struct{}
	result   Result
	err      error
}

func newJob(key, label, detail string, total int, cancel context.CancelFunc) *Job {
	return &Job{
		Key:      key,
		Label:    label,
		Detail:   detail,
		status:   StatusRunning,
		progress: Progress{Total: total, Message: "starting"},
		started:  time.Now(),
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Info returns job snapshot
func (j *Job) Info() Info {
	j.mu.RLock()
	defer j.mu.RUnlock()
	res := Info{Key: j.Key, Label: j.Label, Detail: j.Detail, Status: j.status, Outcome: j.outcome,
		Progress: j.progress, StartedAt: j.started}
	if j.err != nil {
		res.Error = j.err.Error()
	}
	return res
}

// Done is closed when the job is finished
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Wait blocks till the job finished or ctx canceled. Returns ErrCancelled for cancelled jobs.
func (j *Job) Wait(ctx context.Context) (Result, error) {
	select {
	case <-j.done:
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.result, j.err
}

func (j *Job) step(done int, msg string) {
	j.mu.Lock()
	j.progress.Done = done
	j.progress.Message = msg
	j.mu.Unlock()
}

// requestCancel moves running job to cancelling, returns false if it is not running
func (j *Job) requestCancel() bool {
	j.mu.Lock()
	if j.status != StatusRunning {
		j.mu.Unlock()
		return false
	}
	j.status = StatusCancelling
	j.progress.Message = "cancelling"
	j.mu.Unlock()
	j.cancel()
	return true
}

func (j *Job) finish(outcome store.Status, res Result, err error) {
	j.mu.Lock()
	j.status = StatusDone
	j.outcome = outcome
	j.result = res
	j.err = err
	switch outcome {
	case store.StatusDone:
		j.progress.Done = j.progress.Total
		j.progress.Message = "completed"
	case store.StatusCancelled:
		j.progress.Message = "cancelled"
	default:
		j.progress.Message = err.Error()
	}
	j.mu.Unlock()
	j.cancel()
	close(j.done)
}
