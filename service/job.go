package service

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openfleet/fleetd/core"
)

// JobState is a workflow job's lifecycle state.
type JobState string

const (
	JobStateRunning   JobState = "running"
	JobStateSucceeded JobState = "succeeded"
	JobStateFailed    JobState = "failed"
)

// Job is one workflow run: a batch of vehicles driven through a
// pipeline. The coordinator owns the job for its duration; jobs are
// never shared between concurrent workflow runs.
type Job struct {
	ID        string
	Operation string
	CreatedAt time.Time

	table *core.StatusTable

	mu      sync.RWMutex
	state   JobState
	message string
}

func NewJob(operation string) *Job {
	return &Job{
		ID:        uuid.New().String(),
		Operation: operation,
		CreatedAt: time.Now(),
		table:     core.NewStatusTable(),
		state:     JobStateRunning,
	}
}

// Table returns the per-vehicle status table.
func (j *Job) Table() *core.StatusTable {
	return j.table
}

// SetMessage records the current human-readable progress message.
func (j *Job) SetMessage(message string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.message = message
}

// Finish records the job's terminal verdict.
func (j *Job) Finish(err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err != nil {
		j.state = JobStateFailed
		j.message = err.Error()
		return
	}
	j.state = JobStateSucceeded
}

// JobSnapshot is a point-in-time view of a job for rendering.
type JobSnapshot struct {
	ID        string               `json:"id"`
	Operation string               `json:"operation"`
	State     JobState             `json:"state"`
	Message   string               `json:"message,omitempty"`
	Statuses  []core.VehicleStatus `json:"statuses"`
	CreatedAt time.Time            `json:"created_at"`
}

func (j *Job) Snapshot() JobSnapshot {
	j.mu.RLock()
	state, message := j.state, j.message
	j.mu.RUnlock()

	return JobSnapshot{
		ID:        j.ID,
		Operation: j.Operation,
		State:     state,
		Message:   message,
		Statuses:  j.table.Statuses(),
		CreatedAt: j.CreatedAt,
	}
}

// JobRegistry tracks jobs so their status can be queried while they run.
type JobRegistry struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

func NewJobRegistry() *JobRegistry {
	return &JobRegistry{jobs: make(map[string]*Job)}
}

func (r *JobRegistry) Add(job *Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = job
}

func (r *JobRegistry) Get(id string) (*Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	return job, ok
}
