package pipeline

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dgallion1/docrank/internal/scenario"
)

// JobStatus represents the state of a rank job.
type JobStatus string

const (
	StatusQueued    JobStatus = "queued"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
)

// Job tracks one ranking run submitted through the API.
type Job struct {
	mu sync.Mutex

	ID     string    `json:"job_id"`
	Status JobStatus `json:"status"`
	Phase  string    `json:"phase"`

	Documents []string `json:"documents"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Internal: not serialized.
	request  Request
	inputDir string
	result   *scenario.Output
	errors   []string
}

// NewJob creates a queued job for req. inputDir holds the uploaded files and
// is removed once the job finishes; it may be empty.
func NewJob(req Request, inputDir string) *Job {
	now := time.Now()
	names := make([]string, len(req.Documents))
	for i, d := range req.Documents {
		names[i] = d.Name
	}
	return &Job{
		ID:        uuid.NewString(),
		Status:    StatusQueued,
		Phase:     "queued",
		Documents: names,
		CreatedAt: now,
		UpdatedAt: now,
		request:   req,
		inputDir:  inputDir,
	}
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Len returns the number of tracked jobs.
func (s *JobStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Cleanup removes finished jobs not updated within the TTL.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		if job.done() && now.Sub(job.updatedAt()) > s.ttl {
			delete(s.jobs, id)
		}
	}
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.UpdatedAt = time.Now()
}

// Complete stores the result and marks the job completed.
func (j *Job) Complete(out *scenario.Output) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.result = out
	j.Status = StatusCompleted
	j.Phase = "done"
	j.UpdatedAt = time.Now()
}

// Result returns the output of a completed job, or nil.
func (j *Job) Result() *scenario.Output {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.result
}

func (j *Job) done() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

func (j *Job) updatedAt() time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.UpdatedAt
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID        string    `json:"job_id"`
	Status    JobStatus `json:"status"`
	Phase     string    `json:"phase"`
	Documents []string  `json:"documents"`
	Errors    []string  `json:"errors"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	errs := append([]string{}, j.errors...)
	docs := append([]string{}, j.Documents...)
	return JobSnapshot{
		ID:        j.ID,
		Status:    j.Status,
		Phase:     j.Phase,
		Documents: docs,
		Errors:    errs,
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
}
