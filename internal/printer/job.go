package printer

import (
	"sync"
	"time"
)

// JobStatus is a position in a job's lifecycle
type JobStatus string

const (
	JobAccepted  JobStatus = "accepted"
	JobReceiving JobStatus = "receiving"
	JobParsing   JobStatus = "parsing"
	JobRendering JobStatus = "rendering"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Finished reports whether the status is terminal
func (s JobStatus) Finished() bool {
	return s == JobCompleted || s == JobFailed
}

// Job is one connection's print submission
type Job struct {
	ID         string    `json:"id"`
	Remote     string    `json:"remote"`
	Status     JobStatus `json:"status"`
	Bytes      int64     `json:"bytes"`
	Labels     []string  `json:"labels,omitempty"`
	Warnings   []string  `json:"warnings,omitempty"`
	Error      string    `json:"error,omitempty"`
	Err        error     `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

func (j *Job) clone() *Job {
	c := *j
	c.Labels = append([]string(nil), j.Labels...)
	c.Warnings = append([]string(nil), j.Warnings...)
	return &c
}

// DefaultHistory is how many jobs the tracker remembers
const DefaultHistory = 200

// JobTracker keeps a bounded history of jobs, oldest evicted first
type JobTracker struct {
	jobs  []*Job
	limit int
	mu    sync.Mutex
}

// NewJobTracker creates a tracker remembering up to limit jobs
func NewJobTracker(limit int) *JobTracker {
	if limit <= 0 {
		limit = DefaultHistory
	}
	return &JobTracker{
		jobs:  make([]*Job, 0),
		limit: limit,
	}
}

func (t *JobTracker) add(job *Job) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.jobs = append(t.jobs, job)
	if len(t.jobs) <= t.limit {
		return
	}

	// evict the oldest finished job; in-flight jobs are never dropped
	for i, j := range t.jobs {
		if j.Status.Finished() {
			t.jobs = append(t.jobs[:i], t.jobs[i+1:]...)
			return
		}
	}
}

func (t *JobTracker) update(job *Job, fn func(j *Job)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn(job)
}

// Get returns a copy of a job by ID
func (t *JobTracker) Get(id string) *Job {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, job := range t.jobs {
		if job.ID == id {
			return job.clone()
		}
	}
	return nil
}

// All returns copies of every job, newest first
func (t *JobTracker) All() []*Job {
	t.mu.Lock()
	defer t.mu.Unlock()

	jobs := make([]*Job, len(t.jobs))
	for i, job := range t.jobs {
		jobs[len(t.jobs)-1-i] = job.clone()
	}
	return jobs
}

// Counts tallies jobs per status
func (t *JobTracker) Counts() map[JobStatus]int {
	t.mu.Lock()
	defer t.mu.Unlock()

	counts := make(map[JobStatus]int)
	for _, job := range t.jobs {
		counts[job.Status]++
	}
	return counts
}

// ClearFinished drops completed and failed jobs and returns how many went
func (t *JobTracker) ClearFinished() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	filtered := make([]*Job, 0)
	for _, job := range t.jobs {
		if !job.Status.Finished() {
			filtered = append(filtered, job)
		}
	}
	n := len(t.jobs) - len(filtered)
	t.jobs = filtered
	return n
}
