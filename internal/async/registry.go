// Package async tracks background jobs in process memory.
package async

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/semantica-dev/semantica/internal/errors"
)

// Job kinds.
const (
	KindIndexing = "indexing"
	KindSearch   = "search"
)

// Job statuses. The state machine is running -> completed | failed,
// both terminal.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// retainedJobs is how many terminal jobs Cleanup keeps.
const retainedJobs = 10

// JobRecord is one tracked job. Result holds the job-specific outcome
// once completed.
type JobRecord struct {
	ID        string     `json:"id"`
	Kind      string     `json:"kind"`
	Status    string     `json:"status"`
	Phase     string     `json:"phase,omitempty"`
	Current   int        `json:"current"`
	Total     int        `json:"total"`
	StartedAt time.Time  `json:"startedAt"`
	EndedAt   *time.Time `json:"endedAt,omitempty"`
	Result    any        `json:"result,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// Running reports whether the job has not reached a terminal state.
func (j *JobRecord) Running() bool {
	return j.Status == StatusRunning
}

// Registry is the in-process job table. At most one indexing job is
// "current" at a time: the last started, cleared on completion or
// failure.
type Registry struct {
	mu              sync.RWMutex
	jobs            map[string]*JobRecord
	currentIndexing string
	logger          *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		jobs:   make(map[string]*JobRecord),
		logger: logger,
	}
}

// NewJobID returns a fresh job identifier.
func NewJobID(kind string) string {
	return fmt.Sprintf("%s-%s", kind, uuid.New().String()[:8])
}

// StartJob registers a running job. Starting an indexing job makes it
// the current one.
func (r *Registry) StartJob(id, kind string) (*JobRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobs[id]; exists {
		return nil, errors.Newf(errors.KindInternal, "job already registered: %s", id)
	}

	job := &JobRecord{
		ID:        id,
		Kind:      kind,
		Status:    StatusRunning,
		StartedAt: time.Now().UTC(),
	}
	r.jobs[id] = job
	if kind == KindIndexing {
		r.currentIndexing = id
	}

	r.logger.Debug("job started", slog.String("id", id), slog.String("kind", kind))
	return r.snapshot(job), nil
}

// UpdateProgress records phase progress for a running job. Updates to
// unknown or terminal jobs are dropped silently; progress is advisory.
func (r *Registry) UpdateProgress(id, phase string, current, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok || !job.Running() {
		return
	}
	job.Phase = phase
	job.Current = current
	job.Total = total
}

// CompleteJob moves a job to completed with its result.
func (r *Registry) CompleteJob(id string, result any) error {
	return r.finish(id, StatusCompleted, result, "")
}

// FailJob moves a job to failed with its error message.
func (r *Registry) FailJob(id string, jobErr error) error {
	msg := ""
	if jobErr != nil {
		msg = jobErr.Error()
	}
	return r.finish(id, StatusFailed, nil, msg)
}

func (r *Registry) finish(id, status string, result any, errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return errors.Newf(errors.KindInternal, "unknown job: %s", id)
	}
	if !job.Running() {
		return errors.Newf(errors.KindInternal, "job already terminal: %s", id)
	}

	now := time.Now().UTC()
	job.Status = status
	job.EndedAt = &now
	job.Result = result
	job.Error = errMsg

	if r.currentIndexing == id {
		r.currentIndexing = ""
	}

	r.logger.Debug("job finished",
		slog.String("id", id),
		slog.String("status", status),
		slog.Duration("elapsed", now.Sub(job.StartedAt)))
	return nil
}

// GetJob returns a copy of the record, or nil if unknown.
func (r *Registry) GetJob(id string) *JobRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[id]
	if !ok {
		return nil
	}
	return r.snapshot(job)
}

// GetCurrentIndexingJob returns the running indexing job, or nil.
func (r *Registry) GetCurrentIndexingJob() *JobRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.currentIndexing == "" {
		return nil
	}
	job, ok := r.jobs[r.currentIndexing]
	if !ok {
		return nil
	}
	return r.snapshot(job)
}

// Cleanup drops terminal jobs beyond the 10 most recently ended.
// Running jobs are never dropped.
func (r *Registry) Cleanup() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	var terminal []*JobRecord
	for _, job := range r.jobs {
		if !job.Running() {
			terminal = append(terminal, job)
		}
	}
	if len(terminal) <= retainedJobs {
		return 0
	}

	sort.Slice(terminal, func(i, j int) bool {
		return terminal[i].EndedAt.After(*terminal[j].EndedAt)
	})

	removed := 0
	for _, job := range terminal[retainedJobs:] {
		delete(r.jobs, job.ID)
		removed++
	}
	return removed
}

// Len reports the number of tracked jobs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}

// snapshot copies a record so callers cannot mutate registry state.
func (r *Registry) snapshot(job *JobRecord) *JobRecord {
	copied := *job
	if job.EndedAt != nil {
		ended := *job.EndedAt
		copied.EndedAt = &ended
	}
	return &copied
}
