package handler

import (
	"sync"
	"time"
)

// JobStatus represents the current state of an analysis job.
type JobStatus struct {
	ID          string    `json:"id"`
	Owner       string    `json:"owner"`
	Repo        string    `json:"repo"`
	Kind        string    `json:"kind"`
	Status      string    `json:"status"` // running, complete, error
	AnalysisID  string    `json:"analysis_id,omitempty"`
	ChangeSetID string    `json:"changeset_id,omitempty"`
	Error       string    `json:"error,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at,omitempty"`
}

// JobTracker manages analysis jobs in memory.
type JobTracker struct {
	mu   sync.RWMutex
	jobs map[string]*JobStatus
}

// NewJobTracker creates a new job tracker.
func NewJobTracker() *JobTracker {
	return &JobTracker{jobs: make(map[string]*JobStatus)}
}

// CreateJob creates a new running job entry.
func (t *JobTracker) CreateJob(id, owner, repo, kind string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.jobs[id] = &JobStatus{
		ID:        id,
		Owner:     owner,
		Repo:      repo,
		Kind:      kind,
		Status:    "running",
		StartedAt: time.Now(),
	}
}

// CompleteJob marks a job complete with its resulting analysis.
func (t *JobTracker) CompleteJob(id, changeSetID, analysisID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if job, ok := t.jobs[id]; ok {
		job.Status = "complete"
		job.ChangeSetID = changeSetID
		job.AnalysisID = analysisID
		job.CompletedAt = time.Now()
	}
}

// FailJob marks a job failed with the error text.
func (t *JobTracker) FailJob(id, errText string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if job, ok := t.jobs[id]; ok {
		job.Status = "error"
		job.Error = errText
		job.CompletedAt = time.Now()
	}
}

// GetJob returns a snapshot of a job status.
func (t *JobTracker) GetJob(id string) (*JobStatus, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	job, ok := t.jobs[id]
	if !ok {
		return nil, false
	}
	snapshot := *job
	return &snapshot, true
}
