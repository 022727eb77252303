package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"intake/internal/domain"
	"intake/internal/ports"
)

// ImportJobs is an in-memory ImportJobRepository. Jobs are claimed in
// queue order.
type ImportJobs struct {
	mu       sync.Mutex
	jobs     map[string]*domain.ImportJob
	payloads map[string][]byte
	order    []string
}

func NewImportJobs() *ImportJobs {
	return &ImportJobs{jobs: map[string]*domain.ImportJob{}, payloads: map[string][]byte{}}
}

func (r *ImportJobs) EnqueueImport(_ context.Context, fileName string, payload []byte) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := uuid.NewString()
	r.jobs[id] = &domain.ImportJob{ID: id, FileName: fileName, Status: "queued", QueuedAt: time.Now().UTC()}
	r.payloads[id] = append([]byte(nil), payload...)
	r.order = append(r.order, id)
	return id, nil
}

func (r *ImportJobs) ClaimNext(_ context.Context) (ports.ImportJob, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range r.order {
		if j := r.jobs[id]; j.Status == "queued" {
			r.startLocked(j)
			return ports.ImportJob{ID: id, FileName: j.FileName, Payload: r.payloads[id]}, true, nil
		}
	}
	return ports.ImportJob{}, false, nil
}

func (r *ImportJobs) StartImport(_ context.Context, jobID string) (ports.ImportJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[jobID]
	if !ok || j.Status != "queued" {
		return ports.ImportJob{}, fmt.Errorf("import %s not queued: %w", jobID, domain.ErrNotFound)
	}
	r.startLocked(j)
	return ports.ImportJob{ID: jobID, FileName: j.FileName, Payload: r.payloads[jobID]}, nil
}

func (r *ImportJobs) startLocked(j *domain.ImportJob) {
	now := time.Now().UTC()
	j.Status = "running"
	j.StartedAt = &now
}

func (r *ImportJobs) MarkCompleted(_ context.Context, jobID string, rowsLoaded int) error {
	return r.finish(jobID, "completed", rowsLoaded, "")
}

func (r *ImportJobs) MarkFailed(_ context.Context, jobID string, reason string) error {
	return r.finish(jobID, "failed", 0, reason)
}

func (r *ImportJobs) finish(jobID, status string, rows int, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	now := time.Now().UTC()
	j.Status = status
	j.RowsLoaded = rows
	j.Error = reason
	j.FinishedAt = &now
	delete(r.payloads, jobID)
	return nil
}

func (r *ImportJobs) GetImport(_ context.Context, jobID string) (domain.ImportJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[jobID]
	if !ok {
		return domain.ImportJob{}, domain.ErrNotFound
	}
	return *j, nil
}
