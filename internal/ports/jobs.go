package ports

import (
	"context"

	"intake/internal/domain"
)

type ImportJob struct {
	ID       string
	FileName string
	Payload  []byte
}

// ImportJobRepository supports queueing, claiming and finishing type-approval import jobs.
type ImportJobRepository interface {
	EnqueueImport(ctx context.Context, fileName string, payload []byte) (jobID string, err error)
	ClaimNext(ctx context.Context) (job ImportJob, found bool, err error)
	StartImport(ctx context.Context, jobID string) (job ImportJob, err error)
	MarkCompleted(ctx context.Context, jobID string, rowsLoaded int) error
	MarkFailed(ctx context.Context, jobID string, reason string) error
	GetImport(ctx context.Context, jobID string) (domain.ImportJob, error)
}
