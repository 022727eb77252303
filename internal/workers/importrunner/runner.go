package importrunner

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"intake/internal/ports"
)

// Processor loads the rows of one claimed import job.
type Processor interface {
	Process(ctx context.Context, job ports.ImportJob) (rowsLoaded int, err error)
}

// Run claims queued imports every pollInterval and fans them out to
// concurrency workers. It blocks until ctx is cancelled and every worker has
// drained.
func Run(ctx context.Context, repo ports.ImportJobRepository, processor Processor, concurrency int, pollInterval time.Duration, log *zap.Logger) error {
	if concurrency < 1 {
		return nil
	}
	if log == nil {
		log = zap.NewNop()
	}
	jobsCh := make(chan ports.ImportJob, concurrency)
	g, ctx := errgroup.WithContext(ctx)

	// dispatcher loop
	g.Go(func() error {
		defer close(jobsCh)
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				for {
					job, found, err := repo.ClaimNext(ctx)
					if err != nil {
						log.Warn("import claim failed", zap.Error(err))
						break
					}
					if !found {
						break
					}
					select {
					case jobsCh <- job:
					case <-ctx.Done():
						// claimed but never handed to a worker
						_ = repo.MarkFailed(context.WithoutCancel(ctx), job.ID, "shutdown before processing")
						return nil
					}
				}
			}
		}
	})

	// workers
	for i := 0; i < concurrency; i++ {
		g.Go(func() error {
			for job := range jobsCh {
				handle(ctx, repo, processor, job, log.With(zap.Int("worker", i)))
			}
			return nil
		})
	}
	return g.Wait()
}

func handle(ctx context.Context, repo ports.ImportJobRepository, processor Processor, job ports.ImportJob, log *zap.Logger) {
	log = log.With(zap.String("job", job.ID), zap.String("file", job.FileName))
	rows, err := processor.Process(ctx, job)
	if err != nil {
		if mErr := repo.MarkFailed(context.WithoutCancel(ctx), job.ID, err.Error()); mErr != nil {
			log.Error("mark failed", zap.Error(mErr))
		}
		log.Warn("import failed", zap.Error(err))
		return
	}
	if err := repo.MarkCompleted(context.WithoutCancel(ctx), job.ID, rows); err != nil {
		log.Error("mark completed", zap.Error(err))
		return
	}
	log.Info("import completed", zap.Int("rows", rows))
}

// ProcessInline starts and processes a specific import synchronously using
// the same processor as the background workers.
func ProcessInline(ctx context.Context, repo ports.ImportJobRepository, processor Processor, jobID string) (int, error) {
	job, err := repo.StartImport(ctx, jobID)
	if err != nil {
		return 0, err
	}
	rows, err := processor.Process(ctx, job)
	if err != nil {
		_ = repo.MarkFailed(context.WithoutCancel(ctx), jobID, err.Error())
		return 0, err
	}
	return rows, repo.MarkCompleted(ctx, jobID, rows)
}
