package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"intake/internal/domain"
	"intake/internal/ports"
)

func (db *DB) EnqueueImport(ctx context.Context, fileName string, payload []byte) (string, error) {
	var id string
	err := db.Pool.QueryRow(ctx, `
        INSERT INTO import_jobs (file_name, payload) VALUES ($1, $2) RETURNING id::text
    `, fileName, payload).Scan(&id)
	return id, err
}

// ClaimNext selects the next queued import using SKIP LOCKED and marks it running.
func (db *DB) ClaimNext(ctx context.Context) (job ports.ImportJob, found bool, err error) {
	tx, err := db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return job, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			_ = tx.Commit(ctx)
		}
	}()

	err = tx.QueryRow(ctx, `
        SELECT id::text, file_name, payload FROM import_jobs
        WHERE status = 'queued'
        ORDER BY queued_at
        FOR UPDATE SKIP LOCKED
        LIMIT 1
    `).Scan(&job.ID, &job.FileName, &job.Payload)
	if errors.Is(err, pgx.ErrNoRows) {
		err = nil
		return job, false, nil
	}
	if err != nil {
		return job, false, err
	}

	if _, err = tx.Exec(ctx, `
        UPDATE import_jobs SET status='running', started_at=now(), attempts=attempts+1 WHERE id=$1
    `, job.ID); err != nil {
		return job, false, err
	}
	return job, true, nil
}

// StartImport marks a specific queued import as running for inline processing.
func (db *DB) StartImport(ctx context.Context, jobID string) (job ports.ImportJob, err error) {
	tx, err := db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return job, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			_ = tx.Commit(ctx)
		}
	}()

	err = tx.QueryRow(ctx, `
        SELECT id::text, file_name, payload FROM import_jobs
        WHERE id = $1 AND status = 'queued'
        FOR UPDATE SKIP LOCKED
    `, jobID).Scan(&job.ID, &job.FileName, &job.Payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return job, fmt.Errorf("import %s not queued: %w", jobID, domain.ErrNotFound)
	}
	if err != nil {
		return job, err
	}
	if _, err = tx.Exec(ctx, `UPDATE import_jobs SET status='running', started_at=now(), attempts=attempts+1 WHERE id=$1`, jobID); err != nil {
		return job, err
	}
	return job, nil
}

func (db *DB) MarkCompleted(ctx context.Context, jobID string, rowsLoaded int) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := db.Pool.Exec(ctx, `
        UPDATE import_jobs SET status='completed', rows_loaded=$2, payload=NULL, finished_at=now() WHERE id=$1
    `, jobID, rowsLoaded)
	return err
}

func (db *DB) MarkFailed(ctx context.Context, jobID string, reason string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := db.Pool.Exec(ctx, `
        UPDATE import_jobs SET status='failed', error=$2, payload=NULL, finished_at=now() WHERE id=$1
    `, jobID, reason)
	return err
}

func (db *DB) GetImport(ctx context.Context, jobID string) (domain.ImportJob, error) {
	var j domain.ImportJob
	err := db.Pool.QueryRow(ctx, `
        SELECT id::text, file_name, status, rows_loaded, error, queued_at, started_at, finished_at
        FROM import_jobs WHERE id::text = $1
    `, jobID).Scan(&j.ID, &j.FileName, &j.Status, &j.RowsLoaded, &j.Error, &j.QueuedAt, &j.StartedAt, &j.FinishedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return j, domain.ErrNotFound
	}
	return j, err
}
