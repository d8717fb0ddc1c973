package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"vidpress/internal/domain"
	"vidpress/internal/port"
)

type JobStore struct {
	db *sqlx.DB
}

func NewJobStore(store *Store) *JobStore {
	return &JobStore{db: store.db}
}

func (s *JobStore) Insert(ctx context.Context, ownerID int64, sourceRef, filename string, size int64, profile string) (*domain.Job, error) {
	var job domain.Job
	err := s.db.GetContext(ctx, &job, `
		INSERT INTO jobs (owner_id, source_ref, original_filename, original_size, profile, status, created_at)
		VALUES (?, ?, ?, ?, ?, 'pending', ?)
		RETURNING *`,
		ownerID, sourceRef, filename, size, profile, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	return &job, nil
}

func (s *JobStore) Get(ctx context.Context, id int64) (*domain.Job, error) {
	var job domain.Job
	err := s.db.GetContext(ctx, &job, `SELECT * FROM jobs WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &job, nil
}

// ClaimNext is the mutual-exclusion point of the pipeline: the conditional
// update selects and transitions the oldest pending job in one statement, so
// concurrent claimers can never take the same row.
func (s *JobStore) ClaimNext(ctx context.Context) (*domain.Job, error) {
	var job domain.Job
	err := s.db.GetContext(ctx, &job, `
		UPDATE jobs
		SET status = 'processing', started_at = ?
		WHERE id = (
			SELECT id FROM jobs
			WHERE status = 'pending'
			ORDER BY created_at, id
			LIMIT 1
		) AND status = 'pending'
		RETURNING *`,
		time.Now().UTC())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("claim next job: %w", err)
	}
	return &job, nil
}

// UpdateProgress clamps: a reported value below the stored one leaves the
// stored value in place, and anything above 100 is capped.
func (s *JobStore) UpdateProgress(ctx context.Context, id int64, progress float64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE jobs
		SET progress = MAX(progress, MIN(?, 100.0))
		WHERE id = ? AND status = 'processing'`,
		progress, id)
	if err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	return nil
}

func (s *JobStore) Complete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE jobs
		SET status = 'completed', progress = 100.0, completed_at = ?
		WHERE id = ? AND status = 'processing'`,
		time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	return nil
}

func (s *JobStore) Fail(ctx context.Context, id int64, reason string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE jobs
		SET status = 'failed', error_message = ?, completed_at = ?
		WHERE id = ? AND status IN ('pending', 'processing')`,
		reason, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	return nil
}

func (s *JobStore) CountActiveForOwner(ctx context.Context, ownerID int64) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM jobs
		WHERE owner_id = ? AND status IN ('pending', 'processing')`,
		ownerID)
	if err != nil {
		return 0, fmt.Errorf("count active jobs: %w", err)
	}
	return count, nil
}

func (s *JobStore) ListForOwner(ctx context.Context, ownerID int64, limit int) ([]domain.Job, error) {
	jobs := []domain.Job{}
	err := s.db.SelectContext(ctx, &jobs, `
		SELECT * FROM jobs
		WHERE owner_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`,
		ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return jobs, nil
}

// PositionInQueue orders pending jobs exactly as ClaimNext would. Position is
// 1-based; a job that is no longer pending reports position 0.
func (s *JobStore) PositionInQueue(ctx context.Context, id int64) (int, int, error) {
	job, err := s.Get(ctx, id)
	if err != nil {
		return 0, 0, err
	}

	var total int
	if err := s.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM jobs WHERE status = 'pending'`); err != nil {
		return 0, 0, fmt.Errorf("count pending jobs: %w", err)
	}

	if job.Status != domain.JobStatusPending {
		return 0, total, nil
	}

	var position int
	err = s.db.GetContext(ctx, &position, `
		SELECT COUNT(*) FROM jobs
		WHERE status = 'pending'
		  AND (created_at < ? OR (created_at = ? AND id <= ?))`,
		job.CreatedAt, job.CreatedAt, job.ID)
	if err != nil {
		return 0, 0, fmt.Errorf("queue position: %w", err)
	}
	return position, total, nil
}

// Release puts one claimed job back in the queue. Progress is kept, like
// RecoverOrphans, so a re-claim resumes reporting from the last known value.
func (s *JobStore) Release(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE jobs
		SET status = 'pending', started_at = NULL
		WHERE id = ? AND status = 'processing'`,
		id)
	if err != nil {
		return fmt.Errorf("release job: %w", err)
	}
	return nil
}

// RecoverOrphans reverts jobs a dead process left processing. Progress is
// kept so users see where the prior attempt got to; started_at is cleared and
// set again on re-claim.
func (s *JobStore) RecoverOrphans(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE jobs
		SET status = 'pending', started_at = NULL
		WHERE status = 'processing'`)
	if err != nil {
		return 0, fmt.Errorf("recover orphans: %w", err)
	}
	return res.RowsAffected()
}

var _ port.JobStore = (*JobStore)(nil)
