package port

import (
	"context"

	"vidpress/internal/domain"
)

// JobStore is the single source of truth for job state. All status
// transitions go through its atomic operations.
type JobStore interface {
	Insert(ctx context.Context, ownerID int64, sourceRef, filename string, size int64, profile string) (*domain.Job, error)
	Get(ctx context.Context, id int64) (*domain.Job, error)

	// ClaimNext atomically transitions the oldest pending job to processing
	// and returns it. Returns (nil, nil) when nothing is pending.
	ClaimNext(ctx context.Context) (*domain.Job, error)

	// UpdateProgress is a no-op unless the job is processing. Decreases are
	// clamped: the stored value never goes down.
	UpdateProgress(ctx context.Context, id int64, progress float64) error

	// Complete and Fail are idempotent terminal transitions.
	Complete(ctx context.Context, id int64) error
	Fail(ctx context.Context, id int64, reason string) error

	CountActiveForOwner(ctx context.Context, ownerID int64) (int, error)
	ListForOwner(ctx context.Context, ownerID int64, limit int) ([]domain.Job, error)
	PositionInQueue(ctx context.Context, id int64) (position, total int, err error)

	// Release reverts one processing job to pending, clearing started_at.
	// Used by workers for cooperative cancellation on shutdown.
	Release(ctx context.Context, id int64) error

	// RecoverOrphans reverts every processing job to pending. Runs once at
	// startup, before any worker claims.
	RecoverOrphans(ctx context.Context) (int64, error)
}
