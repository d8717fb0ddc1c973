package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"vidpress/internal/domain"
	"vidpress/internal/port"
)

// EventPublisher receives job lifecycle notifications for the transport side.
type EventPublisher interface {
	Publish(event Event)
}

// Scheduler runs the fixed-size worker pool. Each worker claims one pending
// job at a time, drives the orchestrator end-to-end, hands the artifact to
// the deliverer and records the terminal transition. A failing job never
// takes its worker down.
type Scheduler struct {
	jobs         port.JobStore
	orchestrator *Orchestrator
	deliverer    port.Deliverer
	eventBus     EventPublisher
	profiles     map[string]domain.Profile
	workers      int
	pollInterval time.Duration
	log          zerolog.Logger

	group *errgroup.Group
}

func NewScheduler(
	jobs port.JobStore,
	orchestrator *Orchestrator,
	deliverer port.Deliverer,
	eventBus EventPublisher,
	profiles map[string]domain.Profile,
	workers int,
	log zerolog.Logger,
) *Scheduler {
	return &Scheduler{
		jobs:         jobs,
		orchestrator: orchestrator,
		deliverer:    deliverer,
		eventBus:     eventBus,
		profiles:     profiles,
		workers:      workers,
		pollInterval: 500 * time.Millisecond,
		log:          log,
	}
}

// Start recovers orphaned jobs from a prior crash and spins up the workers.
// Recovery runs before the first claim so no worker races a stale row.
func (s *Scheduler) Start(ctx context.Context) error {
	recovered, err := s.jobs.RecoverOrphans(ctx)
	if err != nil {
		return fmt.Errorf("recover orphans: %w", err)
	}
	if recovered > 0 {
		s.log.Info().Int64("jobs", recovered).Msg("recovered orphaned jobs")
	}

	s.group = &errgroup.Group{}
	for i := range s.workers {
		s.group.Go(func() error {
			s.runWorker(ctx, i)
			return nil
		})
	}
	s.log.Info().Int("workers", s.workers).Msg("scheduler started")
	return nil
}

// Wait blocks until every worker has exited its loop. Call after cancelling
// the context passed to Start.
func (s *Scheduler) Wait() error {
	if s.group == nil {
		return nil
	}
	return s.group.Wait()
}

func (s *Scheduler) runWorker(ctx context.Context, id int) {
	log := s.log.With().Int("worker", id).Logger()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("worker shutting down")
			return
		default:
		}

		job, err := s.jobs.ClaimNext(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error().Err(err).Msg("claim failed")
			s.idle(ctx, 2*time.Second)
			continue
		}
		if job == nil {
			s.idle(ctx, s.pollInterval)
			continue
		}

		log.Info().Int64("job", job.ID).Str("profile", job.Profile).Msg("processing job")
		s.executeJob(ctx, job)
	}
}

// idle sleeps without holding anything another worker could need.
func (s *Scheduler) idle(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (s *Scheduler) executeJob(ctx context.Context, job *domain.Job) {
	// Terminal updates must land even when ctx was cancelled mid-job.
	store := context.WithoutCancel(ctx)

	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Int64("job", job.ID).Any("panic", r).Msg("panic during job execution")
			s.failJob(store, job.ID, fmt.Sprintf("internal error: %v", r))
		}
	}()

	s.publish(job.ID, domain.JobStatusProcessing, job.Progress, "")

	profile, ok := s.profiles[job.Profile]
	if !ok {
		s.failJob(store, job.ID, fmt.Sprintf("unknown profile %q", job.Profile))
		return
	}

	onProgress := func(pct float64) {
		if err := s.jobs.UpdateProgress(store, job.ID, pct); err != nil {
			s.log.Warn().Err(err).Int64("job", job.ID).Msg("progress update failed")
		}
		s.publish(job.ID, domain.JobStatusProcessing, pct, "")
	}

	artifact, cleanup, err := s.orchestrator.Run(ctx, job, profile, onProgress)
	defer cleanup()
	if err != nil {
		if ctx.Err() != nil {
			// Clean shutdown: put the job back instead of leaving it
			// processing or failing it for a fault that wasn't its own.
			if relErr := s.jobs.Release(store, job.ID); relErr != nil {
				s.log.Error().Err(relErr).Int64("job", job.ID).Msg("release on shutdown failed")
			}
			return
		}
		s.failJob(store, job.ID, err.Error())
		return
	}

	handle, err := s.deliverer.Deliver(store, job.OwnerID, artifact.Path, artifact.Caption(job.OriginalFilename))
	if err != nil {
		s.failJob(store, job.ID, fmt.Sprintf("delivery failed: %v", err))
		return
	}

	if err := s.jobs.Complete(store, job.ID); err != nil {
		// Left processing; startup recovery repairs it on the next run.
		s.log.Error().Err(err).Int64("job", job.ID).Msg("complete update failed")
		return
	}
	s.publish(job.ID, domain.JobStatusCompleted, 100, handle.ID)
	s.log.Info().Int64("job", job.ID).Str("handle", handle.ID).Msg("job completed")
}

func (s *Scheduler) failJob(ctx context.Context, jobID int64, reason string) {
	s.log.Error().Int64("job", jobID).Str("reason", reason).Msg("job failed")
	if err := s.jobs.Fail(ctx, jobID, reason); err != nil {
		s.log.Error().Err(err).Int64("job", jobID).Msg("fail update failed")
		return
	}
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return
	}
	s.publish(jobID, domain.JobStatusFailed, job.Progress, reason)
}

func (s *Scheduler) publish(jobID int64, status domain.JobStatus, progress float64, message string) {
	if s.eventBus != nil {
		s.eventBus.Publish(Event{
			JobID:    jobID,
			Status:   status,
			Progress: progress,
			Message:  message,
		})
	}
}
