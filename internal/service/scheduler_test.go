package service

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sqlitestore "vidpress/internal/adapter/storage/sqlite"
	"vidpress/internal/domain"
	"vidpress/internal/port"
)

type delivered struct {
	ownerID int64
	caption string
}

type stubDeliverer struct {
	mu  sync.Mutex
	got []delivered
	err error
}

func (s *stubDeliverer) Deliver(_ context.Context, ownerID int64, artifactPath, caption string) (*port.DeliveryHandle, error) {
	if s.err != nil {
		return nil, s.err
	}
	if _, err := os.Stat(artifactPath); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, delivered{ownerID: ownerID, caption: caption})
	return &port.DeliveryHandle{ID: "handle-1", Location: "/delivered/handle-1"}, nil
}

func (s *stubDeliverer) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.got)
}

type pipeline struct {
	jobs      *sqlitestore.JobStore
	deliverer *stubDeliverer
	scheduler *Scheduler
	cancel    context.CancelFunc
}

func newPipeline(t *testing.T, tc port.Transcoder, deliverer *stubDeliverer, workers int) *pipeline {
	t.Helper()

	store, err := sqlitestore.NewStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	jobs := sqlitestore.NewJobStore(store)
	orchestrator := NewOrchestrator(tc, &stubResolver{}, t.TempDir(), 3600, zerolog.Nop())
	profiles, _ := testProfiles()
	scheduler := NewScheduler(jobs, orchestrator, deliverer, NewEventBus(), profiles, workers, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, scheduler.Start(ctx))
	t.Cleanup(func() {
		cancel()
		_ = scheduler.Wait()
	})

	return &pipeline{jobs: jobs, deliverer: deliverer, scheduler: scheduler, cancel: cancel}
}

func (p *pipeline) waitForStatus(t *testing.T, jobID int64, want domain.JobStatus) *domain.Job {
	t.Helper()
	var job *domain.Job
	require.Eventually(t, func() bool {
		j, err := p.jobs.Get(context.Background(), jobID)
		if err != nil {
			return false
		}
		job = j
		return j.Status == want
	}, 5*time.Second, 10*time.Millisecond, "job %d never reached %s", jobID, want)
	return job
}

func TestScheduler_EndToEndSuccess(t *testing.T) {
	tc := &stubTranscoder{duration: 60, progress: []float64{25, 75, 100}}
	p := newPipeline(t, tc, &stubDeliverer{}, 1)

	created, err := p.jobs.Insert(context.Background(), 42, "ref://a", "clip.mp4", 50*1024*1024, "720p")
	require.NoError(t, err)

	job := p.waitForStatus(t, created.ID, domain.JobStatusCompleted)
	assert.Equal(t, 100.0, job.Progress)
	assert.True(t, job.StartedAt.Valid)
	assert.True(t, job.CompletedAt.Valid)
	assert.Empty(t, job.ErrorMessage)

	require.Equal(t, 1, p.deliverer.count())
	assert.Equal(t, int64(42), p.deliverer.got[0].ownerID)
	assert.Contains(t, p.deliverer.got[0].caption, "clip.mp4 - 720p")
}

func TestScheduler_TranscodeFailureMarksJobFailed(t *testing.T) {
	tc := &stubTranscoder{duration: 60, failAlways: true}
	deliverer := &stubDeliverer{}
	p := newPipeline(t, tc, deliverer, 1)

	created, err := p.jobs.Insert(context.Background(), 1, "ref://a", "clip.mp4", 1024, "720p")
	require.NoError(t, err)

	job := p.waitForStatus(t, created.ID, domain.JobStatusFailed)
	assert.Contains(t, job.ErrorMessage, "after fallback")
	assert.Less(t, job.Progress, 100.0)
	assert.True(t, job.CompletedAt.Valid)
	assert.Equal(t, 0, deliverer.count())

	// The pool survives a failing job and keeps processing.
	next, err := p.jobs.Insert(context.Background(), 1, "ref://b", "other.mp4", 1024, "480p")
	require.NoError(t, err)
	p.waitForStatus(t, next.ID, domain.JobStatusFailed)
}

func TestScheduler_DeliveryFailureMarksJobFailed(t *testing.T) {
	tc := &stubTranscoder{duration: 60}
	p := newPipeline(t, tc, &stubDeliverer{err: errors.New("channel unavailable")}, 1)

	created, err := p.jobs.Insert(context.Background(), 1, "ref://a", "clip.mp4", 1024, "720p")
	require.NoError(t, err)

	job := p.waitForStatus(t, created.ID, domain.JobStatusFailed)
	assert.Contains(t, job.ErrorMessage, "delivery failed")
}

func TestScheduler_UnknownProfileFailsJob(t *testing.T) {
	tc := &stubTranscoder{duration: 60}
	p := newPipeline(t, tc, &stubDeliverer{}, 1)

	created, err := p.jobs.Insert(context.Background(), 1, "ref://a", "clip.mp4", 1024, "unconfigured")
	require.NoError(t, err)

	job := p.waitForStatus(t, created.ID, domain.JobStatusFailed)
	assert.Contains(t, job.ErrorMessage, "unknown profile")
}

func TestScheduler_ShutdownReleasesInFlightJob(t *testing.T) {
	tc := &stubTranscoder{duration: 60, block: true}
	p := newPipeline(t, tc, &stubDeliverer{}, 1)

	created, err := p.jobs.Insert(context.Background(), 1, "ref://a", "clip.mp4", 1024, "720p")
	require.NoError(t, err)

	p.waitForStatus(t, created.ID, domain.JobStatusProcessing)

	p.cancel()
	require.NoError(t, p.scheduler.Wait())

	job, err := p.jobs.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusPending, job.Status, "in-flight job released on clean shutdown")
	assert.False(t, job.StartedAt.Valid)
}

func TestScheduler_ConcurrentWorkersDrainQueue(t *testing.T) {
	tc := &stubTranscoder{duration: 60}
	p := newPipeline(t, tc, &stubDeliverer{}, 3)

	var ids []int64
	for i := range 6 {
		created, err := p.jobs.Insert(context.Background(), int64(i), "ref://a", "clip.mp4", 1024, "360p")
		require.NoError(t, err)
		ids = append(ids, created.ID)
	}

	for _, id := range ids {
		p.waitForStatus(t, id, domain.JobStatusCompleted)
	}
	assert.Equal(t, 6, p.deliverer.count())
}
