package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"vidpress/internal/domain"
	"vidpress/internal/port"
)

// Progress checkpoints for the stages around the encode itself. The encoder's
// native 0-100 is mapped into the window between checkpointEncode and
// checkpointEncoded; 100 is reported exactly once, after the output exists.
const (
	checkpointStart    = 5.0
	checkpointResolved = 10.0
	checkpointEncode   = 15.0
	checkpointEncoded  = 95.0
)

// Artifact is one completed output file, still in scratch space until the
// deliverer takes it.
type Artifact struct {
	Path    string
	Profile domain.Profile
	Info    *domain.VideoInfo
}

// Caption summarizes the artifact for the delivery channel.
func (a *Artifact) Caption(originalFilename string) string {
	parts := []string{fmt.Sprintf("Processed: %s - %s", originalFilename, a.Profile.Name)}
	if a.Info != nil {
		parts = append(parts,
			fmt.Sprintf("%dx%d", a.Info.Width, a.Info.Height),
			domain.FormatDuration(a.Info.Duration),
			domain.FormatBytes(a.Info.Size),
		)
	}
	return strings.Join(parts, " | ")
}

// Orchestrator executes the transcode for one claimed job: resolve the
// source into scratch, validate, encode with a conservative retry, and report
// normalized progress.
type Orchestrator struct {
	transcoder     port.Transcoder
	resolver       port.SourceResolver
	scratchDir     string
	maxDurationSec int
	log            zerolog.Logger
}

func NewOrchestrator(transcoder port.Transcoder, resolver port.SourceResolver, scratchDir string, maxDurationSec int, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		transcoder:     transcoder,
		resolver:       resolver,
		scratchDir:     scratchDir,
		maxDurationSec: maxDurationSec,
		log:            log,
	}
}

// Run produces the artifact for job under profile. The returned cleanup
// removes the job's entire scratch directory and is safe to call on every
// path; cleanup failure is logged, never surfaced.
func (o *Orchestrator) Run(ctx context.Context, job *domain.Job, profile domain.Profile, onProgress port.ProgressFunc) (*Artifact, func(), error) {
	jobDir := filepath.Join(o.scratchDir, fmt.Sprintf("job_%d_%s", job.ID, uuid.NewString()))
	cleanup := func() {
		if err := os.RemoveAll(jobDir); err != nil {
			o.log.Warn().Err(err).Int64("job", job.ID).Msg("scratch cleanup failed")
		}
	}

	if err := os.MkdirAll(jobDir, 0o755); err != nil {
		return nil, cleanup, fmt.Errorf("create scratch directory: %w", err)
	}

	report := newMonotoneReporter(onProgress)
	report.report(checkpointStart)

	inputPath, err := o.resolver.Resolve(ctx, job.SourceRef, jobDir)
	if err != nil {
		return nil, cleanup, fmt.Errorf("resolve source: %w", err)
	}
	report.report(checkpointResolved)

	info, err := o.transcoder.Probe(ctx, inputPath)
	if err != nil {
		return nil, cleanup, fmt.Errorf("probe input: %w", err)
	}
	if o.maxDurationSec > 0 && info.Duration > float64(o.maxDurationSec) {
		return nil, cleanup, fmt.Errorf("%w: %s", domain.ErrDurationTooLong, domain.FormatDuration(info.Duration))
	}
	report.report(checkpointEncode)

	outputPath := filepath.Join(jobDir, fmt.Sprintf("compressed_%s.mp4", profile.Name))
	encodeProgress := func(pct float64) {
		report.report(checkpointEncode + pct/100*(checkpointEncoded-checkpointEncode))
	}

	if err := o.transcoder.Transcode(ctx, inputPath, outputPath, profile, false, encodeProgress); err != nil {
		if ctx.Err() != nil {
			return nil, cleanup, ctx.Err()
		}
		// Edge-case inputs often succeed on a conservative second attempt.
		o.log.Warn().Err(err).Int64("job", job.ID).Msg("encode failed, retrying with degraded parameters")
		_ = os.Remove(outputPath)
		if err := o.transcoder.Transcode(ctx, inputPath, outputPath, profile, true, encodeProgress); err != nil {
			return nil, cleanup, fmt.Errorf("transcode failed after fallback: %w", err)
		}
	}

	outInfo, err := o.transcoder.Probe(ctx, outputPath)
	if err != nil {
		// The encode succeeded; a probe failure only costs caption detail.
		o.log.Warn().Err(err).Int64("job", job.ID).Msg("output probe failed")
		if stat, statErr := os.Stat(outputPath); statErr == nil {
			outInfo = &domain.VideoInfo{Size: stat.Size()}
		} else {
			return nil, cleanup, fmt.Errorf("output missing after encode: %w", statErr)
		}
	}

	report.report(100)
	return &Artifact{Path: outputPath, Profile: profile, Info: outInfo}, cleanup, nil
}

// monotoneReporter drops any value that would move progress backwards and
// caps everything at 100, so observers only ever see a non-decreasing
// sequence regardless of how the encoder reports.
type monotoneReporter struct {
	mu   sync.Mutex
	last float64
	fn   port.ProgressFunc
}

func newMonotoneReporter(fn port.ProgressFunc) *monotoneReporter {
	return &monotoneReporter{fn: fn}
}

func (m *monotoneReporter) report(pct float64) {
	if m.fn == nil {
		return
	}
	if pct > 100 {
		pct = 100
	}
	m.mu.Lock()
	if pct <= m.last {
		m.mu.Unlock()
		return
	}
	m.last = pct
	m.mu.Unlock()
	m.fn(pct)
}
