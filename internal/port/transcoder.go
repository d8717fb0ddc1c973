package port

import (
	"context"

	"vidpress/internal/domain"
)

// ProgressFunc receives encode progress in [0,100]. Callers may assume it is
// invoked synchronously from the transcoder goroutine.
type ProgressFunc func(percent float64)

type Transcoder interface {
	Probe(ctx context.Context, inputPath string) (*domain.VideoInfo, error)

	// Transcode resizes and re-encodes inputPath into outputPath for the
	// given profile. degraded selects the conservative retry parameter set
	// (lower quality, faster preset). onProgress may be nil.
	Transcode(ctx context.Context, inputPath, outputPath string, profile domain.Profile, degraded bool, onProgress ProgressFunc) error
}
