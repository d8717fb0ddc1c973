package ffmpeg

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"vidpress/internal/domain"
	"vidpress/internal/port"
)

// Transcoder drives the ffmpeg and ffprobe binaries. The encode writes to a
// caller-provided scratch path and never touches the input in place.
type Transcoder struct {
	log zerolog.Logger
}

func NewTranscoder(log zerolog.Logger) *Transcoder {
	return &Transcoder{log: log}
}

// qualityFor maps a profile bitrate onto an x264 CRF. Thresholds follow the
// usual ladder: low-bitrate targets tolerate a higher CRF.
func qualityFor(bitrateKbps int, degraded bool) (crf int, preset string) {
	switch {
	case bitrateKbps <= 2000:
		crf = 28
	case bitrateKbps >= 8000:
		crf = 18
	default:
		crf = 23
	}
	preset = "medium"
	if degraded {
		crf += 6
		preset = "veryfast"
	}
	return crf, preset
}

func buildArgs(inputPath, outputPath string, p domain.Profile, crf int, preset string) []string {
	return []string{
		"-i", inputPath,
		"-vf", fmt.Sprintf("scale=%d:%d", p.Width, p.Height),
		"-c:v", "libx264",
		"-b:v", p.Bitrate(),
		"-crf", strconv.Itoa(crf),
		"-preset", preset,
		"-c:a", "aac",
		"-b:a", "128k",
		"-movflags", "+faststart",
		"-threads", "2",
		"-progress", "pipe:1",
		"-nostats",
		"-y", outputPath,
	}
}

func (t *Transcoder) Transcode(ctx context.Context, inputPath, outputPath string, profile domain.Profile, degraded bool, onProgress port.ProgressFunc) error {
	crf, preset := qualityFor(profile.BitrateKbps, degraded)

	// Duration baseline for normalizing out_time into a percentage. Without
	// it the encode still runs, just without intermediate progress.
	var duration float64
	if info, err := t.Probe(ctx, inputPath); err == nil {
		duration = info.Duration
	}

	args := buildArgs(inputPath, outputPath, profile, crf, preset)
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr := newTailBuffer(20)
	cmd.Stderr = stderr

	t.log.Debug().
		Str("profile", profile.Name).
		Int("crf", crf).
		Str("preset", preset).
		Bool("degraded", degraded).
		Msg("starting ffmpeg")

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg: %w", err)
	}

	readProgress(stdout, duration, onProgress)

	if err := cmd.Wait(); err != nil {
		if tail := stderr.Tail(); tail != "" {
			return fmt.Errorf("ffmpeg (crf=%d preset=%s): %w: %s", crf, preset, err, tail)
		}
		return fmt.Errorf("ffmpeg (crf=%d preset=%s): %w", crf, preset, err)
	}
	return nil
}

// tailBuffer keeps the last n non-empty stderr lines for error reporting.
type tailBuffer struct {
	max   int
	lines []string
	frag  strings.Builder
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	for _, c := range p {
		if c == '\n' || c == '\r' {
			if line := strings.TrimSpace(b.frag.String()); line != "" {
				b.lines = append(b.lines, line)
				if len(b.lines) > b.max {
					b.lines = b.lines[1:]
				}
			}
			b.frag.Reset()
			continue
		}
		b.frag.WriteByte(c)
	}
	return len(p), nil
}

func (b *tailBuffer) Tail() string {
	n := len(b.lines)
	if n == 0 {
		return ""
	}
	if n > 3 {
		n = 3
	}
	return strings.Join(b.lines[len(b.lines)-n:], " | ")
}

var _ port.Transcoder = (*Transcoder)(nil)
