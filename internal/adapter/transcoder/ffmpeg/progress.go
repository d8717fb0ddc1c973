package ffmpeg

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"vidpress/internal/port"
)

// readProgress consumes ffmpeg's `-progress pipe:1` key=value stream and
// reports a percentage against the known duration. Values are raw encoder
// positions; monotonicity is enforced by the caller's reporter.
func readProgress(r io.Reader, duration float64, onProgress port.ProgressFunc) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		pct, ok := parseProgressLine(scanner.Text(), duration)
		if ok && onProgress != nil {
			onProgress(pct)
		}
	}
}

// parseProgressLine extracts a percentage from a single progress line.
// out_time_us (and the misnamed out_time_ms) carry microseconds.
func parseProgressLine(line string, duration float64) (float64, bool) {
	if duration <= 0 {
		return 0, false
	}
	key, value, found := strings.Cut(strings.TrimSpace(line), "=")
	if !found {
		return 0, false
	}
	switch key {
	case "out_time_us", "out_time_ms":
		us, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil || us < 0 {
			return 0, false
		}
		pct := float64(us) / 1e6 / duration * 100
		if pct > 100 {
			pct = 100
		}
		return pct, true
	}
	return 0, false
}
