package domain

import "fmt"

// VideoInfo is the subset of ffprobe output the pipeline cares about.
type VideoInfo struct {
	Duration float64 // seconds
	Width    int
	Height   int
	Codec    string
	Size     int64
	BitRate  int64 // bits per second, 0 when unknown
}

// FormatBytes renders a byte count for captions and log lines.
func FormatBytes(n int64) string {
	v := float64(n)
	for _, unit := range []string{"B", "KB", "MB", "GB"} {
		if v < 1024.0 {
			return fmt.Sprintf("%.2f %s", v, unit)
		}
		v /= 1024.0
	}
	return fmt.Sprintf("%.2f TB", v)
}

// FormatDuration renders seconds as HH:MM:SS.
func FormatDuration(seconds float64) string {
	s := int(seconds)
	return fmt.Sprintf("%02d:%02d:%02d", s/3600, (s%3600)/60, s%60)
}
