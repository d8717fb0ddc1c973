package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"

	"vidpress/internal/domain"
)

func (t *Transcoder) Probe(ctx context.Context, inputPath string) (*domain.VideoInfo, error) {
	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		inputPath,
	}
	output, err := exec.CommandContext(ctx, "ffprobe", args...).Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}
	return parseProbeOutput(output)
}

func parseProbeOutput(output []byte) (*domain.VideoInfo, error) {
	var probe struct {
		Format struct {
			Duration string `json:"duration"`
			Size     string `json:"size"`
			BitRate  string `json:"bit_rate"`
		} `json:"format"`
		Streams []struct {
			CodecType string `json:"codec_type"`
			CodecName string `json:"codec_name"`
			Width     int    `json:"width"`
			Height    int    `json:"height"`
		} `json:"streams"`
	}
	if err := json.Unmarshal(output, &probe); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}

	info := &domain.VideoInfo{}
	info.Duration, _ = strconv.ParseFloat(probe.Format.Duration, 64)
	info.Size, _ = strconv.ParseInt(probe.Format.Size, 10, 64)
	info.BitRate, _ = strconv.ParseInt(probe.Format.BitRate, 10, 64)

	for _, stream := range probe.Streams {
		if stream.CodecType == "video" {
			info.Width = stream.Width
			info.Height = stream.Height
			info.Codec = stream.CodecName
			return info, nil
		}
	}
	return nil, fmt.Errorf("no video stream found")
}
