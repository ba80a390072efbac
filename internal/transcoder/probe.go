package transcoder

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"

	"github.com/zoomcut-dev/zoomcut/internal/domain/model"
)

// probeOutput mirrors the subset of ffprobe's JSON output we consume.
type probeOutput struct {
	Streams []probeStream `json:"streams"`
	Format  probeFormat   `json:"format"`
}

type probeStream struct {
	CodecType string `json:"codec_type"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

type probeFormat struct {
	Duration string `json:"duration"`
}

// Probe inspects the media file with ffprobe and returns its duration and
// the dimensions of the first video stream.
func (e *FFmpegEngine) Probe(ctx context.Context, inputPath string) (model.MediaInfo, error) {
	if err := validateInput(inputPath); err != nil {
		return model.MediaInfo{}, err
	}

	cmd := exec.CommandContext(ctx, e.config.FFprobePath,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		inputPath,
	)

	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return model.MediaInfo{}, fmt.Errorf("probe cancelled: %w", ctx.Err())
		}
		return model.MediaInfo{}, fmt.Errorf("ffprobe execution failed: %w", err)
	}

	parsed, err := parseProbeOutput(out)
	if err != nil {
		return model.MediaInfo{}, fmt.Errorf("parse probe output: %w", err)
	}

	return parsed, nil
}

func parseProbeOutput(data []byte) (model.MediaInfo, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return model.MediaInfo{}, err
	}

	duration, err := strconv.ParseFloat(out.Format.Duration, 64)
	if err != nil {
		return model.MediaInfo{}, fmt.Errorf("invalid duration %q", out.Format.Duration)
	}

	info := model.MediaInfo{Duration: duration}
	for _, s := range out.Streams {
		if s.CodecType == "video" {
			info.Width = s.Width
			info.Height = s.Height
			break
		}
	}

	if info.Width == 0 || info.Height == 0 {
		return model.MediaInfo{}, fmt.Errorf("no video stream found")
	}

	return info, nil
}
