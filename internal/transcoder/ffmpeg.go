package transcoder

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/zoomcut-dev/zoomcut/internal/plan"
)

// FFmpegConfig holds configuration for the FFmpeg engine.
type FFmpegConfig struct {
	// FFmpegPath is the path to the ffmpeg binary.
	// If empty, "ffmpeg" will be used (assumes it's in PATH).
	FFmpegPath string

	// FFprobePath is the path to the ffprobe binary.
	// If empty, "ffprobe" will be used.
	FFprobePath string
}

// DefaultFFmpegConfig returns an FFmpegConfig with production-ready defaults.
func DefaultFFmpegConfig() FFmpegConfig {
	return FFmpegConfig{
		FFmpegPath:  "ffmpeg",
		FFprobePath: "ffprobe",
	}
}

// FFmpegEngine implements Engine using the FFmpeg CLI.
type FFmpegEngine struct {
	config FFmpegConfig
}

// Compile-time verification that FFmpegEngine implements Engine.
var _ Engine = (*FFmpegEngine)(nil)

// NewFFmpegEngine creates a new FFmpeg-based engine. Both binaries are
// resolved up front so a missing installation fails the export strategy
// immediately rather than partway through a run.
func NewFFmpegEngine(cfg FFmpegConfig) (*FFmpegEngine, error) {
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.FFprobePath == "" {
		cfg.FFprobePath = "ffprobe"
	}

	if _, err := exec.LookPath(cfg.FFmpegPath); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrEngineUnavailable, cfg.FFmpegPath, err)
	}
	if _, err := exec.LookPath(cfg.FFprobePath); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrEngineUnavailable, cfg.FFprobePath, err)
	}

	return &FFmpegEngine{config: cfg}, nil
}

// Execute runs the steps strictly in sequence. Overall progress is the
// completed step count plus the running step's own fraction, derived from
// ffmpeg's progress stream against the step's expected output duration.
func (e *FFmpegEngine) Execute(ctx context.Context, steps []plan.Step, aux []plan.AuxFile, onProgress ProgressFunc) error {
	for _, f := range aux {
		if err := os.WriteFile(f.Path, []byte(f.Contents), 0644); err != nil {
			return fmt.Errorf("write aux file %s: %w", f.Path, err)
		}
	}

	total := len(steps)
	for i, step := range steps {
		stepProgress := func(frac float64) {
			if onProgress != nil {
				onProgress((float64(i) + frac) / float64(total))
			}
		}
		if err := e.runStep(ctx, step, stepProgress); err != nil {
			return fmt.Errorf("step %d/%d: %w", i+1, total, err)
		}
	}

	if onProgress != nil {
		onProgress(1)
	}
	return nil
}

// runStep executes one ffmpeg invocation, parsing the key=value progress
// stream from stdout into fraction callbacks.
func (e *FFmpegEngine) runStep(ctx context.Context, step plan.Step, onProgress func(float64)) error {
	args := append([]string{"-progress", "pipe:1", "-nostats"}, step.Args...)

	cmd := exec.CommandContext(ctx, e.config.FFmpegPath, args...)
	cmd.Stderr = nil // FFmpeg logs to stderr; progress arrives on stdout

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg: %w", err)
	}

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		if frac, ok := parseProgressLine(scanner.Text(), step.ExpectedDuration); ok {
			onProgress(frac)
		}
	}

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("execution cancelled: %w", ctx.Err())
		}
		return fmt.Errorf("ffmpeg execution failed: %w", err)
	}

	onProgress(1)
	return nil
}

// parseProgressLine extracts a completion fraction from one line of
// ffmpeg's -progress output. Only out_time_us lines carry position
// information; everything else is ignored.
func parseProgressLine(line string, expectedDuration float64) (float64, bool) {
	const key = "out_time_us="
	if !strings.HasPrefix(line, key) {
		return 0, false
	}
	if expectedDuration <= 0 {
		return 0, false
	}

	us, err := strconv.ParseInt(strings.TrimSpace(strings.TrimPrefix(line, key)), 10, 64)
	if err != nil || us < 0 {
		return 0, false
	}

	frac := float64(us) / 1e6 / expectedDuration
	if frac > 1 {
		frac = 1
	}
	return frac, true
}

// validateInput checks if the input file exists and is readable.
func validateInput(inputPath string) error {
	info, err := os.Stat(inputPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("input file does not exist: %s", inputPath)
		}
		return fmt.Errorf("failed to access input file: %w", err)
	}

	if info.IsDir() {
		return fmt.Errorf("input path is a directory, expected a file: %s", inputPath)
	}

	return nil
}
