// Package render executes frame-render export plans: the source is split
// into raster frames, each frame is cropped and scaled according to the
// transform active at its instant, and the result is re-encoded with the
// original audio. This is the alternative backend for configurations that
// avoid filter-graph execution.
package render

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/zoomcut-dev/zoomcut/internal/plan"
	"github.com/zoomcut-dev/zoomcut/internal/transcoder"
)

// Progress weight of each phase. Extraction and encoding shell out to the
// engine; the transform phase runs in-process.
const (
	extractShare   = 0.3
	transformShare = 0.4
	encodeShare    = 0.3
)

// Config holds encoding parameters for the reassembly step.
type Config struct {
	VideoCodec string
	Preset     string
	CRF        int
}

// DefaultConfig returns encoding defaults matching the filter-graph path.
func DefaultConfig() Config {
	return Config{
		VideoCodec: "libx264",
		Preset:     "fast",
		CRF:        23,
	}
}

// Renderer realizes a FrameSchedule. Frames are processed strictly in time
// order, one at a time; no out-of-order or parallel rendering.
type Renderer struct {
	engine transcoder.Engine
	config Config
}

// NewRenderer creates a Renderer executing extraction and encoding through
// the given engine.
func NewRenderer(engine transcoder.Engine, cfg Config) *Renderer {
	return &Renderer{engine: engine, config: cfg}
}

// Render executes the schedule: extract source frames for the export range
// into workDir, apply the per-frame transform, reassemble with the source
// audio into outputPath.
func (r *Renderer) Render(ctx context.Context, schedule *plan.FrameSchedule, inputPath, workDir, outputPath string, onProgress transcoder.ProgressFunc) error {
	if schedule.Count() == 0 {
		return fmt.Errorf("empty frame schedule")
	}

	rawDir := filepath.Join(workDir, "frames_raw")
	outDir := filepath.Join(workDir, "frames_out")
	for _, dir := range []string{rawDir, outDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create frame directory: %w", err)
		}
	}

	report := func(f float64) {
		if onProgress != nil {
			onProgress(f)
		}
	}

	if err := r.extract(ctx, schedule, inputPath, rawDir, func(f float64) {
		report(f * extractShare)
	}); err != nil {
		return fmt.Errorf("extract frames: %w", err)
	}

	if err := r.transform(ctx, schedule, rawDir, outDir, func(f float64) {
		report(extractShare + f*transformShare)
	}); err != nil {
		return fmt.Errorf("transform frames: %w", err)
	}

	if err := r.encode(ctx, schedule, inputPath, outDir, outputPath, func(f float64) {
		report(extractShare + transformShare + f*encodeShare)
	}); err != nil {
		return fmt.Errorf("encode frames: %w", err)
	}

	report(1)
	return nil
}

// extract splits the export range into numbered raster frames at the
// schedule's rate.
func (r *Renderer) extract(ctx context.Context, s *plan.FrameSchedule, inputPath, rawDir string, onProgress transcoder.ProgressFunc) error {
	step := plan.Step{
		Args: []string{
			"-ss", fmt.Sprintf("%g", s.Start), "-to", fmt.Sprintf("%g", s.End),
			"-i", inputPath,
			"-vf", fmt.Sprintf("fps=%d", s.FPS),
			"-y", filepath.Join(rawDir, "frame_%06d.png"),
		},
		ExpectedDuration: s.End - s.Start,
	}
	return r.engine.Execute(ctx, []plan.Step{step}, nil, onProgress)
}

// transform applies the scheduled crop to every extracted frame in time
// order. Identity frames pass through untouched.
func (r *Renderer) transform(ctx context.Context, s *plan.FrameSchedule, rawDir, outDir string, onProgress transcoder.ProgressFunc) error {
	frames, err := listFrames(rawDir)
	if err != nil {
		return err
	}
	if len(frames) == 0 {
		return fmt.Errorf("no frames extracted")
	}

	for i, name := range frames {
		if err := ctx.Err(); err != nil {
			return err
		}

		// fps extraction can emit one frame more than the schedule holds;
		// clamp so the tail frame never samples past the export range.
		idx := i
		if last := s.Count() - 1; idx > last {
			idx = last
		}
		frame := s.FrameAt(idx)
		src := filepath.Join(rawDir, name)
		dst := filepath.Join(outDir, name)

		if frame.Identity() {
			if err := os.Rename(src, dst); err != nil {
				return fmt.Errorf("move frame %s: %w", name, err)
			}
		} else {
			if err := renderFrame(src, dst, frame, s.Width, s.Height); err != nil {
				return fmt.Errorf("render frame %s: %w", name, err)
			}
		}

		if onProgress != nil {
			onProgress(float64(i+1) / float64(len(frames)))
		}
	}

	return nil
}

// renderFrame draws the frame's crop window scaled back to the full output
// dimensions, the pixel-space equivalent of the filter expression's
// crop-then-scale.
func renderFrame(srcPath, dstPath string, frame plan.Frame, width, height int) error {
	img, err := imaging.Open(srcPath)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}

	rect := image.Rect(frame.Src.X, frame.Src.Y, frame.Src.X+frame.Src.W, frame.Src.Y+frame.Src.H)
	cropped := imaging.Crop(img, rect)
	scaled := imaging.Resize(cropped, width, height, imaging.Lanczos)

	if err := imaging.Save(scaled, dstPath); err != nil {
		return fmt.Errorf("save: %w", err)
	}
	return nil
}

// encode reassembles the processed frames at the schedule's rate and maps
// the export range of the source audio alongside.
func (r *Renderer) encode(ctx context.Context, s *plan.FrameSchedule, inputPath, outDir, outputPath string, onProgress transcoder.ProgressFunc) error {
	step := plan.Step{
		Args: []string{
			"-framerate", fmt.Sprintf("%d", s.FPS),
			"-i", filepath.Join(outDir, "frame_%06d.png"),
			"-ss", fmt.Sprintf("%g", s.Start), "-to", fmt.Sprintf("%g", s.End),
			"-i", inputPath,
			"-map", "0:v",
			"-map", "1:a?",
			"-c:v", r.config.VideoCodec,
			"-preset", r.config.Preset,
			"-crf", fmt.Sprintf("%d", r.config.CRF),
			"-pix_fmt", "yuv420p",
			"-c:a", "aac",
			"-shortest",
			"-y", outputPath,
		},
		ExpectedDuration: s.End - s.Start,
	}
	return r.engine.Execute(ctx, []plan.Step{step}, nil, onProgress)
}

// listFrames returns the extracted frame filenames in sequence order.
func listFrames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read frame directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasPrefix(entry.Name(), "frame_") && strings.HasSuffix(entry.Name(), ".png") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
