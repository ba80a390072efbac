package plan

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/zoomcut-dev/zoomcut/internal/domain/model"
)

// Strategy identifies how an edit set is realized on export.
type Strategy string

const (
	// StrategyCopy remuxes the source without touching any frame.
	StrategyCopy Strategy = "copy"
	// StrategyTrim extracts the kept segments with stream-level copy.
	StrategyTrim Strategy = "trim"
	// StrategyFilterGraph compiles the zoom path into a filter expression
	// executed by the transcoding engine.
	StrategyFilterGraph Strategy = "filtergraph"
	// StrategyFrameRender re-renders frames one by one through the raster
	// pipeline.
	StrategyFrameRender Strategy = "framerender"
)

// Backend selects which execution path realizes zoom effects.
type Backend string

const (
	BackendFilterGraph Backend = "filtergraph"
	BackendFrameRender Backend = "framerender"
)

var (
	// ErrNoZoomSegments is returned when every zoom window filters out as
	// zero or negative duration.
	ErrNoZoomSegments = errors.New("no usable zoom segments")

	// ErrUnknownBackend is returned for a backend name outside the two
	// supported execution paths.
	ErrUnknownBackend = errors.New("unknown export backend")
)

// Config holds planner parameters. Encoding parameters live here because
// the synthesized step is a complete operation description handed to the
// engine verbatim.
type Config struct {
	Backend    Backend
	FrameRate  int
	VideoCodec string
	Preset     string
	CRF        int
}

// DefaultConfig returns planner defaults matching the filter-graph backend.
func DefaultConfig() Config {
	return Config{
		Backend:    BackendFilterGraph,
		FrameRate:  DefaultFrameRate,
		VideoCodec: "libx264",
		Preset:     "fast",
		CRF:        23,
	}
}

// ParseBackend validates a backend name, defaulting to the filter-graph
// path for the empty string.
func ParseBackend(s string) (Backend, error) {
	switch Backend(s) {
	case "":
		return BackendFilterGraph, nil
	case BackendFilterGraph:
		return BackendFilterGraph, nil
	case BackendFrameRender:
		return BackendFrameRender, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownBackend, s)
	}
}

// Source describes the local input of one export run.
type Source struct {
	Path string
	Info model.MediaInfo
}

// Step is one engine operation: a complete argument vector plus the
// expected output duration used to turn engine progress into a fraction.
type Step struct {
	Args             []string
	ExpectedDuration float64
}

// AuxFile is a supporting text artifact a step depends on (e.g., a concat
// list). The executor writes these into the work directory before running
// the steps.
type AuxFile struct {
	Path     string
	Contents string
}

// Plan is the executable description of one export run.
type Plan struct {
	Strategy    Strategy
	Steps       []Step
	Aux         []AuxFile
	FilterGraph string
	Frames      *FrameSchedule
	OutputPath  string
}

// SelectStrategy decides how to realize the edit set. The decision is a
// pure function of what the timeline holds: no edits copy, trims alone
// extract segments, and any zoom effect routes to the configured backend.
func SelectStrategy(tl *model.Timeline, backend Backend) Strategy {
	switch {
	case len(tl.Effects) == 0 && len(tl.Trims) == 0:
		return StrategyCopy
	case len(tl.Effects) == 0:
		return StrategyTrim
	case backend == BackendFrameRender:
		return StrategyFrameRender
	default:
		return StrategyFilterGraph
	}
}

// Build synthesizes the concrete operation sequence for the timeline.
// workDir scopes intermediate artifacts to this run.
func Build(tl *model.Timeline, src Source, outputPath, workDir string, cfg Config) (*Plan, error) {
	strategy := SelectStrategy(tl, cfg.Backend)

	switch strategy {
	case StrategyCopy:
		return buildCopy(src, outputPath), nil
	case StrategyTrim:
		return buildTrim(tl, src, outputPath, workDir)
	case StrategyFilterGraph:
		return buildFilterGraph(tl, src, outputPath, cfg)
	case StrategyFrameRender:
		return buildFrameRender(tl, src, outputPath, cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}

// buildCopy emits a passthrough remux: output equals input container and
// codecs.
func buildCopy(src Source, outputPath string) *Plan {
	return &Plan{
		Strategy:   StrategyCopy,
		OutputPath: outputPath,
		Steps: []Step{{
			Args:             []string{"-i", src.Path, "-c", "copy", "-y", outputPath},
			ExpectedDuration: src.Info.Duration,
		}},
	}
}

// buildTrim extracts the kept segments with stream copy. A single segment
// is one direct extraction; multiple segments are extracted independently
// and concatenated in stored order through a concat list. Degenerate
// segments are skipped; if nothing survives, the plan degrades to copy.
func buildTrim(tl *model.Timeline, src Source, outputPath, workDir string) (*Plan, error) {
	var segments []model.TrimSegment
	for _, seg := range tl.Trims {
		if seg.Duration() <= 0 {
			continue
		}
		segments = append(segments, seg)
	}

	if len(segments) == 0 {
		return buildCopy(src, outputPath), nil
	}

	if len(segments) == 1 {
		seg := segments[0]
		return &Plan{
			Strategy:   StrategyTrim,
			OutputPath: outputPath,
			Steps: []Step{{
				Args: []string{
					"-ss", num(seg.Start), "-to", num(seg.End),
					"-i", src.Path, "-c", "copy", "-y", outputPath,
				},
				ExpectedDuration: seg.Duration(),
			}},
		}, nil
	}

	ext := filepath.Ext(outputPath)
	var steps []Step
	var list strings.Builder
	var total float64

	for i, seg := range segments {
		partPath := filepath.Join(workDir, fmt.Sprintf("segment_%03d%s", i, ext))
		steps = append(steps, Step{
			Args: []string{
				"-ss", num(seg.Start), "-to", num(seg.End),
				"-i", src.Path, "-c", "copy", "-y", partPath,
			},
			ExpectedDuration: seg.Duration(),
		})
		list.WriteString(fmt.Sprintf("file '%s'\n", partPath))
		total += seg.Duration()
	}

	listPath := filepath.Join(workDir, "concat.txt")
	steps = append(steps, Step{
		Args: []string{
			"-f", "concat", "-safe", "0", "-i", listPath,
			"-c", "copy", "-y", outputPath,
		},
		ExpectedDuration: total,
	})

	return &Plan{
		Strategy:   StrategyTrim,
		OutputPath: outputPath,
		Steps:      steps,
		Aux:        []AuxFile{{Path: listPath, Contents: list.String()}},
	}, nil
}

// buildFilterGraph compiles the zoom path into a single filter_complex
// operation. Trim, when present, restricts the input range before the
// graph runs; the graph itself is expressed on the restricted range's
// clock, since input seeking rebases timestamps to zero. Audio maps from
// the source untouched.
func buildFilterGraph(tl *model.Timeline, src Source, outputPath string, cfg Config) (*Plan, error) {
	start, end := exportRange(tl)

	graph, err := BuildFilterGraph(tl.Effects, start, end, src.Info.Width, src.Info.Height)
	if errors.Is(err, ErrNoZoomSegments) {
		// Every zoom window filtered out or fell outside the kept range:
		// plan as if no effects existed.
		reduced := *tl
		reduced.Effects = nil
		return Build(&reduced, src, outputPath, filepath.Dir(outputPath), cfg)
	}
	if err != nil {
		return nil, err
	}

	args := []string{}
	if len(tl.Trims) > 0 {
		args = append(args, "-ss", num(start), "-to", num(end))
	}
	args = append(args,
		"-i", src.Path,
		"-filter_complex", graph,
		"-map", "[vout]",
		"-map", "0:a?",
		"-c:v", cfg.VideoCodec,
		"-preset", cfg.Preset,
		"-crf", fmt.Sprintf("%d", cfg.CRF),
		"-c:a", "copy",
		"-y", outputPath,
	)

	return &Plan{
		Strategy:    StrategyFilterGraph,
		OutputPath:  outputPath,
		FilterGraph: graph,
		Steps:       []Step{{Args: args, ExpectedDuration: end - start}},
	}, nil
}

// buildFrameRender emits a per-frame raster schedule over the trim-adjusted
// export range. Execution belongs to the render pipeline, not the plan.
func buildFrameRender(tl *model.Timeline, src Source, outputPath string, cfg Config) (*Plan, error) {
	segments := zoomSegments(tl.Effects)
	if len(segments) == 0 {
		reduced := *tl
		reduced.Effects = nil
		return Build(&reduced, src, outputPath, filepath.Dir(outputPath), cfg)
	}

	start, end := exportRange(tl)
	schedule := NewFrameSchedule(tl.Effects, start, end, cfg.FrameRate, src.Info.Width, src.Info.Height)

	return &Plan{
		Strategy:   StrategyFrameRender,
		OutputPath: outputPath,
		Frames:     schedule,
	}, nil
}

// exportRange returns the time span an effect export covers. With trims
// present the first stored segment restricts the input range; without any
// the whole media is in range.
func exportRange(tl *model.Timeline) (float64, float64) {
	if len(tl.Trims) > 0 {
		return tl.Trims[0].Start, tl.Trims[0].End
	}
	return 0, tl.Duration
}
