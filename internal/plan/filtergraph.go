package plan

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/zoomcut-dev/zoomcut/internal/domain/model"
)

// Tolerances below which a segment is treated as a constant crop rather
// than a time-parametric one.
const (
	staticZoomTolerance = 0.01
	staticPosTolerance  = 1.0
)

// segment is one contiguous window of the synthesized zoom path. An
// effect's visible span extends until the next effect begins, not strictly
// to its own declared end, so back-to-back effects chain into a continuous
// path. to is nil for the final segment, which holds its own parameters.
type segment struct {
	start, end float64
	from       model.ZoomEffect
	to         *model.ZoomEffect
}

// animated reports whether the segment's parameters change over its span.
func (s segment) animated() bool {
	if s.to == nil {
		return false
	}
	if abs(s.from.ZoomLevel-s.to.ZoomLevel) >= staticZoomTolerance {
		return true
	}
	if abs(s.from.Position.X-s.to.Position.X) >= staticPosTolerance {
		return true
	}
	return abs(s.from.Position.Y-s.to.Position.Y) >= staticPosTolerance
}

// zoomSegments derives the crop-path windows from the effect set, sorted by
// start time. Zero and negative duration windows are dropped.
func zoomSegments(effects []model.ZoomEffect) []segment {
	if len(effects) == 0 {
		return nil
	}

	sorted := make([]model.ZoomEffect, len(effects))
	copy(sorted, effects)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].StartTime < sorted[j].StartTime
	})

	var segments []segment
	for i, e := range sorted {
		seg := segment{start: e.StartTime, end: e.EndTime, from: e}
		if i+1 < len(sorted) {
			next := sorted[i+1]
			seg.end = next.StartTime
			seg.to = &next
		}
		if seg.end-seg.start <= 0 {
			continue
		}
		segments = append(segments, seg)
	}
	return segments
}

// BuildFilterGraph compiles the effect set into an ffmpeg filter_complex
// expression producing the stream labeled [vout]. The graph covers the
// export window [start, end]: segment windows are clipped to it and
// expressed on its clock, because input seeking rebases the decoded
// stream's timestamps to zero. width and height are the source frame
// dimensions; every segment is scaled back to them so that segments
// concatenate cleanly.
//
// A single segment passes through without a concat stage. Multiple segments
// become independent derived streams joined by concat in time order.
func BuildFilterGraph(effects []model.ZoomEffect, start, end float64, width, height int) (string, error) {
	segments := clipSegments(zoomSegments(effects), start, end)
	if len(segments) == 0 {
		return "", ErrNoZoomSegments
	}
	if width <= 0 || height <= 0 {
		return "", fmt.Errorf("invalid frame dimensions %dx%d", width, height)
	}

	var sb strings.Builder
	if len(segments) == 1 {
		seg := segments[0]
		sb.WriteString(fmt.Sprintf("[0:v]trim=start=%s:end=%s,setpts=PTS-STARTPTS,%s,scale=%d:%d[vout]",
			num(seg.start), num(seg.end), cropExpr(seg), width, height))
		return sb.String(), nil
	}

	for i, seg := range segments {
		if i > 0 {
			sb.WriteString(";")
		}
		sb.WriteString(fmt.Sprintf("[0:v]trim=start=%s:end=%s,setpts=PTS-STARTPTS,%s,scale=%d:%d[v%d]",
			num(seg.start), num(seg.end), cropExpr(seg), width, height, i))
	}

	sb.WriteString(";")
	for i := range segments {
		sb.WriteString(fmt.Sprintf("[v%d]", i))
	}
	sb.WriteString(fmt.Sprintf("concat=n=%d:v=1:a=0[vout]", len(segments)))
	return sb.String(), nil
}

// clipSegments restricts the segment windows to [start, end] and rebases
// their times onto the window's clock. Segments clipped mid-flight keep the
// original interpolation line: the boundary parameters are resampled at the
// clip instants, so the animated expression traces the same values it would
// have over the full window.
func clipSegments(segments []segment, start, end float64) []segment {
	var out []segment
	for _, seg := range segments {
		s := math.Max(seg.start, start)
		e := math.Min(seg.end, end)
		if e-s <= 0 {
			continue
		}
		if seg.animated() && (s > seg.start || e < seg.end) {
			dur := seg.end - seg.start
			from := paramsAt(seg.from, *seg.to, (s-seg.start)/dur)
			to := paramsAt(seg.from, *seg.to, (e-seg.start)/dur)
			seg.from = from
			seg.to = &to
		}
		seg.start = s - start
		seg.end = e - start
		out = append(out, seg)
	}
	return out
}

// paramsAt samples the visual parameters at fraction f of the line between
// two chained effects.
func paramsAt(from, to model.ZoomEffect, f float64) model.ZoomEffect {
	e := from
	e.ZoomLevel = lerp(from.ZoomLevel, to.ZoomLevel, f)
	e.Position.X = lerp(from.Position.X, to.Position.X, f)
	e.Position.Y = lerp(from.Position.Y, to.Position.Y, f)
	return e
}

// cropExpr emits the crop filter for one segment. The crop window is
// derived from the zoom factor z (100%% = 1.0): width iw/z, height ih/z,
// offset (dimension - crop) * position / 100, which centers the window on
// the position percentage instead of anchoring at a corner.
func cropExpr(seg segment) string {
	if !seg.animated() {
		z := num(seg.from.ZoomLevel / 100)
		px := num(seg.from.Position.X)
		py := num(seg.from.Position.Y)
		return fmt.Sprintf("crop=iw/%s:ih/%s:(iw-iw/%s)*%s/100:(ih-ih/%s)*%s/100",
			z, z, z, px, z, py)
	}

	// Time-parametric over the segment's local clock: setpts has reset PTS,
	// so the filter's t runs from 0 to the segment duration.
	dur := seg.end - seg.start
	z := lerpExpr(seg.from.ZoomLevel/100, seg.to.ZoomLevel/100, dur)
	px := lerpExpr(seg.from.Position.X, seg.to.Position.X, dur)
	py := lerpExpr(seg.from.Position.Y, seg.to.Position.Y, dur)
	return fmt.Sprintf("crop=iw/%s:ih/%s:(iw-iw/%s)*%s/100:(ih-ih/%s)*%s/100",
		z, z, z, px, z, py)
}

// lerpExpr renders a linear interpolation from a to b over dur seconds as
// an ffmpeg expression in t.
func lerpExpr(a, b, dur float64) string {
	if a == b {
		return num(a)
	}
	return fmt.Sprintf("(%s+(%s-%s)*t/%s)", num(a), num(b), num(a), num(dur))
}

// num formats a float without trailing zeros, so 2.0 renders as "2" and
// 1.50 as "1.5", keeping the synthesized expressions readable.
func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
