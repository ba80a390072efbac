package plan

import (
	"github.com/zoomcut-dev/zoomcut/internal/domain/model"
)

const (
	// IdentityZoom is the zoom level at which the transform degenerates to
	// a pass-through of the source frame.
	IdentityZoom = 100.0

	// blendWindow is the span, in seconds before an effect's end, over which
	// parameters crossfade into a chained successor.
	blendWindow = 1.0

	// chainGap is the maximum distance between one effect's end and the next
	// effect's start for the two to be treated as chained.
	chainGap = 0.1
)

// Transform is the effective visual state at a single instant: a zoom
// percentage and the crop-window center.
type Transform struct {
	ZoomLevel float64
	Position  model.Position
}

// Identity returns the no-op transform: no magnification, centered.
func Identity() Transform {
	return Transform{
		ZoomLevel: IdentityZoom,
		Position:  model.Position{X: 50, Y: 50},
	}
}

// IsIdentity reports whether the transform leaves the frame untouched.
func (t Transform) IsIdentity() bool {
	return t.ZoomLevel == IdentityZoom
}

// Factor returns the zoom level as a scale factor (100% -> 1.0).
func (t Transform) Factor() float64 {
	return t.ZoomLevel / 100
}

// Sample computes the transform active at time t. It is pure and accepts
// arbitrary non-monotonic query times: export rendering seeks back and
// forth across frames, and playback calls it on every tick. Preview and
// export both go through this function so that what the user sees is what
// the export produces.
//
// When ranges overlap, the first matching effect in stored order wins. The
// tie-break is insertion order, not sorted order, and is kept for parity
// with the observed editing behavior.
func Sample(effects []model.ZoomEffect, t float64) Transform {
	idx := -1
	for i, e := range effects {
		if e.StartTime <= t && t <= e.EndTime {
			idx = i
			break
		}
	}
	if idx == -1 {
		return Identity()
	}

	candidate := effects[idx]
	current := Transform{ZoomLevel: candidate.ZoomLevel, Position: candidate.Position}

	successor, ok := chainedSuccessor(effects, idx)
	if !ok {
		return current
	}

	blendStart := candidate.EndTime - blendWindow
	if t < blendStart {
		return current
	}

	factor := clamp01((t - blendStart) / blendWindow)
	return Transform{
		ZoomLevel: lerp(candidate.ZoomLevel, successor.ZoomLevel, factor),
		Position: model.Position{
			X: lerp(candidate.Position.X, successor.Position.X, factor),
			Y: lerp(candidate.Position.Y, successor.Position.Y, factor),
		},
	}
}

// chainedSuccessor finds the first other effect whose start lies within
// chainGap of the candidate's end.
func chainedSuccessor(effects []model.ZoomEffect, idx int) (model.ZoomEffect, bool) {
	end := effects[idx].EndTime
	for i, e := range effects {
		if i == idx {
			continue
		}
		if abs(e.StartTime-end) <= chainGap {
			return e, true
		}
	}
	return model.ZoomEffect{}, false
}

func lerp(a, b, f float64) float64 {
	return a + (b-a)*f
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
