package plan

import (
	"github.com/zoomcut-dev/zoomcut/internal/domain/model"
)

// PreviewTransitionMS is the client-side easing duration applied on top of
// the interpolator's own blending. Two smoothing layers exist on purpose:
// parameter crossfading inside Sample, and this cosmetic transition when the
// on-screen element switches transforms.
const PreviewTransitionMS = 300

// View is the playback-preview projection of a transform: a scale factor
// and transform-origin percentages for the on-screen media element.
type View struct {
	Scale        float64 `json:"scale"`
	OriginX      float64 `json:"origin_x"`
	OriginY      float64 `json:"origin_y"`
	TransitionMS int     `json:"transition_ms"`
}

// Preview maps the transform at playhead time t to a live view. It never
// mutates the timeline and degrades to the identity view (scale 1, centered)
// when no effect is active.
func Preview(effects []model.ZoomEffect, t float64) View {
	tr := Sample(effects, t)
	return View{
		Scale:        tr.Factor(),
		OriginX:      tr.Position.X,
		OriginY:      tr.Position.Y,
		TransitionMS: PreviewTransitionMS,
	}
}
