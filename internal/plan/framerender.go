package plan

import (
	"math"

	"github.com/zoomcut-dev/zoomcut/internal/domain/model"
)

// DefaultFrameRate is the output frame rate of the frame-render backend.
const DefaultFrameRate = 30

// Rect is a crop window in source pixel space.
type Rect struct {
	X int
	Y int
	W int
	H int
}

// Frame is one instruction of the frame-render schedule: which source
// instant to sample and which pixels of it fill the output frame.
type Frame struct {
	Index     int
	Time      float64
	Transform Transform
	// Src is the crop window when the transform is non-identity. For an
	// identity transform the whole frame is drawn and Src covers it.
	Src Rect
}

// Identity reports whether the frame draws the full source unmodified.
func (f Frame) Identity() bool {
	return f.Transform.IsIdentity()
}

// FrameSchedule describes the per-frame raster work of a frame-render
// export: iterate output frames at a fixed rate across the export range,
// sample the transform at each instant and draw the corresponding region.
// Frames are produced strictly in increasing time order, one at a time;
// the seek-then-draw step serializes on each frame.
type FrameSchedule struct {
	FPS    int
	Start  float64
	End    float64
	Width  int
	Height int

	effects []model.ZoomEffect
}

// NewFrameSchedule builds a schedule over [start, end) at fps output frames
// per second for a source of the given dimensions.
func NewFrameSchedule(effects []model.ZoomEffect, start, end float64, fps, width, height int) *FrameSchedule {
	if fps <= 0 {
		fps = DefaultFrameRate
	}
	copied := make([]model.ZoomEffect, len(effects))
	copy(copied, effects)
	return &FrameSchedule{
		FPS:     fps,
		Start:   start,
		End:     end,
		Width:   width,
		Height:  height,
		effects: copied,
	}
}

// Count returns the number of output frames in the schedule.
func (s *FrameSchedule) Count() int {
	span := s.End - s.Start
	if span <= 0 {
		return 0
	}
	return int(math.Ceil(span * float64(s.FPS)))
}

// FrameAt computes the instruction for output frame i.
func (s *FrameSchedule) FrameAt(i int) Frame {
	t := s.Start + float64(i)/float64(s.FPS)
	tr := Sample(s.effects, t)
	return Frame{
		Index:     i,
		Time:      t,
		Transform: tr,
		Src:       CropWindow(tr, s.Width, s.Height),
	}
}

// CropWindow computes the source crop rectangle for a transform in pixel
// space, using the same math as the filter-expression synthesis: the window
// is frame/zoom sized and centered according to the position percentages.
func CropWindow(tr Transform, width, height int) Rect {
	if tr.IsIdentity() {
		return Rect{X: 0, Y: 0, W: width, H: height}
	}

	z := tr.Factor()
	w := float64(width) / z
	h := float64(height) / z
	x := (float64(width) - w) * tr.Position.X / 100
	y := (float64(height) - h) * tr.Position.Y / 100

	return Rect{
		X: int(math.Round(x)),
		Y: int(math.Round(y)),
		W: int(math.Round(w)),
		H: int(math.Round(h)),
	}
}
