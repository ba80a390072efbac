package model

import (
	"fmt"

	"github.com/google/uuid"
)

// Timeline defaults applied when a zoom effect is created.
const (
	DefaultEffectSpan = 5.0   // seconds
	DefaultZoomLevel  = 150.0 // percent, 100 = identity
	DefaultPositionX  = 50.0  // percent of frame width
	DefaultPositionY  = 50.0  // percent of frame height
)

// Position is the crop-window center as percentages of the frame dimensions.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ZoomEffect is a time-bounded crop+scale transform over the source video.
// ZoomLevel is a percentage where 100 means no magnification.
type ZoomEffect struct {
	ID        uuid.UUID `json:"id"`
	StartTime float64   `json:"start_time"`
	EndTime   float64   `json:"end_time"`
	ZoomLevel float64   `json:"zoom_level"`
	Position  Position  `json:"position"`
	Name      string    `json:"name"`
}

// ZoomEffectPatch carries a partial field-level update for a zoom effect.
// Nil fields are left untouched.
type ZoomEffectPatch struct {
	StartTime *float64  `json:"start_time,omitempty"`
	EndTime   *float64  `json:"end_time,omitempty"`
	ZoomLevel *float64  `json:"zoom_level,omitempty"`
	Position  *Position `json:"position,omitempty"`
	Name      *string   `json:"name,omitempty"`
}

// TrimSegment is one contiguous sub-range of source time to keep.
// Segments are concatenated in stored order, never sorted.
type TrimSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Duration returns the segment length in seconds.
func (s TrimSegment) Duration() float64 {
	return s.End - s.Start
}

// Timeline is the authoritative, mutable store of edit primitives for the
// current media import. Effects keep insertion order; overlap resolution
// downstream depends on that order.
type Timeline struct {
	Duration   float64       `json:"duration"`
	Effects    []ZoomEffect  `json:"effects"`
	Trims      []TrimSegment `json:"trims"`
	Cuts       []float64     `json:"cuts"`
	SelectedID *uuid.UUID    `json:"selected_id,omitempty"`
}

// AddZoomEffect creates an effect anchored at the playhead with a default
// five second span capped at the media duration, marks it selected and
// returns it.
func (tl *Timeline) AddZoomEffect(playhead float64) ZoomEffect {
	start := clamp(playhead, 0, tl.Duration)
	end := start + DefaultEffectSpan
	if end > tl.Duration {
		end = tl.Duration
	}

	effect := ZoomEffect{
		ID:        uuid.New(),
		StartTime: start,
		EndTime:   end,
		ZoomLevel: DefaultZoomLevel,
		Position:  Position{X: DefaultPositionX, Y: DefaultPositionY},
		Name:      fmt.Sprintf("Zoom %d", len(tl.Effects)+1),
	}

	tl.Effects = append(tl.Effects, effect)
	id := effect.ID
	tl.SelectedID = &id
	return effect
}

// UpdateZoomEffect merges the patch into the stored effect. Unknown ids are
// a no-op reporting false: mutation events from the edit surface may race
// with deletion, and the model is best-effort rather than transactional.
func (tl *Timeline) UpdateZoomEffect(id uuid.UUID, patch ZoomEffectPatch) bool {
	for i := range tl.Effects {
		if tl.Effects[i].ID != id {
			continue
		}

		e := &tl.Effects[i]
		if patch.StartTime != nil {
			e.StartTime = clamp(*patch.StartTime, 0, tl.Duration)
		}
		if patch.EndTime != nil {
			e.EndTime = clamp(*patch.EndTime, 0, tl.Duration)
		}
		if patch.ZoomLevel != nil && *patch.ZoomLevel > 0 {
			e.ZoomLevel = *patch.ZoomLevel
		}
		if patch.Position != nil {
			e.Position = Position{
				X: clamp(patch.Position.X, 0, 100),
				Y: clamp(patch.Position.Y, 0, 100),
			}
		}
		if patch.Name != nil {
			e.Name = *patch.Name
		}
		return true
	}
	return false
}

// DeleteZoomEffect removes the effect and clears the selection if it was
// selected. Unknown ids are a no-op reporting false.
func (tl *Timeline) DeleteZoomEffect(id uuid.UUID) bool {
	for i := range tl.Effects {
		if tl.Effects[i].ID != id {
			continue
		}
		tl.Effects = append(tl.Effects[:i], tl.Effects[i+1:]...)
		if tl.SelectedID != nil && *tl.SelectedID == id {
			tl.SelectedID = nil
		}
		return true
	}
	return false
}

// GetZoomEffect returns the stored effect by id.
func (tl *Timeline) GetZoomEffect(id uuid.UUID) (ZoomEffect, bool) {
	for _, e := range tl.Effects {
		if e.ID == id {
			return e, true
		}
	}
	return ZoomEffect{}, false
}

// ErrInvalidTrimRange is returned when a trim segment is empty or inverted
// after clamping to the media bounds.
var ErrInvalidTrimRange = fmt.Errorf("trim segment start must precede end within media bounds")

// AddTrimSegment appends a keep-range. Bounds are clamped to the media
// duration and inverted or empty ranges are rejected; the stored order is
// the concatenation order of the export.
func (tl *Timeline) AddTrimSegment(start, end float64) (TrimSegment, error) {
	seg := TrimSegment{
		Start: clamp(start, 0, tl.Duration),
		End:   clamp(end, 0, tl.Duration),
	}
	if seg.Start >= seg.End {
		return TrimSegment{}, ErrInvalidTrimRange
	}
	tl.Trims = append(tl.Trims, seg)
	return seg, nil
}

// AddCutPoint records an intended split point. Cut points are tracked for
// display only and are not consumed by any export strategy.
func (tl *Timeline) AddCutPoint(t float64) float64 {
	cut := clamp(t, 0, tl.Duration)
	tl.Cuts = append(tl.Cuts, cut)
	return cut
}

// Reset clears all edit primitives for a fresh media import.
func (tl *Timeline) Reset(duration float64) {
	tl.Duration = duration
	tl.Effects = nil
	tl.Trims = nil
	tl.Cuts = nil
	tl.SelectedID = nil
}

// TrimmedDuration returns the output duration implied by the trim segments,
// or the full media duration when none exist.
func (tl *Timeline) TrimmedDuration() float64 {
	if len(tl.Trims) == 0 {
		return tl.Duration
	}
	var total float64
	for _, seg := range tl.Trims {
		if d := seg.Duration(); d > 0 {
			total += d
		}
	}
	return total
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
