package plan

import (
	"testing"

	"github.com/zoomcut-dev/zoomcut/internal/domain/model"
)

func TestFrameSchedule_CountAndOrdering(t *testing.T) {
	effects := []model.ZoomEffect{effect(0, 10, 200, 50, 50)}
	s := NewFrameSchedule(effects, 0, 10, 30, 1920, 1080)

	if got := s.Count(); got != 300 {
		t.Fatalf("Count() = %d, want 300", got)
	}

	prev := -1.0
	for i := 0; i < s.Count(); i++ {
		f := s.FrameAt(i)
		if f.Time <= prev {
			t.Fatalf("frame %d time %v not strictly increasing after %v", i, f.Time, prev)
		}
		if f.Time >= 10 {
			t.Fatalf("frame %d time %v outside export range", i, f.Time)
		}
		prev = f.Time
	}
}

func TestFrameSchedule_TrimAdjustedRange(t *testing.T) {
	s := NewFrameSchedule(nil, 5, 15, 30, 1280, 720)

	first := s.FrameAt(0)
	if first.Time != 5 {
		t.Errorf("first frame time = %v, want 5", first.Time)
	}
	if got := s.Count(); got != 300 {
		t.Errorf("Count() = %d, want 300", got)
	}
}

func TestFrameSchedule_DefaultRate(t *testing.T) {
	s := NewFrameSchedule(nil, 0, 1, 0, 640, 480)
	if s.FPS != DefaultFrameRate {
		t.Errorf("FPS = %d, want default %d", s.FPS, DefaultFrameRate)
	}
}

func TestFrameSchedule_EmptyRange(t *testing.T) {
	s := NewFrameSchedule(nil, 10, 10, 30, 640, 480)
	if got := s.Count(); got != 0 {
		t.Errorf("Count() = %d, want 0", got)
	}
}

func TestCropWindow(t *testing.T) {
	tests := []struct {
		name string
		tr   Transform
		w, h int
		want Rect
	}{
		{
			name: "identity covers the frame",
			tr:   Identity(),
			w:    1920, h: 1080,
			want: Rect{X: 0, Y: 0, W: 1920, H: 1080},
		},
		{
			name: "double zoom centered",
			tr:   Transform{ZoomLevel: 200, Position: model.Position{X: 50, Y: 50}},
			w:    1920, h: 1080,
			want: Rect{X: 480, Y: 270, W: 960, H: 540},
		},
		{
			name: "double zoom top-left",
			tr:   Transform{ZoomLevel: 200, Position: model.Position{X: 0, Y: 0}},
			w:    1920, h: 1080,
			want: Rect{X: 0, Y: 0, W: 960, H: 540},
		},
		{
			name: "double zoom bottom-right",
			tr:   Transform{ZoomLevel: 200, Position: model.Position{X: 100, Y: 100}},
			w:    1920, h: 1080,
			want: Rect{X: 960, Y: 540, W: 960, H: 540},
		},
		{
			name: "150 percent offset window",
			tr:   Transform{ZoomLevel: 150, Position: model.Position{X: 25, Y: 75}},
			w:    1200, h: 600,
			want: Rect{X: 100, Y: 150, W: 800, H: 400},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CropWindow(tt.tr, tt.w, tt.h); got != tt.want {
				t.Errorf("CropWindow() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestFrameAt_TransformMatchesSample(t *testing.T) {
	// Per-frame export rendering and preview must agree: the scheduled
	// transform is exactly what Sample returns at that instant.
	effects := []model.ZoomEffect{
		effect(0, 5, 150, 40, 40),
		effect(5, 10, 250, 60, 80),
	}
	s := NewFrameSchedule(effects, 0, 10, 30, 1920, 1080)

	for _, i := range []int{0, 60, 135, 149, 150, 299} {
		f := s.FrameAt(i)
		want := Sample(effects, f.Time)
		if f.Transform != want {
			t.Errorf("frame %d transform = %+v, want %+v", i, f.Transform, want)
		}
	}
}
