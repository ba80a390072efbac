package transcoder

import (
	"context"
	"errors"

	"github.com/zoomcut-dev/zoomcut/internal/domain/model"
	"github.com/zoomcut-dev/zoomcut/internal/plan"
)

// ErrEngineUnavailable is returned when the transcoding engine cannot be
// initialized. Recovery requires an explicit backend switch by the caller;
// the failure is never papered over silently.
var ErrEngineUnavailable = errors.New("transcoding engine unavailable")

// ProgressFunc receives the completed fraction of an operation in [0,1].
type ProgressFunc func(fraction float64)

// Engine defines the interface to the external transcoding engine. The
// planner's output is a sequence of opaque operation descriptions; the
// engine executes them and reports progress. It is injected as an explicit
// dependency so tests can substitute a fake.
type Engine interface {
	// Probe inspects a media file and returns its duration and dimensions.
	Probe(ctx context.Context, inputPath string) (model.MediaInfo, error)

	// Execute runs the plan's steps strictly in sequence, writing any
	// auxiliary artifacts first. onProgress, if non-nil, receives overall
	// progress fractions across all steps.
	Execute(ctx context.Context, steps []plan.Step, aux []plan.AuxFile, onProgress ProgressFunc) error
}
