package vision

import (
	"errors"
	"image"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-angler/pkg/frame"
	"github.com/teslashibe/go-angler/pkg/tracking"
)

// ErrTrackerInit is returned when OpenCV refuses the initial box.
var ErrTrackerInit = errors.New("tracker init failed")

// MILTracker wraps the OpenCV MIL single-object tracker.
type MILTracker struct {
	tr gocv.Tracker
}

var _ tracking.Tracker = (*MILTracker)(nil)

// NewMILTracker creates a tracker. It is not initialized until Init.
func NewMILTracker() *MILTracker {
	return &MILTracker{tr: gocv.NewTrackerMIL()}
}

// NewMILFactory returns a factory that builds a fresh MIL tracker per cast.
func NewMILFactory() tracking.Factory {
	return func() (tracking.Tracker, error) {
		return NewMILTracker(), nil
	}
}

// Init starts tracking box in f.
func (t *MILTracker) Init(f *frame.Frame, box image.Rectangle) error {
	if box.Empty() {
		return ErrTrackerInit
	}
	mat, err := ToMat(f)
	if err != nil {
		return err
	}
	defer mat.Close()

	if !t.tr.Init(mat, box) {
		return ErrTrackerInit
	}
	return nil
}

// Update locates the tracked object in f.
func (t *MILTracker) Update(f *frame.Frame) (image.Rectangle, bool) {
	mat, err := ToMat(f)
	if err != nil {
		return image.Rectangle{}, false
	}
	defer mat.Close()

	return t.tr.Update(mat)
}

// Close releases the OpenCV tracker.
func (t *MILTracker) Close() error {
	return t.tr.Close()
}
