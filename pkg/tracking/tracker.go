package tracking

import (
	"image"

	"github.com/teslashibe/go-angler/pkg/frame"
)

// Tracker follows one object across frames.
type Tracker interface {
	// Init starts tracking box in f.
	Init(f *frame.Frame, box image.Rectangle) error

	// Update locates the object in f. ok is false when the object was lost.
	Update(f *frame.Frame) (box image.Rectangle, ok bool)

	// Close releases resources
	Close() error
}

// Factory builds a fresh tracker for each cast.
type Factory func() (Tracker, error)
