// Package capture produces frames of the game window and fans them out to the
// pipeline queues.
package capture

import (
	"errors"
	"fmt"
	"image"
	"sync/atomic"

	"github.com/kbinani/screenshot"

	"github.com/teslashibe/go-angler/pkg/frame"
)

// Window decoration removed from a captured window rectangle.
const (
	BorderPixels   = 8
	TitlebarPixels = 30
)

// ErrNoDisplay is returned when the capture area is not on any active display.
var ErrNoDisplay = errors.New("capture area is not on an active display")

// Capturer grabs single frames.
type Capturer interface {
	Capture() (*frame.Frame, error)
	Bounds() image.Rectangle
}

// CropWindow strips the border and title bar from an outer window rectangle.
func CropWindow(window image.Rectangle) image.Rectangle {
	return image.Rect(
		window.Min.X+BorderPixels,
		window.Min.Y+TitlebarPixels,
		window.Max.X-BorderPixels,
		window.Max.Y-BorderPixels,
	)
}

// ScreenConfig selects the screen area to capture.
type ScreenConfig struct {
	// Window is the outer rectangle of the game window in screen coordinates.
	// When empty the whole display is captured.
	Window image.Rectangle
	// Display is the display index used when Window is empty.
	Display int
	// Crop removes window decoration from Window.
	Crop bool
}

// ScreenCapturer captures a fixed screen rectangle. The rectangle is computed
// once; moving the window after start makes ScreenPosition wrong.
type ScreenCapturer struct {
	rect image.Rectangle
	seq  atomic.Uint64
}

var _ Capturer = (*ScreenCapturer)(nil)

// NewScreenCapturer resolves the capture rectangle and checks it is visible.
func NewScreenCapturer(cfg ScreenConfig) (*ScreenCapturer, error) {
	n := screenshot.NumActiveDisplays()
	if n <= 0 {
		return nil, ErrNoDisplay
	}

	rect := cfg.Window
	if rect.Empty() {
		if cfg.Display < 0 || cfg.Display >= n {
			return nil, fmt.Errorf("display %d of %d: %w", cfg.Display, n, ErrNoDisplay)
		}
		rect = screenshot.GetDisplayBounds(cfg.Display)
	} else if cfg.Crop {
		rect = CropWindow(rect)
	}
	if rect.Empty() {
		return nil, fmt.Errorf("capture area %v is empty", rect)
	}

	visible := false
	for i := 0; i < n; i++ {
		if rect.Overlaps(screenshot.GetDisplayBounds(i)) {
			visible = true
			break
		}
	}
	if !visible {
		return nil, fmt.Errorf("capture area %v: %w", rect, ErrNoDisplay)
	}

	return &ScreenCapturer{rect: rect}, nil
}

// Capture grabs the capture rectangle as a BGR frame.
func (c *ScreenCapturer) Capture() (*frame.Frame, error) {
	img, err := screenshot.CaptureRect(c.rect)
	if err != nil {
		return nil, fmt.Errorf("capture %v: %w", c.rect, err)
	}
	return frame.FromRGBA(c.seq.Add(1), img)
}

// Bounds returns the captured rectangle in screen coordinates.
func (c *ScreenCapturer) Bounds() image.Rectangle {
	return c.rect
}

// ScreenPosition translates a frame pixel to a screen pixel.
func (c *ScreenCapturer) ScreenPosition(p image.Point) image.Point {
	return ScreenPosition(c.rect, p)
}

// ScreenPosition translates p, relative to the capture rectangle, to the screen.
func ScreenPosition(capture image.Rectangle, p image.Point) image.Point {
	return p.Add(capture.Min)
}
