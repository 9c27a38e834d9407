package vision

import (
	"context"
	"errors"
	"time"

	"gocv.io/x/gocv"
)

// ErrQuit is returned by Preview.Run when the user pressed q.
var ErrQuit = errors.New("preview closed by user")

// Preview shows the overlay in a desktop window. OpenCV windows must be driven
// from the main thread on macOS, so Run belongs on the main goroutine.
type Preview struct {
	window  *gocv.Window
	overlay *Overlay
	fps     int
}

// NewPreview opens a window titled title.
func NewPreview(title string, overlay *Overlay, fps int) *Preview {
	if fps <= 0 {
		fps = 15
	}
	return &Preview{
		window:  gocv.NewWindow(title),
		overlay: overlay,
		fps:     fps,
	}
}

// Run redraws the window until ctx is done or q is pressed.
func (p *Preview) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Second / time.Duration(p.fps))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		img, err := p.overlay.Render()
		if err == nil {
			p.window.IMShow(img)
			img.Close()
		}
		if key := p.window.WaitKey(1); key == 'q' {
			return ErrQuit
		}
	}
}

// Close destroys the window.
func (p *Preview) Close() error {
	return p.window.Close()
}
