package vision

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"sync"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-angler/pkg/detection"
	"github.com/teslashibe/go-angler/pkg/frame"
	"github.com/teslashibe/go-angler/pkg/tracking"
	"github.com/teslashibe/go-angler/pkg/web"
)

// ErrNoFrame is returned before the overlay has seen a frame.
var ErrNoFrame = errors.New("no frame yet")

var (
	boxColor   = color.RGBA{0, 255, 0, 0}
	trailColor = color.RGBA{255, 64, 0, 0}
	textColor  = color.RGBA{255, 255, 255, 0}
)

// Overlay keeps the latest frame, detections and trail and renders them
// together. It implements web.Camera for the dashboard camera stream.
type Overlay struct {
	mu     sync.RWMutex
	frame  *frame.Frame
	dets   []detection.Detection
	trail  []tracking.Point
	status string
}

var _ web.Camera = (*Overlay)(nil)

// NewOverlay creates an empty overlay.
func NewOverlay() *Overlay {
	return &Overlay{}
}

// Observe records a frame and the detections found in it.
func (o *Overlay) Observe(f *frame.Frame, b detection.Batch) {
	o.mu.Lock()
	o.frame = f
	o.dets = b.Detections
	o.mu.Unlock()
}

// SetTrail replaces the drawn trail.
func (o *Overlay) SetTrail(points []tracking.Point) {
	cp := append([]tracking.Point(nil), points...)
	o.mu.Lock()
	o.trail = cp
	o.mu.Unlock()
}

// SetStatus sets the caption drawn in the top-left corner.
func (o *Overlay) SetStatus(s string) {
	o.mu.Lock()
	o.status = s
	o.mu.Unlock()
}

// Render draws the current state onto a copy of the latest frame.
// The caller must Close the returned Mat.
func (o *Overlay) Render() (gocv.Mat, error) {
	o.mu.RLock()
	f, dets, trail, status := o.frame, o.dets, o.trail, o.status
	o.mu.RUnlock()

	if f == nil {
		return gocv.Mat{}, ErrNoFrame
	}
	src, err := ToMat(f)
	if err != nil {
		return gocv.Mat{}, err
	}
	img := src.Clone()
	src.Close()

	for _, d := range dets {
		gocv.Rectangle(&img, d.Rect(), boxColor, 2)
		gocv.PutText(&img, fmt.Sprintf("%.2f", d.Confidence), image.Pt(d.X1, d.Y1-4),
			gocv.FontHersheyPlain, 1.0, boxColor, 1)
	}
	for i, p := range trail {
		gocv.Circle(&img, image.Pt(p.X, p.Y), 2, trailColor, -1)
		if i > 0 {
			q := trail[i-1]
			gocv.Line(&img, image.Pt(q.X, q.Y), image.Pt(p.X, p.Y), trailColor, 1)
		}
	}
	if status != "" {
		gocv.PutText(&img, status, image.Pt(8, 20), gocv.FontHersheyPlain, 1.2, textColor, 2)
	}
	return img, nil
}

// CaptureFrame returns the rendered overlay as JPEG.
func (o *Overlay) CaptureFrame() ([]byte, error) {
	img, err := o.Render()
	if err != nil {
		return nil, err
	}
	defer img.Close()
	return EncodeJPEG(img)
}
