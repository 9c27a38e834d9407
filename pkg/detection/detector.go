// Package detection finds the bobber in captured frames.
//
// A Model turns a frame into candidate boxes. The Detector worker feeds frames
// from its queue through the model, filters weak candidates and hands each
// batch to the controller. It trips the readiness latch after its first
// completed pass so the controller knows inference is available.
package detection

import (
	"image"
	"math"
	"time"

	"github.com/teslashibe/go-angler/pkg/frame"
	"github.com/teslashibe/go-angler/pkg/tracking"
)

// DefaultMinConfidence is the minimum score for a candidate to be considered.
const DefaultMinConfidence = 0.2

// Detection represents a candidate bobber box in frame pixels.
type Detection struct {
	X1, Y1, X2, Y2 int
	Confidence     float64 // Detection confidence (0-1)
	ClassID        int
}

// Rect returns the box as an image rectangle.
func (d Detection) Rect() image.Rectangle {
	return image.Rect(d.X1, d.Y1, d.X2, d.Y2)
}

// Size returns the box width and height.
func (d Detection) Size() (w, h int) {
	return d.X2 - d.X1, d.Y2 - d.Y1
}

// Midpoint returns the truncated centre of the box.
func (d Detection) Midpoint() tracking.Point {
	return tracking.Midpoint(d.X1, d.Y1, d.X2, d.Y2)
}

// Area returns the area of the bounding box
func (d Detection) Area() int {
	w, h := d.Size()
	return w * h
}

// Batch is the result of one detection pass.
type Batch struct {
	FrameSeq   uint64        `json:"frame_seq"`
	At         time.Time     `json:"at"`
	Latency    time.Duration `json:"latency"`
	Detections []Detection   `json:"detections"`
}

// Model is the interface for detection backends.
type Model interface {
	// Predict finds candidate boxes in f.
	Predict(f *frame.Frame) ([]Detection, error)

	// Close releases resources
	Close() error
}

// RoundConfidence rounds a score up to two decimals.
func RoundConfidence(c float64) float64 {
	return math.Ceil(c*100) / 100
}

// Filter keeps detections at or above min, preserving order.
func Filter(dets []Detection, min float64) []Detection {
	out := dets[:0:0]
	for _, d := range dets {
		if d.Confidence >= min {
			out = append(out, d)
		}
	}
	return out
}
