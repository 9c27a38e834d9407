// Package frame defines the pixel buffer that flows through the capture pipeline.
//
// A Frame is immutable once produced. Every consumer queue receives its own
// instance (see Clone), so a consumer may keep or release a frame without
// coordinating with other consumers.
package frame

import (
	"errors"
	"image"
	"time"
)

// BGR is the channel depth of frames produced by FromRGBA.
const BGR = 3

// ErrEmpty is returned when a frame would have no pixels.
var ErrEmpty = errors.New("empty frame")

// Frame is a captured image in packed, row-major BGR order.
type Frame struct {
	Seq        uint64
	CapturedAt time.Time

	Width    int
	Height   int
	Channels int
	Pix      []byte
}

// New wraps an existing pixel buffer. The caller gives up ownership of pix.
func New(seq uint64, width, height, channels int, pix []byte) (*Frame, error) {
	if width <= 0 || height <= 0 || channels <= 0 {
		return nil, ErrEmpty
	}
	if len(pix) != width*height*channels {
		return nil, errors.New("pixel buffer does not match frame dimensions")
	}
	return &Frame{
		Seq:        seq,
		CapturedAt: time.Now(),
		Width:      width,
		Height:     height,
		Channels:   channels,
		Pix:        pix,
	}, nil
}

// FromRGBA converts a screenshot into a BGR frame, dropping the alpha channel.
func FromRGBA(seq uint64, img *image.RGBA) (*Frame, error) {
	if img == nil {
		return nil, ErrEmpty
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return nil, ErrEmpty
	}

	pix := make([]byte, w*h*BGR)
	dst := 0
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		for x := 0; x < w; x++ {
			i := x * 4
			pix[dst] = row[i+2]
			pix[dst+1] = row[i+1]
			pix[dst+2] = row[i]
			dst += BGR
		}
	}

	return &Frame{
		Seq:        seq,
		CapturedAt: time.Now(),
		Width:      w,
		Height:     h,
		Channels:   BGR,
		Pix:        pix,
	}, nil
}

// Clone returns an independent copy of the frame.
func (f *Frame) Clone() *Frame {
	if f == nil {
		return nil
	}
	pix := make([]byte, len(f.Pix))
	copy(pix, f.Pix)
	c := *f
	c.Pix = pix
	return &c
}

// Bounds returns the frame rectangle anchored at the origin.
func (f *Frame) Bounds() image.Rectangle {
	return image.Rect(0, 0, f.Width, f.Height)
}

// Empty reports whether the frame holds no pixels.
func (f *Frame) Empty() bool {
	return f == nil || f.Width == 0 || f.Height == 0 || len(f.Pix) == 0
}

// Age is the time elapsed since capture.
func (f *Frame) Age() time.Duration {
	return time.Since(f.CapturedAt)
}
