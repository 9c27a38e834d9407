// Package vision adapts OpenCV (gocv) to the capture pipeline: the YOLO
// bobber model, the MIL tracker, the annotated overlay and the preview window.
//
// Everything that needs cgo lives here so the pipeline packages stay pure Go.
package vision

import (
	"fmt"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-angler/pkg/frame"
)

// ToMat wraps a frame's pixels in a Mat. The Mat shares memory with f, so it
// must not be drawn on; Clone it first.
func ToMat(f *frame.Frame) (gocv.Mat, error) {
	if f == nil || f.Empty() {
		return gocv.Mat{}, frame.ErrEmpty
	}

	var typ gocv.MatType
	switch f.Channels {
	case 1:
		typ = gocv.MatTypeCV8UC1
	case 3:
		typ = gocv.MatTypeCV8UC3
	case 4:
		typ = gocv.MatTypeCV8UC4
	default:
		return gocv.Mat{}, fmt.Errorf("unsupported channel count %d", f.Channels)
	}

	mat, err := gocv.NewMatFromBytes(f.Height, f.Width, typ, f.Pix)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("wrap frame %d: %w", f.Seq, err)
	}
	return mat, nil
}

// EncodeJPEG encodes mat as JPEG.
func EncodeJPEG(mat gocv.Mat) ([]byte, error) {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, mat)
	if err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	defer buf.Close()

	// GetBytes aliases C memory freed by Close.
	b := buf.GetBytes()
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}
