package vision

import (
	"errors"
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-angler/pkg/detection"
	"github.com/teslashibe/go-angler/pkg/frame"
)

// AnyClass disables class filtering.
const AnyClass = -1

// YOLOConfig holds YOLO detector configuration
type YOLOConfig struct {
	ModelPath        string
	ConfidenceThresh float32
	NMSThresh        float32
	InputWidth       int
	InputHeight      int
	ClassID          int // keep only this class; AnyClass keeps all
}

// DefaultYOLOConfig returns production defaults for a YOLOv8 bobber model
func DefaultYOLOConfig() YOLOConfig {
	return YOLOConfig{
		ModelPath:        "models/bobber.onnx",
		ConfidenceThresh: 0.2,
		NMSThresh:        0.45,
		InputWidth:       640,
		InputHeight:      640,
		ClassID:          AnyClass,
	}
}

// YOLOModel runs a YOLOv8 ONNX export through the OpenCV DNN module.
type YOLOModel struct {
	net       gocv.Net
	config    YOLOConfig
	mu        sync.Mutex
	inputSize image.Point
}

var _ detection.Model = (*YOLOModel)(nil)

// NewYOLO loads the model. A missing or unreadable model is a startup failure.
func NewYOLO(cfg YOLOConfig) (*YOLOModel, error) {
	if cfg.InputWidth <= 0 || cfg.InputHeight <= 0 {
		return nil, fmt.Errorf("invalid input size %dx%d", cfg.InputWidth, cfg.InputHeight)
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("model file not found: %s: %w", cfg.ModelPath, err)
	}

	net := gocv.ReadNetFromONNX(cfg.ModelPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load YOLO model from %s", cfg.ModelPath)
	}

	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	return &YOLOModel{
		net:       net,
		config:    cfg,
		inputSize: image.Pt(cfg.InputWidth, cfg.InputHeight),
	}, nil
}

// Predict finds bobber candidates in f, in frame pixel coordinates.
func (m *YOLOModel) Predict(f *frame.Frame) ([]detection.Detection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	img, err := ToMat(f)
	if err != nil {
		return nil, err
	}
	defer img.Close()

	// Frames are BGR; the network expects RGB.
	blob := gocv.BlobFromImage(img, 1.0/255.0, m.inputSize, gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	m.net.SetInput(blob, "")
	output := m.net.Forward("")
	defer output.Close()

	// Output shape: [1, 4+classes, anchors]
	dims := output.Size()
	if len(dims) != 3 || dims[1] < 5 {
		return nil, fmt.Errorf("unexpected YOLO output shape %v", dims)
	}
	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read YOLO output: %w", err)
	}

	sx := float32(f.Width) / float32(m.config.InputWidth)
	sy := float32(f.Height) / float32(m.config.InputHeight)
	cands, err := decodeYOLOv8(data, dims[1], dims[2], sx, sy, m.config.ConfidenceThresh, m.config.ClassID)
	if err != nil {
		return nil, err
	}
	if len(cands.boxes) == 0 {
		return nil, nil
	}

	indices := gocv.NMSBoxes(cands.boxes, cands.scores, m.config.ConfidenceThresh, m.config.NMSThresh)
	dets := make([]detection.Detection, 0, len(indices))
	for _, idx := range indices {
		box := cands.boxes[idx]
		dets = append(dets, detection.Detection{
			X1:         box.Min.X,
			Y1:         box.Min.Y,
			X2:         box.Max.X,
			Y2:         box.Max.Y,
			Confidence: float64(cands.scores[idx]),
			ClassID:    cands.classes[idx],
		})
	}
	return dets, nil
}

// Close releases the detector resources
func (m *YOLOModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.net.Close()
	return nil
}

type candidates struct {
	boxes   []image.Rectangle
	scores  []float32
	classes []int
}

var errShape = errors.New("output buffer smaller than shape")

// decodeYOLOv8 reads the attribute-major YOLOv8 tensor. Rows 0-3 hold
// cx, cy, w, h in network pixels; the remaining rows hold class scores.
func decodeYOLOv8(data []float32, attrs, anchors int, sx, sy, thresh float32, classID int) (candidates, error) {
	var c candidates
	if len(data) < attrs*anchors {
		return c, errShape
	}

	for i := 0; i < anchors; i++ {
		maxScore := float32(0)
		maxClass := 0
		for a := 4; a < attrs; a++ {
			if s := data[a*anchors+i]; s > maxScore {
				maxScore = s
				maxClass = a - 4
			}
		}
		if maxScore < thresh {
			continue
		}
		if classID != AnyClass && maxClass != classID {
			continue
		}

		cx := data[0*anchors+i]
		cy := data[1*anchors+i]
		w := data[2*anchors+i]
		h := data[3*anchors+i]

		x1 := int((cx - w/2) * sx)
		y1 := int((cy - h/2) * sy)
		x2 := int((cx + w/2) * sx)
		y2 := int((cy + h/2) * sy)

		c.boxes = append(c.boxes, image.Rect(x1, y1, x2, y2))
		c.scores = append(c.scores, maxScore)
		c.classes = append(c.classes, maxClass)
	}
	return c, nil
}
