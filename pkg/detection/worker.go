package detection

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-angler/internal/log"
	"github.com/teslashibe/go-angler/pkg/frame"
	"github.com/teslashibe/go-angler/pkg/pipeline"
)

// Config holds detector worker configuration.
type Config struct {
	MinConfidence float64
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{MinConfidence: DefaultMinConfidence}
}

// Stats counts detector passes.
type Stats struct {
	Passes   uint64 `json:"passes"`
	Failures uint64 `json:"failures"`
	Skipped  uint64 `json:"skipped"`
	Ready    bool   `json:"ready"`
}

// Detector runs a Model over frames from its input queue.
type Detector struct {
	model  Model
	cfg    Config
	in     *pipeline.Queue[*frame.Frame]
	out    *pipeline.Queue[Batch]
	ready  *pipeline.Latch
	logger *slog.Logger

	passes   atomic.Uint64
	failures atomic.Uint64
	skipped  atomic.Uint64
	latest   atomic.Pointer[Batch]
	onBatch  func(*frame.Frame, Batch)
}

// NewDetector wires a model between a frame queue and a detection queue.
// ready is tripped once after the first completed pass.
func NewDetector(model Model, cfg Config, in *pipeline.Queue[*frame.Frame], out *pipeline.Queue[Batch], ready *pipeline.Latch, logger *slog.Logger) *Detector {
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = DefaultMinConfidence
	}
	return &Detector{
		model:  model,
		cfg:    cfg,
		in:     in,
		out:    out,
		ready:  ready,
		logger: log.Component(logger, "detector"),
	}
}

// OnBatch registers fn to receive every completed pass with its frame.
// It must be called before Run.
func (d *Detector) OnBatch(fn func(*frame.Frame, Batch)) {
	d.onBatch = fn
}

// Run is the detector loop. It returns when ctx is done.
func (d *Detector) Run(ctx context.Context) error {
	d.logger.Info("detector waiting for frames", "min_confidence", d.cfg.MinConfidence)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		f, err := d.in.Get(ctx)
		if err != nil {
			if errors.Is(err, pipeline.ErrClosed) {
				return nil
			}
			return err
		}

		batch, err := d.Detect(f)
		if err != nil {
			d.failures.Add(1)
			d.logger.Warn("detection pass failed", "frame", f.Seq, "error", err)
			continue
		}

		if !d.out.Offer(batch) {
			d.skipped.Add(1)
			d.logger.Debug("detection queue full, batch skipped", "frame", f.Seq)
		}
	}
}

// Detect runs one pass over f and trips readiness on the first success.
func (d *Detector) Detect(f *frame.Frame) (Batch, error) {
	start := time.Now()
	dets, err := d.model.Predict(f)
	if err != nil {
		return Batch{}, err
	}
	for i := range dets {
		dets[i].Confidence = RoundConfidence(dets[i].Confidence)
	}
	dets = Filter(dets, d.cfg.MinConfidence)

	batch := Batch{
		FrameSeq:   f.Seq,
		At:         time.Now(),
		Latency:    time.Since(start),
		Detections: dets,
	}
	d.passes.Add(1)
	d.latest.Store(&batch)
	if d.onBatch != nil {
		d.onBatch(f, batch)
	}

	if d.ready != nil && d.ready.Set() {
		d.logger.Info("model ready", "first_pass", batch.Latency)
	}
	if len(dets) > 0 {
		d.logger.Debug("bobber candidates", "frame", f.Seq, "count", len(dets), "latency", batch.Latency)
	}
	return batch, nil
}

// Latest returns the most recent batch, or nil before the first pass.
func (d *Detector) Latest() *Batch {
	return d.latest.Load()
}

// Stats returns detector counters.
func (d *Detector) Stats() Stats {
	return Stats{
		Passes:   d.passes.Load(),
		Failures: d.failures.Load(),
		Skipped:  d.skipped.Load(),
		Ready:    d.ready != nil && d.ready.IsSet(),
	}
}
