package app

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"github.com/teslashibe/go-angler/internal/log"
	"github.com/teslashibe/go-angler/pkg/detection"
	"github.com/teslashibe/go-angler/pkg/frame"
	"github.com/teslashibe/go-angler/pkg/input"
	"github.com/teslashibe/go-angler/pkg/pipeline"
)

func newTestApp(t *testing.T, stopTimeout time.Duration) *App {
	t.Helper()
	return &App{
		logger:     log.Nop(),
		lock:       flock.New(filepath.Join(t.TempDir(), "angler.lock")),
		detFrames:  pipeline.NewQueue[*frame.Frame]("frames.detector", 1),
		botFrames:  pipeline.NewQueue[*frame.Frame]("frames.bot", 1),
		detections: pipeline.NewQueue[detection.Batch]("detections", 2),
		actions:    pipeline.NewQueue[input.Action]("actions", 1),
		sup:        pipeline.NewSupervisor(stopTimeout, log.Nop()),
	}
}

func TestShutdown_ClosesQueuesAfterWorkersExit(t *testing.T) {
	a := newTestApp(t, time.Second)

	// A consumer blocked on its queue, as the actuator is between clicks.
	a.sup.Go("actuator", func(ctx context.Context) error {
		_, err := a.actions.Get(ctx)
		return err
	})
	if err := a.sup.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	a.detections.Offer(detection.Batch{FrameSeq: 1})

	if err := a.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if a.detections.Len() != 0 {
		t.Errorf("detections not drained: %d waiting", a.detections.Len())
	}
	if a.actions.Offer(input.ActionClick) {
		t.Error("actions queue still accepts items after shutdown")
	}
	if _, err := a.detFrames.Get(context.Background()); !errors.Is(err, pipeline.ErrClosed) {
		t.Errorf("Get after shutdown: got %v, want ErrClosed", err)
	}
}

func TestShutdown_LeavesQueuesOpenWhenWorkerIsAbandoned(t *testing.T) {
	a := newTestApp(t, 20*time.Millisecond)

	release := make(chan struct{})
	defer close(release)
	a.sup.Go("stuck", func(ctx context.Context) error {
		<-release
		return nil
	})
	if err := a.sup.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := a.Shutdown(); !errors.Is(err, pipeline.ErrStopTimeout) {
		t.Fatalf("Shutdown: got %v, want ErrStopTimeout", err)
	}
	if !a.actions.Offer(input.ActionClick) {
		t.Error("queues must stay open while a worker may still produce")
	}
}
