package bot

import (
	"context"
	"errors"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/teslashibe/go-angler/internal/log"
	"github.com/teslashibe/go-angler/pkg/detection"
	"github.com/teslashibe/go-angler/pkg/frame"
	"github.com/teslashibe/go-angler/pkg/input"
	"github.com/teslashibe/go-angler/pkg/pipeline"
	"github.com/teslashibe/go-angler/pkg/tracking"
)

// mockTracker reports a scripted update result.
type mockTracker struct {
	mu       sync.Mutex
	updateOK bool
	inits    int
	updates  int
	closed   bool
	seqs     []uint64 // frame sequence numbers seen by Init and Update, in order
}

func (m *mockTracker) Init(f *frame.Frame, box image.Rectangle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inits++
	m.seqs = append(m.seqs, f.Seq)
	return nil
}

func (m *mockTracker) Update(f *frame.Frame) (image.Rectangle, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates++
	m.seqs = append(m.seqs, f.Seq)
	return image.Rectangle{}, m.updateOK
}

func (m *mockTracker) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// harness wires a controller to real queues and a recording actuator.
type harness struct {
	t        *testing.T
	ctrl     *Controller
	frames   *pipeline.Queue[*frame.Frame]
	dets     *pipeline.Queue[detection.Batch]
	ready    *pipeline.Latch
	rec      *input.Recorder
	trackers []*mockTracker
	trackMu  sync.Mutex
	events   chan Event

	ctx    context.Context
	cancel context.CancelFunc
	runErr chan error
}

func newHarness(t *testing.T, updateOK bool, mutate func(*Config)) *harness {
	t.Helper()
	return newHarnessWithFrames(t, updateOK, 1, mutate)
}

func newHarnessWithFrames(t *testing.T, updateOK bool, frameCap int, mutate func(*Config)) *harness {
	t.Helper()
	h := &harness{
		t:      t,
		frames: pipeline.NewQueue[*frame.Frame]("frames", frameCap),
		dets:   pipeline.NewQueue[detection.Batch]("detections", 1),
		ready:  pipeline.NewLatch(),
		rec:    input.NewRecorder(),
		events: make(chan Event, 256),
		runErr: make(chan error, 1),
	}

	cfg := DefaultConfig()
	cfg.SettleDelay = time.Millisecond
	cfg.ReadyPoll = time.Millisecond
	if mutate != nil {
		mutate(&cfg)
	}

	actions := pipeline.NewQueue[input.Action]("actions", 1)
	ctrl, err := New(cfg, Wiring{
		Frames:     h.frames,
		Detections: h.dets,
		Actions:    actions,
		Ready:      h.ready,
		Trackers: func() (tracking.Tracker, error) {
			h.trackMu.Lock()
			defer h.trackMu.Unlock()
			tr := &mockTracker{updateOK: updateOK}
			h.trackers = append(h.trackers, tr)
			return tr, nil
		},
	}, log.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctrl.AddObserver(ObserverFunc(func(e Event) {
		select {
		case h.events <- e:
		default:
		}
	}))
	h.ctrl = ctrl

	h.ctx, h.cancel = context.WithTimeout(context.Background(), 5*time.Second)
	act := input.NewActuator(h.rec, actions, input.ActuatorConfig{}, log.Nop())
	go func() { _ = act.Run(h.ctx) }()
	go func() { h.runErr <- ctrl.Run(h.ctx) }()
	t.Cleanup(h.cancel)
	return h
}

// waitFor consumes events until one matches.
func (h *harness) waitFor(kind EventKind, state State) Event {
	h.t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case e := <-h.events:
			if e.Kind == kind && e.State == state {
				return e
			}
		case <-timeout:
			h.t.Fatalf("timed out waiting for %s into %s", kind, state)
		}
	}
}

// feed pushes one batch with a single box and the frame it was found in.
func (h *harness) feed(x1, y1, x2, y2 int) {
	h.t.Helper()
	b := detection.Batch{Detections: []detection.Detection{{X1: x1, Y1: y1, X2: x2, Y2: y2, Confidence: 0.9}}}
	if err := h.dets.Put(h.ctx, b); err != nil {
		h.t.Fatalf("put batch: %v", err)
	}
	f, _ := frame.New(1, 1, 1, frame.BGR, []byte{0, 0, 0})
	if err := h.frames.Put(h.ctx, f); err != nil {
		h.t.Fatalf("put frame: %v", err)
	}
}

// feedBatch queues one frame per midpoint, numbered from seq, then a single
// batch holding a 10x10 box around each midpoint.
func (h *harness) feedBatch(seq uint64, mids ...tracking.Point) {
	h.t.Helper()
	b := detection.Batch{FrameSeq: seq}
	for i, p := range mids {
		f, _ := frame.New(seq+uint64(i), 1, 1, frame.BGR, []byte{0, 0, 0})
		if err := h.frames.Put(h.ctx, f); err != nil {
			h.t.Fatalf("put frame: %v", err)
		}
		b.Detections = append(b.Detections, detection.Detection{
			X1: p.X - 5, Y1: p.Y - 5, X2: p.X + 5, Y2: p.Y + 5, Confidence: 0.9,
		})
	}
	if err := h.dets.Put(h.ctx, b); err != nil {
		h.t.Fatalf("put batch: %v", err)
	}
}

// tracker returns the tracker created for the given cast (cast 0 is the one
// built while initializing).
func (h *harness) tracker(cast int) *mockTracker {
	h.t.Helper()
	h.trackMu.Lock()
	defer h.trackMu.Unlock()
	if cast >= len(h.trackers) {
		h.t.Fatalf("no tracker for cast %d (have %d)", cast, len(h.trackers))
	}
	return h.trackers[cast]
}

// feedMid feeds a 10x10 box centred on (x, y).
func (h *harness) feedMid(x, y int) {
	h.feed(x-5, y-5, x+5, y+5)
}

// settle waits until the controller has consumed everything queued.
func (h *harness) settle() {
	h.t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !h.dets.Empty() || !h.frames.Empty() {
		if time.Now().After(deadline) {
			h.t.Fatal("controller did not drain its queues")
		}
		time.Sleep(time.Millisecond)
	}
	time.Sleep(5 * time.Millisecond)
}

func (h *harness) clicks(want int) {
	h.t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.rec.Clicks() < want {
		if time.Now().After(deadline) {
			h.t.Fatalf("clicks: got %d, want %d", h.rec.Clicks(), want)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestState_String(t *testing.T) {
	tests := map[State]string{
		Initializing: "initializing",
		Throwing:     "throwing",
		Biting:       "biting",
		Catching:     "catching",
		State(9):     "state(9)",
	}
	for s, want := range tests {
		if s.String() != want {
			t.Errorf("got %q, want %q", s.String(), want)
		}
	}
}

func TestState_TextRoundTrip(t *testing.T) {
	for st := Initializing; st <= Catching; st++ {
		b, _ := st.MarshalText()
		var got State
		if err := got.UnmarshalText(b); err != nil || got != st {
			t.Errorf("%v: got %v, %v", st, got, err)
		}
	}
	var s State
	if err := s.UnmarshalText([]byte("sleeping")); err == nil {
		t.Error("expected error for unknown state")
	}
}

func TestConfig_Validate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("defaults should be valid: %v", err)
	}
	cfg := DefaultConfig()
	cfg.ReadyPoll = 0
	cfg.MinConfidence = 2
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error")
	}
}

func TestNew_IncompleteWiring(t *testing.T) {
	if _, err := New(DefaultConfig(), Wiring{}, log.Nop()); err == nil {
		t.Error("expected error for missing queues")
	}
}

func TestController_WaitsForReadiness(t *testing.T) {
	h := newHarness(t, true, nil)

	time.Sleep(20 * time.Millisecond)
	if s := h.ctrl.Snapshot().State; s != Initializing {
		t.Fatalf("state before readiness: %v", s)
	}
	if h.rec.Clicks() != 0 {
		t.Fatal("no click before the model is ready")
	}

	h.ready.Set()
	h.waitFor(EventTransition, Throwing)
	h.waitFor(EventTransition, Biting)
	h.clicks(1)
}

func TestController_StrikeCycle(t *testing.T) {
	h := newHarness(t, true, nil)

	var mu sync.Mutex
	var seq []State
	h.ctrl.AddObserver(ObserverFunc(func(e Event) {
		if e.Kind == EventTransition {
			mu.Lock()
			seq = append(seq, e.State)
			mu.Unlock()
		}
	}))

	h.ready.Set()
	h.waitFor(EventTransition, Biting)

	h.feedMid(50, 50) // initializes the tracker
	h.feedMid(50, 50) // first recorded point
	h.feedMid(50, 51) // (0,1): bobber at rest
	h.waitFor(EventStabilized, Biting)

	h.feedMid(58, 52) // (8,1): bite
	strike := h.waitFor(EventStrike, Biting)
	if strike.DX != 8 || strike.DY != 1 {
		t.Errorf("strike delta: got (%d,%d), want (8,1)", strike.DX, strike.DY)
	}

	h.waitFor(EventTransition, Catching)
	h.waitFor(EventTransition, Throwing)
	h.waitFor(EventTransition, Biting)
	h.clicks(3)

	snap := h.ctrl.Snapshot()
	if snap.Strikes != 1 || snap.Casts != 2 {
		t.Errorf("snapshot counters: %+v", snap)
	}
	if snap.Stabilized || len(snap.Trail) != 0 {
		t.Errorf("strike must clear trail and flag: %+v", snap)
	}

	mu.Lock()
	defer mu.Unlock()
	want := []State{Throwing, Biting, Catching, Throwing, Biting}
	if len(seq) != len(want) {
		t.Fatalf("transitions: got %v, want %v", seq, want)
	}
	for i := range want {
		if seq[i] != want[i] {
			t.Fatalf("transitions: got %v, want %v", seq, want)
		}
	}

	h.trackMu.Lock()
	defer h.trackMu.Unlock()
	if len(h.trackers) < 3 {
		t.Fatalf("expected a fresh tracker per cast, got %d", len(h.trackers))
	}
	if !h.trackers[1].closed {
		t.Error("previous cast's tracker should be closed")
	}
}

func TestController_TrackerFailuresAreTolerated(t *testing.T) {
	h := newHarness(t, false, nil)
	h.ready.Set()
	h.waitFor(EventTransition, Biting)

	h.feedMid(50, 50) // init succeeds
	for i := 0; i < 10; i++ {
		h.feedMid(50+i*3, 50)
	}
	h.settle()

	snap := h.ctrl.Snapshot()
	if snap.State != Biting {
		t.Errorf("state: got %v, want biting", snap.State)
	}
	if snap.TrackerFailures != 10 {
		t.Errorf("tracker failures: got %d, want 10", snap.TrackerFailures)
	}
	if len(snap.Trail) != 0 || snap.Strikes != 0 {
		t.Errorf("failed updates must not touch the trail: %+v", snap)
	}
}

func TestController_LowConfidenceIgnored(t *testing.T) {
	h := newHarness(t, true, nil)
	h.ready.Set()
	h.waitFor(EventTransition, Biting)

	b := detection.Batch{Detections: []detection.Detection{{X1: 1, Y1: 1, X2: 5, Y2: 5, Confidence: 0.1}}}
	if err := h.dets.Put(h.ctx, b); err != nil {
		t.Fatal(err)
	}
	f, _ := frame.New(1, 1, 1, frame.BGR, []byte{0, 0, 0})
	h.frames.Offer(f)

	deadline := time.Now().Add(time.Second)
	for h.ctrl.Snapshot().Batches < 1 {
		if time.Now().After(deadline) {
			t.Fatal("batch not consumed")
		}
		time.Sleep(time.Millisecond)
	}
	if h.frames.Empty() {
		t.Error("a filtered detection must not consume a frame")
	}
}

func TestController_PauseBlocksTransitions(t *testing.T) {
	h := newHarness(t, true, nil)

	paused, err := h.ctrl.TogglePause(h.ctx)
	if err != nil || !paused {
		t.Fatalf("TogglePause: %v, %v", paused, err)
	}
	h.ready.Set()
	time.Sleep(30 * time.Millisecond)

	snap := h.ctrl.Snapshot()
	if snap.State != Initializing || !snap.Paused {
		t.Fatalf("paused controller changed state: %+v", snap)
	}
	if h.rec.Clicks() != 0 {
		t.Fatal("paused controller must not click")
	}

	paused, err = h.ctrl.TogglePause(h.ctx)
	if err != nil || paused {
		t.Fatalf("resume: %v, %v", paused, err)
	}
	h.waitFor(EventTransition, Biting)
	h.clicks(1)
}

func TestController_PauseWhileWaitingForDetections(t *testing.T) {
	h := newHarness(t, true, nil)
	h.ready.Set()
	h.waitFor(EventTransition, Biting)

	if paused, err := h.ctrl.TogglePause(h.ctx); err != nil || !paused {
		t.Fatalf("TogglePause: %v, %v", paused, err)
	}

	h.feedMid(10, 10)
	time.Sleep(20 * time.Millisecond)
	if h.dets.Empty() {
		t.Error("paused controller must not consume detections")
	}

	if _, err := h.ctrl.TogglePause(h.ctx); err != nil {
		t.Fatal(err)
	}
	h.settle()
	if h.ctrl.Snapshot().Batches != 1 {
		t.Errorf("batches after resume: %d", h.ctrl.Snapshot().Batches)
	}
}

func TestController_StopWhileBlockedOnGet(t *testing.T) {
	frames := pipeline.NewQueue[*frame.Frame]("frames", 1)
	dets := pipeline.NewQueue[detection.Batch]("detections", 1)
	actions := pipeline.NewQueue[input.Action]("actions", 1)
	ready := pipeline.NewLatch()
	ready.Set()

	cfg := DefaultConfig()
	cfg.SettleDelay = time.Millisecond
	ctrl, err := New(cfg, Wiring{
		Frames: frames, Detections: dets, Actions: actions, Ready: ready,
		Trackers: func() (tracking.Tracker, error) { return &mockTracker{}, nil },
	}, log.Nop())
	if err != nil {
		t.Fatal(err)
	}

	w := pipeline.NewWorker("controller", ctrl.Run, log.Nop())
	w.Start(context.Background())

	if _, err := actions.Get(context.Background()); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(time.Second)
	for ctrl.Snapshot().State != Biting {
		if time.Now().After(deadline) {
			t.Fatal("controller never reached biting")
		}
		time.Sleep(time.Millisecond)
	}

	start := time.Now()
	if err := w.Stop(200 * time.Millisecond); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if took := time.Since(start); took > 100*time.Millisecond {
		t.Errorf("stop took %v", took)
	}
	if w.Err() != nil {
		t.Errorf("cancelled controller should not report an error: %v", w.Err())
	}
	if s := ctrl.Snapshot(); s.State != Biting || len(s.Trail) != 0 {
		t.Errorf("state after stop: %+v", s)
	}
}

func TestController_StopCommand(t *testing.T) {
	h := newHarness(t, true, nil)
	if err := h.ctrl.Stop(h.ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	select {
	case err := <-h.runErr:
		if err != nil {
			t.Errorf("Run after Stop: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
	if _, err := h.ctrl.TogglePause(context.Background()); !errors.Is(err, ErrNotRunning) {
		t.Errorf("TogglePause after exit: got %v", err)
	}
}

func TestController_ReadyTimeout(t *testing.T) {
	h := newHarness(t, true, func(c *Config) { c.ReadyTimeout = 20 * time.Millisecond })
	select {
	case err := <-h.runErr:
		if !errors.Is(err, ErrNotReady) {
			t.Errorf("got %v, want ErrNotReady", err)
		}
	case <-time.After(time.Second):
		t.Fatal("controller kept waiting past the ready timeout")
	}
}

func TestController_NeverReturnsToInitializing(t *testing.T) {
	h := newHarness(t, true, nil)
	h.ready.Set()
	h.waitFor(EventTransition, Biting)

	for cycle := 0; cycle < 3; cycle++ {
		h.feedMid(100, 100)
		h.feedMid(100, 100)
		h.feedMid(100, 101)
		h.feedMid(104, 101)
		h.waitFor(EventStrike, Biting)
		h.waitFor(EventTransition, Biting)
	}

	select {
	case e := <-h.events:
		if e.Kind == EventTransition && e.State == Initializing {
			t.Fatal("initializing must never be re-entered")
		}
	default:
	}
	if got := h.ctrl.Snapshot().Strikes; got != 3 {
		t.Errorf("strikes: got %d, want 3", got)
	}
}

func TestController_BatchDetectionsInOrder(t *testing.T) {
	h := newHarnessWithFrames(t, true, 3, nil)
	h.ready.Set()
	h.waitFor(EventTransition, Biting)

	h.feedBatch(1,
		tracking.Point{X: 50, Y: 50}, // initializes the tracker on frame 1
		tracking.Point{X: 50, Y: 50}, // first recorded point, frame 2
		tracking.Point{X: 50, Y: 51}, // (0,1) on frame 3: at rest
	)
	first := h.waitFor(EventPoint, Biting)
	if first.Point != (tracking.Point{X: 50, Y: 50}) {
		t.Errorf("first point: got %v", first.Point)
	}
	second := h.waitFor(EventPoint, Biting)
	if second.Point != (tracking.Point{X: 50, Y: 51}) {
		t.Errorf("second point: got %v", second.Point)
	}
	h.waitFor(EventStabilized, Biting)
	h.settle()

	tr := h.tracker(1)
	tr.mu.Lock()
	inits, seqs := tr.inits, append([]uint64(nil), tr.seqs...)
	tr.mu.Unlock()
	if inits != 1 {
		t.Errorf("tracker inits: got %d, want 1", inits)
	}
	want := []uint64{1, 2, 3}
	if len(seqs) != len(want) {
		t.Fatalf("frames used: got %v, want %v", seqs, want)
	}
	for i := range want {
		if seqs[i] != want[i] {
			t.Fatalf("frames used: got %v, want %v", seqs, want)
		}
	}
}

func TestController_StrikeDropsRestOfBatch(t *testing.T) {
	h := newHarnessWithFrames(t, true, 3, nil)
	h.ready.Set()
	h.waitFor(EventTransition, Biting)

	h.feedBatch(1,
		tracking.Point{X: 50, Y: 50},
		tracking.Point{X: 50, Y: 50},
		tracking.Point{X: 50, Y: 51},
	)
	h.waitFor(EventStabilized, Biting)
	h.settle()

	h.feedBatch(4,
		tracking.Point{X: 50, Y: 51}, // repeat, compared against (50,50): still at rest
		tracking.Point{X: 58, Y: 52}, // (8,1): bite on frame 5
		tracking.Point{X: 90, Y: 90}, // never looked at
	)
	strike := h.waitFor(EventStrike, Biting)
	if strike.Point != (tracking.Point{X: 58, Y: 52}) {
		t.Errorf("strike point: got %v", strike.Point)
	}
	h.waitFor(EventTransition, Catching)
	h.waitFor(EventTransition, Throwing)
	h.waitFor(EventTransition, Biting)
	h.clicks(3)

	if n := h.frames.Len(); n != 1 {
		t.Fatalf("frames left after strike: got %d, want 1", n)
	}
	left, _ := h.frames.TryGet()
	if left.Seq != 6 {
		t.Errorf("unconsumed frame: got seq %d, want 6", left.Seq)
	}

	tr := h.tracker(1)
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if last := tr.seqs[len(tr.seqs)-1]; last != 5 {
		t.Errorf("last frame tracked before the strike: got %d, want 5", last)
	}
	for _, s := range tr.seqs {
		if s == 6 {
			t.Error("detection after the strike was evaluated")
		}
	}
}
