package input

import (
	"sync"
	"time"
)

// Event is one recorded button change.
type Event struct {
	Down bool
	At   time.Time
}

// Recorder is an in-memory Clicker used for dry runs and tests.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	fail   error
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// FailWith makes every later Press and Release return err.
func (r *Recorder) FailWith(err error) {
	r.mu.Lock()
	r.fail = err
	r.mu.Unlock()
}

func (r *Recorder) Press() error   { return r.record(true) }
func (r *Recorder) Release() error { return r.record(false) }

func (r *Recorder) record(down bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	r.events = append(r.events, Event{Down: down, At: time.Now()})
	return nil
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Clicks counts complete press/release pairs.
func (r *Recorder) Clicks() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	down := false
	for _, e := range r.events {
		switch {
		case e.Down:
			down = true
		case down:
			n++
			down = false
		}
	}
	return n
}
