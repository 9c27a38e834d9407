// Package bot is the decision-making controller of the angler.
//
// The Controller runs a four-state machine (Initializing, Throwing, Biting,
// Catching) on a single goroutine. All tracking state (tracker handle, trail,
// stabilization flag) is owned by that goroutine. Other goroutines reach the
// controller only through its control channel (TogglePause, Stop) and the
// read-only Snapshot.
package bot

import (
	"fmt"
	"time"

	"github.com/teslashibe/go-angler/pkg/tracking"
)

// State is the active controller state.
type State int

const (
	Initializing State = iota
	Throwing
	Biting
	Catching
)

func (s State) String() string {
	switch s {
	case Initializing:
		return "initializing"
	case Throwing:
		return "throwing"
	case Biting:
		return "biting"
	case Catching:
		return "catching"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText encodes the state name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name.
func (s *State) UnmarshalText(b []byte) error {
	for st := Initializing; st <= Catching; st++ {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", b)
}

// EventKind classifies controller events.
type EventKind string

const (
	EventTransition EventKind = "transition"
	EventCast       EventKind = "cast"
	EventPoint      EventKind = "point"
	EventStabilized EventKind = "stabilized"
	EventStrike     EventKind = "strike"
	EventCatch      EventKind = "catch"
	EventPaused     EventKind = "paused"
	EventResumed    EventKind = "resumed"
)

// Event is emitted to observers as the controller works.
type Event struct {
	Kind  EventKind      `json:"kind"`
	From  State          `json:"from"`
	State State          `json:"state"`
	Cast  uint64         `json:"cast"`
	Point tracking.Point `json:"point"`
	DX    int            `json:"dx,omitempty"`
	DY    int            `json:"dy,omitempty"`
	At    time.Time      `json:"at"`
}

// Observer receives controller events. OnEvent runs on the controller
// goroutine and must not block.
type Observer interface {
	OnEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// OnEvent calls f(e).
func (f ObserverFunc) OnEvent(e Event) { f(e) }

// Snapshot is a point-in-time view of the controller.
type Snapshot struct {
	State           State            `json:"state"`
	Since           time.Time        `json:"since"`
	Paused          bool             `json:"paused"`
	Stabilized      bool             `json:"stabilized"`
	Trail           []tracking.Point `json:"trail"`
	Casts           uint64           `json:"casts"`
	Strikes         uint64           `json:"strikes"`
	Batches         uint64           `json:"batches"`
	TrackerFailures uint64           `json:"tracker_failures"`
}
