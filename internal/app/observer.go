package app

import (
	"fmt"

	"github.com/teslashibe/go-angler/pkg/bot"
	"github.com/teslashibe/go-angler/pkg/tracking"
)

// annotator is the part of the overlay the bot drives.
type annotator interface {
	SetTrail([]tracking.Point)
	SetStatus(string)
}

// overlayObserver mirrors the controller's trail and state onto the overlay.
// It runs on the controller goroutine, so trail needs no lock.
type overlayObserver struct {
	out   annotator
	trail []tracking.Point
}

func newOverlayObserver(out annotator) *overlayObserver {
	return &overlayObserver{out: out}
}

func (o *overlayObserver) OnEvent(e bot.Event) {
	switch e.Kind {
	case bot.EventCast, bot.EventStrike:
		o.trail = o.trail[:0]
		o.out.SetTrail(nil)
	case bot.EventPoint:
		o.trail = append(o.trail, e.Point)
		o.out.SetTrail(o.trail)
	}
	o.out.SetStatus(status(e))
}

func status(e bot.Event) string {
	switch e.Kind {
	case bot.EventPaused:
		return fmt.Sprintf("paused (%s)", e.State)
	case bot.EventStabilized:
		return fmt.Sprintf("cast %d: waiting for a fish", e.Cast)
	case bot.EventStrike:
		return fmt.Sprintf("cast %d: strike dx=%d dy=%d", e.Cast, e.DX, e.DY)
	default:
		return fmt.Sprintf("cast %d: %s", e.Cast, e.State)
	}
}
