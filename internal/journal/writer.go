package journal

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-angler/internal/log"
	"github.com/teslashibe/go-angler/pkg/bot"
)

const defaultBuffer = 256

// Writer persists controller events for one session. OnEvent never blocks;
// events that do not fit the buffer are dropped and counted.
type Writer struct {
	store   *Store
	session string
	events  chan bot.Event
	logger  *slog.Logger

	// Point events are high volume and off by default.
	points bool

	written atomic.Uint64
	dropped atomic.Uint64
}

// NewWriter creates a writer for session.
func NewWriter(store *Store, session string, logger *slog.Logger) *Writer {
	return &Writer{
		store:   store,
		session: session,
		events:  make(chan bot.Event, defaultBuffer),
		logger:  log.Component(logger, "journal"),
	}
}

// RecordPoints enables persisting every tracked point.
func (w *Writer) RecordPoints(on bool) { w.points = on }

// OnEvent implements bot.Observer.
func (w *Writer) OnEvent(e bot.Event) {
	if e.Kind == bot.EventPoint && !w.points {
		return
	}
	select {
	case w.events <- e:
	default:
		w.dropped.Add(1)
	}
}

// Run writes events until ctx is done, then flushes what is buffered.
func (w *Writer) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.flush()
			return ctx.Err()
		case e := <-w.events:
			w.write(ctx, e)
		}
	}
}

func (w *Writer) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for {
		select {
		case e := <-w.events:
			w.write(ctx, e)
		default:
			return
		}
	}
}

func (w *Writer) write(ctx context.Context, e bot.Event) {
	if err := w.store.Record(ctx, w.session, e); err != nil {
		w.logger.Warn("journal write failed", "kind", e.Kind, "error", err)
		return
	}
	w.written.Add(1)
}

// Written returns how many events were persisted.
func (w *Writer) Written() uint64 { return w.written.Load() }

// Dropped returns how many events were discarded because the buffer was full.
func (w *Writer) Dropped() uint64 { return w.dropped.Load() }
