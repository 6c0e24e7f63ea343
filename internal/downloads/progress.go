package downloads

import (
	"context"
	"time"
)

// Progress is one event on a download stream. Fraction is in [0, 1] and
// non-decreasing as observed by the consumer. The final event has Done set;
// Err is non-nil when the download failed.
type Progress struct {
	Fraction float64
	Done     bool
	Err      error
}

// Progress floor and ceiling applied until the download is truly complete,
// so the indicator always appears to move and never sits at 100% early.
const (
	progressFloor   = 0.01
	progressCeiling = 0.99
	emitMinInterval = 200 * time.Millisecond
)

// emitter rate-limits and monotonizes progress emissions. Terminal events
// bypass the rate limit and are always delivered to a draining consumer.
type emitter struct {
	ch      chan<- Progress
	highest float64
	lastAt  time.Time
	now     func() time.Time
}

func newEmitter(ch chan<- Progress) *emitter {
	return &emitter{ch: ch, now: time.Now}
}

// emit sends a non-terminal fraction, clamped into the floor/ceiling band and
// never below a previously emitted value. Emissions closer together than the
// minimum interval are dropped.
func (e *emitter) emit(ctx context.Context, fraction float64) {
	if fraction < progressFloor {
		fraction = progressFloor
	}
	if fraction > progressCeiling {
		fraction = progressCeiling
	}
	if fraction < e.highest {
		fraction = e.highest
	}

	now := e.now()
	if !e.lastAt.IsZero() && now.Sub(e.lastAt) < emitMinInterval {
		return
	}

	select {
	case e.ch <- Progress{Fraction: fraction}:
		e.highest = fraction
		e.lastAt = now
	case <-ctx.Done():
	}
}

// finish sends the unconditional terminal 1.0.
func (e *emitter) finish(ctx context.Context) {
	e.terminal(ctx, Progress{Fraction: 1.0, Done: true})
}

// fail sends the terminal error event, carrying the highest fraction reached.
func (e *emitter) fail(ctx context.Context, err error) {
	e.terminal(ctx, Progress{Fraction: e.highest, Done: true, Err: err})
}

// terminal bypasses the rate limit and must reach the consumer even when the
// buffer is full of unread emissions: a consumer ranging over the stream
// always drains it, so the send blocks until space frees up. Only a consumer
// that cancelled and walked away releases the send via ctx.
func (e *emitter) terminal(ctx context.Context, p Progress) {
	select {
	case e.ch <- p:
		return
	default:
	}
	select {
	case e.ch <- p:
	case <-ctx.Done():
	}
}
