package downloads

import (
	"context"
	"errors"
	"testing"
	"time"
)

func collect(ch chan Progress) []Progress {
	var events []Progress
	for {
		select {
		case event := <-ch:
			events = append(events, event)
		default:
			return events
		}
	}
}

func TestEmitterClampsAndMonotonizes(t *testing.T) {
	ch := make(chan Progress, 32)
	em := newEmitter(ch)
	clock := time.Now()
	em.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	ctx := context.Background()

	em.emit(ctx, 0.0) // below the floor
	em.emit(ctx, 0.5)
	em.emit(ctx, 0.3) // regression, must be held at the previous high
	em.emit(ctx, 1.5) // above the ceiling
	em.finish(ctx)

	events := collect(ch)
	fractions := make([]float64, 0, len(events))
	for _, event := range events {
		fractions = append(fractions, event.Fraction)
	}
	want := []float64{progressFloor, 0.5, 0.5, progressCeiling, 1.0}
	if len(fractions) != len(want) {
		t.Fatalf("fractions = %v, want %v", fractions, want)
	}
	for i := range want {
		if fractions[i] != want[i] {
			t.Errorf("fraction[%d] = %f, want %f", i, fractions[i], want[i])
		}
	}
	if !events[len(events)-1].Done {
		t.Error("final event should be terminal")
	}
}

func TestEmitterRateLimitsButAlwaysSendsTerminal(t *testing.T) {
	ch := make(chan Progress, 32)
	em := newEmitter(ch)
	clock := time.Now()
	em.now = func() time.Time { return clock }
	ctx := context.Background()

	em.emit(ctx, 0.1)
	em.emit(ctx, 0.2) // same instant, dropped
	em.emit(ctx, 0.3) // same instant, dropped
	clock = clock.Add(emitMinInterval)
	em.emit(ctx, 0.4)
	em.finish(ctx)

	events := collect(ch)
	if len(events) != 3 {
		t.Fatalf("expected 3 events (2 emits + terminal), got %d: %v", len(events), events)
	}
	if events[0].Fraction != 0.1 || events[1].Fraction != 0.4 {
		t.Errorf("events = %v", events)
	}
	if !events[2].Done || events[2].Fraction != 1.0 {
		t.Errorf("terminal = %+v", events[2])
	}
}

func TestTerminalSurvivesFullBuffer(t *testing.T) {
	ch := make(chan Progress, 32)
	em := newEmitter(ch)
	clock := time.Now()
	em.now = func() time.Time {
		clock = clock.Add(emitMinInterval)
		return clock
	}
	ctx := context.Background()

	// Fill the buffer with unread emissions, then fail without a consumer
	// having drained anything. The terminal event must still arrive before
	// the stream closes.
	for i := 0; i < cap(ch); i++ {
		em.emit(ctx, 0.5)
	}

	go func() {
		em.fail(ctx, errors.New("boom"))
		close(ch)
	}()

	var terminal *Progress
	for event := range ch {
		if event.Done {
			e := event
			terminal = &e
		}
	}
	if terminal == nil {
		t.Fatal("stream closed without a terminal event")
	}
	if terminal.Err == nil || terminal.Err.Error() != "boom" {
		t.Errorf("terminal error = %v, want boom", terminal.Err)
	}
}
