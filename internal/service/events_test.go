package service

import (
	"context"
	"testing"
	"time"

	"github.com/rowan/attest/internal/domain"
)

func TestEventStreamNilSafe(t *testing.T) {
	var stream *eventStream

	// Both must be no-ops on the non-streaming path
	stream.send(Event{Type: EventPhase, Phase: domain.JobPhaseExtracting})
	stream.sendTerminal(context.Background(), Event{Type: EventDone})
}

func TestEventStreamDropsWhenFull(t *testing.T) {
	stream := newEventStream(2)

	for i := 0; i < 5; i++ {
		stream.send(Event{Type: EventPhase, Phase: domain.JobPhaseExtracting})
	}

	// Buffer held 2 phase events; the rest were dropped. The terminal event
	// blocks until the consumer drains, so drain concurrently.
	drained := make(chan []Event, 1)
	go func() {
		var evs []Event
		for ev := range stream.Events() {
			evs = append(evs, ev)
		}
		drained <- evs
	}()

	stream.sendTerminal(context.Background(), Event{Type: EventDone})
	collected := <-drained
	if len(collected) != 3 {
		t.Fatalf("expected 2 buffered + 1 terminal, got %d", len(collected))
	}
	if collected[len(collected)-1].Type != EventDone {
		t.Errorf("last event should be terminal, got %s", collected[len(collected)-1].Type)
	}
}

func TestEventStreamTerminalClosesChannel(t *testing.T) {
	stream := newEventStream(4)
	stream.sendTerminal(context.Background(), Event{Type: EventError, Message: "boom"})

	ev, ok := <-stream.Events()
	if !ok || ev.Type != EventError {
		t.Fatalf("expected error event, got %+v ok=%v", ev, ok)
	}
	if _, ok := <-stream.Events(); ok {
		t.Error("channel should be closed after the terminal event")
	}
}

func TestEventStreamTerminalRespectsContext(t *testing.T) {
	stream := newEventStream(1)
	stream.send(Event{Type: EventPhase, Phase: domain.JobPhaseSynthesis}) // fill the buffer

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		stream.sendTerminal(ctx, Event{Type: EventDone})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sendTerminal blocked despite a cancelled consumer context")
	}
}

func TestPhaseTickerEmitsAndStops(t *testing.T) {
	got := make(chan domain.Highlight, 16)

	stop := startPhaseTicker(context.Background(), domain.JobPhaseExtracting, 5*time.Millisecond, func(h domain.Highlight) {
		select {
		case got <- h:
		default:
		}
	})

	select {
	case h := <-got:
		if h.Kind != domain.HighlightFound || h.Message == "" {
			t.Errorf("unexpected ticker highlight: %+v", h)
		}
	case <-time.After(time.Second):
		stop()
		t.Fatal("ticker never fired")
	}

	stop()

	// After stop returns the emitter goroutine has exited; drain anything
	// buffered and confirm silence.
	for len(got) > 0 {
		<-got
	}
	select {
	case h := <-got:
		t.Errorf("ticker fired after stop: %+v", h)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestPhaseTickerUnknownPhaseIsNoop(t *testing.T) {
	fired := false
	stop := startPhaseTicker(context.Background(), domain.JobPhaseValidating, time.Millisecond, func(domain.Highlight) {
		fired = true
	})
	time.Sleep(10 * time.Millisecond)
	stop()

	if fired {
		t.Error("validating has no ticker messages and should not emit")
	}
}
