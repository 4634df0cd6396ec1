package engine

import (
	"context"
	"testing"
	"time"

	"github.com/tacitsys/dncdbg-mcp/pkg/types"
)

func TestEventQueueFIFO(t *testing.T) {
	q := newEventQueue()
	q.push(types.DebugEvent{Kind: types.EventOutput, OutputText: "first"})
	q.push(types.DebugEvent{Kind: types.EventOutput, OutputText: "second"})

	ctx := context.Background()
	first, ok := q.next(ctx)
	if !ok || first.OutputText != "first" {
		t.Fatalf("got %+v, ok=%v, want first", first, ok)
	}
	second, ok := q.next(ctx)
	if !ok || second.OutputText != "second" {
		t.Fatalf("got %+v, ok=%v, want second", second, ok)
	}
}

func TestEventQueueBlocksUntilPush(t *testing.T) {
	q := newEventQueue()
	done := make(chan types.DebugEvent, 1)
	go func() {
		ev, ok := q.next(context.Background())
		if ok {
			done <- ev
		}
	}()

	select {
	case <-done:
		t.Fatal("next returned before any push")
	case <-time.After(20 * time.Millisecond):
	}

	q.push(types.DebugEvent{Kind: types.EventStopped, Reason: types.ReasonPause})
	select {
	case ev := <-done:
		if ev.Reason != types.ReasonPause {
			t.Errorf("got reason %q, want %q", ev.Reason, types.ReasonPause)
		}
	case <-time.After(time.Second):
		t.Fatal("next did not unblock after push")
	}
}

func TestEventQueueCloseUnblocksWaiters(t *testing.T) {
	q := newEventQueue()
	result := make(chan bool, 1)
	go func() {
		_, ok := q.next(context.Background())
		result <- ok
	}()

	time.Sleep(20 * time.Millisecond)
	q.close()

	select {
	case ok := <-result:
		if ok {
			t.Error("next returned ok=true on a closed, empty queue")
		}
	case <-time.After(time.Second):
		t.Fatal("next did not unblock after close")
	}
}

func TestEventQueueCloseIsIdempotent(t *testing.T) {
	q := newEventQueue()
	q.close()
	q.close() // must not panic or deadlock
}

func TestEventQueueContextCancellation(t *testing.T) {
	q := newEventQueue()
	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan bool, 1)
	go func() {
		_, ok := q.next(ctx)
		result <- ok
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case ok := <-result:
		if ok {
			t.Error("next returned ok=true after context cancellation with no items")
		}
	case <-time.After(time.Second):
		t.Fatal("next did not unblock after context cancellation")
	}
}

func TestEventQueuePushAfterCloseIsDropped(t *testing.T) {
	q := newEventQueue()
	q.close()
	q.push(types.DebugEvent{Kind: types.EventOutput, OutputText: "too late"})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, ok := q.next(ctx)
	if ok {
		t.Error("next returned an event pushed after close")
	}
}
