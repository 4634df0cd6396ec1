package engine

import (
	"context"
	"sync"

	"github.com/tacitsys/dncdbg-mcp/pkg/types"
)

// eventQueue is the event channel of the design: unbounded, FIFO, one
// producer (the callback sink) and any number of consumers awaiting the
// next stop. It is closed when ExitProcess is observed for the live
// session, and when a session is reset or disconnected; once closed and
// drained, every waiter is unblocked with ok=false.
type eventQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []types.DebugEvent
	closed bool
}

func newEventQueue() *eventQueue {
	q := &eventQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *eventQueue) push(ev types.DebugEvent) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.items = append(q.items, ev)
	q.cond.Broadcast()
}

func (q *eventQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.cond.Broadcast()
}

// next blocks until an event is available, the queue closes, or ctx is
// done. ok is false when the queue is closed with nothing left to deliver,
// or when ctx is done before an event arrives.
func (q *eventQueue) next(ctx context.Context) (types.DebugEvent, bool) {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			q.mu.Lock()
			q.cond.Broadcast()
			q.mu.Unlock()
		case <-stop:
		}
	}()

	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		if ctx.Err() != nil {
			return types.DebugEvent{}, false
		}
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return types.DebugEvent{}, false
	}
	ev := q.items[0]
	q.items = q.items[1:]
	return ev, true
}
