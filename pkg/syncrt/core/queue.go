package core

import (
	"sync"

	"github.com/nwillc/syncrt/pkg/syncrt/types"
)

// ReceiveQueue is a FIFO of inbound reducer messages, serializing delivery
// so one dispatch (a reducer step plus every command it produces) always
// runs to completion before the next begins (component G, §4.4, §5). This
// is what lets the reducer be written as if single-threaded while transport
// adapters deliver concurrently from any goroutine.
type ReceiveQueue struct {
	dispatch func(types.Msg)
	log      types.Logger

	mu      sync.Mutex
	cond    *sync.Cond
	pending []types.Msg
	closed  bool
}

// NewReceiveQueue constructs a queue that calls dispatch for each
// dequeued message, from the single goroutine started by Run. The queue is
// bounded only by available memory (§4.4); backpressure is the transport's
// concern.
func NewReceiveQueue(dispatch func(types.Msg), log types.Logger) *ReceiveQueue {
	q := &ReceiveQueue{dispatch: dispatch, log: log}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Enqueue appends msg to the tail of the queue. Safe to call from any
// goroutine, including transport adapter callbacks.
func (q *ReceiveQueue) Enqueue(msg types.Msg) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.pending = append(q.pending, msg)
	q.cond.Signal()
}

// Run drains the queue on the calling goroutine until Close is called. It
// is intended to be the single long-lived goroutine that ever calls
// dispatch; callers should not invoke Run from more than one goroutine.
func (q *ReceiveQueue) Run() {
	for {
		msg, ok := q.next()
		if !ok {
			return
		}
		q.runOne(msg)
	}
}

func (q *ReceiveQueue) next() (types.Msg, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.pending) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.pending) == 0 {
		return nil, false
	}
	msg := q.pending[0]
	q.pending = q.pending[1:]
	return msg, true
}

// runOne dispatches a single message, recovering from any panic so that an
// unexpected reducer exception is logged with the offending message and
// does not advance state further, giving test suites a deterministic
// crash-point (§7, closing paragraph).
func (q *ReceiveQueue) runOne(msg types.Msg) {
	defer func() {
		if r := recover(); r != nil {
			if q.log != nil {
				q.log.Errorf("reducer panic processing %#v: %v", msg, r)
			}
		}
	}()
	q.dispatch(msg)
}

// Close stops Run once the current message (if any) finishes and drops any
// still-pending messages.
func (q *ReceiveQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.pending = nil
	q.cond.Broadcast()
}

// Len reports how many messages are currently queued, for diagnostics.
func (q *ReceiveQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
