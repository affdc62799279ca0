package voicegate

import (
	"context"
	"strconv"
)

// DefaultQueueCapacity is the signal queue depth used when none is configured.
const DefaultQueueCapacity = 3

// ControlSignal is a command from the event dispatcher to the capture task.
type ControlSignal int

const (
	SignalStart ControlSignal = iota + 1
	SignalStop
	SignalCancel
)

func (s ControlSignal) String() string {
	switch s {
	case SignalStart:
		return "start"
	case SignalStop:
		return "stop"
	case SignalCancel:
		return "cancel"
	}
	return "signal(" + strconv.Itoa(int(s)) + ")"
}

// SignalQueue is a bounded FIFO of control signals. Any number of goroutines
// may Post; exactly one goroutine should receive.
type SignalQueue struct {
	ch chan ControlSignal
}

// NewSignalQueue returns a queue holding at most capacity signals.
// A non-positive capacity selects DefaultQueueCapacity.
func NewSignalQueue(capacity int) *SignalQueue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &SignalQueue{ch: make(chan ControlSignal, capacity)}
}

// Post enqueues sig without waiting. It reports false when the queue is full,
// in which case sig is discarded.
func (q *SignalQueue) Post(sig ControlSignal) bool {
	select {
	case q.ch <- sig:
		return true
	default:
		return false
	}
}

// Receive blocks until a signal is available. The wait is unbounded; it only
// ends early when ctx is done, which is reserved for shutdown.
func (q *SignalQueue) Receive(ctx context.Context) (ControlSignal, error) {
	select {
	case sig := <-q.ch:
		return sig, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// TryReceive returns the next signal if one is queued.
func (q *SignalQueue) TryReceive() (ControlSignal, bool) {
	select {
	case sig := <-q.ch:
		return sig, true
	default:
		return 0, false
	}
}

// Len returns the number of queued signals.
func (q *SignalQueue) Len() int { return len(q.ch) }

// Cap returns the fixed capacity of the queue.
func (q *SignalQueue) Cap() int { return cap(q.ch) }
