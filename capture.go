package voicegate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// DefaultFrameBytes matches a 2 KiB read of 16-bit mono PCM (64 ms at 16 kHz).
const DefaultFrameBytes = 2048

// CaptureState is owned by the capture task's goroutine.
type CaptureState int

const (
	StateIdle CaptureState = iota
	StateActive
)

func (s CaptureState) String() string {
	if s == StateActive {
		return "active"
	}
	return "idle"
}

// StopReason says why an activation ended.
type StopReason int

const (
	StopSignal StopReason = iota + 1
	StopCancelled
	StopExhausted
	StopReadError
	StopShutdown
)

func (r StopReason) String() string {
	switch r {
	case StopSignal:
		return "stop"
	case StopCancelled:
		return "cancel"
	case StopExhausted:
		return "exhausted"
	case StopReadError:
		return "read_error"
	case StopShutdown:
		return "shutdown"
	}
	return "unknown"
}

// FrameSource yields raw 16-bit little-endian mono PCM. ReadFrame blocks until
// data is available; it returns 0 with io.EOF once the stream is exhausted.
// Implementations should return when ctx is done.
type FrameSource interface {
	ReadFrame(ctx context.Context, buf []byte) (int, error)
}

// CaptureTask forwards frames from a FrameSource to a Sink while active. It is
// the only consumer of its SignalQueue and the only reader of its source.
type CaptureTask struct {
	queue     *SignalQueue
	source    FrameSource
	sink      Sink
	frameSize int
	cb        Callbacks
	log       *slog.Logger
}

// NewCaptureTask wires a task. sink may be nil (frames are discarded).
// A non-positive frameSize selects DefaultFrameBytes.
func NewCaptureTask(q *SignalQueue, source FrameSource, sink Sink, frameSize int, cb Callbacks, log *slog.Logger) (*CaptureTask, error) {
	if q == nil {
		return nil, errors.New("capture: signal queue is required")
	}
	if source == nil {
		return nil, errors.New("capture: frame source is required")
	}
	if sink == nil {
		sink = NopSink{}
	}
	if frameSize <= 0 {
		frameSize = DefaultFrameBytes
	}
	if log == nil {
		log = slog.Default()
	}
	return &CaptureTask{
		queue:     q,
		source:    source,
		sink:      sink,
		frameSize: frameSize,
		cb:        cb,
		log:       log.With("component", "capture"),
	}, nil
}

// Run executes the capture loop until ctx is done. While idle it waits on the
// queue without a deadline; while active it polls the queue between frame
// reads, so a stop takes effect after at most one more read.
func (t *CaptureTask) Run(ctx context.Context) error {
	buf := make([]byte, t.frameSize)
	state := StateIdle

	for {
		if state == StateIdle {
			sig, err := t.queue.Receive(ctx)
			if err != nil {
				return nil
			}
			state = t.apply(state, sig)
			continue
		}

		if sig, ok := t.queue.TryReceive(); ok {
			state = t.apply(state, sig)
			if state == StateIdle {
				continue
			}
		}

		n, err := t.source.ReadFrame(ctx, buf)
		if n > 0 {
			if serr := t.sink.Accept(buf[:n]); serr != nil {
				t.log.Warn("sink rejected frame", "bytes", n, "error", serr)
				t.cb.error(fmt.Errorf("sink: %w", serr))
			}
		}
		if ctx.Err() != nil {
			t.deactivate(StopShutdown)
			return nil
		}
		switch {
		case err != nil && !errors.Is(err, io.EOF):
			t.log.Warn("frame read failed", "error", err)
			t.cb.error(fmt.Errorf("frame read: %w", err))
			state = t.deactivate(StopReadError)
		case err != nil || n <= 0:
			t.log.Info("frame source exhausted", "bytes", n)
			state = t.deactivate(StopExhausted)
		}
	}
}

// apply runs one signal through the state machine.
func (t *CaptureTask) apply(state CaptureState, sig ControlSignal) CaptureState {
	switch sig {
	case SignalStart:
		if state == StateIdle {
			state = t.activate()
		}
	case SignalStop:
		if state == StateActive {
			state = t.deactivate(StopSignal)
		}
	case SignalCancel:
		if state == StateActive {
			state = t.deactivate(StopCancelled)
		}
	default:
		t.log.Warn("ignoring unknown control signal", "signal", sig)
	}
	t.cb.signal(sig, state)
	return state
}

func (t *CaptureTask) activate() CaptureState {
	t.log.Info("voice read begin")
	if seg, ok := t.sink.(SegmentSink); ok {
		if err := seg.BeginSegment(); err != nil {
			t.log.Warn("sink failed to open segment", "error", err)
			t.cb.error(fmt.Errorf("sink: %w", err))
		}
	}
	t.cb.started()
	return StateActive
}

func (t *CaptureTask) deactivate(reason StopReason) CaptureState {
	t.log.Info("voice read end", "reason", reason)
	if seg, ok := t.sink.(SegmentSink); ok {
		if err := seg.EndSegment(); err != nil {
			t.log.Warn("sink failed to close segment", "error", err)
			t.cb.error(fmt.Errorf("sink: %w", err))
		}
	}
	t.cb.stopped(reason)
	return StateIdle
}
