package voicegate

import (
	"context"
	"sync"
	"testing"
	"time"
)

const testTimeout = 2 * time.Second

type readResult struct {
	data []byte
	err  error
}

// fakeSource hands out one readResult per ReadFrame. Each read announces its
// 1-based index on started before it blocks.
type fakeSource struct {
	reads   chan readResult
	started chan int

	mu    sync.Mutex
	count int
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		reads:   make(chan readResult),
		started: make(chan int, 128),
	}
}

func (s *fakeSource) ReadFrame(ctx context.Context, buf []byte) (int, error) {
	s.mu.Lock()
	s.count++
	idx := s.count
	s.mu.Unlock()
	s.started <- idx

	select {
	case r := <-s.reads:
		return copy(buf, r.data), r.err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (s *fakeSource) Reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// feed blocks until an in-flight read takes r.
func (s *fakeSource) feed(t *testing.T, r readResult) {
	t.Helper()
	select {
	case s.reads <- r:
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for a frame read")
	}
}

// waitRead blocks until read number n has started.
func (s *fakeSource) waitRead(t *testing.T, n int) {
	t.Helper()
	deadline := time.After(testTimeout)
	for {
		select {
		case idx := <-s.started:
			if idx >= n {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for read %d", n)
		}
	}
}

type recordingSink struct {
	mu     sync.Mutex
	frames [][]byte
	begins int
	ends   int
	err    error
}

func (s *recordingSink) Accept(frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, append([]byte(nil), frame...))
	return s.err
}

func (s *recordingSink) BeginSegment() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.begins++
	return nil
}

func (s *recordingSink) EndSegment() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ends++
	return nil
}

func (s *recordingSink) Frames() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.frames...)
}

func (s *recordingSink) Segments() (begins, ends int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.begins, s.ends
}

type fakePlayer struct {
	mu     sync.Mutex
	played []Tone
	err    error
	block  bool
}

func (p *fakePlayer) Play(ctx context.Context, tone Tone) error {
	if p.block {
		<-ctx.Done()
		return ctx.Err()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.played = append(p.played, tone)
	return p.err
}

func (p *fakePlayer) Played() []Tone {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Tone(nil), p.played...)
}

type signalEvent struct {
	sig   ControlSignal
	state CaptureState
}

// taskProbe records capture callbacks on channels.
type taskProbe struct {
	started chan struct{}
	stopped chan StopReason
	signals chan signalEvent
	errors  chan error
}

func newTaskProbe() *taskProbe {
	return &taskProbe{
		started: make(chan struct{}, 16),
		stopped: make(chan StopReason, 16),
		signals: make(chan signalEvent, 16),
		errors:  make(chan error, 16),
	}
}

func (p *taskProbe) callbacks() Callbacks {
	return Callbacks{
		OnCaptureStarted: func() { p.started <- struct{}{} },
		OnCaptureStopped: func(r StopReason) { p.stopped <- r },
		OnSignal:         func(sig ControlSignal, st CaptureState) { p.signals <- signalEvent{sig, st} },
		OnError:          func(err error) { p.errors <- err },
	}
}

func (p *taskProbe) waitSignal(t *testing.T) signalEvent {
	t.Helper()
	select {
	case ev := <-p.signals:
		return ev
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for a consumed signal")
	}
	return signalEvent{}
}

func (p *taskProbe) waitStarted(t *testing.T) {
	t.Helper()
	select {
	case <-p.started:
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for capture start")
	}
}

func (p *taskProbe) waitStopped(t *testing.T) StopReason {
	t.Helper()
	select {
	case r := <-p.stopped:
		return r
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for capture stop")
	}
	return 0
}

// runTask starts run in the background and stops it at test cleanup.
func runTask(t *testing.T, run func(context.Context) error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(testTimeout):
			t.Error("capture task did not exit")
		}
	})
}
