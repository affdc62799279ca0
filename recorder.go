package voicegate

import (
	"context"
	"log/slog"
)

// Deps are the collaborators a Recorder borrows. The Recorder never starts,
// stops or closes them.
type Deps struct {
	Source    FrameSource // required
	Sink      Sink        // nil discards frames
	Player    Player      // nil disables tones
	Callbacks Callbacks
	Logger    *slog.Logger
}

// Recorder wires the signal queue, event dispatcher and capture task for one
// device. Detectors deliver events through OnSpeechEvent; Run drives capture.
type Recorder struct {
	queue      *SignalQueue
	dispatcher *Dispatcher
	capture    *CaptureTask
}

// New validates cfg and builds a Recorder. Errors here are startup failures;
// the caller decides whether to exit or retry.
func New(cfg CaptureConfig, deps Deps) (*Recorder, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	q := NewSignalQueue(cfg.QueueCapacity)
	task, err := NewCaptureTask(q, deps.Source, deps.Sink, cfg.FrameBytes, deps.Callbacks, log)
	if err != nil {
		return nil, err
	}
	dispatcher, err := NewDispatcher(q, deps.Player, cfg.PlaybackTimeout(), log)
	if err != nil {
		return nil, err
	}
	return &Recorder{
		queue:      q,
		dispatcher: dispatcher,
		capture:    task,
	}, nil
}

// Run drives the capture loop until ctx is done.
func (r *Recorder) Run(ctx context.Context) error {
	return r.capture.Run(ctx)
}

// OnSpeechEvent is the entry point for detector events. It may be called from
// any goroutine and never waits on the capture task.
func (r *Recorder) OnSpeechEvent(ev SpeechEvent) error {
	return r.dispatcher.OnSpeechEvent(ev)
}

// Dropped returns how many control signals were lost to a full queue.
func (r *Recorder) Dropped() uint64 {
	return r.dispatcher.Dropped()
}
