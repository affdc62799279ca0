package voicegate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// DefaultPlaybackTimeout bounds how long the dispatcher waits for a tone to be accepted.
const DefaultPlaybackTimeout = 2 * time.Second

var (
	// ErrUnknownEvent is returned by OnSpeechEvent for events outside the known set.
	ErrUnknownEvent = errors.New("unknown speech event")
	// ErrNoPlayer is returned by players that have no output attached.
	ErrNoPlayer = errors.New("no playback engine")
)

// Player plays short feedback tones. Play returns once the tone has been
// accepted for playback, not when it finishes.
type Player interface {
	Play(ctx context.Context, tone Tone) error
}

// Dispatcher translates speech events into queue posts and tone playback.
// It is safe for concurrent use and never waits on the queue.
type Dispatcher struct {
	queue       *SignalQueue
	player      Player
	playTimeout time.Duration
	log         *slog.Logger

	dropped atomic.Uint64
}

// NewDispatcher returns a dispatcher posting to q. player may be nil, in which
// case tones are skipped. A non-positive playTimeout selects DefaultPlaybackTimeout.
func NewDispatcher(q *SignalQueue, player Player, playTimeout time.Duration, log *slog.Logger) (*Dispatcher, error) {
	if q == nil {
		return nil, errors.New("dispatcher: signal queue is required")
	}
	if playTimeout <= 0 {
		playTimeout = DefaultPlaybackTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		queue:       q,
		player:      player,
		playTimeout: playTimeout,
		log:         log.With("component", "dispatcher"),
	}, nil
}

// OnSpeechEvent handles one event. The only error it reports is
// ErrUnknownEvent; playback failures and queue overflow are absorbed.
func (d *Dispatcher) OnSpeechEvent(ev SpeechEvent) error {
	switch ev {
	case EventWakeDetected:
		d.log.Info("wake detected")
		d.play(ToneWake)
		d.post(SignalCancel)
	case EventSpeechStart:
		d.log.Info("speech start")
		d.post(SignalStart)
	case EventSpeechEnd:
		d.log.Info("speech end")
		d.post(SignalStop)
	case EventCommandDetected:
		d.log.Info("command detected")
		d.play(ToneCommandAck)
	case EventWakeWindowClosed:
		d.log.Info("wake window closed")
	default:
		err := fmt.Errorf("%w: %d", ErrUnknownEvent, int(ev))
		d.log.Error("unhandled speech event", "error", err)
		return err
	}
	return nil
}

// Dropped returns how many signals were discarded because the queue was full.
func (d *Dispatcher) Dropped() uint64 {
	return d.dropped.Load()
}

func (d *Dispatcher) post(sig ControlSignal) {
	if d.queue.Post(sig) {
		return
	}
	d.dropped.Add(1)
	d.log.Debug("signal queue full, dropped", "signal", sig)
}

func (d *Dispatcher) play(tone Tone) {
	if d.player == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), d.playTimeout)
	defer cancel()

	// A player that ignores ctx must still not hold up the event pipeline.
	done := make(chan error, 1)
	go func() { done <- d.player.Play(ctx, tone) }()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err == nil || errors.Is(err, ErrNoPlayer) {
		return
	}
	d.log.Warn("tone playback failed", "tone", tone, "error", err)
}
