package voicegate

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
)

var (
	ErrChunkSize      = errors.New("chunk must be exactly 512 samples")
	ErrDetectorClosed = errors.New("detector is closed")
)

// turnWindowSamples is how much trailing audio Smart-Turn looks at.
const turnWindowSamples = melSamples

// Detector turns microphone audio into speech events: Silero VAD for speech
// boundaries, Smart-Turn for completed commands, and a wake window opened by
// Wake and closed by Sleep or an idle timeout. Events are delivered
// synchronously to the handler from the goroutine calling PushPCM. Apart from
// Wake, Sleep and Listening, methods must not be called concurrently.
type Detector struct {
	cfg     DetectorConfig
	handler EventHandler
	log     *slog.Logger
	vad     speechScorer
	turn    turnPredictor
	seg     *segmenter

	wakeChunks int // 0: no idle timeout
	awake      atomic.Bool
	idleChunks int
	request    atomic.Int32 // pending button request, latest wins
	closed     bool
}

const (
	requestNone int32 = iota
	requestWake
	requestSleep
)

// NewDetector validates cfg, initializes ONNX Runtime and loads the models.
// Events go to handler, typically a Recorder.
func NewDetector(cfg DetectorConfig, handler EventHandler, log *slog.Logger) (*Detector, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if err := InitRuntime(cfg.RuntimeLibraryPath); err != nil {
		return nil, err
	}
	vad, err := newSileroScorer(cfg.SileroVADModelPath)
	if err != nil {
		return nil, fmt.Errorf("load silero vad: %w", err)
	}
	var turn turnPredictor
	if cfg.SmartTurnModelPath != "" {
		st, err := newSmartTurn(cfg.SmartTurnModelPath)
		if err != nil {
			_ = vad.destroy()
			return nil, fmt.Errorf("load smart-turn: %w", err)
		}
		turn = st
	}
	return newDetector(cfg, vad, turn, handler, log), nil
}

func newDetector(cfg DetectorConfig, vad speechScorer, turn turnPredictor, handler EventHandler, log *slog.Logger) *Detector {
	if log == nil {
		log = slog.Default()
	}
	keep := 0
	if turn != nil {
		keep = turnWindowSamples
	}
	chunkMs := max(1, cfg.ChunkSize*1000/cfg.SampleRate)
	d := &Detector{
		cfg:        cfg,
		handler:    handler,
		log:        log.With("component", "detector"),
		vad:        vad,
		turn:       turn,
		seg:        newSegmenter(cfg.SampleRate, cfg.ChunkSize, cfg.StopMs, cfg.MaxDurationSeconds, keep),
		wakeChunks: ceilDiv(cfg.WakeWindowMs, chunkMs),
	}
	// Without a wake window the detector starts out listening.
	d.awake.Store(d.wakeChunks == 0)
	return d
}

// Wake requests a wake-up, as a push-to-talk button or an external wake-word
// engine would. It is safe to call from any goroutine; the event is emitted
// with the next chunk.
func (d *Detector) Wake() {
	d.request.Store(requestWake)
}

// Sleep is the button release: it ends any open utterance with SpeechEnd,
// closes the wake window and emits WakeWindowClosed. Audio is then ignored
// until the next Wake, also when no wake window is configured. Like Wake it
// is safe to call from any goroutine and takes effect with the next chunk;
// when both are requested before that chunk, the later call wins.
func (d *Detector) Sleep() {
	d.request.Store(requestSleep)
}

// Listening reports whether the wake window is open. It is safe to call from
// any goroutine.
func (d *Detector) Listening() bool {
	return d.awake.Load()
}

// PushPCM processes one chunk of 512 float32 samples (mono, 16 kHz).
func (d *Detector) PushPCM(chunk []float32) error {
	if d.closed {
		return ErrDetectorClosed
	}
	if len(chunk) != RequiredChunkSize {
		return ErrChunkSize
	}
	switch d.request.Swap(requestNone) {
	case requestWake:
		d.wake()
	case requestSleep:
		d.sleep()
	}
	if !d.awake.Load() {
		return nil
	}

	prob, err := d.vad.speechProb(chunk)
	if err != nil {
		return fmt.Errorf("vad: %w", err)
	}
	res := d.seg.processChunk(prob > d.cfg.VadThreshold, chunk)
	if res.Started {
		d.emit(EventSpeechStart)
	}
	if res.Ended {
		d.emit(EventSpeechEnd)
		if res.EndedBySilence {
			d.predictTurn(res.Segment)
		}
	}
	d.tickWakeWindow()
	return nil
}

// Reset clears VAD and utterance state. Models stay loaded.
func (d *Detector) Reset() {
	if d.closed {
		return
	}
	d.vad.resetState()
	d.seg.reset()
}

// Close releases the ONNX sessions. The detector must not be used afterwards.
func (d *Detector) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	err := d.vad.destroy()
	if d.turn != nil {
		err = errors.Join(err, d.turn.destroy())
	}
	return err
}

func (d *Detector) wake() {
	d.vad.resetState()
	d.seg.reset()
	d.awake.Store(true)
	d.idleChunks = 0
	d.emit(EventWakeDetected)
}

func (d *Detector) sleep() {
	if !d.awake.Load() {
		return
	}
	if d.seg.speaking {
		d.emit(EventSpeechEnd)
	}
	d.closeWindow()
}

func (d *Detector) closeWindow() {
	d.seg.reset()
	d.awake.Store(false)
	d.idleChunks = 0
	d.vad.resetState()
	d.emit(EventWakeWindowClosed)
}

func (d *Detector) tickWakeWindow() {
	if d.wakeChunks == 0 {
		return
	}
	if d.seg.speaking {
		d.idleChunks = 0
		return
	}
	d.idleChunks++
	if d.idleChunks < d.wakeChunks {
		return
	}
	d.closeWindow()
}

func (d *Detector) predictTurn(segment []float32) {
	if d.turn == nil || len(segment) == 0 {
		return
	}
	p, err := d.turn.predict(segment)
	if err != nil {
		d.log.Warn("turn prediction failed", "error", err)
		return
	}
	d.log.Debug("turn prediction", "probability", p)
	if p > d.cfg.TurnThreshold {
		d.emit(EventCommandDetected)
	}
}

func (d *Detector) emit(ev SpeechEvent) {
	if d.handler == nil {
		return
	}
	if err := d.handler.OnSpeechEvent(ev); err != nil {
		d.log.Warn("speech event not handled", "event", ev, "error", err)
	}
}
