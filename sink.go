package voicegate

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/youpy/go-wav"
)

// Sink consumes captured frames. The frame slice is reused by the capture task
// after Accept returns; copy it if retaining.
type Sink interface {
	Accept(frame []byte) error
}

// SegmentSink is a Sink that wants to know where activations begin and end.
type SegmentSink interface {
	Sink
	BeginSegment() error
	EndSegment() error
}

// NopSink discards every frame.
type NopSink struct{}

func (NopSink) Accept([]byte) error { return nil }

// LogSink counts frames per activation and logs a summary when it ends.
type LogSink struct {
	log    *slog.Logger
	mu     sync.Mutex
	frames int
	bytes  int
}

func NewLogSink(log *slog.Logger) *LogSink {
	if log == nil {
		log = slog.Default()
	}
	return &LogSink{log: log.With("component", "sink")}
}

func (s *LogSink) Accept(frame []byte) error {
	s.mu.Lock()
	s.frames++
	s.bytes += len(frame)
	s.mu.Unlock()
	return nil
}

func (s *LogSink) BeginSegment() error {
	s.mu.Lock()
	s.frames, s.bytes = 0, 0
	s.mu.Unlock()
	return nil
}

func (s *LogSink) EndSegment() error {
	s.mu.Lock()
	frames, n := s.frames, s.bytes
	s.mu.Unlock()
	s.log.Info("segment captured", "frames", frames, "bytes", n)
	return nil
}

// MultiSink forwards to every sink in order and joins their errors.
type MultiSink []Sink

func (m MultiSink) Accept(frame []byte) error {
	var errs []error
	for _, s := range m {
		if err := s.Accept(frame); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m MultiSink) BeginSegment() error {
	var errs []error
	for _, s := range m {
		if seg, ok := s.(SegmentSink); ok {
			if err := seg.BeginSegment(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (m MultiSink) EndSegment() error {
	var errs []error
	for _, s := range m {
		if seg, ok := s.(SegmentSink); ok {
			if err := seg.EndSegment(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// WAVSink writes each activation to its own 16-bit mono WAV file under Dir.
// Audio is buffered in memory until the segment ends.
type WAVSink struct {
	fs         afero.Fs
	dir        string
	sampleRate int
	log        *slog.Logger

	mu      sync.Mutex
	pcm     []byte
	open    bool
	written []string
}

// NewWAVSink creates dir on fs if needed.
func NewWAVSink(fs afero.Fs, dir string, sampleRate int, log *slog.Logger) (*WAVSink, error) {
	if fs == nil {
		return nil, errors.New("wav sink: filesystem is required")
	}
	if sampleRate <= 0 {
		return nil, errors.New("wav sink: sample rate must be > 0")
	}
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("wav sink: create %s: %w", dir, err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &WAVSink{
		fs:         fs,
		dir:        dir,
		sampleRate: sampleRate,
		log:        log.With("component", "wav_sink"),
	}, nil
}

func (s *WAVSink) Accept(frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return nil
	}
	s.pcm = append(s.pcm, frame...)
	return nil
}

func (s *WAVSink) BeginSegment() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pcm = s.pcm[:0]
	s.open = true
	return nil
}

// EndSegment flushes the buffered activation. Empty activations write nothing.
func (s *WAVSink) EndSegment() error {
	s.mu.Lock()
	pcm := s.pcm
	s.open = false
	s.pcm = nil
	s.mu.Unlock()

	if len(pcm) < 2 {
		return nil
	}
	name := filepath.Join(s.dir, "segment_"+uuid.NewString()+".wav")
	if err := writeWAV(s.fs, name, pcm, s.sampleRate); err != nil {
		return fmt.Errorf("wav sink: %w", err)
	}
	s.mu.Lock()
	s.written = append(s.written, name)
	s.mu.Unlock()
	s.log.Info("segment written", "path", name, "samples", len(pcm)/2)
	return nil
}

// Written returns the paths of all files written so far.
func (s *WAVSink) Written() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.written...)
}

func writeWAV(fs afero.Fs, name string, pcm []byte, sampleRate int) (err error) {
	f, err := fs.Create(name)
	if err != nil {
		return err
	}
	// Buffered write failures only surface on Close.
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	n := len(pcm) / 2
	samples := make([]wav.Sample, n)
	for i := 0; i < n; i++ {
		v := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		samples[i] = wav.Sample{Values: [2]int{int(v), 0}}
	}
	w := wav.NewWriter(f, uint32(n), 1, uint32(sampleRate), 16)
	return w.WriteSamples(samples)
}
