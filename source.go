package voicegate

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/spf13/afero"
	"github.com/youpy/go-wav"
)

// ErrSourceClosed is returned by Push after Close.
var ErrSourceClosed = errors.New("frame source closed")

// PushSource adapts callback-driven audio devices to the blocking FrameSource
// contract. Push never blocks: when the backlog is full the oldest frame is
// dropped so the most recent audio survives.
type PushSource struct {
	mu      sync.Mutex
	frames  [][]byte
	partial []byte
	limit   int
	closed  bool
	dropped uint64
	ready   chan struct{}
}

// NewPushSource keeps at most backlog frames. A non-positive backlog keeps 64.
func NewPushSource(backlog int) *PushSource {
	if backlog <= 0 {
		backlog = 64
	}
	return &PushSource{
		limit: backlog,
		ready: make(chan struct{}, 1),
	}
}

// Push appends a copy of frame.
func (p *PushSource) Push(frame []byte) error {
	if len(frame) == 0 {
		return nil
	}
	c := make([]byte, len(frame))
	copy(c, frame)

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrSourceClosed
	}
	if len(p.frames) >= p.limit {
		p.frames = p.frames[1:]
		p.dropped++
	}
	p.frames = append(p.frames, c)
	p.mu.Unlock()

	p.notify()
	return nil
}

// Close ends the stream. Queued frames can still be read.
func (p *PushSource) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.notify()
	return nil
}

// Dropped returns how many frames were discarded on overflow.
func (p *PushSource) Dropped() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dropped
}

// ReadFrame copies the next pushed frame into buf. A frame larger than buf is
// split across reads.
func (p *PushSource) ReadFrame(ctx context.Context, buf []byte) (int, error) {
	for {
		p.mu.Lock()
		if len(p.partial) == 0 && len(p.frames) > 0 {
			p.partial = p.frames[0]
			p.frames = p.frames[1:]
		}
		if len(p.partial) > 0 {
			n := copy(buf, p.partial)
			p.partial = p.partial[n:]
			p.mu.Unlock()
			return n, nil
		}
		closed := p.closed
		p.mu.Unlock()
		if closed {
			return 0, io.EOF
		}

		select {
		case <-p.ready:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
}

func (p *PushSource) notify() {
	select {
	case p.ready <- struct{}{}:
	default:
	}
}

// WAVSource reads 16-bit PCM frames out of a WAV file. Stereo input is
// downmixed to mono.
type WAVSource struct {
	file       afero.File
	reader     *wav.Reader
	channels   int
	sampleRate int
	pending    []byte
}

// OpenWAVSource opens name on fs and checks it holds 16-bit PCM.
func OpenWAVSource(fs afero.Fs, name string) (*WAVSource, error) {
	f, err := fs.Open(name)
	if err != nil {
		return nil, err
	}
	r := wav.NewReader(f)
	format, err := r.Format()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("WAV format: %w", err)
	}
	if format.BitsPerSample != 16 {
		f.Close()
		return nil, fmt.Errorf("WAV: only 16-bit PCM supported, got %d bits", format.BitsPerSample)
	}
	if format.NumChannels < 1 || format.NumChannels > 2 {
		f.Close()
		return nil, fmt.Errorf("WAV: only mono or stereo supported, got %d channels", format.NumChannels)
	}
	return &WAVSource{
		file:       f,
		reader:     r,
		channels:   int(format.NumChannels),
		sampleRate: int(format.SampleRate),
	}, nil
}

// SampleRate returns the file's sample rate.
func (s *WAVSource) SampleRate() int { return s.sampleRate }

// ReadFrame fills buf with mono PCM16. It returns 0, io.EOF at end of file.
func (s *WAVSource) ReadFrame(ctx context.Context, buf []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	want := len(buf) &^ 1
	for len(s.pending) < want {
		samples, err := s.reader.ReadSamples(uint32((want - len(s.pending)) / 2))
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("reading WAV samples: %w", err)
		}
		for _, smp := range samples {
			v := smp.Values[0]
			if s.channels == 2 {
				v = (smp.Values[0] + smp.Values[1]) / 2
			}
			s.pending = binary.LittleEndian.AppendUint16(s.pending, uint16(int16(v)))
		}
		if len(samples) == 0 {
			break
		}
	}
	if len(s.pending) == 0 {
		return 0, io.EOF
	}
	n := copy(buf[:want], s.pending)
	s.pending = s.pending[n:]
	return n, nil
}

func (s *WAVSource) Close() error {
	return s.file.Close()
}
