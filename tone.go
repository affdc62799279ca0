package voicegate

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/go-audio/wav"
	"github.com/spf13/afero"
)

// ErrUnknownTone is returned when a tone has not been loaded into the bank.
var ErrUnknownTone = errors.New("unknown tone")

// ToneBank holds decoded feedback cues as mono PCM16 at one sample rate.
type ToneBank struct {
	sampleRate int
	tones      map[Tone][]byte
}

// NewToneBank returns an empty bank for the given playback rate.
func NewToneBank(sampleRate int) *ToneBank {
	return &ToneBank{sampleRate: sampleRate, tones: make(map[Tone][]byte)}
}

// LoadToneBank decodes every tone in paths from fs. Empty paths are skipped.
func LoadToneBank(fs afero.Fs, sampleRate int, paths map[Tone]string) (*ToneBank, error) {
	b := NewToneBank(sampleRate)
	for tone, p := range paths {
		if p == "" {
			continue
		}
		if err := b.LoadFile(fs, tone, p); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// LoadFile decodes a 16-bit WAV file and stores it as tone. Multichannel audio
// is averaged down to mono; the file must already be at the bank's rate.
func (b *ToneBank) LoadFile(fs afero.Fs, tone Tone, name string) error {
	f, err := fs.Open(name)
	if err != nil {
		return fmt.Errorf("tone %s: %w", tone, err)
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return fmt.Errorf("tone %s: %s is not a valid WAV file", tone, name)
	}
	if d.BitDepth != 16 {
		return fmt.Errorf("tone %s: only 16-bit PCM supported, got %d bits", tone, d.BitDepth)
	}
	if int(d.SampleRate) != b.sampleRate {
		return fmt.Errorf("tone %s: sample rate %d does not match playback rate %d", tone, d.SampleRate, b.sampleRate)
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return fmt.Errorf("tone %s: decode: %w", tone, err)
	}

	channels := 1
	if buf.Format != nil && buf.Format.NumChannels > 0 {
		channels = buf.Format.NumChannels
	}
	frames := len(buf.Data) / channels
	pcm := make([]byte, 0, frames*2)
	for i := 0; i < frames; i++ {
		var sum int
		for c := 0; c < channels; c++ {
			sum += buf.Data[i*channels+c]
		}
		v := min(max(sum/channels, math.MinInt16), math.MaxInt16)
		pcm = binary.LittleEndian.AppendUint16(pcm, uint16(int16(v)))
	}
	b.Set(tone, pcm)
	return nil
}

// Set stores raw mono PCM16 for tone.
func (b *ToneBank) Set(tone Tone, pcm []byte) {
	b.tones[tone] = pcm
}

// PCM returns the samples for tone.
func (b *ToneBank) PCM(tone Tone) ([]byte, bool) {
	pcm, ok := b.tones[tone]
	return pcm, ok
}

// SampleRate returns the bank's playback rate.
func (b *ToneBank) SampleRate() int { return b.sampleRate }

// ToneOutput accepts PCM for playback. Write returns once the data is queued.
type ToneOutput interface {
	Write(ctx context.Context, pcm []byte) error
}

// BankPlayer plays tones from a bank into an output.
type BankPlayer struct {
	bank *ToneBank
	out  ToneOutput
}

func NewBankPlayer(bank *ToneBank, out ToneOutput) *BankPlayer {
	return &BankPlayer{bank: bank, out: out}
}

func (p *BankPlayer) Play(ctx context.Context, tone Tone) error {
	if p == nil || p.bank == nil || p.out == nil {
		return ErrNoPlayer
	}
	pcm, ok := p.bank.PCM(tone)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTone, tone)
	}
	return p.out.Write(ctx, pcm)
}

// PlaybackBuffer is a bounded PCM queue between tone players and a device
// callback. Write blocks while the buffer is full; Fill never blocks.
type PlaybackBuffer struct {
	mu    sync.Mutex
	data  []byte
	limit int
	space chan struct{}
}

// NewPlaybackBuffer holds up to limit bytes. A non-positive limit holds one
// second of 16 kHz mono PCM16.
func NewPlaybackBuffer(limit int) *PlaybackBuffer {
	if limit <= 0 {
		limit = 32000
	}
	return &PlaybackBuffer{limit: limit, space: make(chan struct{}, 1)}
}

// Write queues pcm, waiting for the device to drain space when needed.
func (b *PlaybackBuffer) Write(ctx context.Context, pcm []byte) error {
	for len(pcm) > 0 {
		b.mu.Lock()
		n := min(b.limit-len(b.data), len(pcm))
		b.data = append(b.data, pcm[:n]...)
		b.mu.Unlock()
		pcm = pcm[n:]
		if len(pcm) == 0 {
			return nil
		}
		select {
		case <-b.space:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Fill copies queued PCM into out and pads the remainder with silence.
// It returns the number of queued bytes consumed.
func (b *PlaybackBuffer) Fill(out []byte) int {
	b.mu.Lock()
	n := copy(out, b.data)
	b.data = b.data[n:]
	b.mu.Unlock()
	clear(out[n:])
	if n > 0 {
		select {
		case b.space <- struct{}{}:
		default:
		}
	}
	return n
}

// Len returns the number of queued bytes.
func (b *PlaybackBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}
