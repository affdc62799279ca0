package voicegate

import (
	"math"
	"math/cmplx"
	"sync"

	"github.com/mjibson/go-dsp/fft"
)

// Whisper feature extraction at 16 kHz: 25 ms window, 10 ms hop, 80 bands, 8 s.
const (
	melFFTSize = 400
	melHop     = 160
	melBands   = 80
	melSamples = 8 * RequiredSampleRate
	melFrames  = melSamples / melHop
	melBins    = melFFTSize/2 + 1
)

var (
	melOnce    sync.Once
	melFilters []float64 // melBands x melBins
	melWindow  []float64 // periodic Hann
)

// logMelSpectrogram returns (80, 800) row-major log-mel features of the last
// 8 s of audio, left-padding with silence when shorter. Values are scaled the
// way Whisper's feature extractor does.
func logMelSpectrogram(audio []float32) []float32 {
	melOnce.Do(initMel)

	padded := make([]float64, melSamples+melFFTSize)
	tail := audio
	if len(tail) > melSamples {
		tail = tail[len(tail)-melSamples:]
	}
	off := melSamples - len(tail)
	for i, v := range tail {
		padded[off+i] = float64(v)
	}

	logSpec := make([]float64, melBands*melFrames)
	frame := make([]float64, melFFTSize)
	peak := math.Inf(-1)
	for t := 0; t < melFrames; t++ {
		start := t * melHop
		for i := range frame {
			frame[i] = padded[start+i] * melWindow[i]
		}
		spectrum := fft.FFTReal(frame)
		for m := 0; m < melBands; m++ {
			var e float64
			row := melFilters[m*melBins : (m+1)*melBins]
			for k, w := range row {
				if w != 0 {
					a := cmplx.Abs(spectrum[k])
					e += w * a * a
				}
			}
			v := math.Log10(math.Max(e, 1e-10))
			logSpec[m*melFrames+t] = v
			peak = math.Max(peak, v)
		}
	}

	out := make([]float32, len(logSpec))
	for i, v := range logSpec {
		v = math.Max(v, peak-8)
		out[i] = float32((v + 4) / 4)
	}
	return out
}

func initMel() {
	melWindow = make([]float64, melFFTSize)
	for i := range melWindow {
		melWindow[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/melFFTSize))
	}

	// Triangular filters evenly spaced on the mel scale from 0 Hz to Nyquist.
	lo, hi := hzToMel(0), hzToMel(RequiredSampleRate/2)
	edges := make([]float64, melBands+2)
	for i := range edges {
		edges[i] = melToHz(lo + (hi-lo)*float64(i)/float64(melBands+1))
	}
	melFilters = make([]float64, melBands*melBins)
	for m := 0; m < melBands; m++ {
		left, center, right := edges[m], edges[m+1], edges[m+2]
		norm := 2 / (right - left)
		for k := 0; k < melBins; k++ {
			f := float64(k) * RequiredSampleRate / melFFTSize
			var w float64
			switch {
			case f >= left && f <= center:
				w = (f - left) / (center - left)
			case f > center && f <= right:
				w = (right - f) / (right - center)
			}
			melFilters[m*melBins+k] = w * norm
		}
	}
}

func hzToMel(hz float64) float64 { return 2595 * math.Log10(1+hz/700) }

func melToHz(mel float64) float64 { return 700 * (math.Pow(10, mel/2595) - 1) }
