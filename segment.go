package voicegate

// segmenter turns per-chunk VAD decisions into utterance boundaries. Pure
// logic; no ONNX, no callbacks.
type segmenter struct {
	stopChunks int
	maxChunks  int
	keep       int // samples of trailing audio retained for turn prediction

	speaking bool
	trailing int
	since    int
	audio    []float32
}

// segmentResult is returned by processChunk on every chunk.
type segmentResult struct {
	Started        bool
	Ended          bool
	EndedBySilence bool      // false when the utterance hit the duration cap
	Segment        []float32 // retained audio, set when Ended
}

func newSegmenter(sampleRate, chunkSize, stopMs int, maxDurationSec float32, keepSamples int) *segmenter {
	chunkMs := max(1, chunkSize*1000/sampleRate)
	return &segmenter{
		stopChunks: max(1, ceilDiv(stopMs, chunkMs)),
		maxChunks:  max(1, int(maxDurationSec*float32(sampleRate)/float32(chunkSize))),
		keep:       keepSamples,
	}
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

func (s *segmenter) processChunk(isSpeech bool, chunk []float32) segmentResult {
	var out segmentResult
	if !s.speaking {
		if !isSpeech {
			return out
		}
		s.speaking = true
		s.trailing = 0
		s.since = 0
		out.Started = true
	}

	s.retain(chunk)
	s.since++
	if isSpeech {
		s.trailing = 0
	} else {
		s.trailing++
	}

	switch {
	case s.trailing >= s.stopChunks:
		out.Ended, out.EndedBySilence = true, true
	case s.since >= s.maxChunks:
		out.Ended = true
	default:
		return out
	}
	out.Segment = s.audio
	s.reset()
	return out
}

func (s *segmenter) retain(chunk []float32) {
	if s.keep <= 0 {
		return
	}
	s.audio = append(s.audio, chunk...)
	if over := len(s.audio) - s.keep; over > 0 {
		s.audio = s.audio[over:]
	}
}

func (s *segmenter) reset() {
	s.speaking = false
	s.trailing = 0
	s.since = 0
	s.audio = nil
}
