package voicegate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSegmenterEndsOnTrailingSilence(t *testing.T) {
	// 32 ms chunks, 100 ms of silence rounds up to 4 chunks.
	s := newSegmenter(16000, 512, 100, 30, 0)
	assert.Equal(t, 4, s.stopChunks)

	chunk := make([]float32, 512)
	assert.Equal(t, segmentResult{}, s.processChunk(false, chunk))
	assert.True(t, s.processChunk(true, chunk).Started)

	for i := 0; i < 3; i++ {
		res := s.processChunk(false, chunk)
		assert.False(t, res.Ended)
	}
	res := s.processChunk(false, chunk)
	assert.True(t, res.Ended)
	assert.True(t, res.EndedBySilence)
	assert.False(t, s.speaking)
}

func TestSegmenterSpeechResetsSilence(t *testing.T) {
	s := newSegmenter(16000, 512, 64, 30, 0)
	chunk := make([]float32, 512)

	s.processChunk(true, chunk)
	s.processChunk(false, chunk)
	s.processChunk(true, chunk)
	assert.False(t, s.processChunk(false, chunk).Ended)
	assert.True(t, s.processChunk(false, chunk).Ended)
}

func TestSegmenterCapsDuration(t *testing.T) {
	s := newSegmenter(16000, 512, 1000, 0.25, 0)
	assert.Equal(t, 7, s.maxChunks)

	chunk := make([]float32, 512)
	var res segmentResult
	for i := 0; i < 7; i++ {
		res = s.processChunk(true, chunk)
	}
	assert.True(t, res.Ended)
	assert.False(t, res.EndedBySilence)
	assert.True(t, s.processChunk(true, chunk).Started)
}

func TestSegmenterRetainsTrailingAudio(t *testing.T) {
	s := newSegmenter(16000, 512, 32, 30, 600)
	first := make([]float32, 512)
	second := make([]float32, 512)
	for i := range second {
		second[i] = 1
	}

	s.processChunk(true, first)
	res := s.processChunk(false, second)
	assert.True(t, res.Ended)
	assert.Len(t, res.Segment, 600)
	assert.Equal(t, float32(0), res.Segment[0])
	assert.Equal(t, float32(1), res.Segment[599])
}
