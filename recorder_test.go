package voicegate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRecorder(t *testing.T, src FrameSource, sink Sink, player Player, probe *taskProbe) *Recorder {
	t.Helper()
	cfg := DefaultConfig().Capture
	cfg.FrameBytes = 4
	rec, err := New(cfg, Deps{
		Source:    src,
		Sink:      sink,
		Player:    player,
		Callbacks: probe.callbacks(),
	})
	require.NoError(t, err)
	runTask(t, rec.Run)
	return rec
}

func TestNewRejectsBadConfig(t *testing.T) {
	cfg := DefaultConfig().Capture
	cfg.QueueCapacity = 0
	_, err := New(cfg, Deps{Source: newFakeSource()})
	require.Error(t, err)

	_, err = New(DefaultConfig().Capture, Deps{})
	require.Error(t, err)
}

func TestRecorderWakeWithoutSpeech(t *testing.T) {
	src := newFakeSource()
	player := &fakePlayer{}
	probe := newTaskProbe()
	rec := newTestRecorder(t, src, nil, player, probe)

	require.NoError(t, rec.OnSpeechEvent(EventWakeDetected))

	assert.Equal(t, signalEvent{SignalCancel, StateIdle}, probe.waitSignal(t))
	assert.Equal(t, []Tone{ToneWake}, player.Played())
	assert.Empty(t, probe.started)
	assert.Zero(t, src.Reads())
}

func TestRecorderCapturesOneUtterance(t *testing.T) {
	src := newFakeSource()
	sink := &recordingSink{}
	player := &fakePlayer{}
	probe := newTaskProbe()
	rec := newTestRecorder(t, src, sink, player, probe)

	require.NoError(t, rec.OnSpeechEvent(EventWakeDetected))
	assert.Equal(t, signalEvent{SignalCancel, StateIdle}, probe.waitSignal(t))

	require.NoError(t, rec.OnSpeechEvent(EventSpeechStart))
	probe.waitStarted(t)

	src.feed(t, readResult{data: []byte{1, 0}})
	src.feed(t, readResult{data: []byte{2, 0}})
	src.waitRead(t, 3)
	require.NoError(t, rec.OnSpeechEvent(EventSpeechEnd))
	src.feed(t, readResult{data: []byte{3, 0}})

	assert.Equal(t, StopSignal, probe.waitStopped(t))
	assert.Equal(t, [][]byte{{1, 0}, {2, 0}, {3, 0}}, sink.Frames())
	assert.Equal(t, []Tone{ToneWake}, player.Played())

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 3, src.Reads())
}

func TestRecorderCommandAckDoesNotTouchCapture(t *testing.T) {
	src := newFakeSource()
	player := &fakePlayer{}
	probe := newTaskProbe()
	rec := newTestRecorder(t, src, nil, player, probe)

	require.NoError(t, rec.OnSpeechEvent(EventCommandDetected))
	require.NoError(t, rec.OnSpeechEvent(EventWakeWindowClosed))

	assert.Equal(t, []Tone{ToneCommandAck}, player.Played())
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, probe.signals)
	assert.Zero(t, rec.Dropped())
}
