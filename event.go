package voicegate

import "strconv"

// SpeechEvent is a high-level notification from the detector.
type SpeechEvent int

const (
	EventWakeDetected SpeechEvent = iota + 1
	EventSpeechStart
	EventSpeechEnd
	EventCommandDetected
	EventWakeWindowClosed
)

func (e SpeechEvent) String() string {
	switch e {
	case EventWakeDetected:
		return "wake_detected"
	case EventSpeechStart:
		return "speech_start"
	case EventSpeechEnd:
		return "speech_end"
	case EventCommandDetected:
		return "command_detected"
	case EventWakeWindowClosed:
		return "wake_window_closed"
	}
	return "event(" + strconv.Itoa(int(e)) + ")"
}

// EventHandler receives speech events. Implementations must not block the
// caller for longer than a bounded playback call.
type EventHandler interface {
	OnSpeechEvent(ev SpeechEvent) error
}

// Tone identifies a feedback cue.
type Tone int

const (
	ToneWake Tone = iota + 1
	ToneCommandAck
)

func (t Tone) String() string {
	switch t {
	case ToneWake:
		return "wake"
	case ToneCommandAck:
		return "command_ack"
	}
	return "tone(" + strconv.Itoa(int(t)) + ")"
}
