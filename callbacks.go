package voicegate

// Callbacks are invoked synchronously from the capture task's goroutine, so
// they must return quickly. All fields are optional (nil is allowed).
type Callbacks struct {
	OnCaptureStarted func()
	OnCaptureStopped func(reason StopReason)

	// OnSignal fires after every control signal the task consumes, with the
	// state that resulted from it.
	OnSignal func(sig ControlSignal, state CaptureState)

	// OnError receives frame read and sink failures. They are not fatal.
	OnError func(err error)
}

func (c Callbacks) started() {
	if c.OnCaptureStarted != nil {
		c.OnCaptureStarted()
	}
}

func (c Callbacks) stopped(reason StopReason) {
	if c.OnCaptureStopped != nil {
		c.OnCaptureStopped(reason)
	}
}

func (c Callbacks) signal(sig ControlSignal, state CaptureState) {
	if c.OnSignal != nil {
		c.OnSignal(sig, state)
	}
}

func (c Callbacks) error(err error) {
	if c.OnError != nil {
		c.OnError(err)
	}
}
