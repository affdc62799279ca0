package voicegate

import (
	"time"

	ort "github.com/yalue/onnxruntime_go"
)

const (
	sileroContextSamples = 64
	sileroInputSamples   = sileroContextSamples + RequiredChunkSize
	sileroStateSize      = 2 * 1 * 128
	sileroResetInterval  = 5 * time.Second
)

// speechScorer yields a speech probability per chunk.
type speechScorer interface {
	speechProb(chunk []float32) (float32, error)
	resetState()
	destroy() error
}

// sileroScorer runs Silero VAD through ONNX Runtime. It reuses its tensors
// between calls and is not safe for concurrent use.
type sileroScorer struct {
	session  *ort.AdvancedSession
	input    *ort.Tensor[float32] // (1, 576): context + chunk
	state    *ort.Tensor[float32] // (2, 1, 128)
	sr       *ort.Tensor[int64]   // (1,)
	output   *ort.Tensor[float32] // (1, 1)
	stateOut *ort.Tensor[float32] // (2, 1, 128)

	context   [sileroContextSamples]float32
	lastReset time.Time
}

func newSileroScorer(modelPath string) (*sileroScorer, error) {
	var owned []ort.Value
	fail := func(err error) (*sileroScorer, error) {
		destroyValues(owned)
		return nil, err
	}

	input, err := ort.NewTensor(ort.NewShape(1, sileroInputSamples), make([]float32, sileroInputSamples))
	if err != nil {
		return fail(err)
	}
	owned = append(owned, input)
	state, err := ort.NewTensor(ort.NewShape(2, 1, 128), make([]float32, sileroStateSize))
	if err != nil {
		return fail(err)
	}
	owned = append(owned, state)
	sr, err := ort.NewTensor(ort.NewShape(1), []int64{RequiredSampleRate})
	if err != nil {
		return fail(err)
	}
	owned = append(owned, sr)
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 1))
	if err != nil {
		return fail(err)
	}
	owned = append(owned, output)
	stateOut, err := ort.NewEmptyTensor[float32](ort.NewShape(2, 1, 128))
	if err != nil {
		return fail(err)
	}
	owned = append(owned, stateOut)

	sess, err := ort.NewAdvancedSession(modelPath,
		[]string{"input", "state", "sr"},
		[]string{"output", "stateN"},
		[]ort.Value{input, state, sr},
		[]ort.Value{output, stateOut},
		nil)
	if err != nil {
		return fail(err)
	}
	return &sileroScorer{
		session:   sess,
		input:     input,
		state:     state,
		sr:        sr,
		output:    output,
		stateOut:  stateOut,
		lastReset: time.Now(),
	}, nil
}

func (v *sileroScorer) resetState() {
	clear(v.context[:])
	v.state.ZeroContents()
	v.lastReset = time.Now()
}

// speechProb scores one chunk. The recurrent state is cleared periodically so
// long silences do not drift the model.
func (v *sileroScorer) speechProb(chunk []float32) (float32, error) {
	if len(chunk) != RequiredChunkSize {
		return 0, ErrChunkSize
	}
	if time.Since(v.lastReset) >= sileroResetInterval {
		v.resetState()
	}

	in := v.input.GetData()
	copy(in, v.context[:])
	copy(in[sileroContextSamples:], chunk)
	copy(v.context[:], in[sileroInputSamples-sileroContextSamples:])

	if err := v.session.Run(); err != nil {
		return 0, err
	}
	copy(v.state.GetData(), v.stateOut.GetData())
	return v.output.GetData()[0], nil
}

func (v *sileroScorer) destroy() error {
	err := v.session.Destroy()
	destroyValues([]ort.Value{v.input, v.state, v.sr, v.output, v.stateOut})
	return err
}

func destroyValues(values []ort.Value) {
	for _, val := range values {
		_ = val.Destroy()
	}
}
