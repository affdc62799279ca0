package voicegate

import (
	ort "github.com/yalue/onnxruntime_go"
)

// turnPredictor scores whether a finished utterance completes the speaker's turn.
type turnPredictor interface {
	predict(segment []float32) (float32, error)
	destroy() error
}

// smartTurn runs the Smart-Turn v3 classifier on Whisper log-mel features of
// the last 8 seconds of an utterance.
type smartTurn struct {
	session *ort.AdvancedSession
	input   *ort.Tensor[float32] // (1, 80, 800)
	output  *ort.Tensor[float32] // (1,)
}

func newSmartTurn(modelPath string) (*smartTurn, error) {
	input, err := ort.NewTensor(ort.NewShape(1, melBands, melFrames), make([]float32, melBands*melFrames))
	if err != nil {
		return nil, err
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1))
	if err != nil {
		destroyValues([]ort.Value{input})
		return nil, err
	}
	sess, err := ort.NewAdvancedSession(modelPath,
		[]string{"input_features"},
		[]string{"output"},
		[]ort.Value{input},
		[]ort.Value{output},
		nil)
	if err != nil {
		destroyValues([]ort.Value{input, output})
		return nil, err
	}
	return &smartTurn{session: sess, input: input, output: output}, nil
}

func (st *smartTurn) predict(segment []float32) (float32, error) {
	copy(st.input.GetData(), logMelSpectrogram(segment))
	if err := st.session.Run(); err != nil {
		return 0, err
	}
	return st.output.GetData()[0], nil
}

func (st *smartTurn) destroy() error {
	err := st.session.Destroy()
	destroyValues([]ort.Value{st.input, st.output})
	return err
}
