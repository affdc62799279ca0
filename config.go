package voicegate

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/spf13/afero"
)

const (
	RequiredSampleRate = 16000
	RequiredChunkSize  = 512
)

// Config is the on-disk configuration of a voicegate device.
type Config struct {
	Capture  CaptureConfig  `yaml:"capture"`
	Detector DetectorConfig `yaml:"detector"`
	Tones    ToneConfig     `yaml:"tones"`
	Sink     SinkConfig     `yaml:"sink"`
}

// CaptureConfig sizes the capture core.
type CaptureConfig struct {
	QueueCapacity     int `yaml:"queue_capacity"`      // signal queue depth (default 3)
	FrameBytes        int `yaml:"frame_bytes"`         // bytes per frame read (default 2048)
	PlaybackTimeoutMs int `yaml:"playback_timeout_ms"` // upper bound on one tone call
}

// DetectorConfig configures the VAD/turn detector. Model paths are checked
// when the detector is built, not when the file is loaded.
type DetectorConfig struct {
	SampleRate         int     `yaml:"sample_rate"`          // must be 16000
	ChunkSize          int     `yaml:"chunk_size"`           // must be 512
	VadThreshold       float32 `yaml:"vad_threshold"`        // speech probability threshold (e.g. 0.5)
	StopMs             int     `yaml:"stop_ms"`              // trailing silence that ends speech
	MaxDurationSeconds float32 `yaml:"max_duration_seconds"` // hard cap per utterance
	TurnThreshold      float32 `yaml:"turn_threshold"`       // turn-complete probability for a command

	// WakeWindowMs is how long the detector stays awake after a wake without
	// hearing speech. Zero keeps it awake permanently.
	WakeWindowMs int `yaml:"wake_window_ms"`

	SileroVADModelPath string `yaml:"silero_vad_model"`
	SmartTurnModelPath string `yaml:"smart_turn_model"` // optional; empty disables command detection
	RuntimeLibraryPath string `yaml:"onnxruntime_library"`
}

// ToneConfig lists WAV files for feedback cues. Empty paths disable a cue.
type ToneConfig struct {
	SampleRate int    `yaml:"sample_rate"`
	Wake       string `yaml:"wake"`
	CommandAck string `yaml:"command_ack"`
}

// SinkConfig selects where captured segments go. An empty Dir only logs.
type SinkConfig struct {
	Dir string `yaml:"dir"`
}

// DefaultConfig returns the stock configuration.
func DefaultConfig() Config {
	return Config{
		Capture: CaptureConfig{
			QueueCapacity:     DefaultQueueCapacity,
			FrameBytes:        DefaultFrameBytes,
			PlaybackTimeoutMs: int(DefaultPlaybackTimeout / time.Millisecond),
		},
		Detector: DetectorConfig{
			SampleRate:         RequiredSampleRate,
			ChunkSize:          RequiredChunkSize,
			VadThreshold:       0.5,
			StopMs:             1000,
			MaxDurationSeconds: 30,
			TurnThreshold:      0.5,
			WakeWindowMs:       0,
			SileroVADModelPath: "data/silero_vad.onnx",
			SmartTurnModelPath: "data/smart-turn-v3.2-cpu.onnx",
		},
		Tones: ToneConfig{
			SampleRate: RequiredSampleRate,
		},
	}
}

// LoadConfig reads a YAML file from fs on top of DefaultConfig. Unknown keys
// are rejected.
func LoadConfig(fs afero.Fs, path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.UnmarshalWithOptions(data, &cfg, yaml.Strict()); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Capture.validate(); err != nil {
		return cfg, err
	}
	if err := cfg.Tones.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// PlaybackTimeout returns the configured tone bound.
func (c CaptureConfig) PlaybackTimeout() time.Duration {
	return time.Duration(c.PlaybackTimeoutMs) * time.Millisecond
}

func (c CaptureConfig) validate() error {
	if c.QueueCapacity < 1 {
		return errors.New("config: capture.queue_capacity must be >= 1")
	}
	if c.FrameBytes < 2 || c.FrameBytes%2 != 0 {
		return errors.New("config: capture.frame_bytes must be a positive even number")
	}
	if c.PlaybackTimeoutMs <= 0 {
		return errors.New("config: capture.playback_timeout_ms must be > 0")
	}
	return nil
}

func (c ToneConfig) validate() error {
	if (c.Wake != "" || c.CommandAck != "") && c.SampleRate <= 0 {
		return errors.New("config: tones.sample_rate must be > 0")
	}
	return nil
}

// validate checks the detector section, including that model files exist.
func (c DetectorConfig) validate() error {
	if c.SampleRate != RequiredSampleRate {
		return errors.New("config: SampleRate must be 16000")
	}
	if c.ChunkSize != RequiredChunkSize {
		return errors.New("config: ChunkSize must be 512")
	}
	if c.VadThreshold < 0 || c.VadThreshold > 1 {
		return errors.New("config: VadThreshold must be in [0, 1]")
	}
	if c.TurnThreshold < 0 || c.TurnThreshold > 1 {
		return errors.New("config: TurnThreshold must be in [0, 1]")
	}
	if c.StopMs <= 0 {
		return errors.New("config: StopMs must be > 0")
	}
	if c.MaxDurationSeconds <= 0 {
		return errors.New("config: MaxDurationSeconds must be > 0")
	}
	if c.WakeWindowMs < 0 {
		return errors.New("config: WakeWindowMs must be >= 0")
	}
	if c.SileroVADModelPath == "" {
		return errors.New("config: SileroVADModelPath is required")
	}
	if err := modelExists("Silero VAD", c.SileroVADModelPath); err != nil {
		return err
	}
	if c.SmartTurnModelPath != "" {
		if err := modelExists("Smart-Turn", c.SmartTurnModelPath); err != nil {
			return err
		}
	}
	return nil
}

func modelExists(name, path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return errors.New("config: " + name + " model file not found: " + path)
		}
		return err
	}
	return nil
}
