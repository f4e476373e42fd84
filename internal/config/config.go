package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/guidoenr/metronome/internal/scale"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Accent spin boxes accept this range.
const (
	MinBeats = 1
	MaxBeats = 128
)

// ScaleConfig describes one slider.
type ScaleConfig struct {
	Min         float64 `yaml:"min"`
	Max         float64 `yaml:"max"`
	Value       float64 `yaml:"value"`
	Logarithmic bool    `yaml:"logarithmic"`
}

// Mapper builds the slider's scale.
func (s ScaleConfig) Mapper() (*scale.Mapper, error) {
	return scale.New(s.Min, s.Max, s.Value, s.Logarithmic)
}

// Config holds the startup preferences. It is read once and never written back.
type Config struct {
	// Volume is the output amplitude slider.
	Volume ScaleConfig `yaml:"volume"`
	// Tempo is the beat period slider, in milliseconds.
	Tempo     ScaleConfig `yaml:"tempo"`
	Accent    int         `yaml:"accent"`
	SubAccent int         `yaml:"subAccent"`
	// Presets are the tempo buttons, in milliseconds.
	Presets []float64 `yaml:"presets"`

	Backend    string `yaml:"backend"`
	Device     string `yaml:"device"`
	SampleRate int    `yaml:"sampleRate"`
	BlockSize  int    `yaml:"blockSize"`
	WebAddr    string `yaml:"webAddr"`
}

// Defaults returns the stock preferences.
func Defaults() Config {
	return Config{
		Volume:     ScaleConfig{Min: 0.001, Max: 1, Value: 0.35, Logarithmic: true},
		Tempo:      ScaleConfig{Min: 2000, Max: 30, Value: 1000, Logarithmic: true},
		Accent:     12,
		SubAccent:  4,
		Presets:    []float64{1000, 875, 750},
		Backend:    "portaudio",
		SampleRate: 44_100,
		BlockSize:  512,
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err = Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Defaults()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks ranges and that both sliders can be built.
func (c Config) Validate() error {
	volume, err := c.Volume.Mapper()
	if err != nil {
		return fmt.Errorf("%w: volume: %v", ErrInvalid, err)
	}
	tempo, err := c.Tempo.Mapper()
	if err != nil {
		return fmt.Errorf("%w: tempo: %v", ErrInvalid, err)
	}
	// zero is the silent bottom of the volume slider
	if v := c.Volume.Value; v != 0 && !volume.Contains(v) {
		return fmt.Errorf("%w: volume value %v outside [0, %v]", ErrInvalid, v, volume.Max())
	}
	if !tempo.Contains(c.Tempo.Value) {
		return fmt.Errorf("%w: tempo value %v outside the slider range", ErrInvalid, c.Tempo.Value)
	}
	if c.Accent < MinBeats || c.Accent > MaxBeats {
		return fmt.Errorf("%w: accent must be in [%d, %d] (got %d)", ErrInvalid, MinBeats, MaxBeats, c.Accent)
	}
	if c.SubAccent < MinBeats || c.SubAccent > MaxBeats {
		return fmt.Errorf("%w: subAccent must be in [%d, %d] (got %d)", ErrInvalid, MinBeats, MaxBeats, c.SubAccent)
	}
	for i, p := range c.Presets {
		if !tempo.Contains(p) {
			return fmt.Errorf("%w: preset %d (%v) outside the tempo slider range", ErrInvalid, i+1, p)
		}
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("%w: sampleRate must be positive (got %d)", ErrInvalid, c.SampleRate)
	}
	if c.BlockSize <= 0 {
		return fmt.Errorf("%w: blockSize must be positive (got %d)", ErrInvalid, c.BlockSize)
	}
	return nil
}
