package audio

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"
)

// Sink receives rendered mono blocks. Write blocks until the device can take
// more audio, which paces the playback loop.
type Sink interface {
	Write(block []float32) error
	Close() error
}

// Backend names accepted by Open.
const (
	BackendPortAudio = "portaudio"
	BackendOto       = "oto"
	BackendHeadless  = "headless"
)

// Config controls how a Sink is opened.
type Config struct {
	Backend    string
	DeviceName string
	SampleRate int
	BlockSize  int
	Log        *log.Logger
}

const (
	defaultSampleRate = 44_100
	defaultBlockSize  = 512
)

// Open creates the sink for cfg.Backend.
func Open(cfg Config) (Sink, error) {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = defaultSampleRate
	}
	if cfg.BlockSize <= 0 {
		cfg.BlockSize = defaultBlockSize
	}
	if cfg.Log == nil {
		cfg.Log = log.New(os.Stdout, "", log.LstdFlags)
	}

	switch strings.ToLower(cfg.Backend) {
	case "", BackendPortAudio:
		s, err := openPortAudio(cfg)
		if err != nil {
			return nil, err
		}
		cfg.Log.Printf("audio output on \"%s\" @ %d Hz, %d frames/block", s.device.Name, cfg.SampleRate, cfg.BlockSize)
		return s, nil
	case BackendOto:
		s, err := openOto(cfg)
		if err != nil {
			return nil, err
		}
		cfg.Log.Printf("audio output via oto @ %d Hz, %d frames/block", cfg.SampleRate, cfg.BlockSize)
		return s, nil
	case BackendHeadless:
		cfg.Log.Printf("audio output disabled, pacing %d frames/block @ %d Hz", cfg.BlockSize, cfg.SampleRate)
		return NewHeadless(cfg.SampleRate), nil
	default:
		return nil, fmt.Errorf("unknown audio backend %q", cfg.Backend)
	}
}

// BlockDuration is the wall time covered by frames samples.
func BlockDuration(frames, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(frames) * time.Second / time.Duration(sampleRate)
}
