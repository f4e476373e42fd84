package audio

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/gordonklaus/portaudio"
)

var (
	paMu   sync.Mutex
	paRefs int
)

// Initialize brings PortAudio up. Calls are reference counted and must be
// balanced by Terminate.
func Initialize() error {
	paMu.Lock()
	defer paMu.Unlock()
	if paRefs == 0 {
		if err := portaudio.Initialize(); err != nil {
			return err
		}
	}
	paRefs++
	return nil
}

// Terminate releases one Initialize reference.
func Terminate() {
	paMu.Lock()
	defer paMu.Unlock()
	if paRefs == 0 {
		return
	}
	paRefs--
	if paRefs == 0 {
		_ = portaudio.Terminate()
	}
}

// portAudioSink writes blocks to a blocking PortAudio output stream.
type portAudioSink struct {
	stream *portaudio.Stream
	device *portaudio.DeviceInfo
	out    []float32

	closeOnce sync.Once
	closeErr  error
}

func openPortAudio(cfg Config) (*portAudioSink, error) {
	if err := Initialize(); err != nil {
		return nil, fmt.Errorf("initialize portaudio: %w", err)
	}

	device, err := findOutputDevice(cfg.DeviceName)
	if err != nil {
		Terminate()
		return nil, err
	}

	sink := &portAudioSink{
		device: device,
		out:    make([]float32, cfg.BlockSize),
	}

	stream, err := portaudio.OpenStream(portaudio.StreamParameters{
		Output: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: 1,
			Latency:  device.DefaultLowOutputLatency,
		},
		SampleRate:      float64(cfg.SampleRate),
		FramesPerBuffer: cfg.BlockSize,
	}, sink.out)
	if err != nil {
		Terminate()
		return nil, fmt.Errorf("open stream: %w", err)
	}
	sink.stream = stream

	if err := stream.Start(); err != nil {
		_ = stream.Close()
		Terminate()
		return nil, fmt.Errorf("start stream: %w", err)
	}
	return sink, nil
}

func (s *portAudioSink) Write(block []float32) error {
	n := copy(s.out, block)
	for i := n; i < len(s.out); i++ {
		s.out[i] = 0
	}
	if err := s.stream.Write(); err != nil && !errors.Is(err, portaudio.OutputUnderflowed) {
		return fmt.Errorf("write stream: %w", err)
	}
	return nil
}

func (s *portAudioSink) Close() error {
	s.closeOnce.Do(func() {
		defer Terminate()
		if err := s.stream.Stop(); err != nil && !errorsIsInvalidStreamState(err) {
			_ = s.stream.Close()
			s.closeErr = fmt.Errorf("stop stream: %w", err)
			return
		}
		if err := s.stream.Close(); err != nil {
			s.closeErr = fmt.Errorf("close stream: %w", err)
		}
	})
	return s.closeErr
}

// errorsIsInvalidStreamState checks if the provided error stems from stopping an already stopped stream.
func errorsIsInvalidStreamState(err error) bool {
	if err == nil {
		return false
	}
	const invalidStateMsg = "PaErrorCode -9986"
	return strings.Contains(err.Error(), invalidStateMsg)
}
