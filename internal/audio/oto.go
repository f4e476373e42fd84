package audio

import (
	"fmt"
	"sync"

	"github.com/ebitengine/oto/v3"
)

// oto allows a single context per process.
var (
	otoOnce sync.Once
	otoCtx  *oto.Context
	otoErr  error
)

func otoContext(cfg Config) (*oto.Context, error) {
	otoOnce.Do(func() {
		ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   cfg.SampleRate,
			ChannelCount: 1,
			Format:       oto.FormatFloat32LE,
			BufferSize:   BlockDuration(cfg.BlockSize, cfg.SampleRate),
		})
		if err != nil {
			otoErr = fmt.Errorf("cannot create oto context: %w", err)
			return
		}
		<-ready
		otoCtx = ctx
	})
	return otoCtx, otoErr
}

// otoSink feeds an oto player from a bounded fifo.
type otoSink struct {
	player *oto.Player
	fifo   *fifo

	closeOnce sync.Once
	closeErr  error
}

func openOto(cfg Config) (*otoSink, error) {
	ctx, err := otoContext(cfg)
	if err != nil {
		return nil, err
	}
	if err := ctx.Resume(); err != nil {
		return nil, fmt.Errorf("resume oto context: %w", err)
	}

	f := newFIFO(cfg.BlockSize * 2)
	player := ctx.NewPlayer(f)
	player.Play()
	return &otoSink{player: player, fifo: f}, nil
}

func (s *otoSink) Write(block []float32) error {
	return s.fifo.Write(block)
}

func (s *otoSink) Close() error {
	s.closeOnce.Do(func() {
		s.fifo.Close()
		if err := s.player.Close(); err != nil {
			s.closeErr = fmt.Errorf("cannot close oto player: %w", err)
		}
	})
	return s.closeErr
}
