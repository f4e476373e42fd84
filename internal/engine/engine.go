package engine

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/guidoenr/metronome/internal/audio"
	"github.com/guidoenr/metronome/internal/meter"
)

// Channel is the logical receiver name of a pushed parameter.
type Channel string

const (
	ChannelVolume Channel = "vol"
	ChannelPlay   Channel = "play"
	ChannelTempo  Channel = "met"
	ChannelBang   Channel = "bang"
	ChannelAccent Channel = "accent"
	ChannelSub    Channel = "sub"
)

var channels = map[Channel]bool{
	ChannelVolume: true,
	ChannelPlay:   true,
	ChannelTempo:  true,
	ChannelBang:   true,
	ChannelAccent: true,
	ChannelSub:    true,
}

var (
	// ErrReleased is returned by every call after Release.
	ErrReleased = errors.New("engine released")
	// ErrUnknownAddress is returned by PushFloat for addresses outside this patch.
	ErrUnknownAddress = errors.New("unknown receiver address")
)

// Config controls how an Engine is opened.
type Config struct {
	SampleRate int
	BlockSize  int
	Volume     float64
	Sink       audio.Sink
	Meter      *meter.Meter
	Log        *log.Logger
}

type message struct {
	channel Channel
	value   float64
}

// Engine is an open metronome patch. PushFloat may be called from any
// goroutine; RunLoopIteration belongs to the playback goroutine.
type Engine struct {
	handle string
	sink   audio.Sink
	meter  *meter.Meter
	log    *log.Logger

	mu    sync.Mutex
	queue []message

	synth    *clicker
	block    []float32
	pending  []message
	released atomic.Bool

	releaseOnce sync.Once
	releaseErr  error
}

var nextHandle atomic.Int64

func init() {
	nextHandle.Store(1000)
}

// Open creates a patch writing to cfg.Sink at the given initial volume.
func Open(cfg Config) (*Engine, error) {
	if cfg.Sink == nil {
		return nil, errors.New("engine: nil sink")
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 44_100
	}
	if cfg.BlockSize <= 0 {
		cfg.BlockSize = 512
	}
	if cfg.Log == nil {
		cfg.Log = log.New(os.Stdout, "", log.LstdFlags)
	}

	e := &Engine{
		handle: strconv.FormatInt(nextHandle.Add(1), 10),
		sink:   cfg.Sink,
		meter:  cfg.Meter,
		log:    cfg.Log,
		synth:  newClicker(cfg.SampleRate, cfg.Volume),
		block:  make([]float32, cfg.BlockSize),
	}
	return e, nil
}

// Handle is the patch instance prefix used in receiver addresses.
func (e *Engine) Handle() string { return e.handle }

// Address returns the receiver address of ch in this patch.
func (e *Engine) Address(ch Channel) string { return e.handle + "-" + string(ch) }

// PushFloat queues value for the receiver at address. Messages are applied
// in send order at the start of the next loop iteration.
func (e *Engine) PushFloat(address string, value float64) error {
	if e.released.Load() {
		return ErrReleased
	}
	ch, ok := e.channel(address)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownAddress, address)
	}
	e.mu.Lock()
	e.queue = append(e.queue, message{channel: ch, value: value})
	e.mu.Unlock()
	return nil
}

func (e *Engine) channel(address string) (Channel, bool) {
	name, ok := strings.CutPrefix(address, e.handle+"-")
	if !ok {
		return "", false
	}
	ch := Channel(name)
	return ch, channels[ch]
}

// RunLoopIteration applies queued messages, renders one block and hands it
// to the sink.
func (e *Engine) RunLoopIteration() error {
	if e.released.Load() {
		return ErrReleased
	}

	e.mu.Lock()
	e.pending, e.queue = e.queue, e.pending[:0]
	e.mu.Unlock()
	for _, msg := range e.pending {
		e.apply(msg)
	}

	e.synth.render(e.block)
	if e.meter != nil {
		e.meter.Update(e.block)
	}
	if err := e.sink.Write(e.block); err != nil {
		return fmt.Errorf("sink: %w", err)
	}
	return nil
}

func (e *Engine) apply(msg message) {
	switch msg.channel {
	case ChannelVolume:
		e.synth.setVolume(msg.value)
	case ChannelPlay:
		e.synth.muted = msg.value == 0
	case ChannelTempo:
		e.synth.setPeriod(msg.value)
	case ChannelBang:
		e.synth.fire(msg.value)
	case ChannelAccent:
		e.synth.setAccent(msg.value)
	case ChannelSub:
		e.synth.setSub(msg.value)
	}
}

// Release closes the sink. Only the first call has any effect.
func (e *Engine) Release() error {
	e.releaseOnce.Do(func() {
		e.released.Store(true)
		if err := e.sink.Close(); err != nil {
			e.releaseErr = fmt.Errorf("close sink: %w", err)
		}
		e.log.Printf("patch %s released", e.handle)
	})
	return e.releaseErr
}
