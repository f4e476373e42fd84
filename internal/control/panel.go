package control

import (
	"errors"
	"fmt"
	"log"
	"math"
	"os"
	"sync"

	"github.com/guidoenr/metronome/internal/engine"
	"github.com/guidoenr/metronome/internal/playback"
	"github.com/guidoenr/metronome/internal/scale"
)

// Spin box limits for accent counts.
const (
	MinBeats = 1
	MaxBeats = 128
)

var (
	ErrUnknownPreset = errors.New("unknown tempo preset")
	ErrUnknownEvent  = errors.New("unknown event")
	ErrOutOfRange    = errors.New("value outside slider range")
)

// Engine receives parameter pushes.
type Engine interface {
	Address(ch engine.Channel) string
	PushFloat(address string, value float64) error
}

// Playback starts and stops the audio loop.
type Playback interface {
	SetPaused(paused bool) error
	State() playback.State
}

// Config wires a Panel.
type Config struct {
	Tempo     *scale.Mapper
	Volume    *scale.Mapper
	Accent    int
	SubAccent int
	Presets   []float64
	Engine    Engine
	Playback  Playback
	Log       *log.Logger
}

// Display is what the control surface renders.
type Display struct {
	Tempo      string   `json:"tempo"`
	BPM        string   `json:"bpm"`
	Volume     string   `json:"volume"`
	TempoStep  int      `json:"tempoStep"`
	VolumeStep int      `json:"volumeStep"`
	Accent     int      `json:"accent"`
	SubAccent  int      `json:"subAccent"`
	Paused     bool     `json:"paused"`
	Presets    []string `json:"presets"`
}

// Panel holds the control state and turns interactions into engine pushes,
// one push per interaction.
type Panel struct {
	mu sync.Mutex

	tempo    *scale.Mapper
	volume   *scale.Mapper
	presets  []float64
	engine   Engine
	playback Playback
	log      *log.Logger

	tempoStep  int
	volumeStep int
	accent     int
	subAccent  int
}

// New builds a panel and pushes the initial accent counts.
func New(cfg Config) (*Panel, error) {
	if cfg.Tempo == nil || cfg.Volume == nil {
		return nil, errors.New("control: tempo and volume scales are required")
	}
	if cfg.Engine == nil || cfg.Playback == nil {
		return nil, errors.New("control: engine and playback are required")
	}
	if cfg.Log == nil {
		cfg.Log = log.New(os.Stdout, "", log.LstdFlags)
	}

	p := &Panel{
		tempo:      cfg.Tempo,
		volume:     cfg.Volume,
		presets:    append([]float64(nil), cfg.Presets...),
		engine:     cfg.Engine,
		playback:   cfg.Playback,
		log:        cfg.Log,
		tempoStep:  clampStep(cfg.Tempo.ToStep()),
		volumeStep: clampStep(cfg.Volume.ToStep()),
		accent:     clampBeats(cfg.Accent),
		subAccent:  clampBeats(cfg.SubAccent),
	}

	if err := p.push(engine.ChannelAccent, float64(p.accent)); err != nil {
		return nil, err
	}
	if err := p.push(engine.ChannelSub, float64(p.subAccent)); err != nil {
		return nil, err
	}
	return p, nil
}

// Apply dispatches ev and returns the refreshed display.
func (p *Panel) Apply(ev Event) (Display, error) {
	var err error
	switch ev.Kind {
	case EventTempoStep:
		err = p.moveTempo(ev.Step, ev.Relative)
	case EventVolumeStep:
		err = p.moveVolume(ev.Step, ev.Relative)
	case EventTempoPreset:
		err = p.SelectPreset(ev.Preset)
	case EventTempoValue:
		err = p.SetTempo(ev.Value)
	case EventAccent:
		err = p.changeAccent(&p.accent, engine.ChannelAccent, ev.Count, ev.Relative)
	case EventSubAccent:
		err = p.changeAccent(&p.subAccent, engine.ChannelSub, ev.Count, ev.Relative)
	case EventPause:
		err = p.SetPaused(ev.Paused)
	case EventTogglePause:
		err = p.SetPaused(!p.Display().Paused)
	default:
		err = fmt.Errorf("%w: %s", ErrUnknownEvent, ev.Kind)
	}
	return p.Display(), err
}

// SetTempoStep handles a tempo slider move.
func (p *Panel) SetTempoStep(step int) error {
	return p.moveTempo(step, false)
}

func (p *Panel) moveTempo(step int, relative bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if relative {
		step += p.tempoStep
	}
	p.tempoStep = clampStep(step)
	return p.push(engine.ChannelTempo, p.tempo.SetFromStep(p.tempoStep))
}

// SetVolumeStep handles a volume slider move. Step 0 is silence.
func (p *Panel) SetVolumeStep(step int) error {
	return p.moveVolume(step, false)
}

func (p *Panel) moveVolume(step int, relative bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if relative {
		step += p.volumeStep
	}
	p.volumeStep = clampStep(step)
	value := 0.0
	if p.volumeStep > 0 {
		value = p.volume.SetFromStep(p.volumeStep)
	} else {
		p.volume.SetValue(0)
	}
	return p.push(engine.ChannelVolume, value)
}

// SetTempo sets the beat period directly, restarts the bar and moves the
// slider to match without emitting a slider change.
func (p *Panel) SetTempo(periodMs float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.tempo.Contains(periodMs) {
		return fmt.Errorf("%w: tempo %v ms not in [%s, %s]", ErrOutOfRange, periodMs,
			Format(math.Min(p.tempo.Min(), p.tempo.Max())), Format(math.Max(p.tempo.Min(), p.tempo.Max())))
	}
	p.tempo.SetValue(periodMs)
	p.tempoStep = clampStep(p.tempo.ToStep())
	return p.push(engine.ChannelBang, periodMs)
}

// SelectPreset presses tempo button i.
func (p *Panel) SelectPreset(i int) error {
	if i < 0 || i >= len(p.presets) {
		return fmt.Errorf("%w: %d", ErrUnknownPreset, i)
	}
	return p.SetTempo(p.presets[i])
}

// SetAccent handles the accent spin box.
func (p *Panel) SetAccent(n int) error {
	return p.changeAccent(&p.accent, engine.ChannelAccent, n, false)
}

// SetSubAccent handles the sub-accent spin box.
func (p *Panel) SetSubAccent(n int) error {
	return p.changeAccent(&p.subAccent, engine.ChannelSub, n, false)
}

func (p *Panel) changeAccent(field *int, ch engine.Channel, n int, relative bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if relative {
		n += *field
	}
	*field = clampBeats(n)
	return p.push(ch, float64(*field))
}

// SetPaused handles the pause check box. It blocks while the audio loop
// winds down.
func (p *Panel) SetPaused(paused bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.playback.SetPaused(paused); err != nil {
		return fmt.Errorf("set paused=%t: %w", paused, err)
	}
	return nil
}

// Display returns the strings and positions the surface should show. Paused
// follows the playback state, so a loop that stopped on its own reads as paused.
func (p *Panel) Display() Display {
	p.mu.Lock()
	defer p.mu.Unlock()

	presets := make([]string, len(p.presets))
	for i, v := range p.presets {
		presets[i] = Format(v)
	}
	return Display{
		Tempo:      Format(p.tempo.Value()),
		BPM:        Format(BPM(p.tempo.Value())),
		Volume:     Format(p.volume.Value()),
		TempoStep:  p.tempoStep,
		VolumeStep: p.volumeStep,
		Accent:     p.accent,
		SubAccent:  p.subAccent,
		Paused:     p.playback.State() == playback.Stopped,
		Presets:    presets,
	}
}

func (p *Panel) push(ch engine.Channel, value float64) error {
	if err := p.engine.PushFloat(p.engine.Address(ch), value); err != nil {
		p.log.Printf("push %s=%v failed: %v", ch, value, err)
		return fmt.Errorf("push %s: %w", ch, err)
	}
	return nil
}

func clampStep(step int) int {
	if step < 0 {
		return 0
	}
	if step > scale.StepCount {
		return scale.StepCount
	}
	return step
}

func clampBeats(n int) int {
	if n < MinBeats {
		return MinBeats
	}
	if n > MaxBeats {
		return MaxBeats
	}
	return n
}
