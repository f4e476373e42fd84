package app

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"

	"github.com/guidoenr/metronome/internal/audio"
	"github.com/guidoenr/metronome/internal/config"
	"github.com/guidoenr/metronome/internal/control"
	"github.com/guidoenr/metronome/internal/engine"
	"github.com/guidoenr/metronome/internal/meter"
	"github.com/guidoenr/metronome/internal/playback"
	"github.com/guidoenr/metronome/internal/web"
)

// Config configures the application runtime.
type Config struct {
	Settings config.Config
	// Sink overrides the audio backend named in Settings.
	Sink          audio.Sink
	Keyboard      bool
	ShowStatusBar bool
	StatusRate    time.Duration
	TracePath     string
	Out           io.Writer
	Log           *log.Logger
}

// App ties together the control panel, the click engine and its playback loop.
type App struct {
	cfg    Config
	log    *log.Logger
	out    io.Writer
	meter  *meter.Meter
	player *playback.Controller
	panel  *control.Panel
	web    *web.Server
	trace  *tracer
	events chan control.Event
	width  int

	closeOnce sync.Once
	closeErr  error
}

// New constructs the application. Playback starts immediately.
func New(cfg Config) (*App, error) {
	if cfg.Log == nil {
		cfg.Log = log.New(os.Stdout, "", log.LstdFlags)
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	if cfg.StatusRate <= 0 {
		cfg.StatusRate = 100 * time.Millisecond
	}
	settings := cfg.Settings
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	tempo, err := settings.Tempo.Mapper()
	if err != nil {
		return nil, fmt.Errorf("tempo scale: %w", err)
	}
	volume, err := settings.Volume.Mapper()
	if err != nil {
		return nil, fmt.Errorf("volume scale: %w", err)
	}

	sink := cfg.Sink
	if sink == nil {
		sink, err = audio.Open(audio.Config{
			Backend:    settings.Backend,
			DeviceName: settings.Device,
			SampleRate: settings.SampleRate,
			BlockSize:  settings.BlockSize,
			Log:        cfg.Log,
		})
		if err != nil {
			return nil, fmt.Errorf("audio output: %w", err)
		}
	}

	m := meter.New(meter.Config{SampleRate: float64(settings.SampleRate)})
	eng, err := engine.Open(engine.Config{
		SampleRate: settings.SampleRate,
		BlockSize:  settings.BlockSize,
		Volume:     volume.Value(),
		Sink:       sink,
		Meter:      m,
		Log:        cfg.Log,
	})
	if err != nil {
		_ = sink.Close()
		return nil, fmt.Errorf("open engine: %w", err)
	}

	player, err := playback.New(eng, cfg.Log)
	if err != nil {
		_ = eng.Release()
		return nil, err
	}

	panel, err := control.New(control.Config{
		Tempo:     tempo,
		Volume:    volume,
		Accent:    settings.Accent,
		SubAccent: settings.SubAccent,
		Presets:   settings.Presets,
		Engine:    eng,
		Playback:  player,
		Log:       cfg.Log,
	})
	if err != nil {
		_ = player.Close()
		return nil, err
	}

	a := &App{
		cfg:    cfg,
		log:    cfg.Log,
		out:    cfg.Out,
		meter:  m,
		player: player,
		panel:  panel,
		trace:  newTracer(cfg.TracePath, cfg.Log),
		events: make(chan control.Event, 32),
		width:  80,
	}
	if settings.WebAddr != "" {
		a.web = web.NewServer(a, a.events, cfg.Log)
	}
	a.log.Printf("patch %s playing: tempo %s ms, volume %s", eng.Handle(), control.Format(tempo.Value()), control.Format(volume.Value()))
	return a, nil
}

// Events accepts control events from any goroutine.
func (a *App) Events() chan<- control.Event {
	return a.events
}

// Panel exposes the control state.
func (a *App) Panel() *control.Panel {
	return a.panel
}

// Status implements web.StatusSource.
func (a *App) Status() web.Status {
	return web.Status{
		Display: a.panel.Display(),
		Level:   a.meter.Reading(),
		State:   a.player.State().String(),
	}
}

// Run handles control events until ctx is cancelled or a quit event arrives.
// It is the only goroutine that applies events to the panel.
func (a *App) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	ticker := time.NewTicker(a.cfg.StatusRate)
	defer ticker.Stop()

	if a.cfg.Keyboard {
		a.startInputListener(runCtx)
	}

	webErr := make(chan error, 1)
	if a.web != nil {
		go func() {
			webErr <- a.web.ListenAndServe(runCtx, a.cfg.Settings.WebAddr)
		}()
	}

	a.ensureWidth()
	for {
		select {
		case <-ctx.Done():
			a.endStatus()
			return ctx.Err()
		case err := <-webErr:
			if err != nil {
				a.endStatus()
				return fmt.Errorf("web server: %w", err)
			}
		case ev := <-a.events:
			if ev.Kind == control.EventQuit {
				a.endStatus()
				return nil
			}
			a.handle(ev)
		case <-ticker.C:
			a.ensureWidth()
			a.drawStatus()
			if a.web != nil {
				a.web.Broadcast(a.Status())
			}
		}
	}
}

func (a *App) handle(ev control.Event) {
	start := time.Now()
	if _, err := a.panel.Apply(ev); err != nil {
		a.log.Printf("%s: %v", ev, err)
	}
	a.trace.record(ev.String(), time.Since(start))
	a.drawStatus()
}

// Close stops playback and releases the engine.
func (a *App) Close() error {
	a.closeOnce.Do(func() {
		a.closeErr = a.player.Close()
		if err := a.trace.Close(); err != nil && a.closeErr == nil {
			a.closeErr = err
		}
	})
	return a.closeErr
}

func (a *App) statusText() string {
	d := a.panel.Display()
	r := a.meter.Reading()
	state := "playing"
	if d.Paused {
		state = "paused"
	}
	text := fmt.Sprintf("tempo %s ms | %s bpm | vol %s | accent %d/%d | %s | %.1f dBFS",
		d.Tempo, d.BPM, d.Volume, d.Accent, d.SubAccent, state, r.PeakDB)
	if r.Frequency > 0 && !d.Paused {
		text += fmt.Sprintf(" @ %.0f Hz", r.Frequency)
	}
	return text
}

func (a *App) drawStatus() {
	if !a.cfg.ShowStatusBar {
		return
	}
	fmt.Fprint(a.out, "\r"+statusBar(a.statusText(), a.width-1))
}

func (a *App) endStatus() {
	if a.cfg.ShowStatusBar {
		fmt.Fprintln(a.out)
	}
}

func (a *App) ensureWidth() {
	fd := int(os.Stdout.Fd())
	if fd < 0 || !term.IsTerminal(fd) {
		return
	}
	if w, _, err := term.GetSize(fd); err == nil && w > 0 {
		a.width = w
	}
}

func statusBar(text string, width int) string {
	if width <= 0 {
		return text
	}
	if len(text) >= width {
		return text[:width]
	}
	padding := width - len(text)
	return text + strings.Repeat(" ", padding)
}
