package playback

import (
	"errors"
	"log"
	"os"
	"sync"
	"sync/atomic"
)

// ErrClosed is returned when resuming a controller whose engine was released.
var ErrClosed = errors.New("playback controller closed")

// Engine is the audio producer driven by the playback loop.
type Engine interface {
	// RunLoopIteration produces one block of audio. It must return within
	// roughly one block duration so a pause is observed promptly.
	RunLoopIteration() error
	// Release tears the engine down. The controller calls it once.
	Release() error
}

// State describes whether the audio loop is alive.
type State int

const (
	Stopped State = iota
	Running
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Running:
		return "running"
	default:
		return "unknown"
	}
}

// Controller owns the goroutine that runs the engine loop.
type Controller struct {
	engine Engine
	log    *log.Logger

	mu      sync.Mutex
	playing atomic.Bool
	done    chan struct{}
	closed  bool

	releaseOnce sync.Once
	releaseErr  error

	errMu   sync.Mutex
	loopErr error
}

// New creates a controller and starts the loop immediately.
func New(engine Engine, logger *log.Logger) (*Controller, error) {
	if engine == nil {
		return nil, errors.New("playback: nil engine")
	}
	if logger == nil {
		logger = log.New(os.Stdout, "", log.LstdFlags)
	}
	c := &Controller{
		engine: engine,
		log:    logger,
	}
	if err := c.Resume(); err != nil {
		return nil, err
	}
	return c, nil
}

// Resume spawns the loop if it is not already running.
func (c *Controller) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.done != nil {
		if c.playing.Load() {
			c.log.Printf("resume ignored: playback already running")
			return nil
		}
		// the loop died on an engine error; join it before starting over
		<-c.done
		c.done = nil
	}

	c.setErr(nil)
	c.playing.Store(true)
	done := make(chan struct{})
	c.done = done
	go c.loop(done)
	return nil
}

// Pause clears the playing flag and blocks until the loop goroutine exits.
func (c *Controller) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

func (c *Controller) stopLocked() {
	if c.done == nil {
		c.log.Printf("pause ignored: playback already stopped")
		return
	}
	c.playing.Store(false)
	<-c.done
	c.done = nil
}

// SetPaused pauses or resumes depending on paused.
func (c *Controller) SetPaused(paused bool) error {
	if paused {
		c.Pause()
		return nil
	}
	return c.Resume()
}

// State reports Running while a loop goroutine is owned and still playing.
// A loop that ended on an engine error reports Stopped.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done != nil && c.playing.Load() {
		return Running
	}
	return Stopped
}

// Playing reports the flag the loop polls.
func (c *Controller) Playing() bool {
	return c.playing.Load()
}

// Err returns the error that ended the most recent loop, if any.
func (c *Controller) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.loopErr
}

// Close stops the loop and releases the engine. Later calls return the first
// result.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.done != nil {
		c.stopLocked()
	}
	c.closed = true
	c.mu.Unlock()

	c.releaseOnce.Do(func() {
		c.releaseErr = c.engine.Release()
	})
	return c.releaseErr
}

func (c *Controller) loop(done chan struct{}) {
	defer close(done)
	for c.playing.Load() {
		if err := c.engine.RunLoopIteration(); err != nil {
			c.log.Printf("audio loop stopped: %v", err)
			c.playing.Store(false)
			c.setErr(err)
			return
		}
	}
}

func (c *Controller) setErr(err error) {
	c.errMu.Lock()
	c.loopErr = err
	c.errMu.Unlock()
}
