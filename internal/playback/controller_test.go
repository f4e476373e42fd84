package playback

import (
	"errors"
	"io"
	"log"
	"sync/atomic"
	"testing"
	"time"
)

type fakeEngine struct {
	iterations atomic.Int64
	active     atomic.Int32
	maxActive  atomic.Int32
	releases   atomic.Int32
	failAfter  int64 // fail once, on this iteration
}

var errFake = errors.New("device lost")

func (f *fakeEngine) RunLoopIteration() error {
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		cur := f.maxActive.Load()
		if n <= cur || f.maxActive.CompareAndSwap(cur, n) {
			break
		}
	}
	time.Sleep(time.Millisecond)
	count := f.iterations.Add(1)
	if f.failAfter > 0 && count == f.failAfter {
		return errFake
	}
	return nil
}

func (f *fakeEngine) Release() error {
	f.releases.Add(1)
	return nil
}

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not reached before deadline")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestNewStartsPlaying(t *testing.T) {
	eng := &fakeEngine{}
	c, err := New(eng, quietLogger())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer c.Close()

	if c.State() != Running || !c.Playing() {
		t.Fatalf("state=%v playing=%v, want running", c.State(), c.Playing())
	}
	waitFor(t, func() bool { return eng.iterations.Load() > 0 })
}

func TestNewRejectsNilEngine(t *testing.T) {
	if _, err := New(nil, quietLogger()); err == nil {
		t.Fatalf("expected error for nil engine")
	}
}

func TestPauseStopsIterations(t *testing.T) {
	eng := &fakeEngine{}
	c, err := New(eng, quietLogger())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer c.Close()
	waitFor(t, func() bool { return eng.iterations.Load() > 2 })

	c.Pause()
	if c.State() != Stopped || c.Playing() {
		t.Fatalf("state=%v playing=%v after pause", c.State(), c.Playing())
	}
	if eng.active.Load() != 0 {
		t.Fatalf("loop still inside an iteration after pause returned")
	}
	before := eng.iterations.Load()
	time.Sleep(20 * time.Millisecond)
	if after := eng.iterations.Load(); after != before {
		t.Fatalf("iterations advanced while paused: %d -> %d", before, after)
	}

	if err := c.Resume(); err != nil {
		t.Fatalf("resume: %v", err)
	}
	waitFor(t, func() bool { return eng.iterations.Load() > before })
}

func TestPauseTwiceIsNoop(t *testing.T) {
	eng := &fakeEngine{}
	c, err := New(eng, quietLogger())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer c.Close()

	c.Pause()
	c.Pause()
	if c.State() != Stopped {
		t.Fatalf("state=%v want stopped", c.State())
	}
}

func TestResumeTwiceKeepsSingleLoop(t *testing.T) {
	eng := &fakeEngine{}
	c, err := New(eng, quietLogger())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer c.Close()

	for i := 0; i < 5; i++ {
		if err := c.Resume(); err != nil {
			t.Fatalf("resume: %v", err)
		}
	}
	waitFor(t, func() bool { return eng.iterations.Load() > 10 })
	if got := eng.maxActive.Load(); got != 1 {
		t.Fatalf("observed %d concurrent loops, want 1", got)
	}
}

func TestSetPausedToggles(t *testing.T) {
	eng := &fakeEngine{}
	c, err := New(eng, quietLogger())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer c.Close()

	if err := c.SetPaused(true); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if c.State() != Stopped {
		t.Fatalf("state=%v want stopped", c.State())
	}
	if err := c.SetPaused(false); err != nil {
		t.Fatalf("unpause: %v", err)
	}
	if c.State() != Running {
		t.Fatalf("state=%v want running", c.State())
	}
}

func TestCloseReleasesOnce(t *testing.T) {
	eng := &fakeEngine{}
	c, err := New(eng, quietLogger())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if got := eng.releases.Load(); got != 1 {
		t.Fatalf("release called %d times, want 1", got)
	}
	if c.State() != Stopped {
		t.Fatalf("state=%v after close", c.State())
	}
	if err := c.Resume(); !errors.Is(err, ErrClosed) {
		t.Fatalf("resume after close: err=%v want ErrClosed", err)
	}
}

func TestCloseWhilePaused(t *testing.T) {
	eng := &fakeEngine{}
	c, err := New(eng, quietLogger())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	c.Pause()
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if got := eng.releases.Load(); got != 1 {
		t.Fatalf("release called %d times, want 1", got)
	}
}

func TestLoopErrorEndsLoop(t *testing.T) {
	eng := &fakeEngine{failAfter: 3}
	c, err := New(eng, quietLogger())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer c.Close()

	waitFor(t, func() bool { return c.Err() != nil })
	if !errors.Is(c.Err(), errFake) {
		t.Fatalf("Err()=%v want %v", c.Err(), errFake)
	}
	if c.Playing() {
		t.Fatalf("playing flag still set after loop failure")
	}
	c.Pause()
	if got := eng.iterations.Load(); got != 3 {
		t.Fatalf("iterations=%d want 3", got)
	}
}

func TestResumeAfterLoopError(t *testing.T) {
	eng := &fakeEngine{failAfter: 1}
	c, err := New(eng, quietLogger())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer c.Close()

	waitFor(t, func() bool { return c.Err() != nil })
	if c.State() != Stopped {
		t.Fatalf("state=%v after loop failure, want stopped", c.State())
	}

	if err := c.SetPaused(false); err != nil {
		t.Fatalf("unpause: %v", err)
	}
	if c.State() != Running || !c.Playing() {
		t.Fatalf("state=%v playing=%v after resume", c.State(), c.Playing())
	}
	if c.Err() != nil {
		t.Fatalf("Err()=%v not cleared by resume", c.Err())
	}
	waitFor(t, func() bool { return eng.iterations.Load() > 3 })
	if got := eng.maxActive.Load(); got != 1 {
		t.Fatalf("observed %d concurrent loops, want 1", got)
	}
}
