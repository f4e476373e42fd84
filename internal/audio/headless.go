package audio

import (
	"sync/atomic"
	"time"
)

// Headless discards audio but sleeps for each block's duration so the
// playback loop runs at device pace without hardware.
type Headless struct {
	sampleRate int
	now        func() time.Time
	sleep      func(time.Duration)
	next       time.Time
	frames     atomic.Int64
	closed     atomic.Bool
}

// NewHeadless returns a pacing sink for sampleRate.
func NewHeadless(sampleRate int) *Headless {
	if sampleRate <= 0 {
		sampleRate = defaultSampleRate
	}
	return &Headless{
		sampleRate: sampleRate,
		now:        time.Now,
		sleep:      time.Sleep,
	}
}

func (h *Headless) Write(block []float32) error {
	if h.closed.Load() {
		return errSinkClosed
	}
	dur := BlockDuration(len(block), h.sampleRate)
	now := h.now()
	if h.next.IsZero() || now.Sub(h.next) > dur {
		// fell behind by more than a block; resync instead of bursting
		h.next = now
	}
	h.next = h.next.Add(dur)
	if wait := h.next.Sub(now); wait > 0 {
		h.sleep(wait)
	}
	h.frames.Add(int64(len(block)))
	return nil
}

// Frames reports how many frames were accepted.
func (h *Headless) Frames() int64 { return h.frames.Load() }

func (h *Headless) Close() error {
	h.closed.Store(true)
	return nil
}
