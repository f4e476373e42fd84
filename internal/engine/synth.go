package engine

import (
	"math"

	"github.com/mjibson/go-dsp/window"
)

type clickKind int

const (
	clickAccent clickKind = iota
	clickSub
	clickPlain
)

// Click pitches and length, chosen so the three beat kinds are easy to tell apart.
var clickPitch = [...]float64{
	clickAccent: 1760,
	clickSub:    1320,
	clickPlain:  880,
}

const clickSeconds = 0.03

// clicker renders the metronome pulse. It is owned by the audio goroutine.
type clicker struct {
	sampleRate float64
	volume     float64
	periodMs   float64
	accent     int
	sub        int
	muted      bool

	beat      int
	untilNext int
	voice     []float32
	voicePos  int

	clicks [3][]float32
}

func newClicker(sampleRate int, volume float64) *clicker {
	c := &clicker{
		sampleRate: float64(sampleRate),
		volume:     volume,
		periodMs:   1000,
		accent:     1,
		sub:        1,
	}
	n := int(clickSeconds * c.sampleRate)
	if n < 2 {
		n = 2
	}
	shape := window.Hann(n)
	for kind, pitch := range clickPitch {
		buf := make([]float32, n)
		for i := range buf {
			buf[i] = float32(shape[i] * math.Sin(2*math.Pi*pitch*float64(i)/c.sampleRate))
		}
		c.clicks[kind] = buf
	}
	return c
}

func (c *clicker) periodSamples() int {
	n := int(c.periodMs / 1000 * c.sampleRate)
	if n < 1 {
		return 1
	}
	return n
}

// setPeriod changes the tempo without restarting the bar. A shorter period
// pulls the next beat in.
func (c *clicker) setPeriod(ms float64) {
	if ms <= 0 || math.IsNaN(ms) || math.IsInf(ms, 0) {
		return
	}
	c.periodMs = ms
	if p := c.periodSamples(); c.untilNext > p {
		c.untilNext = p
	}
}

// fire changes the tempo and starts a new bar on the next sample.
func (c *clicker) fire(ms float64) {
	c.setPeriod(ms)
	c.beat = 0
	c.untilNext = 0
}

func (c *clicker) setVolume(v float64) {
	if v < 0 || math.IsNaN(v) {
		v = 0
	}
	c.volume = v
}

func (c *clicker) setAccent(n float64) { c.accent = beatCount(n) }
func (c *clicker) setSub(n float64)    { c.sub = beatCount(n) }

// maxBeats bounds accent counts pushed straight at the engine.
const maxBeats = 128

func beatCount(n float64) int {
	if math.IsNaN(n) || n < 1 {
		return 1
	}
	if n > maxBeats {
		return maxBeats
	}
	return int(n)
}

func (c *clicker) kind(beat int) clickKind {
	switch {
	case beat%c.accent == 0:
		return clickAccent
	case beat%c.sub == 0:
		return clickSub
	default:
		return clickPlain
	}
}

func (c *clicker) render(out []float32) {
	gain := float32(c.volume)
	if c.muted {
		gain = 0
	}
	for i := range out {
		if c.untilNext <= 0 {
			c.voice = c.clicks[c.kind(c.beat)]
			c.voicePos = 0
			c.beat++
			c.untilNext += c.periodSamples()
		}
		var s float32
		if c.voice != nil {
			s = c.voice[c.voicePos] * gain
			c.voicePos++
			if c.voicePos == len(c.voice) {
				c.voice = nil
			}
		}
		out[i] = s
		c.untilNext--
	}
}
