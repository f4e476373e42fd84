package meter

import (
	"math"
	"math/cmplx"
	"sync"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
)

// Reading is a snapshot of the output level.
type Reading struct {
	PeakDB    float64 `json:"peakDb"`
	RMSDB     float64 `json:"rmsDb"`
	Frequency float64 `json:"frequency"`
}

// Config controls Meter behavior.
type Config struct {
	SampleRate float64
	// FloorDB is the lowest reported level.
	FloorDB float64
	// Gate is the linear peak above which a block is treated as a click and
	// analysed for pitch.
	Gate float64
}

// Meter follows the level of rendered audio blocks. Update is called from the
// audio goroutine, Reading from anywhere.
type Meter struct {
	sampleRate float64
	floor      float64
	gate       float64

	mu        sync.Mutex
	peak      float64
	rms       float64
	frequency float64

	buffer []complex128
	window []float64
}

// New creates a Meter with defaults for a 44.1 kHz stream.
func New(cfg Config) *Meter {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 44_100
	}
	if cfg.FloorDB >= 0 {
		cfg.FloorDB = -96
	}
	if cfg.Gate <= 0 {
		cfg.Gate = 1e-3
	}
	return &Meter{
		sampleRate: cfg.SampleRate,
		floor:      cfg.FloorDB,
		gate:       cfg.Gate,
	}
}

// Update folds one block into the running level.
func (m *Meter) Update(block []float32) {
	if len(block) == 0 {
		return
	}

	peak := 0.0
	sumSq := 0.0
	for _, s := range block {
		v := math.Abs(float64(s))
		if v > peak {
			peak = v
		}
		sumSq += v * v
	}
	rms := math.Sqrt(sumSq / float64(len(block)))

	var freq float64
	analysed := peak > m.gate
	if analysed {
		freq = m.dominantFrequency(block)
	}

	m.mu.Lock()
	m.peak = envelope(m.peak, peak, 0.2, 0.7)
	m.rms = envelope(m.rms, rms, 0.5, 0.85)
	if analysed {
		m.frequency = freq
	}
	m.mu.Unlock()
}

// Reading returns the current level in dBFS and the pitch of the last click.
func (m *Meter) Reading() Reading {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Reading{
		PeakDB:    m.decibels(m.peak),
		RMSDB:     m.decibels(m.rms),
		Frequency: m.frequency,
	}
}

func (m *Meter) decibels(v float64) float64 {
	if v <= 0 {
		return m.floor
	}
	db := 20 * math.Log10(v)
	if db < m.floor {
		return m.floor
	}
	return db
}

func (m *Meter) dominantFrequency(block []float32) float64 {
	size := nextPow2(len(block))
	m.ensureWorkspace(size)

	buffer := m.buffer[:size]
	for i := range buffer {
		if i < len(block) {
			buffer[i] = complex(float64(block[i])*m.window[i], 0)
			continue
		}
		buffer[i] = 0
	}

	spectrum := fft.FFT(buffer)
	best, bestMag := 0, 0.0
	for i := 1; i < size/2; i++ {
		if mag := cmplx.Abs(spectrum[i]); mag > bestMag {
			best, bestMag = i, mag
		}
	}
	return float64(best) * m.sampleRate / float64(size)
}

func (m *Meter) ensureWorkspace(size int) {
	if len(m.buffer) != size {
		m.buffer = make([]complex128, size)
	}
	if len(m.window) != size {
		m.window = window.Hann(size)
	}
}

// envelope moves toward rising input with attack and decays by release.
func envelope(current, input, attack, release float64) float64 {
	if input > current {
		return current*attack + input*(1-attack)
	}
	next := current * release
	if next < input {
		return input
	}
	return next
}

func nextPow2(n int) int {
	if n <= 0 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	return n + 1
}
