package audio

import (
	"encoding/binary"
	"errors"
	"io"
	"math"
	"sync"
)

var errSinkClosed = errors.New("audio sink closed")

// fifo is a bounded sample ring. Writers block while it is full; the reader
// side never blocks and pads with silence, so a pull-based device keeps
// running while playback is paused.
type fifo struct {
	mu     sync.Mutex
	cond   *sync.Cond
	buffer []float32
	head   int
	size   int
	closed bool
}

func newFIFO(capacity int) *fifo {
	if capacity <= 0 {
		capacity = defaultBlockSize
	}
	f := &fifo{buffer: make([]float32, capacity)}
	f.cond = sync.NewCond(&f.mu)
	return f
}

func (f *fifo) Write(samples []float32) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for len(samples) > 0 {
		for f.size == len(f.buffer) && !f.closed {
			f.cond.Wait()
		}
		if f.closed {
			return errSinkClosed
		}

		tail := (f.head + f.size) % len(f.buffer)
		free := len(f.buffer) - f.size
		end := tail + free
		if end > len(f.buffer) {
			end = len(f.buffer)
		}
		n := copy(f.buffer[tail:end], samples)
		f.size += n
		samples = samples[n:]
		f.cond.Broadcast()
	}
	return nil
}

// Read fills p with little-endian float32 frames.
func (f *fifo) Read(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed && f.size == 0 {
		return 0, io.EOF
	}

	frames := len(p) / 4
	for i := 0; i < frames; i++ {
		var v float32
		if f.size > 0 {
			v = f.buffer[f.head]
			f.head = (f.head + 1) % len(f.buffer)
			f.size--
		}
		binary.LittleEndian.PutUint32(p[4*i:], math.Float32bits(v))
	}
	f.cond.Broadcast()
	return frames * 4, nil
}

// Buffered reports queued samples.
func (f *fifo) Buffered() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.size
}

func (f *fifo) Close() {
	f.mu.Lock()
	f.closed = true
	f.cond.Broadcast()
	f.mu.Unlock()
}
