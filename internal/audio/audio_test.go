package audio

import (
	"encoding/binary"
	"errors"
	"io"
	"log"
	"math"
	"testing"
	"time"

	"github.com/gordonklaus/portaudio"
)

func readFloats(t *testing.T, f *fifo, n int) []float32 {
	t.Helper()
	p := make([]byte, n*4)
	got, err := f.Read(p)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got != len(p) {
		t.Fatalf("read %d bytes want %d", got, len(p))
	}
	out := make([]float32, n)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(p[4*i:]))
	}
	return out
}

func TestFIFOPreservesOrderAcrossWrap(t *testing.T) {
	f := newFIFO(4)
	if err := f.Write([]float32{1, 2, 3}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := readFloats(t, f, 2); got[0] != 1 || got[1] != 2 {
		t.Fatalf("first read=%v", got)
	}
	if err := f.Write([]float32{4, 5, 6}); err != nil {
		t.Fatalf("write: %v", err)
	}
	got := readFloats(t, f, 4)
	want := []float32{3, 4, 5, 6}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("read=%v want=%v", got, want)
		}
	}
}

func TestFIFOPadsWithSilence(t *testing.T) {
	f := newFIFO(8)
	if err := f.Write([]float32{0.5}); err != nil {
		t.Fatalf("write: %v", err)
	}
	got := readFloats(t, f, 3)
	if got[0] != 0.5 || got[1] != 0 || got[2] != 0 {
		t.Fatalf("read=%v", got)
	}
}

func TestFIFOWriteBlocksUntilRead(t *testing.T) {
	f := newFIFO(2)
	done := make(chan error, 1)
	go func() {
		done <- f.Write([]float32{1, 2, 3, 4})
	}()

	select {
	case <-done:
		t.Fatalf("write of 4 samples into a 2-sample fifo returned without a reader")
	case <-time.After(20 * time.Millisecond):
	}

	readFloats(t, f, 2)
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("write: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("write still blocked after the reader drained the fifo")
	}
}

func TestFIFOCloseUnblocksWriter(t *testing.T) {
	f := newFIFO(1)
	if err := f.Write([]float32{1}); err != nil {
		t.Fatalf("write: %v", err)
	}
	done := make(chan error, 1)
	go func() {
		done <- f.Write([]float32{2})
	}()
	time.Sleep(5 * time.Millisecond)
	f.Close()
	select {
	case err := <-done:
		if !errors.Is(err, errSinkClosed) {
			t.Fatalf("err=%v want errSinkClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("close did not release the blocked writer")
	}

	readFloats(t, f, 1)
	if _, err := f.Read(make([]byte, 4)); err != io.EOF {
		t.Fatalf("read after drain err=%v want EOF", err)
	}
}

func TestHeadlessPacesWrites(t *testing.T) {
	h := NewHeadless(1000)
	clock := time.Unix(0, 0)
	var slept time.Duration
	h.now = func() time.Time { return clock }
	h.sleep = func(d time.Duration) {
		slept += d
		clock = clock.Add(d)
	}

	block := make([]float32, 100)
	for i := 0; i < 5; i++ {
		if err := h.Write(block); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if slept != 500*time.Millisecond {
		t.Fatalf("slept %v want 500ms", slept)
	}
	if h.Frames() != 500 {
		t.Fatalf("frames=%d want 500", h.Frames())
	}

	_ = h.Close()
	if err := h.Write(block); !errors.Is(err, errSinkClosed) {
		t.Fatalf("write after close err=%v", err)
	}
}

func TestHeadlessResyncsWhenBehind(t *testing.T) {
	h := NewHeadless(1000)
	clock := time.Unix(0, 0)
	var slept time.Duration
	h.now = func() time.Time { return clock }
	h.sleep = func(d time.Duration) { slept += d; clock = clock.Add(d) }

	block := make([]float32, 10)
	_ = h.Write(block)
	clock = clock.Add(time.Second)
	slept = 0
	_ = h.Write(block)
	if slept != 10*time.Millisecond {
		t.Fatalf("slept %v after stall, want one block (10ms)", slept)
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	if _, err := Open(Config{Backend: "jack", Log: log.New(io.Discard, "", 0)}); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}

func TestOpenHeadless(t *testing.T) {
	s, err := Open(Config{Backend: "Headless", Log: log.New(io.Discard, "", 0)})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, ok := s.(*Headless); !ok {
		t.Fatalf("sink type %T want *Headless", s)
	}
	_ = s.Close()
}

func TestBlockDuration(t *testing.T) {
	if got := BlockDuration(441, 44100); got != 10*time.Millisecond {
		t.Fatalf("BlockDuration=%v want 10ms", got)
	}
	if got := BlockDuration(441, 0); got != 0 {
		t.Fatalf("BlockDuration with zero rate=%v", got)
	}
}

func TestMatchOutputDevice(t *testing.T) {
	devices := []*portaudio.DeviceInfo{
		{Name: "USB Mic", MaxInputChannels: 1},
		{Name: "Built-in Output", MaxOutputChannels: 2},
		{Name: "USB Speakers", MaxOutputChannels: 2},
	}
	if d := matchOutputDevice(devices, "usb"); d == nil || d.Name != "USB Speakers" {
		t.Fatalf("match usb=%v", d)
	}
	if d := matchOutputDevice(devices, "hdmi"); d != nil {
		t.Fatalf("unexpected match %v", d.Name)
	}
}

func TestSortDevices(t *testing.T) {
	devices := []Device{
		{Name: "b", HostAPI: "ALSA"},
		{Name: "a", HostAPI: "JACK"},
		{Name: "a", HostAPI: "ALSA"},
	}
	sortDevices(devices)
	if devices[0].Name != "a" || devices[0].HostAPI != "ALSA" || devices[2].HostAPI != "JACK" {
		t.Fatalf("unexpected order %+v", devices)
	}
}
