package meter

import (
	"math"
	"testing"
)

func sine(freq, sampleRate float64, n int, amp float64) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(amp * math.Sin(2*math.Pi*freq*float64(i)/sampleRate))
	}
	return out
}

func TestSilenceReadsFloor(t *testing.T) {
	m := New(Config{SampleRate: 44100, FloorDB: -80})
	m.Update(make([]float32, 512))
	r := m.Reading()
	if r.PeakDB != -80 || r.RMSDB != -80 {
		t.Fatalf("silence reading=%+v want floor -80", r)
	}
	if r.Frequency != 0 {
		t.Fatalf("silence frequency=%f want 0", r.Frequency)
	}
}

func TestDominantFrequencyWithinOneBin(t *testing.T) {
	const rate = 44100.0
	m := New(Config{SampleRate: rate})
	bin := rate / 512
	freq := 20 * bin
	m.Update(sine(freq, rate, 512, 0.5))
	got := m.Reading().Frequency
	if math.Abs(got-freq) > bin {
		t.Fatalf("frequency=%f want %f ± %f", got, freq, bin)
	}
}

func TestPeakRisesAndDecays(t *testing.T) {
	m := New(Config{SampleRate: 44100})
	for i := 0; i < 20; i++ {
		m.Update(sine(1000, 44100, 512, 1))
	}
	loud := m.Reading().PeakDB
	if loud < -1 || loud > 0.01 {
		t.Fatalf("full-scale peak=%f dB, want near 0", loud)
	}
	for i := 0; i < 5; i++ {
		m.Update(make([]float32, 512))
	}
	if quiet := m.Reading().PeakDB; quiet >= loud {
		t.Fatalf("peak did not decay: %f -> %f", loud, quiet)
	}
}

func TestNextPow2(t *testing.T) {
	cases := map[int]int{
		0:   1,
		1:   1,
		3:   4,
		257: 512,
		512: 512,
	}
	for input, want := range cases {
		if got := nextPow2(input); got != want {
			t.Fatalf("nextPow2(%d)=%d want=%d", input, got, want)
		}
	}
}

func TestEnvelope(t *testing.T) {
	if got := envelope(0, 1, 0.25, 0.5); got != 0.75 {
		t.Fatalf("attack step=%f want 0.75", got)
	}
	if got := envelope(1, 0, 0.25, 0.5); got != 0.5 {
		t.Fatalf("release step=%f want 0.5", got)
	}
	if got := envelope(1, 0.9, 0.25, 0.5); got != 0.9 {
		t.Fatalf("release floor=%f want 0.9", got)
	}
}
