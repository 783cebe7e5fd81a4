package analysis

import (
	"math"
	"math/rand"
	"testing"

	"github.com/cwbudde/algo-stems/stems"
)

func TestCompareIdenticalSignalsHasLowDistance(t *testing.T) {
	sr := 48000
	x := makeDecaySine(sr, 440.0, 1.5, 0.7)
	m := Compare(x, x, sr)
	if m.Score > 0.05 {
		t.Fatalf("expected very low score for identical signals, got %f", m.Score)
	}
	if m.Similarity < 0.85 {
		t.Fatalf("expected high similarity for identical signals, got %f", m.Similarity)
	}
	if m.LagSamples != 0 {
		t.Fatalf("expected zero lag, got %d", m.LagSamples)
	}
}

func TestCompareDifferentSignalsHasHigherDistance(t *testing.T) {
	sr := 48000
	a := makeDecaySine(sr, 261.63, 1.8, 0.8)
	b := makeDecaySine(sr, 330.0, 0.8, 0.25)
	m := Compare(a, b, sr)
	if m.Score < 0.2 {
		t.Fatalf("expected higher score for different signals, got %f", m.Score)
	}
}

func TestCompareEmptyInput(t *testing.T) {
	m := Compare(nil, []float64{1, 2}, 48000)
	if m.Score != 1 || m.Similarity != 0 {
		t.Fatalf("empty input mismatch: score=%v similarity=%v", m.Score, m.Similarity)
	}
	silent := make([]float64, 1000)
	m = Compare(silent, silent, 48000)
	if m.Score != 1 {
		t.Fatalf("silent input mismatch: score=%v", m.Score)
	}
}

func TestEstimateLagFindsPositiveShift(t *testing.T) {
	const (
		n      = 8192
		shift  = 237
		maxLag = 600
	)
	ref := randomSignal(n, 7)
	cand := make([]float64, n)
	copy(cand, ref[shift:])

	got := estimateLag(ref, cand, maxLag)
	if got != shift {
		t.Fatalf("estimateLag() = %d, want %d", got, shift)
	}
}

func TestEstimateLagFindsNegativeShift(t *testing.T) {
	const (
		n      = 8192
		shift  = -191
		maxLag = 600
	)
	ref := randomSignal(n, 11)
	cand := make([]float64, n)
	copy(cand[-shift:], ref)

	got := estimateLag(ref, cand, maxLag)
	if got != shift {
		t.Fatalf("estimateLag() = %d, want %d", got, shift)
	}
}

func TestBandEnergiesPeakInSubBand(t *testing.T) {
	sr := 48000
	x := makeDecaySine(sr, 60, 1.0, 10)
	bands := BandEnergies(x, sr)
	if len(bands) != len(Bands) {
		t.Fatalf("band count mismatch: got=%d want=%d", len(bands), len(Bands))
	}
	for i := 1; i < len(bands); i++ {
		if bands[i] >= bands[0] {
			t.Fatalf("band %s louder than sub: %v >= %v", Bands[i].Name, bands[i], bands[0])
		}
	}
	if BandEnergies(nil, sr) != nil {
		t.Fatalf("expected nil for empty input")
	}
}

func TestCompareStems(t *testing.T) {
	sr := 48000
	ref := stems.NewSet(2, 0)
	for i, k := range stems.Kinds {
		x := makeDecaySine(sr, 110*float64(i+1), 0.5, 0.4)
		ref[k] = stereo(x)
	}
	cand := stems.NewSet(2, 0)
	for _, k := range stems.Kinds {
		cand[k] = ref[k]
	}
	cand[stems.Other] = nil

	m := CompareStems(ref, cand, sr)
	if m.Compared != 3 {
		t.Fatalf("compared mismatch: got=%d want=3", m.Compared)
	}
	if m.PerStem[stems.Other] != nil {
		t.Fatalf("missing stem should not be scored")
	}
	if m.Score > 0.05 {
		t.Fatalf("expected low score for identical stems, got %f", m.Score)
	}

	empty := CompareStems(ref, &stems.Set{}, sr)
	if empty.Score != 1 || empty.Compared != 0 {
		t.Fatalf("empty comparison mismatch: %+v", empty)
	}
}

func TestMono(t *testing.T) {
	b := stems.NewBufferFrom([]float32{1, 1}, []float32{-1, 0})
	m := Mono(b)
	if m[0] != 0 || m[1] != 0.5 {
		t.Fatalf("mono mismatch: got=%v want=[0 0.5]", m)
	}
}

func stereo(x []float64) *stems.Buffer {
	b := stems.NewBuffer(2, len(x))
	for ch := 0; ch < 2; ch++ {
		data := b.Channel(ch)
		for i, v := range x {
			data[i] = float32(v)
		}
	}
	return b
}

func makeDecaySine(sr int, freq float64, durationSec float64, decaySec float64) []float64 {
	n := int(float64(sr) * durationSec)
	if n < 1 {
		n = 1
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		t := float64(i) / float64(sr)
		env := math.Exp(-t / decaySec)
		out[i] = env * math.Sin(2*math.Pi*freq*t)
	}
	return out
}

func randomSignal(n int, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]float64, n)
	for i := range out {
		out[i] = rng.Float64()*2 - 1
	}
	return out
}
