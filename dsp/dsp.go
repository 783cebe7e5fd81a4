package dsp

import (
	"math"

	dspcore "github.com/cwbudde/algo-dsp/dsp/core"
)

// Biquad implements a second-order IIR filter (no heap allocations in Process)
type Biquad struct {
	// Coefficients
	b0, b1, b2 float32
	a1, a2     float32

	// State (previous samples)
	x1, x2 float32 // input history
	y1, y2 float32 // output history
}

// NewBiquad creates a new biquad filter with the given coefficients
func NewBiquad(b0, b1, b2, a1, a2 float32) *Biquad {
	return &Biquad{
		b0: b0,
		b1: b1,
		b2: b2,
		a1: a1,
		a2: a2,
	}
}

// Process processes one sample through the biquad filter
func (b *Biquad) Process(input float32) float32 {
	// Direct Form I implementation
	output := b.b0*input + b.b1*b.x1 + b.b2*b.x2 - b.a1*b.y1 - b.a2*b.y2
	output = FlushDenormals(output)

	b.x2 = b.x1
	b.x1 = input
	b.y2 = b.y1
	b.y1 = output

	return output
}

// ProcessBlock filters in into out. in and out may alias.
func (b *Biquad) ProcessBlock(out, in []float32) {
	for i, x := range in {
		out[i] = b.Process(x)
	}
}

// Reset clears the filter state
func (b *Biquad) Reset() {
	b.x1, b.x2 = 0, 0
	b.y1, b.y2 = 0, 0
}

// rbj returns the shared RBJ cookbook terms for a design frequency.
func rbj(cutoff, sampleRate, q float32) (cosw0, alpha float64) {
	nyquist := 0.5 * float64(sampleRate)
	f := float64(cutoff)
	if f > nyquist*0.99 {
		f = nyquist * 0.99
	}
	if f < 1 {
		f = 1
	}
	if q <= 0 {
		q = 0.7071
	}
	w0 := 2.0 * math.Pi * f / float64(sampleRate)
	return math.Cos(w0), math.Sin(w0) / (2.0 * float64(q))
}

func normalized(b0, b1, b2, a0, a1, a2 float64) *Biquad {
	return NewBiquad(
		float32(b0/a0),
		float32(b1/a0),
		float32(b2/a0),
		float32(a1/a0),
		float32(a2/a0),
	)
}

// NewLowpass creates a lowpass biquad filter
func NewLowpass(cutoff, sampleRate, q float32) *Biquad {
	cosw0, alpha := rbj(cutoff, sampleRate, q)
	return normalized(
		(1.0-cosw0)/2.0,
		1.0-cosw0,
		(1.0-cosw0)/2.0,
		1.0+alpha,
		-2.0*cosw0,
		1.0-alpha,
	)
}

// NewHighpass creates a highpass biquad filter
func NewHighpass(cutoff, sampleRate, q float32) *Biquad {
	cosw0, alpha := rbj(cutoff, sampleRate, q)
	return normalized(
		(1.0+cosw0)/2.0,
		-(1.0 + cosw0),
		(1.0+cosw0)/2.0,
		1.0+alpha,
		-2.0*cosw0,
		1.0-alpha,
	)
}

// NewBandpass creates a constant 0 dB peak gain bandpass biquad filter
func NewBandpass(center, sampleRate, q float32) *Biquad {
	cosw0, alpha := rbj(center, sampleRate, q)
	return normalized(
		alpha,
		0,
		-alpha,
		1.0+alpha,
		-2.0*cosw0,
		1.0-alpha,
	)
}

// NewIdentity returns a biquad that passes its input unchanged.
func NewIdentity() *Biquad {
	return NewBiquad(1, 0, 0, 0, 0)
}

// FlushDenormals converts denormal numbers to zero to avoid performance issues
func FlushDenormals(x float32) float32 {
	return float32(dspcore.FlushDenormals(float64(x)))
}
