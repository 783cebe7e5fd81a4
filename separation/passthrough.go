package separation

import "github.com/cwbudde/algo-stems/stems"

// PassThrough copies its input into every stem. It is installed whenever a
// real model cannot be loaded.
type PassThrough struct {
	sampleRate int
}

// NewPassThrough returns a pass-through model.
func NewPassThrough(sampleRate int) *PassThrough {
	return &PassThrough{sampleRate: sampleRate}
}

func (p *PassThrough) SampleRate() int { return p.sampleRate }
func (p *PassThrough) StemCount() int { return stems.Count }
func (p *PassThrough) Release() {}

func (p *PassThrough) Run(input []float32, outputs [stems.Count][]float32, numSamples int) {
	n := clampSamples(numSamples, input)
	for _, out := range outputs {
		if out == nil {
			continue
		}
		copy(out[:n], input[:n])
	}
}
