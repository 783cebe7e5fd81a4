package separation

import "github.com/cwbudde/algo-stems/stems"

// ReferenceGains is the fixed share of the input each stem receives from
// the Reference model.
var ReferenceGains = [stems.Count]float32{
	stems.Drums:  0.30,
	stems.Bass:   0.25,
	stems.Other:  0.10,
	stems.Vocals: 0.35,
}

// Reference splits the input into stems by fixed gains. It needs no model
// file and stands in for an inference backend in tests and demos.
type Reference struct {
	sampleRate int
}

// ReferenceLoader always succeeds and ignores the model path.
var ReferenceLoader = LoaderFunc(func(_ string, sampleRate int) (Model, error) {
	return &Reference{sampleRate: sampleRate}, nil
})

func (r *Reference) SampleRate() int { return r.sampleRate }
func (r *Reference) StemCount() int { return stems.Count }
func (r *Reference) Release() {}

func (r *Reference) Run(input []float32, outputs [stems.Count][]float32, numSamples int) {
	n := clampSamples(numSamples, input)
	for s, out := range outputs {
		if out == nil {
			continue
		}
		g := ReferenceGains[s]
		out = out[:n]
		for i := range out {
			out[i] = input[i] * g
		}
	}
}
