package analysis

import "github.com/cwbudde/algo-stems/stems"

// StemMetrics compares a set of separated stems against reference stems.
type StemMetrics struct {
	PerStem  [stems.Count]*Metrics `json:"per_stem"`
	Score    float64               `json:"score"`
	Compared int                   `json:"compared"`
}

// CompareStems compares every stem present in both sets, mixing each down
// to mono first. Score is the mean of the per-stem scores, or 1 when no stem
// could be compared.
func CompareStems(reference, candidate *stems.Set, sampleRate int) StemMetrics {
	var out StemMetrics
	var sum float64
	for _, k := range stems.Kinds {
		if reference[k] == nil || candidate[k] == nil {
			continue
		}
		m := Compare(Mono(reference[k]), Mono(candidate[k]), sampleRate)
		out.PerStem[k] = &m
		sum += m.Score
		out.Compared++
	}
	if out.Compared == 0 {
		out.Score = 1
		return out
	}
	out.Score = sum / float64(out.Compared)
	return out
}

// Mono averages the channels of b.
func Mono(b *stems.Buffer) []float64 {
	numChannels := b.NumChannels()
	out := make([]float64, b.NumSamples())
	if numChannels == 0 {
		return out
	}
	for ch := 0; ch < numChannels; ch++ {
		for i, v := range b.Channel(ch) {
			out[i] += float64(v)
		}
	}
	g := 1 / float64(numChannels)
	for i := range out {
		out[i] *= g
	}
	return out
}
