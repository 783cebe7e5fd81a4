package separation

import (
	"path/filepath"

	"github.com/cwbudde/algo-stems/stems"
)

// Model is a loaded separation backend.
//
// Run reads numSamples samples of a single channel and writes exactly
// numSamples values into every non-nil output. Outputs that are nil are
// skipped. Run must not depend on anything a previous call left behind
// other than the model itself.
type Model interface {
	SampleRate() int
	StemCount() int
	Run(input []float32, outputs [stems.Count][]float32, numSamples int)
	Release()
}

// Loader creates models. A load error is never fatal to the caller.
type Loader interface {
	Load(path string, sampleRate int) (Model, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(path string, sampleRate int) (Model, error)

// Load calls f.
func (f LoaderFunc) Load(path string, sampleRate int) (Model, error) {
	return f(path, sampleRate)
}

// Quality selects a model variant, ordered from fastest (0) to most accurate (3).
type Quality int

const (
	QualityLight Quality = iota
	QualityStandard
	QualityHybrid
	QualityHybridSixStem

	DefaultQuality = QualityHybrid
	MinQuality     = QualityLight
	MaxQuality     = QualityHybridSixStem
)

var modelNames = [...]string{
	QualityLight:         "demucs_light",
	QualityStandard:      "demucs",
	QualityHybrid:        "htdemucs",
	QualityHybridSixStem: "htdemucs_6s",
}

// ClampQuality folds any integer into the supported range.
func ClampQuality(q int) Quality {
	if q < int(MinQuality) {
		return MinQuality
	}
	if q > int(MaxQuality) {
		return MaxQuality
	}
	return Quality(q)
}

// ModelName returns the descriptor name for a quality level.
func ModelName(q Quality) string {
	return modelNames[ClampQuality(int(q))]
}

// ModelPath returns where a file-based loader expects the model for q.
func ModelPath(dir string, q Quality) string {
	return filepath.Join(dir, ModelName(q)+".json")
}

func clampSamples(numSamples int, input []float32) int {
	if numSamples > len(input) {
		numSamples = len(input)
	}
	if numSamples < 0 {
		numSamples = 0
	}
	return numSamples
}
