package separation

import (
	"github.com/apex/log"

	"github.com/cwbudde/algo-stems/stems"
)

// ChunkSize bounds the samples handed to one Model.Run call.
const ChunkSize = 8192

// Separator turns input blocks of any length into four stem blocks of the
// same length.
//
// ProcessBlock never fails: without an initialized model every stem is a
// copy of the input.
type Separator struct {
	loader     Loader
	modelDir   string
	quality    Quality
	sampleRate int
	bufferSize int

	initialized bool
	model       Model
	fallback    bool

	work *stems.Buffer
}

// NewSeparator creates a separator that resolves models through loader.
// A nil loader always falls back to pass-through.
func NewSeparator(loader Loader, modelDir string) *Separator {
	return &Separator{
		loader:     loader,
		modelDir:   modelDir,
		quality:    DefaultQuality,
		sampleRate: 44100,
		bufferSize: 512,
		work:       stems.NewBuffer(2, ChunkSize),
	}
}

// Initialize prepares the working buffer and loads the model for the
// current quality.
func (s *Separator) Initialize(sampleRate int, bufferSize int) {
	s.sampleRate = sampleRate
	s.bufferSize = bufferSize
	s.work.SetSize(2, ChunkSize)
	s.loadModel()
	s.initialized = true
}

// IsInitialized reports whether Initialize has run.
func (s *Separator) IsInitialized() bool {
	return s.initialized
}

// ModelQuality returns the active quality level.
func (s *Separator) ModelQuality() Quality {
	return s.quality
}

// Model returns the loaded model, or nil before Initialize.
func (s *Separator) Model() Model {
	return s.model
}

// UsingFallback reports whether the pass-through model replaced a failed load.
func (s *Separator) UsingFallback() bool {
	return s.fallback
}

// SetModelQuality swaps the model. It loads synchronously and may touch
// disk, so it must not be called from the render path.
func (s *Separator) SetModelQuality(q Quality) {
	q = ClampQuality(int(q))
	if q == s.quality {
		return
	}
	s.quality = q
	if s.initialized {
		s.loadModel()
	}
}

// Release frees the model. The separator returns to pass-through until
// Initialize is called again.
func (s *Separator) Release() {
	s.releaseModel()
	s.initialized = false
}

func (s *Separator) releaseModel() {
	if s.model != nil {
		s.model.Release()
		s.model = nil
	}
	s.fallback = false
}

func (s *Separator) loadModel() {
	s.releaseModel()

	path := ModelPath(s.modelDir, s.quality)
	logger := log.WithFields(log.Fields{
		"quality":    int(s.quality),
		"model":      ModelName(s.quality),
		"path":       path,
		"sampleRate": s.sampleRate,
	})

	var (
		m   Model
		err error
	)
	if s.loader != nil {
		m, err = s.loader.Load(path, s.sampleRate)
	}
	if err != nil || m == nil {
		if err != nil {
			logger = logger.WithError(err)
		}
		logger.Warn("separation model unavailable, using pass-through")
		s.model = NewPassThrough(s.sampleRate)
		s.fallback = true
		return
	}
	logger.Info("separation model loaded")
	s.model = m
	s.fallback = false
}

// ProcessBlock separates input into outputs. Every output ends up with the
// shape of input.
func (s *Separator) ProcessBlock(input *stems.Buffer, outputs *stems.Set) {
	numChannels := input.NumChannels()
	numSamples := input.NumSamples()

	if !s.initialized || s.model == nil {
		for i := range outputs {
			if outputs[i] == nil {
				outputs[i] = stems.NewBuffer(numChannels, numSamples)
			}
			outputs[i].CopyFrom(input)
		}
		return
	}

	outputs.SetSize(numChannels, numSamples)
	outputs.Clear()
	if numChannels == 0 {
		return
	}

	workChannels := min(numChannels, s.work.NumChannels())
	var chunkOut [stems.Count][]float32
	for start := 0; start < numSamples; start += ChunkSize {
		chunkLen := min(ChunkSize, numSamples-start)

		for ch := 0; ch < workChannels; ch++ {
			s.work.CopyChannel(ch, 0, input, ch, start, chunkLen)
		}
		for i := range outputs {
			chunkOut[i] = outputs[i].Channel(0)[start : start+chunkLen]
		}

		s.model.Run(s.work.Channel(0)[:chunkLen], chunkOut, chunkLen)

		for i := range outputs {
			for ch := 1; ch < numChannels; ch++ {
				outputs[i].CopyChannel(ch, start, outputs[i], 0, start, chunkLen)
			}
		}
	}
}
