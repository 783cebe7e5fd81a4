package engine

import (
	"github.com/cwbudde/algo-stems/sampler"
	"github.com/cwbudde/algo-stems/separation"
	"github.com/cwbudde/algo-stems/stems"
)

// Config holds the startup settings of a Processor, usually read from a preset.
type Config struct {
	Levels       [stems.Count]float32
	Quality      separation.Quality
	OutputMode   OutputMode
	SelectedStem stems.Kind
	ModelDir     string

	PerStem [stems.Count]*StemConfig
}

// StemConfig holds sampler settings for one stem.
type StemConfig struct {
	StartSeconds float64
	EndSeconds   float64 // 0 plays to the end of the captured audio
	Loop         bool
	Pitch        float32
	FilterFreq   float32
	FilterRes    float32
}

// NewDefaultConfig returns the settings of a freshly inserted processor.
func NewDefaultConfig() *Config {
	cfg := &Config{
		Quality:      separation.DefaultQuality,
		OutputMode:   OutputAll,
		SelectedStem: stems.Drums,
	}
	for _, k := range stems.Kinds {
		cfg.Levels[k] = paramSpecs[LevelParam(k)].Default
	}
	return cfg
}

// NewDefaultStemConfig returns neutral sampler settings.
func NewDefaultStemConfig() *StemConfig {
	return &StemConfig{
		Pitch:      1,
		FilterFreq: sampler.MaxFilterFreq,
		FilterRes:  sampler.MinFilterRes,
	}
}

func (c *Config) applyTo(p *Params) {
	for _, k := range stems.Kinds {
		p.Set(LevelParam(k), c.Levels[k])
	}
	p.Set(ParamQuality, float32(c.Quality))
	p.Set(ParamOutputMode, float32(c.OutputMode))
}

func (sc *StemConfig) applyTo(s *sampler.Sampler, k stems.Kind) {
	s.SetSampleStart(k, sc.StartSeconds)
	s.SetLoopEnabled(k, sc.Loop)
	s.SetPitch(k, sc.Pitch)
	s.SetFilter(k, sc.FilterFreq, sc.FilterRes)
	if sc.EndSeconds > 0 {
		s.SetSampleEnd(k, sc.EndSeconds)
	}
}
