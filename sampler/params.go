package sampler

import "github.com/cwbudde/algo-stems/stems"

// SetSampleStart moves the region start. Negative values clamp to zero.
func (s *Sampler) SetSampleStart(stem stems.Kind, startSeconds float64) {
	if !stem.Valid() {
		return
	}
	s.samples[stem].startSeconds = max(0, startSeconds)
}

// SetSampleEnd moves the region end. Values past the loaded audio play to
// the end of the audio.
func (s *Sampler) SetSampleEnd(stem stems.Kind, endSeconds float64) {
	if !stem.Valid() {
		return
	}
	s.samples[stem].endSeconds = max(0, endSeconds)
}

// SetLoopEnabled toggles looping of the region.
func (s *Sampler) SetLoopEnabled(stem stems.Kind, loop bool) {
	if !stem.Valid() {
		return
	}
	s.samples[stem].loopEnabled = loop
}

// SetPitch sets the per-stem playback ratio, at least MinPitch.
func (s *Sampler) SetPitch(stem stems.Kind, ratio float32) {
	if !stem.Valid() {
		return
	}
	s.samples[stem].pitchRatio = max(MinPitch, ratio)
}

// SetFilter sets cutoff and resonance. Changes ramp in over FilterRampSeconds.
// Resonance is kept for the host but does not shape the one-pole response.
func (s *Sampler) SetFilter(stem stems.Kind, frequency, resonance float32) {
	if !stem.Valid() {
		return
	}
	s.samples[stem].filterFreq = clampf(frequency, MinFilterFreq, MaxFilterFreq)
	s.samples[stem].filterRes = clampf(resonance, MinFilterRes, MaxFilterRes)
}

// IsSampleLoaded reports whether LoadStem has filled the stem.
func (s *Sampler) IsSampleLoaded(stem stems.Kind) bool {
	if !stem.Valid() {
		return false
	}
	return s.samples[stem].loaded
}

// SampleLength returns the region length in seconds.
func (s *Sampler) SampleLength(stem stems.Kind) float64 {
	if !stem.Valid() {
		return 0
	}
	return s.samples[stem].endSeconds - s.samples[stem].startSeconds
}

// Settings is a read-only view of one stem's playback parameters.
type Settings struct {
	StartSeconds     float64
	EndSeconds       float64
	LoopEnabled      bool
	Pitch            float32
	FilterFreq       float32
	FilterRes        float32
	SourceSampleRate float64
	Loaded           bool
}

// StemSettings returns the current parameters of a stem.
func (s *Sampler) StemSettings(stem stems.Kind) (Settings, bool) {
	if !stem.Valid() {
		return Settings{}, false
	}
	sample := &s.samples[stem]
	return Settings{
		StartSeconds:     sample.startSeconds,
		EndSeconds:       sample.endSeconds,
		LoopEnabled:      sample.loopEnabled,
		Pitch:            sample.pitchRatio,
		FilterFreq:       sample.filterFreq,
		FilterRes:        sample.filterRes,
		SourceSampleRate: sample.sourceSampleRate,
		Loaded:           sample.loaded,
	}, true
}

// SmoothedFilter returns the cutoff and resonance the filter is currently
// using, which lag the settings during a ramp.
func (s *Sampler) SmoothedFilter(stem stems.Kind) (freq, res float32) {
	if !stem.Valid() {
		return 0, 0
	}
	f := &s.filters[stem]
	return f.freq.Current(), f.res.Current()
}
