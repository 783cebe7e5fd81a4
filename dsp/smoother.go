package dsp

import "math"

// LinearSmoother ramps a parameter linearly toward its target over a fixed
// number of samples.
type LinearSmoother struct {
	current   float32
	target    float32
	step      float32
	countdown int
	rampLen   int
}

// Reset sets the ramp length from a sample rate and a ramp time, and jumps
// to the target.
func (s *LinearSmoother) Reset(sampleRate float64, rampSeconds float64) {
	s.rampLen = int(math.Floor(rampSeconds * sampleRate))
	if s.rampLen < 0 {
		s.rampLen = 0
	}
	s.current = s.target
	s.countdown = 0
}

// SetCurrentAndTarget jumps immediately to v.
func (s *LinearSmoother) SetCurrentAndTarget(v float32) {
	s.current = v
	s.target = v
	s.countdown = 0
}

// SetTarget starts a ramp toward v. Setting the current target again is a no-op.
func (s *LinearSmoother) SetTarget(v float32) {
	if v == s.target {
		return
	}
	if s.rampLen <= 0 {
		s.SetCurrentAndTarget(v)
		return
	}
	s.target = v
	s.countdown = s.rampLen
	s.step = (s.target - s.current) / float32(s.rampLen)
}

// Next advances the ramp by one sample and returns the new value.
func (s *LinearSmoother) Next() float32 {
	if s.countdown <= 0 {
		return s.target
	}
	s.countdown--
	if s.countdown == 0 {
		s.current = s.target
	} else {
		s.current += s.step
	}
	return s.current
}

// Current returns the value without advancing.
func (s *LinearSmoother) Current() float32 {
	return s.current
}

// Target returns the ramp destination.
func (s *LinearSmoother) Target() float32 {
	return s.target
}

// IsSmoothing reports whether a ramp is in progress.
func (s *LinearSmoother) IsSmoothing() bool {
	return s.countdown > 0
}
