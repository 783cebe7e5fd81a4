package sampler

import (
	"math"

	"github.com/cwbudde/algo-approx"

	"github.com/cwbudde/algo-stems/dsp"
	"github.com/cwbudde/algo-stems/stems"
)

const (
	// NumVoices is the fixed polyphony of the sampler.
	NumVoices = 16
	// ReferenceNote plays a stem unshifted.
	ReferenceNote = 60

	MinFilterFreq = float32(20)
	MaxFilterFreq = float32(20000)
	MinFilterRes  = float32(0.1)
	MaxFilterRes  = float32(10)
	MinPitch      = float32(0.1)

	// FilterRampSeconds is the smoothing time for filter parameter changes.
	FilterRampSeconds = 0.01

	maxFilterCoefficient = float32(0.99)
)

// Voice is one playback cursor. A voice with Active false is free.
type Voice struct {
	Stem     stems.Kind
	Position float64
	Velocity float32
	Active   bool
	Pitch    float64
}

type stemSample struct {
	audio            *stems.Buffer
	sourceSampleRate float64
	startSeconds     float64
	endSeconds       float64
	loopEnabled      bool
	pitchRatio       float32
	loaded           bool
	filterFreq       float32
	filterRes        float32
}

type stemFilter struct {
	freq  dsp.LinearSmoother
	res   dsp.LinearSmoother
	poles []dsp.OnePole
}

// Sampler plays the four separated stems through a fixed pool of voices.
//
// The render methods and all setters assume a single caller; setters take
// effect on the next rendered sample.
type Sampler struct {
	sampleRate int
	bufferSize int

	samples [stems.Count]stemSample
	voices  [NumVoices]Voice
	filters [stems.Count]stemFilter
	buses   *stems.Set
}

// New creates a sampler with empty stems at 44.1 kHz.
func New() *Sampler {
	s := &Sampler{
		sampleRate: 44100,
		bufferSize: 512,
	}
	for i := range s.samples {
		s.samples[i] = stemSample{
			audio:            stems.NewBuffer(0, 0),
			sourceSampleRate: 44100,
			pitchRatio:       1,
			filterFreq:       MaxFilterFreq,
			filterRes:        MinFilterRes,
		}
	}
	for i := range s.voices {
		s.voices[i] = Voice{Stem: -1, Pitch: 1}
	}
	s.buses = stems.NewSet(2, s.bufferSize)
	s.resetFilters()
	return s
}

// Initialize sets the engine rate and pre-sizes render buffers.
func (s *Sampler) Initialize(sampleRate int, bufferSize int) {
	if sampleRate > 0 {
		s.sampleRate = sampleRate
	}
	if bufferSize > 0 {
		s.bufferSize = bufferSize
	}
	s.buses.SetSize(2, s.bufferSize)
	for i := range s.samples {
		s.samples[i].audio.Reserve(2, s.bufferSize)
	}
	s.resetFilters()
}

// SampleRate returns the engine rate.
func (s *Sampler) SampleRate() int {
	return s.sampleRate
}

func (s *Sampler) resetFilters() {
	for i := range s.filters {
		f := &s.filters[i]
		f.freq.Reset(float64(s.sampleRate), FilterRampSeconds)
		f.res.Reset(float64(s.sampleRate), FilterRampSeconds)
		f.freq.SetCurrentAndTarget(s.samples[i].filterFreq)
		f.res.SetCurrentAndTarget(s.samples[i].filterRes)
		if len(f.poles) < 2 {
			f.poles = make([]dsp.OnePole, 2)
		}
		for ch := range f.poles {
			f.poles[ch].Reset()
		}
	}
}

// LoadStem replaces the audio of one stem with a copy of data. The playable
// region becomes the whole buffer. Voices already reading the stem are not
// protected; callers load once per new separation, between blocks.
//
// Data no larger than the block size given to Initialize is copied without
// allocating, so LoadStem may run on the render goroutine.
func (s *Sampler) LoadStem(stem stems.Kind, data *stems.Buffer, sourceSampleRate float64) {
	if !stem.Valid() || data == nil || sourceSampleRate <= 0 {
		return
	}
	sample := &s.samples[stem]
	sample.audio.CopyFrom(data)
	sample.sourceSampleRate = sourceSampleRate
	sample.endSeconds = float64(data.NumSamples()) / sourceSampleRate
	sample.loaded = true
}

// NoteOn starts the first free voice on stem note mod 4. Notes with
// velocity <= 0 and notes arriving while all voices play are dropped.
func (s *Sampler) NoteOn(note int, velocity float32) {
	if velocity <= 0 || note < 0 || note > 127 {
		return
	}
	for i := range s.voices {
		v := &s.voices[i]
		if v.Active {
			continue
		}
		*v = Voice{
			Stem:     stems.KindForNote(note),
			Position: 0,
			Velocity: velocity,
			Active:   true,
			Pitch:    NoteRatio(note),
		}
		return
	}
}

// NoteOff stops every voice playing the stem the note maps to.
func (s *Sampler) NoteOff(note int) {
	if note < 0 || note > 127 {
		return
	}
	stem := stems.KindForNote(note)
	for i := range s.voices {
		v := &s.voices[i]
		if v.Active && v.Stem == stem {
			v.Active = false
			v.Velocity = 0
		}
	}
}

// AllNotesOff frees every voice.
func (s *Sampler) AllNotesOff() {
	for i := range s.voices {
		s.voices[i].Active = false
		s.voices[i].Velocity = 0
	}
}

// ActiveVoices counts playing voices.
func (s *Sampler) ActiveVoices() int {
	n := 0
	for i := range s.voices {
		if s.voices[i].Active {
			n++
		}
	}
	return n
}

// Voice returns a copy of pool slot i.
func (s *Sampler) Voice(i int) (Voice, bool) {
	if i < 0 || i >= NumVoices {
		return Voice{}, false
	}
	return s.voices[i], true
}

// ProcessBlock renders all voices, summed, into out. out is cleared first.
func (s *Sampler) ProcessBlock(out *stems.Buffer) {
	numChannels := out.NumChannels()
	numSamples := out.NumSamples()
	out.Clear()

	s.buses.SetSize(numChannels, numSamples)
	s.RenderStems(s.buses, 0, numSamples)

	for _, bus := range s.buses {
		for ch := 0; ch < numChannels; ch++ {
			out.AddFrom(ch, 0, bus, ch, 0, numSamples, 1)
		}
	}
}

// RenderStems renders n samples starting at offset, each stem into its own
// bus. Buses must share one shape that covers offset+n.
func (s *Sampler) RenderStems(buses *stems.Set, offset, n int) {
	if n <= 0 {
		return
	}
	for _, bus := range buses {
		bus.ClearRange(offset, n)
	}
	for i := range s.voices {
		v := &s.voices[i]
		if !v.Active || !v.Stem.Valid() {
			continue
		}
		sample := &s.samples[v.Stem]
		if !sample.loaded {
			continue
		}
		s.renderVoice(v, sample, buses[v.Stem], offset, n)
	}
	for k := range buses {
		s.applyFilter(stems.Kind(k), buses[k], offset, n)
	}
}

func (s *Sampler) renderVoice(v *Voice, sample *stemSample, bus *stems.Buffer, offset, n int) {
	srcChannels := sample.audio.NumChannels()
	if srcChannels == 0 {
		v.Active = false
		return
	}
	total := sample.audio.NumSamples()
	start := clampIndex(secondsToSamples(sample.startSeconds, sample.sourceSampleRate), total)
	end := clampIndex(secondsToSamples(sample.endSeconds, sample.sourceSampleRate), total)
	region := end - start

	rate := float64(s.sampleRate) / sample.sourceSampleRate * v.Pitch * float64(sample.pitchRatio)
	numChannels := bus.NumChannels()

	for i := 0; i < n; i++ {
		idx := int(v.Position) + start
		if idx >= end {
			if !sample.loopEnabled || region <= 0 {
				v.Active = false
				return
			}
			v.Position = math.Mod(v.Position, float64(region))
			idx = int(v.Position) + start
		}
		for ch := 0; ch < numChannels; ch++ {
			src := sample.audio.Channel(min(ch, srcChannels-1))
			bus.Channel(ch)[offset+i] += src[idx] * v.Velocity
		}
		v.Position += rate
	}
}

func (s *Sampler) applyFilter(stem stems.Kind, bus *stems.Buffer, offset, n int) {
	f := &s.filters[stem]
	sample := &s.samples[stem]
	f.freq.SetTarget(sample.filterFreq)
	f.res.SetTarget(sample.filterRes)

	numChannels := bus.NumChannels()
	if len(f.poles) < numChannels {
		grown := make([]dsp.OnePole, numChannels)
		copy(grown, f.poles)
		f.poles = grown
	}

	for i := offset; i < offset+n; i++ {
		freq := f.freq.Next()
		f.res.Next()
		if freq >= MaxFilterFreq {
			for ch := 0; ch < numChannels; ch++ {
				f.poles[ch].Track(bus.Channel(ch)[i])
			}
			continue
		}
		a := FilterCoefficient(freq)
		for ch := 0; ch < numChannels; ch++ {
			data := bus.Channel(ch)
			data[i] = f.poles[ch].Process(data[i], a)
		}
	}
}

// FilterCoefficient maps a cutoff in Hz to the one-pole feedback factor.
// Lower cutoffs give larger coefficients.
func FilterCoefficient(freq float32) float32 {
	cutoff := (freq - MinFilterFreq) / (MaxFilterFreq - MinFilterFreq)
	return clampf(1-cutoff, 0, maxFilterCoefficient)
}

// NoteRatio is the equal-tempered frequency ratio of note to ReferenceNote.
func NoteRatio(note int) float64 {
	return float64(midiNoteToFreq(note) / midiNoteToFreq(ReferenceNote))
}

// midiNoteToFreq converts MIDI note number to frequency in Hz.
func midiNoteToFreq(note int) float32 {
	const a4Freq = 440.0
	const a4Note = 69
	exponent := float32(note-a4Note) / 12.0
	return a4Freq * pow2Approx(exponent)
}

func pow2Approx(x float32) float32 {
	const ln2 = 0.69314718055994530942
	return approx.FastExp(x * ln2)
}

func secondsToSamples(seconds, sampleRate float64) int {
	return int(math.Round(seconds * sampleRate))
}

func clampIndex(i, total int) int {
	if i < 0 {
		return 0
	}
	if i > total {
		return total
	}
	return i
}

func clampf(x, lo, hi float32) float32 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
