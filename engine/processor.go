package engine

import (
	"sync/atomic"

	"github.com/apex/log"
	"github.com/cockroachdb/errors"

	"github.com/cwbudde/algo-stems/sampler"
	"github.com/cwbudde/algo-stems/separation"
	"github.com/cwbudde/algo-stems/stems"
)

// EventType distinguishes note events.
type EventType int

const (
	EventNoteOn EventType = iota
	EventNoteOff
	EventAllNotesOff
)

// Event is a note event at a sample offset inside the block passed to
// Process. Events must be sorted by Offset; offsets outside the block are
// clamped to it.
type Event struct {
	Type     EventType
	Note     int
	Velocity float32
	Offset   int
}

// NoteOn builds a note-on event.
func NoteOn(offset, note int, velocity float32) Event {
	return Event{Type: EventNoteOn, Note: note, Velocity: velocity, Offset: offset}
}

// NoteOff builds a note-off event.
func NoteOff(offset, note int) Event {
	return Event{Type: EventNoteOff, Note: note, Offset: offset}
}

// Processor is the host-facing engine: it separates each input block,
// captures stems into the sampler and mixes the sampler output.
type Processor struct {
	cfg       *Config
	params    *Params
	separator *separation.Separator
	sampler   *sampler.Sampler

	selected atomic.Int32
	capture  atomic.Bool

	sampleRate int
	blockSize  int
	prepared   bool

	separated *stems.Set
	buses     *stems.Set
}

// NewProcessor creates a processor. A nil cfg uses NewDefaultConfig.
func NewProcessor(cfg *Config, loader separation.Loader) *Processor {
	if cfg == nil {
		cfg = NewDefaultConfig()
	}
	p := &Processor{
		cfg:        cfg,
		params:     NewParams(),
		separator:  separation.NewSeparator(loader, cfg.ModelDir),
		sampler:    sampler.New(),
		sampleRate: 44100,
		blockSize:  512,
		separated:  stems.NewSet(2, 0),
		buses:      stems.NewSet(2, 0),
	}
	cfg.applyTo(p.params)
	p.separator.SetModelQuality(separation.ClampQuality(int(p.params.Get(ParamQuality))))
	p.SetSelectedStem(cfg.SelectedStem)
	return p
}

// Prepare readies the processor for playback and arms a stem capture.
func (p *Processor) Prepare(sampleRate, blockSize int) {
	if sampleRate > 0 {
		p.sampleRate = sampleRate
	}
	if blockSize > 0 {
		p.blockSize = blockSize
	}
	p.separator.Initialize(p.sampleRate, p.blockSize)
	p.sampler.Initialize(p.sampleRate, p.blockSize)
	for _, k := range stems.Kinds {
		if sc := p.cfg.PerStem[k]; sc != nil {
			sc.applyTo(p.sampler, k)
		}
	}
	p.separated.SetSize(2, p.blockSize)
	p.buses.SetSize(2, p.blockSize)
	p.prepared = true
	p.capture.Store(true)

	log.WithFields(log.Fields{
		"sampleRate": p.sampleRate,
		"blockSize":  p.blockSize,
		"quality":    int(p.separator.ModelQuality()),
		"fallback":   p.separator.UsingFallback(),
	}).Info("processor prepared")
}

// SampleRate returns the rate set by Prepare.
func (p *Processor) SampleRate() int {
	return p.sampleRate
}

// SetParameter clamps and stores a parameter. A quality change reloads the
// separation model before returning, so it must not be called from the
// render goroutine.
func (p *Processor) SetParameter(id ParamID, v float32) {
	stored := p.params.Set(id, v)
	if id == ParamQuality {
		p.separator.SetModelQuality(separation.ClampQuality(int(stored)))
	}
}

// Parameter returns the current value of id.
func (p *Processor) Parameter(id ParamID) float32 {
	return p.params.Get(id)
}

// Params exposes the parameter store.
func (p *Processor) Params() *Params {
	return p.params
}

// SetSelectedStem chooses the stem played in OutputSolo mode.
func (p *Processor) SetSelectedStem(k stems.Kind) {
	if !k.Valid() {
		return
	}
	p.selected.Store(int32(k))
}

// SelectedStem returns the stem played in OutputSolo mode.
func (p *Processor) SelectedStem() stems.Kind {
	return stems.Kind(p.selected.Load())
}

// RequestCapture marks new separated audio as available. The next Process
// call loads its stems into the sampler, once.
func (p *Processor) RequestCapture() {
	p.capture.Store(true)
}

// CapturePending reports whether a capture is armed.
func (p *Processor) CapturePending() bool {
	return p.capture.Load()
}

// CaptureSource separates a whole recording and loads the stems into the
// sampler. It allocates and may take long; call it outside the render path.
// A pending capture request is cleared.
func (p *Processor) CaptureSource(src *stems.Buffer) error {
	if src == nil || src.NumSamples() == 0 {
		return errors.New("capture source is empty")
	}
	if !p.prepared {
		p.Prepare(p.sampleRate, p.blockSize)
	}
	out := stems.NewSet(src.NumChannels(), src.NumSamples())
	p.separator.ProcessBlock(src, out)
	p.capture.Store(false)
	p.loadStems(out)

	log.WithFields(log.Fields{
		"samples":    src.NumSamples(),
		"channels":   src.NumChannels(),
		"sampleRate": p.sampleRate,
		"fallback":   p.separator.UsingFallback(),
	}).Info("captured stems")
	return nil
}

func (p *Processor) loadStems(set *stems.Set) {
	for _, k := range stems.Kinds {
		p.sampler.LoadStem(k, set[k], float64(p.sampleRate))
		if sc := p.cfg.PerStem[k]; sc != nil && sc.EndSeconds > 0 {
			p.sampler.SetSampleEnd(k, sc.EndSeconds)
		}
	}
}

// Process replaces buf with the mixed sampler output for this block. If a
// capture is armed the input in buf is separated and the stems are loaded
// into the sampler; otherwise the input is only replaced. Events are applied
// at their sample offsets.
func (p *Processor) Process(buf *stems.Buffer, events []Event) {
	numChannels := buf.NumChannels()
	numSamples := buf.NumSamples()

	// Separated audio is only consumed by a capture.
	if p.capture.CompareAndSwap(true, false) {
		p.separator.ProcessBlock(buf, p.separated)
		p.loadStems(p.separated)
	}

	p.buses.SetSize(numChannels, numSamples)
	pos := 0
	for _, ev := range events {
		off := min(max(ev.Offset, pos), numSamples)
		if off > pos {
			p.sampler.RenderStems(p.buses, pos, off-pos)
			pos = off
		}
		p.apply(ev)
	}
	if pos < numSamples {
		p.sampler.RenderStems(p.buses, pos, numSamples-pos)
	}

	Mix(buf, p.buses, p.params.Snapshot(), p.SelectedStem())
}

func (p *Processor) apply(ev Event) {
	switch ev.Type {
	case EventNoteOn:
		p.sampler.NoteOn(ev.Note, ev.Velocity)
	case EventNoteOff:
		p.sampler.NoteOff(ev.Note)
	case EventAllNotesOff:
		p.sampler.AllNotesOff()
	}
}

// SaveState returns the parameter state blob.
func (p *Processor) SaveState() []byte {
	return MarshalState(p.params.Values())
}

// LoadState applies a state blob. A malformed blob changes nothing.
func (p *Processor) LoadState(b []byte) error {
	values, err := UnmarshalState(b)
	if err != nil {
		return errors.Wrap(err, "load state")
	}
	for id, v := range values {
		p.SetParameter(ParamID(id), v)
	}
	return nil
}

// Release stops all voices and frees the separation model.
func (p *Processor) Release() {
	p.sampler.AllNotesOff()
	p.separator.Release()
	p.prepared = false
}

// Sampler gives direct access to the sampler for control-rate settings.
func (p *Processor) Sampler() *sampler.Sampler {
	return p.sampler
}

// Separator gives direct access to the separator.
func (p *Processor) Separator() *separation.Separator {
	return p.separator
}
