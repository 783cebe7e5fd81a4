package separation

import (
	"encoding/json"
	"os"
	"sort"
	"strings"

	"github.com/apex/log"
	"github.com/cockroachdb/errors"

	"github.com/cwbudde/algo-stems/dsp"
	"github.com/cwbudde/algo-stems/stems"
)

// Band filter shapes understood by BandSplit descriptors.
const (
	BandLowpass  = "lowpass"
	BandHighpass = "highpass"
	BandBandpass = "bandpass"
	BandFlat     = "flat"
)

// Descriptor is the JSON schema of a band-split model file.
type Descriptor struct {
	Name  string          `json:"name"`
	Stems map[string]Band `json:"stems"`
}

// Band describes how one stem is carved out of the input.
type Band struct {
	Type     string   `json:"type"`
	CutoffHz *float32 `json:"cutoff_hz,omitempty"`
	Q        *float32 `json:"q,omitempty"`
	Gain     *float32 `json:"gain,omitempty"`
}

// Validate checks stem names and band ranges.
func (d *Descriptor) Validate() error {
	if d == nil {
		return errors.New("nil descriptor")
	}
	if len(d.Stems) == 0 {
		return errors.New("descriptor defines no stems")
	}
	names := make([]string, 0, len(d.Stems))
	for name := range d.Stems {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, ok := stems.ParseKind(name); !ok {
			return errors.Newf("unknown stem %q", name)
		}
		b := d.Stems[name]
		switch strings.ToLower(b.Type) {
		case BandLowpass, BandHighpass, BandBandpass:
			if b.CutoffHz == nil || *b.CutoffHz <= 0 {
				return errors.Newf("stems.%s.cutoff_hz must be > 0", name)
			}
		case BandFlat:
		default:
			return errors.Newf("stems.%s.type %q is not one of lowpass, highpass, bandpass, flat", name, b.Type)
		}
		if b.Q != nil && *b.Q <= 0 {
			return errors.Newf("stems.%s.q must be > 0", name)
		}
		if b.Gain != nil && *b.Gain < 0 {
			return errors.Newf("stems.%s.gain must be >= 0", name)
		}
	}
	return nil
}

// ReadDescriptor loads and validates a descriptor file.
func ReadDescriptor(path string) (*Descriptor, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read model %s", path)
	}
	d, err := ParseDescriptor(b)
	return d, errors.Wrapf(err, "model %s", path)
}

// ParseDescriptor decodes and validates a descriptor from JSON.
func ParseDescriptor(b []byte) (*Descriptor, error) {
	var d Descriptor
	if err := json.Unmarshal(b, &d); err != nil {
		return nil, errors.Wrap(err, "parse descriptor")
	}
	if err := d.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid descriptor")
	}
	return &d, nil
}

// WriteDescriptor stores d as indented JSON.
func WriteDescriptor(path string, d *Descriptor) error {
	if err := d.Validate(); err != nil {
		return err
	}
	b, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode model")
	}
	b = append(b, '\n')
	return errors.Wrapf(os.WriteFile(path, b, 0o644), "write model %s", path)
}

// BandSplit separates stems with one biquad band per stem.
type BandSplit struct {
	name       string
	sampleRate int
	filters    [stems.Count]*dsp.Biquad
	gains      [stems.Count]float32
}

// NewBandSplit builds a model from a validated descriptor. Stems missing
// from the descriptor come out silent.
func NewBandSplit(d *Descriptor, sampleRate int) (*BandSplit, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	if sampleRate <= 0 {
		return nil, errors.Newf("invalid sample rate %d", sampleRate)
	}
	m := &BandSplit{name: d.Name, sampleRate: sampleRate}
	sr := float32(sampleRate)
	for name, b := range d.Stems {
		k, _ := stems.ParseKind(name)
		q := float32(0.7071)
		if b.Q != nil {
			q = *b.Q
		}
		gain := float32(1)
		if b.Gain != nil {
			gain = *b.Gain
		}
		if b.CutoffHz != nil && strings.ToLower(b.Type) != BandFlat && *b.CutoffHz >= sr/2 {
			return nil, errors.Newf("stems.%s.cutoff_hz %g is not below Nyquist", name, *b.CutoffHz)
		}
		switch strings.ToLower(b.Type) {
		case BandLowpass:
			m.filters[k] = dsp.NewLowpass(*b.CutoffHz, sr, q)
		case BandHighpass:
			m.filters[k] = dsp.NewHighpass(*b.CutoffHz, sr, q)
		case BandBandpass:
			m.filters[k] = dsp.NewBandpass(*b.CutoffHz, sr, q)
		default:
			m.filters[k] = dsp.NewIdentity()
		}
		m.gains[k] = gain
	}
	return m, nil
}

func (m *BandSplit) Name() string { return m.name }
func (m *BandSplit) SampleRate() int { return m.sampleRate }
func (m *BandSplit) StemCount() int { return stems.Count }
func (m *BandSplit) Release() {}

func (m *BandSplit) Run(input []float32, outputs [stems.Count][]float32, numSamples int) {
	n := clampSamples(numSamples, input)
	for s, out := range outputs {
		if out == nil {
			continue
		}
		out = out[:n]
		f := m.filters[s]
		if f == nil {
			clear(out)
			continue
		}
		f.Reset()
		g := m.gains[s]
		for i, x := range input[:n] {
			out[i] = f.Process(x) * g
		}
	}
}

// FileLoader loads BandSplit descriptors from disk.
type FileLoader struct{}

// Load reads the descriptor at path.
func (FileLoader) Load(path string, sampleRate int) (Model, error) {
	d, err := ReadDescriptor(path)
	if err != nil {
		return nil, err
	}
	m, err := NewBandSplit(d, sampleRate)
	if err != nil {
		return nil, errors.Wrapf(err, "build model %s", path)
	}
	log.WithFields(log.Fields{
		"path":       path,
		"name":       d.Name,
		"sampleRate": sampleRate,
	}).Debug("loaded band-split model")
	return m, nil
}
