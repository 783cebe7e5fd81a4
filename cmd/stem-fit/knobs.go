package main

import (
	"math"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/cwbudde/algo-stems/separation"
	"github.com/cwbudde/algo-stems/stems"
)

// knobDef is one optimized dimension. Log knobs are searched on a
// logarithmic scale between Min and Max.
type knobDef struct {
	Name string
	Stem stems.Kind
	Min  float64
	Max  float64
	Log  bool
}

type candidate struct {
	Vals []float64
}

const (
	knobCutoff = "cutoff_hz"
	knobQ      = "q"
	knobGain   = "gain"
)

// defaultBands is the starting layout when no initial descriptor is given.
func defaultBands() map[string]separation.Band {
	return map[string]separation.Band{
		"drums":  {Type: separation.BandHighpass, CutoffHz: f32(2000), Q: f32(0.7071), Gain: f32(1)},
		"bass":   {Type: separation.BandLowpass, CutoffHz: f32(200), Q: f32(0.7071), Gain: f32(1)},
		"other":  {Type: separation.BandBandpass, CutoffHz: f32(800), Q: f32(0.7), Gain: f32(1)},
		"vocals": {Type: separation.BandBandpass, CutoffHz: f32(1500), Q: f32(1), Gain: f32(1)},
	}
}

// initCandidate lists the knobs of every filtered stem in d and their
// starting values. Flat stems only get a gain knob. Cutoffs stay below
// Nyquist.
func initCandidate(d *separation.Descriptor, sampleRate int) ([]knobDef, candidate) {
	maxCutoff := min(18000, 0.45*float64(sampleRate))
	defs := make([]knobDef, 0, 3*stems.Count)
	vals := make([]float64, 0, 3*stems.Count)
	for _, k := range stems.Kinds {
		b, ok := d.Stems[k.String()]
		if !ok {
			continue
		}
		prefix := k.String() + "."
		if strings.ToLower(b.Type) != separation.BandFlat {
			defs = append(defs, knobDef{Name: prefix + knobCutoff, Stem: k, Min: 20, Max: maxCutoff, Log: true})
			vals = append(vals, clamp(valueOr(b.CutoffHz, 1000), 20, maxCutoff))
			defs = append(defs, knobDef{Name: prefix + knobQ, Stem: k, Min: 0.3, Max: 8, Log: true})
			vals = append(vals, valueOr(b.Q, 0.7071))
		}
		defs = append(defs, knobDef{Name: prefix + knobGain, Stem: k, Min: 0, Max: 2})
		vals = append(vals, valueOr(b.Gain, 1))
	}
	return defs, candidate{Vals: vals}
}

// applyCandidate writes candidate values into a copy of base.
func applyCandidate(base *separation.Descriptor, defs []knobDef, c candidate) (*separation.Descriptor, error) {
	if len(defs) != len(c.Vals) {
		return nil, errors.Newf("candidate has %d values for %d knobs", len(c.Vals), len(defs))
	}
	out := &separation.Descriptor{Name: base.Name, Stems: make(map[string]separation.Band, len(base.Stems))}
	for name, b := range base.Stems {
		out.Stems[name] = b
	}
	for i, def := range defs {
		name := def.Stem.String()
		b, ok := out.Stems[name]
		if !ok {
			return nil, errors.Newf("knob %s targets missing stem", def.Name)
		}
		v := f32(float32(c.Vals[i]))
		switch strings.TrimPrefix(def.Name, name+".") {
		case knobCutoff:
			b.CutoffHz = v
		case knobQ:
			b.Q = v
		case knobGain:
			b.Gain = v
		default:
			return nil, errors.Newf("unknown knob %s", def.Name)
		}
		out.Stems[name] = b
	}
	return out, nil
}

func toNormalized(c candidate, defs []knobDef) []float64 {
	pos := make([]float64, len(defs))
	for i, d := range defs {
		v := clamp(c.Vals[i], d.Min, d.Max)
		if d.Log {
			pos[i] = math.Log(v/d.Min) / math.Log(d.Max/d.Min)
			continue
		}
		pos[i] = (v - d.Min) / (d.Max - d.Min)
	}
	return pos
}

func fromNormalized(pos []float64, defs []knobDef) candidate {
	vals := make([]float64, len(defs))
	for i := range defs {
		x := 0.0
		if i < len(pos) {
			x = clamp(pos[i], 0, 1)
		}
		d := defs[i]
		if d.Log {
			vals[i] = d.Min * math.Pow(d.Max/d.Min, x)
			continue
		}
		vals[i] = d.Min + x*(d.Max-d.Min)
	}
	return candidate{Vals: vals}
}

func valueOr(p *float32, def float64) float64 {
	if p == nil {
		return def
	}
	return float64(*p)
}

func f32(v float32) *float32 {
	return &v
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
