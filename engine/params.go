package engine

import (
	"math"
	"sync/atomic"

	"github.com/cwbudde/algo-stems/separation"
	"github.com/cwbudde/algo-stems/stems"
)

// ParamID names a host-facing parameter. The order is also the order of the
// persisted state blob.
type ParamID int

const (
	ParamDrumLevel ParamID = iota
	ParamBassLevel
	ParamOtherLevel
	ParamVocalLevel
	ParamQuality
	ParamOutputMode

	NumParams = 6
)

// OutputMode selects how stems are mixed to the output.
type OutputMode int

const (
	OutputAll OutputMode = iota
	OutputSolo
)

// ParamSpec describes the range of one parameter. Discrete parameters are
// rounded to whole numbers.
type ParamSpec struct {
	Name     string
	Min      float32
	Max      float32
	Default  float32
	Discrete bool
}

var paramSpecs = [NumParams]ParamSpec{
	ParamDrumLevel:  {Name: "drumLevel", Min: 0, Max: 1, Default: 0.8},
	ParamBassLevel:  {Name: "bassLevel", Min: 0, Max: 1, Default: 0.8},
	ParamOtherLevel: {Name: "otherLevel", Min: 0, Max: 1, Default: 0.8},
	ParamVocalLevel: {Name: "vocalLevel", Min: 0, Max: 1, Default: 0.8},
	ParamQuality: {
		Name:     "quality",
		Min:      float32(separation.MinQuality),
		Max:      float32(separation.MaxQuality),
		Default:  float32(separation.DefaultQuality),
		Discrete: true,
	},
	ParamOutputMode: {Name: "outputMode", Min: 0, Max: 1, Default: 0, Discrete: true},
}

// Valid reports whether id names a parameter.
func (id ParamID) Valid() bool {
	return id >= 0 && id < NumParams
}

func (id ParamID) String() string {
	if !id.Valid() {
		return "unknown"
	}
	return paramSpecs[id].Name
}

// Spec returns the range description of id.
func (id ParamID) Spec() ParamSpec {
	if !id.Valid() {
		return ParamSpec{}
	}
	return paramSpecs[id]
}

// LevelParam returns the level parameter of a stem.
func LevelParam(k stems.Kind) ParamID {
	return ParamDrumLevel + ParamID(k)
}

// Clamp folds v into the parameter range. NaN becomes the default.
func (s ParamSpec) Clamp(v float32) float32 {
	if math.IsNaN(float64(v)) {
		return s.Default
	}
	if s.Discrete {
		v = float32(math.Round(float64(v)))
	}
	if v < s.Min {
		return s.Min
	}
	if v > s.Max {
		return s.Max
	}
	return v
}

// Params stores each parameter in its own atomic so that a control goroutine
// can write while the render goroutine reads.
type Params struct {
	values [NumParams]atomic.Uint32
}

// NewParams returns parameters at their defaults.
func NewParams() *Params {
	p := &Params{}
	for id := ParamID(0); id < NumParams; id++ {
		p.store(id, paramSpecs[id].Default)
	}
	return p
}

func (p *Params) store(id ParamID, v float32) {
	p.values[id].Store(math.Float32bits(v))
}

// Set clamps and stores v, returning the stored value. Unknown ids are ignored.
func (p *Params) Set(id ParamID, v float32) float32 {
	if !id.Valid() {
		return 0
	}
	v = paramSpecs[id].Clamp(v)
	p.store(id, v)
	return v
}

// Get returns the current value of id, or 0 for unknown ids.
func (p *Params) Get(id ParamID) float32 {
	if !id.Valid() {
		return 0
	}
	return math.Float32frombits(p.values[id].Load())
}

// Values returns every parameter in state order.
func (p *Params) Values() [NumParams]float32 {
	var out [NumParams]float32
	for id := range out {
		out[id] = p.Get(ParamID(id))
	}
	return out
}

// Snapshot is the per-block view of the parameters used by the render path.
type Snapshot struct {
	Levels     [stems.Count]float32
	Quality    separation.Quality
	OutputMode OutputMode
}

// Snapshot reads all parameters once.
func (p *Params) Snapshot() Snapshot {
	var s Snapshot
	for _, k := range stems.Kinds {
		s.Levels[k] = p.Get(LevelParam(k))
	}
	s.Quality = separation.ClampQuality(int(p.Get(ParamQuality)))
	s.OutputMode = OutputMode(p.Get(ParamOutputMode))
	return s
}
