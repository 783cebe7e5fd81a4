package separation

import (
	"errors"
	"math"
	"testing"

	"github.com/cwbudde/algo-stems/stems"
)

func rampBuffer(numChannels, numSamples int) *stems.Buffer {
	b := stems.NewBuffer(numChannels, numSamples)
	for ch := 0; ch < numChannels; ch++ {
		data := b.Channel(ch)
		for i := range data {
			data[i] = float32(math.Sin(float64(i)*0.01+float64(ch))) * 0.5
		}
	}
	return b
}

// recordingModel doubles its input and remembers the chunk sizes it saw.
type recordingModel struct {
	chunks   []int
	released bool
}

func (m *recordingModel) SampleRate() int { return 44100 }
func (m *recordingModel) StemCount() int { return stems.Count }
func (m *recordingModel) Release() { m.released = true }

func (m *recordingModel) Run(input []float32, outputs [stems.Count][]float32, numSamples int) {
	m.chunks = append(m.chunks, numSamples)
	for s, out := range outputs {
		if out == nil {
			continue
		}
		for i := 0; i < numSamples; i++ {
			out[i] = input[i] * float32(s+1)
		}
	}
}

type countingLoader struct {
	paths  []string
	models []*recordingModel
	fail   bool
}

func (l *countingLoader) Load(path string, sampleRate int) (Model, error) {
	l.paths = append(l.paths, path)
	if l.fail {
		return nil, errors.New("no model")
	}
	m := &recordingModel{}
	l.models = append(l.models, m)
	return m, nil
}

func TestUninitializedSeparatorPassesInputThrough(t *testing.T) {
	for _, n := range []int{0, 1, 100, ChunkSize, ChunkSize + 100, 3*ChunkSize + 7} {
		sep := NewSeparator(ReferenceLoader, "")
		in := rampBuffer(2, n)
		out := stems.NewSet(2, 16)
		sep.ProcessBlock(in, out)
		for s, b := range out {
			if b.NumChannels() != 2 || b.NumSamples() != n {
				t.Fatalf("L=%d stem %d shape: got=%dx%d want=2x%d", n, s, b.NumChannels(), b.NumSamples(), n)
			}
			for ch := 0; ch < 2; ch++ {
				got := b.Channel(ch)
				want := in.Channel(ch)
				for i := range want {
					if got[i] != want[i] {
						t.Fatalf("L=%d stem %d ch %d sample %d: got=%f want=%f", n, s, ch, i, got[i], want[i])
					}
				}
			}
		}
	}
}

func TestSeparatorFillsNilOutputsInPassThrough(t *testing.T) {
	sep := NewSeparator(nil, "")
	in := rampBuffer(1, 32)
	var out stems.Set
	sep.ProcessBlock(in, &out)
	for s, b := range out {
		if b == nil || b.NumSamples() != 32 {
			t.Fatalf("stem %d not allocated", s)
		}
	}
}

func TestSeparatorChunksFinalPartialBlock(t *testing.T) {
	loader := &countingLoader{}
	sep := NewSeparator(loader, "models")
	sep.Initialize(44100, 512)

	const n = ChunkSize + 100
	in := rampBuffer(2, n)
	out := stems.NewSet(2, 512)
	sep.ProcessBlock(in, out)

	m := loader.models[0]
	if len(m.chunks) != 2 || m.chunks[0] != ChunkSize || m.chunks[1] != 100 {
		t.Fatalf("unexpected chunking: %v", m.chunks)
	}
	src := in.Channel(0)
	for s, b := range out {
		if b.NumSamples() != n {
			t.Fatalf("stem %d length: got=%d want=%d", s, b.NumSamples(), n)
		}
		scale := float32(s + 1)
		left, right := b.Channel(0), b.Channel(1)
		for i := 0; i < n; i++ {
			want := src[i] * scale
			if left[i] != want {
				t.Fatalf("stem %d sample %d: got=%f want=%f", s, i, left[i], want)
			}
			if right[i] != left[i] {
				t.Fatalf("stem %d sample %d: right channel not replicated", s, i)
			}
		}
	}
}

func TestChunkedMatchesUnchunkedForStatelessModel(t *testing.T) {
	for _, n := range []int{ChunkSize - 1, ChunkSize, ChunkSize + 1, 2*ChunkSize + 333} {
		sep := NewSeparator(ReferenceLoader, "")
		sep.Initialize(48000, 512)
		in := rampBuffer(2, n)
		out := stems.NewSet(2, 0)
		sep.ProcessBlock(in, out)

		var direct [stems.Count][]float32
		for s := range direct {
			direct[s] = make([]float32, n)
		}
		(&Reference{}).Run(in.Channel(0), direct, n)

		for s := range out {
			got := out[s].Channel(0)
			for i := 0; i < n; i++ {
				if got[i] != direct[s][i] {
					t.Fatalf("L=%d stem %d sample %d: chunked=%f direct=%f", n, s, i, got[i], direct[s][i])
				}
			}
		}
	}
}

func TestSeparatorMonoInputKeepsShape(t *testing.T) {
	sep := NewSeparator(ReferenceLoader, "")
	sep.Initialize(44100, 256)
	in := rampBuffer(1, 256)
	out := stems.NewSet(2, 256)
	sep.ProcessBlock(in, out)
	for s, b := range out {
		if b.NumChannels() != 1 || b.NumSamples() != 256 {
			t.Fatalf("stem %d shape: got=%dx%d", s, b.NumChannels(), b.NumSamples())
		}
	}
}

func TestSetModelQualityReloadsOnlyOnChange(t *testing.T) {
	loader := &countingLoader{}
	sep := NewSeparator(loader, "models")
	sep.SetModelQuality(QualityLight)
	if len(loader.paths) != 0 {
		t.Fatalf("quality change before Initialize must not load, got %v", loader.paths)
	}
	sep.Initialize(44100, 512)
	sep.SetModelQuality(QualityLight)
	if len(loader.paths) != 1 {
		t.Fatalf("unchanged quality must not reload, loads=%d", len(loader.paths))
	}
	sep.SetModelQuality(QualityHybridSixStem)
	if len(loader.paths) != 2 {
		t.Fatalf("expected reload on change, loads=%d", len(loader.paths))
	}
	if !loader.models[0].released {
		t.Fatalf("previous model was not released")
	}
	if loader.paths[1] != ModelPath("models", QualityHybridSixStem) {
		t.Fatalf("unexpected model path %q", loader.paths[1])
	}
	sep.Release()
	if !loader.models[1].released {
		t.Fatalf("teardown did not release the model")
	}
}

func TestQualitySwitchingNeverLeavesModelNil(t *testing.T) {
	loader := &countingLoader{fail: true}
	sep := NewSeparator(loader, "missing")
	sep.Initialize(44100, 512)
	for _, q := range []Quality{0, 3, 1, 1, 2, 0, 3, -5, 42} {
		sep.SetModelQuality(q)
		m := sep.Model()
		if m == nil {
			t.Fatalf("model nil after switching to %d", q)
		}
		if _, ok := m.(*PassThrough); !ok {
			t.Fatalf("expected pass-through fallback, got %T", m)
		}
		if !sep.UsingFallback() {
			t.Fatalf("expected fallback flag")
		}
	}
	if sep.ModelQuality() != MaxQuality {
		t.Fatalf("expected out-of-range quality to clamp, got %d", sep.ModelQuality())
	}
}

func TestReleaseClearsFallback(t *testing.T) {
	sep := NewSeparator(&countingLoader{fail: true}, "missing")
	sep.Initialize(44100, 512)
	if !sep.UsingFallback() {
		t.Fatalf("expected fallback after failed load")
	}
	sep.Release()
	if sep.UsingFallback() {
		t.Fatalf("fallback still reported after Release")
	}
	if sep.Model() != nil || sep.IsInitialized() {
		t.Fatalf("expected released separator, model=%v initialized=%v", sep.Model(), sep.IsInitialized())
	}
}

func TestFallbackModelStillProducesStems(t *testing.T) {
	sep := NewSeparator(FileLoader{}, t.TempDir())
	sep.Initialize(44100, 128)
	in := rampBuffer(2, 128)
	out := stems.NewSet(2, 128)
	sep.ProcessBlock(in, out)
	for s, b := range out {
		for i, v := range b.Channel(1) {
			if v != in.Channel(0)[i] {
				t.Fatalf("stem %d sample %d: got=%f want=%f", s, i, v, in.Channel(0)[i])
			}
		}
	}
}

func TestRunSkipsNilOutputs(t *testing.T) {
	in := []float32{1, 2, 3, 4}
	drums := make([]float32, 4)
	vocals := make([]float32, 4)
	models := []Model{NewPassThrough(44100), &Reference{}}
	for _, m := range models {
		var outs [stems.Count][]float32
		outs[stems.Drums] = drums
		outs[stems.Vocals] = vocals
		m.Run(in, outs, len(in))
		if drums[3] == 0 || vocals[3] == 0 {
			t.Fatalf("%T did not write provided outputs", m)
		}
		if m.StemCount() != stems.Count {
			t.Fatalf("%T stem count: %d", m, m.StemCount())
		}
	}
}

func TestReferenceGainsSplitInput(t *testing.T) {
	m, err := ReferenceLoader.Load("", 48000)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if m.SampleRate() != 48000 {
		t.Fatalf("sample rate: got=%d", m.SampleRate())
	}
	in := []float32{1}
	var outs [stems.Count][]float32
	for s := range outs {
		outs[s] = make([]float32, 1)
	}
	m.Run(in, outs, 1)
	for s := range outs {
		if outs[s][0] != ReferenceGains[s] {
			t.Fatalf("stem %d: got=%f want=%f", s, outs[s][0], ReferenceGains[s])
		}
	}
}

func TestModelPathTable(t *testing.T) {
	want := map[Quality]string{
		QualityLight:         "demucs_light",
		QualityStandard:      "demucs",
		QualityHybrid:        "htdemucs",
		QualityHybridSixStem: "htdemucs_6s",
	}
	for q, name := range want {
		if got := ModelName(q); got != name {
			t.Fatalf("quality %d: got=%q want=%q", q, got, name)
		}
	}
	if got := ModelPath("m", QualityHybrid); got != "m/htdemucs.json" {
		t.Fatalf("model path: %q", got)
	}
}
