package separation

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/cwbudde/algo-stems/stems"
)

func writeModel(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write model: %v", err)
	}
	return path
}

const testDescriptor = `{
  "name": "htdemucs",
  "stems": {
    "bass":   {"type": "lowpass", "cutoff_hz": 200, "q": 0.7071, "gain": 1.0},
    "drums":  {"type": "highpass", "cutoff_hz": 5000},
    "vocals": {"type": "bandpass", "cutoff_hz": 1500, "q": 1.2, "gain": 0.5}
  }
}`

func toneRMS(x []float32) float64 {
	var sum float64
	for _, v := range x {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum / float64(len(x)))
}

func TestFileLoaderBuildsBandSplit(t *testing.T) {
	dir := t.TempDir()
	path := writeModel(t, dir, "htdemucs.json", testDescriptor)

	m, err := FileLoader{}.Load(path, 48000)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	bs, ok := m.(*BandSplit)
	if !ok {
		t.Fatalf("expected *BandSplit, got %T", m)
	}
	if bs.Name() != "htdemucs" || bs.SampleRate() != 48000 {
		t.Fatalf("metadata mismatch: name=%q sr=%d", bs.Name(), bs.SampleRate())
	}

	const n = 4800
	in := make([]float32, n)
	for i := range in {
		in[i] = float32(math.Sin(2 * math.Pi * 60 * float64(i) / 48000))
	}
	var outs [stems.Count][]float32
	for s := range outs {
		outs[s] = make([]float32, n)
		outs[s][0] = 99
	}
	m.Run(in, outs, n)

	if rms := toneRMS(outs[stems.Bass][n/2:]); rms < 0.5 {
		t.Fatalf("bass band should pass 60 Hz, rms=%f", rms)
	}
	if rms := toneRMS(outs[stems.Drums][n/2:]); rms > 0.01 {
		t.Fatalf("drum band should reject 60 Hz, rms=%f", rms)
	}
	for i, v := range outs[stems.Other] {
		if v != 0 {
			t.Fatalf("stem missing from descriptor must be silent, sample %d = %f", i, v)
		}
	}
}

func TestBandSplitRunIsStatelessPerCall(t *testing.T) {
	d := &Descriptor{Name: "t", Stems: map[string]Band{"bass": {Type: BandLowpass, CutoffHz: ptr(300)}}}
	m, err := NewBandSplit(d, 44100)
	if err != nil {
		t.Fatalf("NewBandSplit: %v", err)
	}
	in := []float32{1, 0.5, -0.25, 0.125, 0, 0, 0, 0}
	first := runStem(m, in, stems.Bass)
	second := runStem(m, in, stems.Bass)
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("sample %d differs between calls: %f vs %f", i, first[i], second[i])
		}
	}
}

func runStem(m Model, in []float32, k stems.Kind) []float32 {
	var outs [stems.Count][]float32
	outs[k] = make([]float32, len(in))
	m.Run(in, outs, len(in))
	return outs[k]
}

func ptr(v float32) *float32 { return &v }

func TestDescriptorValidation(t *testing.T) {
	cases := map[string]string{
		"unknown stem":   `{"stems": {"kazoo": {"type": "flat"}}}`,
		"bad type":       `{"stems": {"bass": {"type": "notch", "cutoff_hz": 100}}}`,
		"missing cutoff": `{"stems": {"bass": {"type": "lowpass"}}}`,
		"negative gain":  `{"stems": {"bass": {"type": "flat", "gain": -1}}}`,
		"zero q":         `{"stems": {"bass": {"type": "lowpass", "cutoff_hz": 100, "q": 0}}}`,
		"empty":          `{"stems": {}}`,
		"not json":       `{`,
	}
	dir := t.TempDir()
	for name, content := range cases {
		path := writeModel(t, dir, "m.json", content)
		if _, err := (FileLoader{}).Load(path, 44100); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
	if _, err := (FileLoader{}).Load(filepath.Join(dir, "absent.json"), 44100); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestWriteDescriptorRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fit.json")
	d := &Descriptor{
		Name: "fit",
		Stems: map[string]Band{
			"drums":  {Type: BandHighpass, CutoffHz: ptr(3000), Q: ptr(0.9), Gain: ptr(0.7)},
			"vocals": {Type: BandFlat, Gain: ptr(0.2)},
		},
	}
	if err := WriteDescriptor(path, d); err != nil {
		t.Fatalf("WriteDescriptor: %v", err)
	}
	got, err := ReadDescriptor(path)
	if err != nil {
		t.Fatalf("ReadDescriptor: %v", err)
	}
	drums := got.Stems["drums"]
	if drums.Type != BandHighpass || *drums.CutoffHz != 3000 || *drums.Q != 0.9 || *drums.Gain != 0.7 {
		t.Fatalf("drums band mismatch: %+v", drums)
	}
	if got.Stems["vocals"].CutoffHz != nil {
		t.Fatalf("flat band should not carry a cutoff")
	}
}

func TestSeparatorUsesFileModelForQuality(t *testing.T) {
	dir := t.TempDir()
	writeModel(t, dir, "demucs_light.json", `{"name": "light", "stems": {"vocals": {"type": "flat", "gain": 0.5}}}`)

	sep := NewSeparator(FileLoader{}, dir)
	sep.SetModelQuality(QualityLight)
	sep.Initialize(44100, 64)
	if sep.UsingFallback() {
		t.Fatalf("expected file model to load")
	}
	in := rampBuffer(2, 64)
	out := stems.NewSet(2, 64)
	sep.ProcessBlock(in, out)
	for i, v := range out[stems.Vocals].Channel(1) {
		if want := in.Channel(0)[i] * 0.5; v != want {
			t.Fatalf("sample %d: got=%f want=%f", i, v, want)
		}
	}

	sep.SetModelQuality(QualityHybrid)
	if !sep.UsingFallback() {
		t.Fatalf("missing htdemucs.json should fall back")
	}
}

func TestBandSplitRejectsCutoffAboveNyquist(t *testing.T) {
	cutoff := float32(30000)
	d := &Descriptor{Stems: map[string]Band{"bass": {Type: BandLowpass, CutoffHz: &cutoff}}}
	if _, err := NewBandSplit(d, 44100); err == nil {
		t.Fatalf("expected error for cutoff above Nyquist")
	}
	if _, err := NewBandSplit(d, 96000); err != nil {
		t.Fatalf("cutoff below Nyquist rejected: %v", err)
	}
}

func TestParseDescriptor(t *testing.T) {
	d, err := ParseDescriptor([]byte(`{"name":"tiny","stems":{"bass":{"type":"lowpass","cutoff_hz":150}}}`))
	if err != nil {
		t.Fatalf("ParseDescriptor: %v", err)
	}
	if d.Name != "tiny" || *d.Stems["bass"].CutoffHz != 150 {
		t.Fatalf("descriptor mismatch: %+v", d)
	}
	if _, err := ParseDescriptor([]byte(`{"stems":`)); err == nil {
		t.Fatalf("expected error for truncated JSON")
	}
	if _, err := ParseDescriptor([]byte(`{"stems":{"flute":{"type":"flat"}}}`)); err == nil {
		t.Fatalf("expected error for unknown stem")
	}
}

func TestBundledModelsLoad(t *testing.T) {
	for q := Quality(0); q <= MaxQuality; q++ {
		path := ModelPath(filepath.Join("..", "models"), q)
		m, err := FileLoader{}.Load(path, 44100)
		if err != nil {
			t.Fatalf("load %s: %v", path, err)
		}
		if got := m.(*BandSplit).Name(); got != ModelName(q) {
			t.Fatalf("model name mismatch: got=%q want=%q", got, ModelName(q))
		}
	}
}
