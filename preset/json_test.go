package preset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cwbudde/algo-stems/engine"
	"github.com/cwbudde/algo-stems/separation"
	"github.com/cwbudde/algo-stems/stems"
)

func writePreset(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	presetPath := filepath.Join(dir, "preset.json")
	if err := os.WriteFile(presetPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write preset: %v", err)
	}
	return presetPath
}

func TestLoadJSONAppliesGlobalAndPerStem(t *testing.T) {
	presetPath := writePreset(t, `{
  "levels": {"drums": 0.5, "vocals": 1},
  "quality": 1,
  "output_mode": "solo",
  "selected_stem": "bass",
  "model_dir": "models",
  "per_stem": {
    "bass": {
      "start_seconds": 0.25,
      "end_seconds": 1.5,
      "loop": true,
      "pitch": 0.5,
      "filter_freq": 800,
      "filter_res": 2
    }
  }
}`)

	cfg, err := LoadJSON(presetPath)
	if err != nil {
		t.Fatalf("LoadJSON: %v", err)
	}
	if cfg.Levels[stems.Drums] != 0.5 || cfg.Levels[stems.Vocals] != 1 || cfg.Levels[stems.Bass] != 0.8 {
		t.Fatalf("levels mismatch: %+v", cfg.Levels)
	}
	if cfg.Quality != separation.QualityStandard {
		t.Fatalf("quality mismatch: got=%v want=%v", cfg.Quality, separation.QualityStandard)
	}
	if cfg.OutputMode != engine.OutputSolo || cfg.SelectedStem != stems.Bass {
		t.Fatalf("output mode mismatch: mode=%v stem=%v", cfg.OutputMode, cfg.SelectedStem)
	}
	wantDir := filepath.Join(filepath.Dir(presetPath), "models")
	if cfg.ModelDir != wantDir {
		t.Fatalf("model dir mismatch: got=%q want=%q", cfg.ModelDir, wantDir)
	}
	sc := cfg.PerStem[stems.Bass]
	if sc == nil {
		t.Fatalf("missing bass override")
	}
	if sc.StartSeconds != 0.25 || sc.EndSeconds != 1.5 || !sc.Loop || sc.Pitch != 0.5 ||
		sc.FilterFreq != 800 || sc.FilterRes != 2 {
		t.Fatalf("stem settings mismatch: %+v", sc)
	}
	if cfg.PerStem[stems.Drums] != nil {
		t.Fatalf("unexpected drums override")
	}
}

func TestLoadJSONPartialStemKeepsDefaults(t *testing.T) {
	cfg, err := LoadJSON(writePreset(t, `{"per_stem": {"other": {"loop": true}}}`))
	if err != nil {
		t.Fatalf("LoadJSON: %v", err)
	}
	sc := cfg.PerStem[stems.Other]
	if sc.Pitch != 1 || sc.FilterFreq != 20000 || sc.FilterRes != 0.1 {
		t.Fatalf("defaults not kept: %+v", sc)
	}
	if cfg.Quality != separation.DefaultQuality {
		t.Fatalf("quality default mismatch: got=%v", cfg.Quality)
	}
}

func TestLoadJSONRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"stem key":     `{"levels": {"kazoo": 0.5}}`,
		"level range":  `{"levels": {"bass": 1.5}}`,
		"quality":      `{"quality": 4}`,
		"mode":         `{"output_mode": "mute"}`,
		"selected":     `{"selected_stem": "guitar"}`,
		"per_stem key": `{"per_stem": {"x": {"loop": true}}}`,
		"pitch":        `{"per_stem": {"bass": {"pitch": 0.01}}}`,
		"filter_freq":  `{"per_stem": {"bass": {"filter_freq": 5}}}`,
		"filter_res":   `{"per_stem": {"bass": {"filter_res": 11}}}`,
		"region":       `{"per_stem": {"bass": {"start_seconds": 2, "end_seconds": 1}}}`,
		"syntax":       `{"levels": `,
	}
	for name, content := range cases {
		if _, err := LoadJSON(writePreset(t, content)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestLoadJSONMissingFile(t *testing.T) {
	if _, err := LoadJSON(filepath.Join(t.TempDir(), "none.json")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestApplyFileNilDestination(t *testing.T) {
	if err := ApplyFile(nil, &File{}); err == nil {
		t.Fatalf("expected error for nil destination")
	}
	if err := ApplyFile(engine.NewDefaultConfig(), nil); err != nil {
		t.Fatalf("nil file should be a no-op: %v", err)
	}
}

func TestBundledDefaultPresetLoads(t *testing.T) {
	cfg, err := LoadJSON(filepath.Join("..", "assets", "presets", "default.json"))
	if err != nil {
		t.Fatalf("LoadJSON: %v", err)
	}
	if cfg.Quality != separation.DefaultQuality {
		t.Fatalf("quality mismatch: got=%d want=%d", cfg.Quality, separation.DefaultQuality)
	}
	if _, err := os.Stat(separation.ModelPath(cfg.ModelDir, cfg.Quality)); err != nil {
		t.Fatalf("preset model dir does not resolve to a model: %v", err)
	}
	if sc := cfg.PerStem[stems.Bass]; sc == nil || !sc.Loop {
		t.Fatalf("expected looping bass stem, got=%+v", sc)
	}
}
