package preset

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/apex/log"
	"github.com/cockroachdb/errors"

	"github.com/cwbudde/algo-stems/engine"
	"github.com/cwbudde/algo-stems/sampler"
	"github.com/cwbudde/algo-stems/separation"
	"github.com/cwbudde/algo-stems/stems"
)

// File is the JSON schema for engine presets.
type File struct {
	Levels       map[string]float32     `json:"levels"`
	Quality      *int                   `json:"quality"`
	OutputMode   *string                `json:"output_mode"`
	SelectedStem *string                `json:"selected_stem"`
	ModelDir     string                 `json:"model_dir"`
	PerStem      map[string]StemSetting `json:"per_stem"`
}

// StemSetting is a partial sampler override for one stem.
type StemSetting struct {
	StartSeconds *float64 `json:"start_seconds"`
	EndSeconds   *float64 `json:"end_seconds"`
	Loop         *bool    `json:"loop"`
	Pitch        *float32 `json:"pitch"`
	FilterFreq   *float32 `json:"filter_freq"`
	FilterRes    *float32 `json:"filter_res"`
}

var outputModes = map[string]engine.OutputMode{
	"all":  engine.OutputAll,
	"solo": engine.OutputSolo,
}

// LoadJSON loads a preset JSON file and applies it on top of the default config.
func LoadJSON(path string) (*engine.Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read preset %s", path)
	}

	var f File
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, errors.Wrapf(err, "parse preset %s", path)
	}

	cfg := engine.NewDefaultConfig()
	if err := ApplyFile(cfg, &f); err != nil {
		return nil, errors.Wrapf(err, "preset %s", path)
	}

	if cfg.ModelDir != "" && !filepath.IsAbs(cfg.ModelDir) {
		base := filepath.Dir(path)
		cfg.ModelDir = filepath.Clean(filepath.Join(base, cfg.ModelDir))
	}

	log.WithFields(log.Fields{
		"path":     path,
		"quality":  int(cfg.Quality),
		"modelDir": cfg.ModelDir,
		"perStem":  len(f.PerStem),
	}).Debug("preset loaded")
	return cfg, nil
}

// ApplyFile applies a parsed preset file onto an existing config.
func ApplyFile(dst *engine.Config, f *File) error {
	if dst == nil {
		return errors.New("nil destination config")
	}
	if f == nil {
		return nil
	}

	for _, name := range sortedKeys(f.Levels) {
		k, ok := stems.ParseKind(name)
		if !ok {
			return errors.Newf("invalid levels key %q", name)
		}
		v := f.Levels[name]
		if v < 0 || v > 1 {
			return errors.Newf("levels.%s must be in [0,1]", name)
		}
		dst.Levels[k] = v
	}
	if f.Quality != nil {
		q := *f.Quality
		if q < int(separation.MinQuality) || q > int(separation.MaxQuality) {
			return errors.Newf("quality must be in [%d,%d]", separation.MinQuality, separation.MaxQuality)
		}
		dst.Quality = separation.Quality(q)
	}
	if f.OutputMode != nil {
		mode, ok := outputModes[strings.ToLower(strings.TrimSpace(*f.OutputMode))]
		if !ok {
			return errors.Newf("invalid output_mode %q (expected all or solo)", *f.OutputMode)
		}
		dst.OutputMode = mode
	}
	if f.SelectedStem != nil {
		k, ok := stems.ParseKind(strings.TrimSpace(*f.SelectedStem))
		if !ok {
			return errors.Newf("invalid selected_stem %q", *f.SelectedStem)
		}
		dst.SelectedStem = k
	}
	if f.ModelDir != "" {
		dst.ModelDir = strings.TrimSpace(f.ModelDir)
	}

	for _, name := range sortedKeys(f.PerStem) {
		k, ok := stems.ParseKind(name)
		if !ok {
			return errors.Newf("invalid per_stem key %q", name)
		}
		sc := dst.PerStem[k]
		if sc == nil {
			sc = engine.NewDefaultStemConfig()
			dst.PerStem[k] = sc
		}
		if err := applyStem(sc, f.PerStem[name]); err != nil {
			return errors.Wrapf(err, "per_stem.%s", name)
		}
	}
	return nil
}

func applyStem(sc *engine.StemConfig, o StemSetting) error {
	if o.StartSeconds != nil {
		if *o.StartSeconds < 0 {
			return errors.New("start_seconds must be >= 0")
		}
		sc.StartSeconds = *o.StartSeconds
	}
	if o.EndSeconds != nil {
		if *o.EndSeconds < 0 {
			return errors.New("end_seconds must be >= 0")
		}
		sc.EndSeconds = *o.EndSeconds
	}
	if sc.EndSeconds > 0 && sc.EndSeconds <= sc.StartSeconds {
		return errors.New("end_seconds must be after start_seconds")
	}
	if o.Loop != nil {
		sc.Loop = *o.Loop
	}
	if o.Pitch != nil {
		if *o.Pitch < sampler.MinPitch {
			return errors.Newf("pitch must be >= %g", sampler.MinPitch)
		}
		sc.Pitch = *o.Pitch
	}
	if o.FilterFreq != nil {
		if *o.FilterFreq < sampler.MinFilterFreq || *o.FilterFreq > sampler.MaxFilterFreq {
			return errors.Newf("filter_freq must be in [%g,%g]", sampler.MinFilterFreq, sampler.MaxFilterFreq)
		}
		sc.FilterFreq = *o.FilterFreq
	}
	if o.FilterRes != nil {
		if *o.FilterRes < sampler.MinFilterRes || *o.FilterRes > sampler.MaxFilterRes {
			return errors.Newf("filter_res must be in [%g,%g]", sampler.MinFilterRes, sampler.MaxFilterRes)
		}
		sc.FilterRes = *o.FilterRes
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
