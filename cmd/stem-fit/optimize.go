package main

import (
	"math"
	"math/rand"
	"strings"
	"sync"

	"github.com/apex/log"
	"github.com/cockroachdb/errors"
	"github.com/cwbudde/mayfly"

	"github.com/cwbudde/algo-stems/analysis"
	"github.com/cwbudde/algo-stems/separation"
	"github.com/cwbudde/algo-stems/stems"
)

type fitConfig struct {
	mix        *stems.Buffer
	references *stems.Set
	sampleRate int
	base       *separation.Descriptor
	variant    string
	pop        int
	iterations int
	seed       int64
}

type fitResult struct {
	sampleRate int
	best       *separation.Descriptor
	initial    analysis.StemMetrics
	final      analysis.StemMetrics
	evals      int
	improveLog []float64
}

// evaluate separates the mix with d and scores it against the references.
func evaluate(cfg *fitConfig, d *separation.Descriptor) (analysis.StemMetrics, error) {
	model, err := separation.NewBandSplit(d, cfg.sampleRate)
	if err != nil {
		return analysis.StemMetrics{}, err
	}
	sep := separation.NewSeparator(separation.LoaderFunc(func(string, int) (separation.Model, error) {
		return model, nil
	}), "")
	sep.Initialize(cfg.sampleRate, separation.ChunkSize)
	defer sep.Release()

	out := stems.NewSet(cfg.mix.NumChannels(), cfg.mix.NumSamples())
	sep.ProcessBlock(cfg.mix, out)
	return analysis.CompareStems(cfg.references, out, cfg.sampleRate), nil
}

func runFit(cfg *fitConfig) (*fitResult, error) {
	defs, _ := initCandidate(cfg.base, cfg.sampleRate)
	if len(defs) == 0 {
		return nil, errors.New("descriptor has no stems to fit")
	}

	initial, err := evaluate(cfg, cfg.base)
	if err != nil {
		return nil, errors.Wrap(err, "evaluate initial descriptor")
	}
	log.WithFields(log.Fields{
		"score":    initial.Score,
		"compared": initial.Compared,
		"knobs":    len(defs),
	}).Info("initial descriptor")

	var (
		mu        sync.Mutex
		bestScore = initial.Score
		best      = cfg.base
		evals     int
		history   []float64
	)

	record := func(d *separation.Descriptor, m analysis.StemMetrics) float64 {
		mu.Lock()
		defer mu.Unlock()
		evals++
		if m.Score < bestScore {
			bestScore = m.Score
			best = d
			history = append(history, m.Score)
			log.WithFields(log.Fields{
				"eval":  evals,
				"score": m.Score,
			}).Debug("improved")
		}
		return m.Score
	}

	penalty := func() float64 {
		mu.Lock()
		defer mu.Unlock()
		return bestScore + 1
	}

	mcfg, err := newMayflyConfig(cfg.variant, cfg.pop, len(defs), cfg.iterations)
	if err != nil {
		return nil, err
	}
	mcfg.Rand = rand.New(rand.NewSource(cfg.seed))
	mcfg.ObjectiveFunc = func(pos []float64) float64 {
		d, err := applyCandidate(cfg.base, defs, fromNormalized(pos, defs))
		if err != nil {
			return penalty()
		}
		m, err := evaluate(cfg, d)
		if err != nil || math.IsNaN(m.Score) {
			return penalty()
		}
		return record(d, m)
	}

	if _, err := runMayfly(mcfg); err != nil {
		return nil, errors.Wrap(err, "optimize")
	}

	final, err := evaluate(cfg, best)
	if err != nil {
		return nil, err
	}
	return &fitResult{
		sampleRate: cfg.sampleRate,
		best:       best,
		initial:    initial,
		final:      final,
		evals:      evals,
		improveLog: history,
	}, nil
}

func newMayflyConfig(variant string, pop int, dims int, iters int) (*mayfly.Config, error) {
	var cfg *mayfly.Config
	switch strings.ToLower(variant) {
	case "ma":
		cfg = mayfly.NewDefaultConfig()
	case "desma":
		cfg = mayfly.NewDESMAConfig()
	case "olce":
		cfg = mayfly.NewOLCEConfig()
	case "eobbma":
		cfg = mayfly.NewEOBBMAConfig()
	case "gsasma":
		cfg = mayfly.NewGSASMAConfig()
	case "mpma":
		cfg = mayfly.NewMPMAConfig()
	case "aoblmoa":
		cfg = mayfly.NewAOBLMOAConfig()
	default:
		return nil, errors.Newf("unsupported variant %q", variant)
	}
	if pop < 2 {
		return nil, errors.Newf("population must be >= 2, got %d", pop)
	}
	cfg.ProblemSize = dims
	cfg.LowerBound = 0.0
	cfg.UpperBound = 1.0
	cfg.MaxIterations = max(1, iters)
	cfg.NPop = pop
	cfg.NPopF = pop
	cfg.NC = 2 * pop
	cfg.NM = max(1, int(math.Round(0.05*float64(pop))))
	return cfg, nil
}

func runMayfly(cfg *mayfly.Config) (_ *mayfly.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf("mayfly panic: %v", r)
		}
	}()
	return mayfly.Optimize(cfg)
}
