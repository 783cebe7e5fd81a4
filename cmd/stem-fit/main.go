package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	"github.com/cockroachdb/errors"
	"github.com/fatih/color"

	"github.com/cwbudde/algo-stems/internal/stemio"
	"github.com/cwbudde/algo-stems/separation"
	"github.com/cwbudde/algo-stems/stems"
)

func main() {
	mixPath := flag.String("mix", "", "Mixed input WAV (required)")
	refsDir := flag.String("refs-dir", "", "Directory with reference stems named <prefix>_<stem>.wav (required)")
	refsPrefix := flag.String("refs-prefix", "", "Reference file prefix (default: mix file name)")
	initPath := flag.String("init", "", "Starting band-split descriptor (default: built-in layout)")
	output := flag.String("output", "models/htdemucs.json", "Output descriptor path")
	name := flag.String("name", "", "Model name stored in the descriptor (default: output file name)")
	variant := flag.String("variant", "ma", "Mayfly variant: ma, desma, olce, eobbma, gsasma, mpma, aoblmoa")
	pop := flag.Int("pop", 10, "Mayfly population size")
	iters := flag.Int("iters", 20, "Mayfly iterations")
	seed := flag.Int64("seed", 1, "Random seed")
	maxSeconds := flag.Float64("max-seconds", 10, "Only fit the first N seconds of the mix")
	verbose := flag.Bool("v", false, "Verbose logging")
	flag.Parse()

	log.SetHandler(cli.New(os.Stderr))
	if *verbose {
		log.SetLevel(log.DebugLevel)
	}

	if *mixPath == "" || *refsDir == "" {
		fmt.Fprintln(os.Stderr, "usage: stem-fit -mix mix.wav -refs-dir stems/ [-init model.json] [-output model.json]")
		os.Exit(2)
	}
	if *refsPrefix == "" {
		*refsPrefix = strings.TrimSuffix(filepath.Base(*mixPath), filepath.Ext(*mixPath))
	}
	if *name == "" {
		*name = strings.TrimSuffix(filepath.Base(*output), filepath.Ext(*output))
	}

	cfg, err := loadFitInputs(*mixPath, *refsDir, *refsPrefix, *initPath, *maxSeconds)
	if err != nil {
		log.WithError(err).Error("load inputs")
		os.Exit(1)
	}
	cfg.base.Name = *name
	cfg.variant = *variant
	cfg.pop = *pop
	cfg.iterations = *iters
	cfg.seed = *seed

	res, err := runFit(cfg)
	if err != nil {
		log.WithError(err).Error("fit failed")
		os.Exit(1)
	}
	if err := os.MkdirAll(filepath.Dir(*output), 0o755); err != nil {
		log.WithError(err).Error("create output directory")
		os.Exit(1)
	}
	if err := separation.WriteDescriptor(*output, res.best); err != nil {
		log.WithError(err).Error("write descriptor")
		os.Exit(1)
	}
	printReport(*output, res)
}

func loadFitInputs(mixPath, refsDir, refsPrefix, initPath string, maxSeconds float64) (*fitConfig, error) {
	mix, sampleRate, err := stemio.ReadWAV(mixPath)
	if err != nil {
		return nil, err
	}
	refs, refRate, err := stemio.ReadStems(refsDir, refsPrefix)
	if err != nil {
		return nil, err
	}
	found := 0
	for _, k := range stems.Kinds {
		if refs[k] == nil {
			continue
		}
		found++
		if refRate != sampleRate {
			if refs[k], err = stemio.Resample(refs[k], refRate, sampleRate); err != nil {
				return nil, errors.Wrapf(err, "resample %s reference", k)
			}
		}
	}
	if found == 0 {
		return nil, errors.Newf("no reference stems %s_<stem>.wav in %s", refsPrefix, refsDir)
	}

	if maxSeconds > 0 {
		limit := int(maxSeconds * float64(sampleRate))
		mix = truncate(mix, limit)
		for _, k := range stems.Kinds {
			if refs[k] != nil {
				refs[k] = truncate(refs[k], limit)
			}
		}
	}

	base := &separation.Descriptor{Stems: defaultBands()}
	if initPath != "" {
		if base, err = separation.ReadDescriptor(initPath); err != nil {
			return nil, err
		}
	}

	return &fitConfig{
		mix:        mix,
		references: refs,
		sampleRate: sampleRate,
		base:       base,
	}, nil
}

func truncate(b *stems.Buffer, n int) *stems.Buffer {
	if b.NumSamples() <= n {
		return b
	}
	channels := make([][]float32, b.NumChannels())
	for ch := range channels {
		channels[ch] = b.Channel(ch)[:n]
	}
	return stems.NewBufferFrom(channels...)
}

func printReport(path string, res *fitResult) {
	ok := color.New(color.FgGreen, color.Bold)
	warn := color.New(color.FgYellow)
	head := color.New(color.Bold)

	ok.Printf("Wrote %s\n", path)
	fmt.Printf("Score %.4f -> %.4f after %d evaluations (%d improvements)\n",
		res.initial.Score, res.final.Score, res.evals, len(res.improveLog))

	head.Println("Per stem:")
	for _, k := range stems.Kinds {
		m := res.final.PerStem[k]
		if m == nil {
			continue
		}
		fmt.Printf("  %-7s score=%.4f spectral=%.1fdB band=%.1fdB\n", k, m.Score, m.SpectralRMSEDB, m.BandRMSEDB)
	}

	defs, c := initCandidate(res.best, res.sampleRate)
	pos := toNormalized(c, defs)
	head.Println("Knobs:")
	for i, d := range defs {
		line := fmt.Sprintf("  %-18s %10.3f", d.Name, c.Vals[i])
		if pos[i] < 0.01 || pos[i] > 0.99 {
			warn.Println(line + "  (at search bound)")
			continue
		}
		fmt.Println(line)
	}
}
