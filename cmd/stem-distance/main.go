package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	"github.com/cockroachdb/errors"
	"github.com/fatih/color"

	"github.com/cwbudde/algo-stems/analysis"
	"github.com/cwbudde/algo-stems/internal/stemio"
	"github.com/cwbudde/algo-stems/separation"
	"github.com/cwbudde/algo-stems/stems"
)

type distanceOptions struct {
	refsDir    string
	refsPrefix string
	candDir    string
	candPrefix string
	mix        string
	model      string
}

func main() {
	var opts distanceOptions
	flag.StringVar(&opts.refsDir, "refs-dir", "reference", "Directory with reference stems <prefix>_<stem>.wav")
	flag.StringVar(&opts.refsPrefix, "refs-prefix", "ref", "Reference stem file prefix")
	flag.StringVar(&opts.candDir, "candidate-dir", "", "Directory with candidate stems (alternative to -mix)")
	flag.StringVar(&opts.candPrefix, "candidate-prefix", "mix", "Candidate stem file prefix")
	flag.StringVar(&opts.mix, "mix", "", "Mix WAV to separate into candidate stems")
	flag.StringVar(&opts.model, "model", "", "Band-split descriptor used with -mix (default: reference gains)")
	jsonOut := flag.Bool("json", false, "Print metrics as JSON")
	verbose := flag.Bool("v", false, "Verbose logging")
	flag.Parse()

	log.SetHandler(cli.New(os.Stderr))
	if *verbose {
		log.SetLevel(log.DebugLevel)
	}

	m, err := run(opts)
	if err != nil {
		log.WithError(err).Error("distance failed")
		os.Exit(1)
	}
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(m); err != nil {
			log.WithError(err).Error("json encode failed")
			os.Exit(1)
		}
		return
	}
	printReport(os.Stdout, m)
}

func run(opts distanceOptions) (analysis.StemMetrics, error) {
	refs, sampleRate, err := stemio.ReadStems(opts.refsDir, opts.refsPrefix)
	if err != nil {
		return analysis.StemMetrics{}, errors.Wrap(err, "reference stems")
	}

	var cand *stems.Set
	switch {
	case opts.candDir != "" && opts.mix != "":
		return analysis.StemMetrics{}, errors.New("use either -candidate-dir or -mix, not both")
	case opts.candDir != "":
		var candRate int
		cand, candRate, err = stemio.ReadStems(opts.candDir, opts.candPrefix)
		if err != nil {
			return analysis.StemMetrics{}, errors.Wrap(err, "candidate stems")
		}
		if candRate != sampleRate {
			return analysis.StemMetrics{}, errors.Newf("candidate rate %d Hz does not match reference rate %d Hz", candRate, sampleRate)
		}
	case opts.mix != "":
		cand, err = separateMix(opts.mix, opts.model, sampleRate)
		if err != nil {
			return analysis.StemMetrics{}, err
		}
	default:
		return analysis.StemMetrics{}, errors.New("-candidate-dir or -mix is required")
	}

	m := analysis.CompareStems(refs, cand, sampleRate)
	if m.Compared == 0 {
		return m, errors.New("no stem present in both sets")
	}
	return m, nil
}

// separateMix splits the mix at the reference rate with either a descriptor
// or the fixed-gain reference model.
func separateMix(path, model string, sampleRate int) (*stems.Set, error) {
	mix, mixRate, err := stemio.ReadWAV(path)
	if err != nil {
		return nil, err
	}
	if mixRate != sampleRate {
		if mix, err = stemio.Resample(mix, mixRate, sampleRate); err != nil {
			return nil, errors.Wrap(err, "resample mix")
		}
	}

	var loader separation.Loader = separation.ReferenceLoader
	if model != "" {
		loader = separation.LoaderFunc(func(_ string, sr int) (separation.Model, error) {
			return separation.FileLoader{}.Load(model, sr)
		})
	}
	sep := separation.NewSeparator(loader, "")
	defer sep.Release()
	sep.Initialize(sampleRate, separation.ChunkSize)
	if sep.UsingFallback() {
		return nil, errors.Newf("could not load model %s", model)
	}

	set := stems.NewSet(mix.NumChannels(), mix.NumSamples())
	sep.ProcessBlock(mix, set)
	return set, nil
}

func printReport(w io.Writer, m analysis.StemMetrics) {
	head := color.New(color.Bold)
	dim := color.New(color.Faint)

	head.Fprintf(w, "%-8s %10s %10s %10s %10s %8s\n", "Stem", "Time", "Env dB", "Spec dB", "Band dB", "Score")
	for _, k := range stems.Kinds {
		sm := m.PerStem[k]
		if sm == nil {
			dim.Fprintf(w, "%-8s %10s\n", k, "missing")
			continue
		}
		fmt.Fprintf(w, "%-8s %10.5f %10.2f %10.2f %10.2f %8.4f\n",
			k, sm.TimeRMSE, sm.EnvelopeRMSEDB, sm.SpectralRMSEDB, sm.BandRMSEDB, sm.Score)
	}
	scoreColor := color.New(color.FgGreen, color.Bold)
	if m.Score > 0.5 {
		scoreColor = color.New(color.FgYellow, color.Bold)
	}
	scoreColor.Fprintf(w, "Mean score %.4f over %d stems (0 best, 1 worst)\n", m.Score, m.Compared)
}
