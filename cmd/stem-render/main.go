package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	"github.com/cockroachdb/errors"
	"github.com/fatih/color"

	"github.com/cwbudde/algo-stems/engine"
	"github.com/cwbudde/algo-stems/internal/score"
	"github.com/cwbudde/algo-stems/internal/stemio"
	"github.com/cwbudde/algo-stems/preset"
	"github.com/cwbudde/algo-stems/separation"
	"github.com/cwbudde/algo-stems/stems"
)

type renderOptions struct {
	input      string
	output     string
	stemsDir   string
	presetPath string
	modelDir   string
	loader     string
	quality    int
	mode       string
	solo       string
	notes      string
	sampleRate int
	blockSize  int
	duration   float64
	live       bool
}

func main() {
	var opts renderOptions
	flag.StringVar(&opts.input, "input", "", "Input WAV file to separate (required)")
	flag.StringVar(&opts.output, "output", "output.wav", "Output WAV file path")
	flag.StringVar(&opts.stemsDir, "stems-dir", "", "Also write the separated stems to this directory")
	flag.StringVar(&opts.presetPath, "preset", "", "Engine preset JSON file (optional)")
	flag.StringVar(&opts.modelDir, "model-dir", "", "Directory with band-split model descriptors (overrides preset)")
	flag.StringVar(&opts.loader, "loader", "file", "Separation backend: file, reference or none")
	flag.IntVar(&opts.quality, "quality", -1, "Model quality 0..3 (default from preset)")
	flag.StringVar(&opts.mode, "mode", "", "Output mode: all or solo (default from preset)")
	flag.StringVar(&opts.solo, "solo", "", "Stem played in solo mode: drums, bass, other, vocals")
	flag.StringVar(&opts.notes, "notes", "0:60,0:61,0:62,0:63", "Notes as time:note[:velocity[:length]], comma separated")
	flag.IntVar(&opts.sampleRate, "sample-rate", 0, "Render sample rate in Hz (default: input rate)")
	flag.IntVar(&opts.blockSize, "block-size", 512, "Render block size in frames")
	flag.Float64Var(&opts.duration, "duration", 0, "Render duration in seconds (default: input length)")
	flag.BoolVar(&opts.live, "live", false, "Capture stems from the first block only, like a live host")
	verbose := flag.Bool("v", false, "Verbose logging")
	flag.Parse()

	log.SetHandler(cli.New(os.Stderr))
	if *verbose {
		log.SetLevel(log.DebugLevel)
	}

	if err := run(opts); err != nil {
		log.WithError(err).Error("render failed")
		os.Exit(1)
	}
}

func run(opts renderOptions) error {
	if opts.input == "" {
		return errors.New("-input is required")
	}
	if opts.blockSize < 1 {
		return errors.Newf("invalid -block-size %d", opts.blockSize)
	}

	in, inRate, err := stemio.ReadWAV(opts.input)
	if err != nil {
		return err
	}
	sampleRate := inRate
	if opts.sampleRate > 0 && opts.sampleRate != inRate {
		in, err = stemio.Resample(in, inRate, opts.sampleRate)
		if err != nil {
			return errors.Wrap(err, "resample input")
		}
		sampleRate = opts.sampleRate
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	loader, err := newLoader(opts.loader)
	if err != nil {
		return err
	}
	notes, err := score.Parse(opts.notes)
	if err != nil {
		return err
	}

	proc := engine.NewProcessor(cfg, loader)
	defer proc.Release()
	proc.Prepare(sampleRate, opts.blockSize)

	if !opts.live {
		if err := proc.CaptureSource(in); err != nil {
			return errors.Wrap(err, "capture stems")
		}
	}

	if opts.stemsDir != "" {
		set := stems.NewSet(in.NumChannels(), in.NumSamples())
		proc.Separator().ProcessBlock(in, set)
		prefix := strings.TrimSuffix(filepath.Base(opts.input), filepath.Ext(opts.input))
		paths, err := stemio.WriteStems(opts.stemsDir, prefix, set, sampleRate)
		if err != nil {
			return err
		}
		for _, p := range paths {
			log.WithField("path", p).Info("wrote stem")
		}
	}

	totalFrames := in.NumSamples()
	if opts.duration > 0 {
		totalFrames = int(opts.duration * float64(sampleRate))
	}
	out := render(proc, in, score.Schedule(notes, sampleRate), totalFrames, opts.blockSize)

	if err := stemio.WriteWAV(opts.output, out, sampleRate); err != nil {
		return err
	}
	printSummary(opts.output, out, sampleRate, proc)
	return nil
}

// render feeds the input through the processor block by block. Past the end
// of the input the processor sees silence.
func render(proc *engine.Processor, in *stems.Buffer, events []score.Timed, totalFrames, blockSize int) *stems.Buffer {
	numChannels := max(1, in.NumChannels())
	out := stems.NewBuffer(numChannels, totalFrames)
	block := stems.NewBuffer(numChannels, blockSize)
	var evs []engine.Event

	for pos := 0; pos < totalFrames; pos += blockSize {
		n := min(blockSize, totalFrames-pos)
		block.SetSize(numChannels, n)
		block.Clear()
		if avail := min(n, in.NumSamples()-pos); avail > 0 {
			for ch := 0; ch < in.NumChannels(); ch++ {
				block.CopyChannel(ch, 0, in, ch, pos, avail)
			}
		}
		evs = score.BlockEvents(evs, events, pos, n)
		proc.Process(block, evs)
		for ch := 0; ch < numChannels; ch++ {
			out.CopyChannel(ch, pos, block, ch, 0, n)
		}
	}
	return out
}

func loadConfig(opts renderOptions) (*engine.Config, error) {
	cfg := engine.NewDefaultConfig()
	if opts.presetPath != "" {
		var err error
		cfg, err = preset.LoadJSON(opts.presetPath)
		if err != nil {
			return nil, err
		}
	}
	if opts.modelDir != "" {
		cfg.ModelDir = opts.modelDir
	}
	if cfg.ModelDir == "" {
		cfg.ModelDir = "models"
	}
	if opts.quality >= 0 {
		if opts.quality > int(separation.MaxQuality) {
			return nil, errors.Newf("invalid -quality %d (expected 0..%d)", opts.quality, separation.MaxQuality)
		}
		cfg.Quality = separation.Quality(opts.quality)
	}
	switch strings.ToLower(opts.mode) {
	case "":
	case "all":
		cfg.OutputMode = engine.OutputAll
	case "solo":
		cfg.OutputMode = engine.OutputSolo
	default:
		return nil, errors.Newf("invalid -mode %q (expected all or solo)", opts.mode)
	}
	if opts.solo != "" {
		k, ok := stems.ParseKind(strings.ToLower(opts.solo))
		if !ok {
			return nil, errors.Newf("invalid -solo %q", opts.solo)
		}
		cfg.SelectedStem = k
	}
	return cfg, nil
}

func newLoader(name string) (separation.Loader, error) {
	switch strings.ToLower(name) {
	case "file":
		return separation.FileLoader{}, nil
	case "reference":
		return separation.ReferenceLoader, nil
	case "none":
		return nil, nil
	default:
		return nil, errors.Newf("unknown -loader %q (expected file, reference or none)", name)
	}
}

func printSummary(path string, out *stems.Buffer, sampleRate int, proc *engine.Processor) {
	ok := color.New(color.FgGreen, color.Bold)
	dim := color.New(color.Faint)
	warn := color.New(color.FgYellow)

	ok.Printf("Wrote %s", path)
	fmt.Printf(" (%d frames, %.2fs, %d Hz)\n", out.NumSamples(), float64(out.NumSamples())/float64(sampleRate), sampleRate)

	rms := stemio.RMS(out)
	level := math.Inf(-1)
	if rms > 0 {
		level = 20 * math.Log10(rms)
	}
	dim.Printf("  RMS %.1f dBFS, model %s", level, separation.ModelName(proc.Separator().ModelQuality()))
	fmt.Println()
	if proc.Separator().UsingFallback() {
		warn.Println("  separation model unavailable, stems are copies of the input")
	}
}
