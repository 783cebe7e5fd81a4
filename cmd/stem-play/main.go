package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	"github.com/cockroachdb/errors"
	"github.com/fatih/color"
	"github.com/hajimehoshi/oto/v2"

	"github.com/cwbudde/algo-stems/engine"
	"github.com/cwbudde/algo-stems/internal/score"
	"github.com/cwbudde/algo-stems/internal/stemio"
	"github.com/cwbudde/algo-stems/preset"
	"github.com/cwbudde/algo-stems/separation"
	"github.com/cwbudde/algo-stems/stems"
)

type playOptions struct {
	input      string
	presetPath string
	modelDir   string
	loader     string
	notes      string
	solo       string
	blockSize  int
	duration   float64
	loopInput  bool
	live       bool
}

func main() {
	var opts playOptions
	flag.StringVar(&opts.input, "input", "", "Input WAV file fed to the engine (required)")
	flag.StringVar(&opts.presetPath, "preset", "", "Engine preset JSON file (optional)")
	flag.StringVar(&opts.modelDir, "model-dir", "", "Directory with band-split model descriptors (overrides preset)")
	flag.StringVar(&opts.loader, "loader", "file", "Separation backend: file, reference or none")
	flag.StringVar(&opts.notes, "notes", "0:60:1:1,1:61:1:1,2:62:1:1,3:63:1:1", "Notes as time:note[:velocity[:length]], comma separated")
	flag.StringVar(&opts.solo, "solo", "", "Play only this stem: drums, bass, other, vocals")
	flag.IntVar(&opts.blockSize, "block-size", 512, "Processing block size in frames")
	flag.Float64Var(&opts.duration, "duration", 0, "Playback length in seconds (0: until the last note plus one second, <0: forever)")
	flag.BoolVar(&opts.loopInput, "loop-input", false, "Loop the input file as the live feed")
	flag.BoolVar(&opts.live, "live", false, "Capture stems from the first block only, like a live host")
	verbose := flag.Bool("v", false, "Verbose logging")
	flag.Parse()

	log.SetHandler(cli.New(os.Stderr))
	if *verbose {
		log.SetLevel(log.DebugLevel)
	}

	if err := run(opts); err != nil {
		log.WithError(err).Error("playback failed")
		os.Exit(1)
	}
}

func run(opts playOptions) error {
	s, sampleRate, cleanup, err := setup(opts)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, ready, err := oto.NewContext(sampleRate, 2, oto.FormatFloat32LE)
	if err != nil {
		return errors.Wrap(err, "open audio device")
	}
	<-ready

	player := ctx.NewPlayer(s)
	defer player.Close()
	player.Play()

	info := color.New(color.FgGreen, color.Bold)
	info.Printf("Playing %s", opts.input)
	fmt.Printf(" at %d Hz, block %d\n", sampleRate, opts.blockSize)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	defer signal.Stop(stop)

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for player.IsPlaying() {
		select {
		case <-stop:
			log.Info("interrupted")
			return nil
		case <-ticker.C:
		}
	}
	return errors.Wrap(player.Err(), "playback")
}

// setup loads the input and builds a prepared processor wrapped in a stream.
func setup(opts playOptions) (*stream, int, func(), error) {
	if opts.input == "" {
		return nil, 0, nil, errors.New("-input is required")
	}
	if opts.blockSize < 1 {
		return nil, 0, nil, errors.Newf("invalid -block-size %d", opts.blockSize)
	}
	in, sampleRate, err := stemio.ReadWAV(opts.input)
	if err != nil {
		return nil, 0, nil, err
	}

	cfg := engine.NewDefaultConfig()
	if opts.presetPath != "" {
		if cfg, err = preset.LoadJSON(opts.presetPath); err != nil {
			return nil, 0, nil, err
		}
	}
	if opts.modelDir != "" {
		cfg.ModelDir = opts.modelDir
	}
	if cfg.ModelDir == "" {
		cfg.ModelDir = "models"
	}
	if opts.solo != "" {
		k, ok := stems.ParseKind(strings.ToLower(opts.solo))
		if !ok {
			return nil, 0, nil, errors.Newf("invalid -solo %q", opts.solo)
		}
		cfg.SelectedStem = k
		cfg.OutputMode = engine.OutputSolo
	}

	var loader separation.Loader
	switch strings.ToLower(opts.loader) {
	case "file":
		loader = separation.FileLoader{}
	case "reference":
		loader = separation.ReferenceLoader
	case "none":
	default:
		return nil, 0, nil, errors.Newf("unknown -loader %q (expected file, reference or none)", opts.loader)
	}

	notes, err := score.Parse(opts.notes)
	if err != nil {
		return nil, 0, nil, err
	}
	events := score.Schedule(notes, sampleRate)

	proc := engine.NewProcessor(cfg, loader)
	proc.Prepare(sampleRate, opts.blockSize)
	if !opts.live {
		if err := proc.CaptureSource(in); err != nil {
			proc.Release()
			return nil, 0, nil, errors.Wrap(err, "capture stems")
		}
	}

	total := -1
	switch {
	case opts.duration > 0:
		total = int(opts.duration * float64(sampleRate))
	case opts.duration == 0:
		total = score.End(events) + sampleRate
		if !opts.loopInput {
			total = max(total, in.NumSamples())
		}
	}

	log.WithFields(log.Fields{
		"input":      opts.input,
		"sampleRate": sampleRate,
		"notes":      len(notes),
		"frames":     total,
	}).Debug("stream ready")

	return newStream(proc, in, events, opts.blockSize, total, opts.loopInput), sampleRate, proc.Release, nil
}
