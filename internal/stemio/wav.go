// Package stemio reads and writes planar stem buffers as WAV files.
package stemio

import (
	"math"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	dspresample "github.com/cwbudde/algo-dsp/dsp/resample"
	"github.com/cwbudde/wav"
	"github.com/go-audio/audio"

	"github.com/cwbudde/algo-stems/stems"
)

// BitDepth is the sample depth used for written files.
const BitDepth = 16

// ReadWAV decodes a WAV file into a planar buffer and returns its sample rate.
func ReadWAV(path string) (*stems.Buffer, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()
	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, 0, errors.Newf("invalid wav file: %s", path)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, errors.Wrapf(err, "decode %s", path)
	}
	if buf == nil || buf.Format == nil || buf.Format.NumChannels < 1 {
		return nil, 0, errors.Newf("invalid wav buffer: %s", path)
	}
	ch := buf.Format.NumChannels
	data := make([]float32, len(buf.Data))
	for i, v := range buf.Data {
		data[i] = float32(v)
	}
	return stems.Deinterleave(data, ch), buf.Format.SampleRate, nil
}

// Resample converts every channel from fromRate to toRate. Equal rates
// return the input unchanged.
func Resample(in *stems.Buffer, fromRate, toRate int) (*stems.Buffer, error) {
	if fromRate == toRate || in.NumSamples() == 0 {
		return in, nil
	}
	if fromRate <= 0 || toRate <= 0 {
		return nil, errors.Newf("invalid resample rates %d -> %d", fromRate, toRate)
	}
	channels := make([][]float32, in.NumChannels())
	for ch := range channels {
		r, err := dspresample.NewForRates(
			float64(fromRate),
			float64(toRate),
			dspresample.WithQuality(dspresample.QualityBest),
		)
		if err != nil {
			return nil, errors.Wrap(err, "create resampler")
		}
		src := in.Channel(ch)
		x := make([]float64, len(src))
		for i, v := range src {
			x[i] = float64(v)
		}
		y := r.Process(x)
		out := make([]float32, len(y))
		for i, v := range y {
			out[i] = float32(v)
		}
		channels[ch] = out
	}
	n := len(channels[0])
	for _, c := range channels[1:] {
		n = min(n, len(c))
	}
	for ch := range channels {
		channels[ch] = channels[ch][:n]
	}
	return stems.NewBufferFrom(channels...), nil
}

// WriteWAV encodes buf as a 16-bit WAV file, creating parent directories.
func WriteWAV(path string, buf *stems.Buffer, sampleRate int) error {
	numChannels := buf.NumChannels()
	if numChannels < 1 {
		return errors.Newf("no channels to write to %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "create directory for %s", path)
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	defer f.Close()
	enc := wav.NewEncoder(f, sampleRate, BitDepth, numChannels, 1)

	out := &audio.Float32Buffer{
		Format: &audio.Format{
			SampleRate:  sampleRate,
			NumChannels: numChannels,
		},
		Data:           buf.Interleaved(),
		SourceBitDepth: BitDepth,
	}
	if err := enc.Write(out); err != nil {
		_ = enc.Close()
		return errors.Wrapf(err, "write %s", path)
	}
	return errors.Wrapf(enc.Close(), "finalize %s", path)
}

// StemPath returns the file name used for one stem of a render.
func StemPath(dir, prefix string, k stems.Kind) string {
	return filepath.Join(dir, prefix+"_"+k.String()+".wav")
}

// WriteStems writes each stem of set to its own file and returns the paths.
func WriteStems(dir, prefix string, set *stems.Set, sampleRate int) ([]string, error) {
	paths := make([]string, 0, stems.Count)
	for _, k := range stems.Kinds {
		if set[k] == nil {
			continue
		}
		p := StemPath(dir, prefix, k)
		if err := WriteWAV(p, set[k], sampleRate); err != nil {
			return paths, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}

// ReadStems reads the files written by WriteStems. Missing files leave the
// stem nil.
func ReadStems(dir, prefix string) (*stems.Set, int, error) {
	var set stems.Set
	rate := 0
	for _, k := range stems.Kinds {
		p := StemPath(dir, prefix, k)
		if _, err := os.Stat(p); os.IsNotExist(err) {
			continue
		}
		b, sr, err := ReadWAV(p)
		if err != nil {
			return nil, 0, err
		}
		if rate != 0 && sr != rate {
			return nil, 0, errors.Newf("stem %s has sample rate %d, expected %d", k, sr, rate)
		}
		rate = sr
		set[k] = b
	}
	return &set, rate, nil
}

// RMS returns the root mean square over all channels of buf.
func RMS(buf *stems.Buffer) float64 {
	var sum float64
	var n int
	for ch := 0; ch < buf.NumChannels(); ch++ {
		for _, v := range buf.Channel(ch) {
			sum += float64(v) * float64(v)
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return math.Sqrt(sum / float64(n))
}
