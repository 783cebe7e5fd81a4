package main

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/cwbudde/algo-stems/engine"
	"github.com/cwbudde/algo-stems/internal/score"
	"github.com/cwbudde/algo-stems/stems"
)

const bytesPerSample = 4

// stream renders the processor on demand and hands out float32
// little-endian interleaved stereo frames.
type stream struct {
	proc      *engine.Processor
	in        *stems.Buffer
	events    []score.Timed
	blockSize int
	total     int // frames; < 0 plays forever
	loopInput bool

	pos     int
	block   *stems.Buffer
	evs     []engine.Event
	buf     []byte
	pending []byte // unread tail of buf
}

func newStream(proc *engine.Processor, in *stems.Buffer, events []score.Timed, blockSize, total int, loopInput bool) *stream {
	return &stream{
		proc:      proc,
		in:        in,
		events:    events,
		blockSize: blockSize,
		total:     total,
		loopInput: loopInput,
		block:     stems.NewBuffer(max(1, in.NumChannels()), blockSize),
		buf:       make([]byte, blockSize*2*bytesPerSample),
	}
}

func (s *stream) Read(p []byte) (int, error) {
	written := 0
	for written < len(p) {
		if len(s.pending) == 0 {
			if s.total >= 0 && s.pos >= s.total {
				break
			}
			s.renderBlock()
		}
		n := copy(p[written:], s.pending)
		s.pending = s.pending[n:]
		written += n
	}
	if written == 0 {
		return 0, io.EOF
	}
	return written, nil
}

func (s *stream) renderBlock() {
	n := s.blockSize
	if s.total >= 0 {
		n = min(n, s.total-s.pos)
	}
	numCh := max(1, s.in.NumChannels())
	s.block.SetSize(numCh, n)
	s.block.Clear()
	s.fillInput(n)

	s.evs = score.BlockEvents(s.evs, s.events, s.pos, n)
	s.proc.Process(s.block, s.evs)
	s.pos += n

	s.pending = s.buf[:n*2*bytesPerSample]
	left := s.block.Channel(0)
	right := left
	if numCh > 1 {
		right = s.block.Channel(1)
	}
	for i := 0; i < n; i++ {
		o := i * 2 * bytesPerSample
		binary.LittleEndian.PutUint32(s.pending[o:], math.Float32bits(left[i]))
		binary.LittleEndian.PutUint32(s.pending[o+bytesPerSample:], math.Float32bits(right[i]))
	}
}

// fillInput copies the live input for the current block. With loopInput
// the source wraps around, otherwise it is silent past its end.
func (s *stream) fillInput(n int) {
	length := s.in.NumSamples()
	if length == 0 {
		return
	}
	for done := 0; done < n; {
		src := s.pos + done
		if s.loopInput {
			src %= length
		}
		avail := min(n-done, length-src)
		if avail <= 0 {
			return
		}
		for ch := 0; ch < s.in.NumChannels(); ch++ {
			s.block.CopyChannel(ch, done, s.in, ch, src, avail)
		}
		done += avail
	}
}
