package stems

// Buffer is a planar multi-channel block of float32 samples.
//
// SetSize keeps the backing storage when the new shape fits into the
// capacity already allocated, so a buffer sized once on prepare can be
// reshaped per block without touching the heap.
type Buffer struct {
	data       [][]float32
	numSamples int
}

// NewBuffer allocates a zeroed buffer.
func NewBuffer(numChannels, numSamples int) *Buffer {
	b := &Buffer{}
	b.SetSize(numChannels, numSamples)
	return b
}

// NewBufferFrom wraps existing channel slices. All channels must share one length.
func NewBufferFrom(channels ...[]float32) *Buffer {
	b := &Buffer{data: channels}
	if len(channels) > 0 {
		b.numSamples = len(channels[0])
	}
	return b
}

// NumChannels returns the channel count.
func (b *Buffer) NumChannels() int {
	if b == nil {
		return 0
	}
	return len(b.data)
}

// NumSamples returns the per-channel length.
func (b *Buffer) NumSamples() int {
	if b == nil {
		return 0
	}
	return b.numSamples
}

// Channel returns the writable samples of channel ch.
func (b *Buffer) Channel(ch int) []float32 {
	return b.data[ch][:b.numSamples]
}

// SetSize reshapes the buffer. Newly exposed samples are zeroed.
func (b *Buffer) SetSize(numChannels, numSamples int) {
	if numChannels < 0 {
		numChannels = 0
	}
	if numSamples < 0 {
		numSamples = 0
	}
	oldChannels := len(b.data)
	if cap(b.data) < numChannels {
		grown := make([][]float32, numChannels)
		copy(grown, b.data)
		b.data = grown
	}
	b.data = b.data[:numChannels]
	for ch := range b.data {
		c := b.data[ch]
		if cap(c) < numSamples {
			nc := make([]float32, numSamples)
			if ch < oldChannels {
				copy(nc, c)
			}
			b.data[ch] = nc
			continue
		}
		old := len(c)
		if ch >= oldChannels {
			old = 0
		}
		c = c[:numSamples]
		if old < numSamples {
			clear(c[old:])
		}
		b.data[ch] = c
	}
	b.numSamples = numSamples
}

// Reserve grows the backing storage so a later SetSize up to numChannels x
// numSamples does not allocate. The current shape and samples are kept.
func (b *Buffer) Reserve(numChannels, numSamples int) {
	if cap(b.data) < numChannels {
		grown := make([][]float32, len(b.data), numChannels)
		copy(grown, b.data)
		b.data = grown
	}
	full := b.data[:max(numChannels, len(b.data))]
	for ch := 0; ch < numChannels; ch++ {
		if cap(full[ch]) < numSamples {
			c := make([]float32, len(full[ch]), numSamples)
			copy(c, full[ch])
			full[ch] = c
		}
	}
}

// Clear zeroes all samples.
func (b *Buffer) Clear() {
	for ch := range b.data {
		clear(b.data[ch][:b.numSamples])
	}
}

// ClearRange zeroes n samples starting at offset on every channel.
func (b *Buffer) ClearRange(offset, n int) {
	for ch := range b.data {
		clear(b.data[ch][offset : offset+n])
	}
}

// CopyFrom makes b an exact copy of src, adopting its shape.
func (b *Buffer) CopyFrom(src *Buffer) {
	b.SetSize(src.NumChannels(), src.NumSamples())
	for ch := range b.data {
		copy(b.data[ch], src.data[ch][:src.numSamples])
	}
}

// CopyChannel copies n samples from src channel srcCh at srcOff into
// channel dstCh at dstOff.
func (b *Buffer) CopyChannel(dstCh, dstOff int, src *Buffer, srcCh, srcOff, n int) {
	copy(b.data[dstCh][dstOff:dstOff+n], src.data[srcCh][srcOff:srcOff+n])
}

// AddFrom mixes n samples of src channel srcCh into channel dstCh, scaled by gain.
func (b *Buffer) AddFrom(dstCh, dstOff int, src *Buffer, srcCh, srcOff, n int, gain float32) {
	dst := b.data[dstCh][dstOff : dstOff+n]
	s := src.data[srcCh][srcOff : srcOff+n]
	for i := range dst {
		dst[i] += s[i] * gain
	}
}

// Interleaved returns the buffer as frame-interleaved samples.
func (b *Buffer) Interleaved() []float32 {
	numCh := b.NumChannels()
	out := make([]float32, numCh*b.numSamples)
	for ch := 0; ch < numCh; ch++ {
		src := b.data[ch]
		for i := 0; i < b.numSamples; i++ {
			out[i*numCh+ch] = src[i]
		}
	}
	return out
}

// Deinterleave builds a planar buffer from frame-interleaved samples.
func Deinterleave(interleaved []float32, numChannels int) *Buffer {
	if numChannels < 1 {
		return NewBuffer(0, 0)
	}
	frames := len(interleaved) / numChannels
	b := NewBuffer(numChannels, frames)
	for ch := 0; ch < numChannels; ch++ {
		dst := b.data[ch]
		for i := 0; i < frames; i++ {
			dst[i] = interleaved[i*numChannels+ch]
		}
	}
	return b
}
