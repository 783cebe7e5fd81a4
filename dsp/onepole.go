package dsp

// OnePole is a first-order low-pass recurrence y[n] = a*y[n-1] + (1-a)*x[n].
// The output history survives across calls until Reset.
type OnePole struct {
	y1     float32
	primed bool
}

// Process filters one sample with feedback coefficient a in [0,1).
func (p *OnePole) Process(x, a float32) float32 {
	if !p.primed {
		p.y1 = x
		p.primed = true
		return x
	}
	y := FlushDenormals(a*p.y1 + (1-a)*x)
	p.y1 = y
	return y
}

// Track feeds x through without filtering so that a later Process call
// continues from the current signal level.
func (p *OnePole) Track(x float32) {
	p.y1 = x
	p.primed = true
}

// Reset forgets the output history.
func (p *OnePole) Reset() {
	p.y1 = 0
	p.primed = false
}
