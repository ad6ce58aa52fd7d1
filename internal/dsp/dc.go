package dsp

// DCBlocker removes the DC component from demodulated audio with a
// single-pole high-pass filter. FM demodulation turns any residual
// tuning error into a constant audio offset; this stage strips it before
// the audio filters see it.
type DCBlocker struct {
	name string
	r    float64

	prevIn  float64
	prevOut float64
	out     []float32
}

// NewDCBlocker creates a DC removal stage. r controls the corner
// frequency; values near 1 cut only the lowest frequencies. r <= 0
// defaults to 0.995.
func NewDCBlocker(name string, r float64) *DCBlocker {
	if r <= 0 || r >= 1 {
		r = 0.995
	}
	return &DCBlocker{name: name, r: r}
}

func (d *DCBlocker) Name() string { return d.name }

// ProcessAudio applies y[n] = x[n] - x[n-1] + r·y[n-1].
func (d *DCBlocker) ProcessAudio(in []float32) []float32 {
	if cap(d.out) < len(in) {
		d.out = make([]float32, len(in))
	}
	out := d.out[:len(in)]
	for i, s := range in {
		x := float64(s)
		y := x - d.prevIn + d.r*d.prevOut
		d.prevIn = x
		d.prevOut = y
		out[i] = float32(y)
	}
	return out
}
