package dsp

// DecimatorC decimates a complex stream by an integer factor, averaging
// each group of factor samples. The boxcar average doubles as a crude
// anti-alias filter, which is sufficient here because a proper channel
// filter always follows the decimator in every chain.
type DecimatorC struct {
	name   string
	factor int

	// carry holds a partial group left over from the previous buffer.
	carry    complex64
	carryLen int
	out      []complex64
}

// NewDecimatorC creates a complex decimator. factor must be >= 1.
func NewDecimatorC(name string, factor int) *DecimatorC {
	if factor < 1 {
		factor = 1
	}
	return &DecimatorC{name: name, factor: factor}
}

func (d *DecimatorC) Name() string { return d.name }

// ProcessIQ emits one averaged sample per factor input samples, carrying
// partial groups across buffer boundaries so no sample is dropped.
func (d *DecimatorC) ProcessIQ(in []complex64) []complex64 {
	if d.factor == 1 {
		return in
	}
	n := (d.carryLen + len(in)) / d.factor
	if cap(d.out) < n {
		d.out = make([]complex64, n)
	}
	out := d.out[:0]

	acc := d.carry
	cnt := d.carryLen
	inv := 1.0 / float32(d.factor)
	for _, s := range in {
		acc += s
		cnt++
		if cnt == d.factor {
			out = append(out, complex(real(acc)*inv, imag(acc)*inv))
			acc = 0
			cnt = 0
		}
	}
	d.carry = acc
	d.carryLen = cnt
	return out
}

// ResamplerF converts a real stream between integer-related rates
// (interp/decim) using linear interpolation, carrying fractional phase
// and the last input sample across buffers so long streams do not drift.
type ResamplerF struct {
	name   string
	interp int
	decim  int

	pos  float64 // fractional read position into the virtual input
	last float32
	have bool
	out  []float32
}

// NewResamplerF creates a rational resampler producing interp output
// samples for every decim input samples.
func NewResamplerF(name string, interp, decim int) *ResamplerF {
	if interp < 1 {
		interp = 1
	}
	if decim < 1 {
		decim = 1
	}
	return &ResamplerF{name: name, interp: interp, decim: decim}
}

func (r *ResamplerF) Name() string { return r.name }

// ProcessAudio resamples in by interp/decim.
func (r *ResamplerF) ProcessAudio(in []float32) []float32 {
	if r.interp == r.decim {
		return in
	}
	if len(in) == 0 {
		return nil
	}

	// The virtual input stream is [last, in...] when a previous sample
	// is held, so interpolation spans buffer boundaries.
	step := float64(r.decim) / float64(r.interp)
	est := int(float64(len(in))/step) + 2
	if cap(r.out) < est {
		r.out = make([]float32, est)
	}
	out := r.out[:0]

	prev := r.last
	if !r.have {
		prev = in[0]
	}
	pos := r.pos
	for {
		idx := int(pos)
		if idx >= len(in) {
			break
		}
		frac := float32(pos - float64(idx))
		var s0 float32
		if idx == 0 {
			s0 = prev
		} else {
			s0 = in[idx-1]
		}
		// pos measures distance past the held sample: output at pos p
		// interpolates between input[p-1] and input[p].
		out = append(out, s0*(1-frac)+in[idx]*frac)
		pos += step
	}

	r.pos = pos - float64(len(in))
	r.last = in[len(in)-1]
	r.have = true
	return out
}
