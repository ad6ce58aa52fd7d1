package dsp

import "math"

// maxTaps bounds filter length so a very narrow transition band cannot
// produce an absurdly expensive filter.
const maxTaps = 1201

// lowPassTaps designs a Hamming-windowed sinc low-pass filter with unity
// gain, the given cutoff, and the given transition width, all in Hz at
// the given sample rate. The tap count follows the usual Hamming rule of
// thumb (3.3 cycles across the transition band), forced odd so the
// filter has a well-defined center.
func lowPassTaps(sampleRate, cutoffHz, transitionHz float64) []float64 {
	n := int(math.Ceil(3.3 * sampleRate / transitionHz))
	if n%2 == 0 {
		n++
	}
	if n > maxTaps {
		n = maxTaps
	}
	if n < 3 {
		n = 3
	}

	taps := make([]float64, n)
	mid := n / 2
	fc := cutoffHz / sampleRate
	var sum float64
	for i := range taps {
		m := float64(i - mid)
		var s float64
		if m == 0 {
			s = 2 * fc
		} else {
			s = math.Sin(2*math.Pi*fc*m) / (math.Pi * m)
		}
		// Hamming window.
		w := 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(n-1))
		taps[i] = s * w
		sum += taps[i]
	}
	// Normalize to unity DC gain.
	for i := range taps {
		taps[i] /= sum
	}
	return taps
}

// FIRFilterC is a complex-input low-pass FIR filter. It carries the tap
// history across buffers so filtering is continuous over the stream.
type FIRFilterC struct {
	name    string
	taps    []float64
	history []complex64
	out     []complex64
}

// NewLowPassC designs a complex low-pass filter stage.
func NewLowPassC(name string, sampleRate, cutoffHz, transitionHz float64) *FIRFilterC {
	taps := lowPassTaps(sampleRate, cutoffHz, transitionHz)
	return &FIRFilterC{
		name:    name,
		taps:    taps,
		history: make([]complex64, len(taps)-1),
	}
}

func (f *FIRFilterC) Name() string { return f.name }

// ProcessIQ filters in, returning one output sample per input sample.
func (f *FIRFilterC) ProcessIQ(in []complex64) []complex64 {
	h := len(f.history)
	work := make([]complex64, h+len(in))
	copy(work, f.history)
	copy(work[h:], in)

	if cap(f.out) < len(in) {
		f.out = make([]complex64, len(in))
	}
	out := f.out[:len(in)]
	for i := range in {
		var re, im float64
		for j, t := range f.taps {
			s := work[i+j]
			re += t * float64(real(s))
			im += t * float64(imag(s))
		}
		out[i] = complex(float32(re), float32(im))
	}
	copy(f.history, work[len(work)-h:])
	return out
}

// FIRFilterF is a real-input low-pass FIR filter with streaming history,
// used for the post-demodulation audio filter.
type FIRFilterF struct {
	name    string
	taps    []float64
	history []float32
	out     []float32
}

// NewLowPassF designs a real low-pass filter stage.
func NewLowPassF(name string, sampleRate, cutoffHz, transitionHz float64) *FIRFilterF {
	taps := lowPassTaps(sampleRate, cutoffHz, transitionHz)
	return &FIRFilterF{
		name:    name,
		taps:    taps,
		history: make([]float32, len(taps)-1),
	}
}

func (f *FIRFilterF) Name() string { return f.name }

// ProcessAudio filters in, returning one output sample per input sample.
func (f *FIRFilterF) ProcessAudio(in []float32) []float32 {
	h := len(f.history)
	work := make([]float32, h+len(in))
	copy(work, f.history)
	copy(work[h:], in)

	if cap(f.out) < len(in) {
		f.out = make([]float32, len(in))
	}
	out := f.out[:len(in)]
	for i := range in {
		var acc float64
		for j, t := range f.taps {
			acc += t * float64(work[i+j])
		}
		out[i] = float32(acc)
	}
	copy(f.history, work[len(work)-h:])
	return out
}
