package dsp

import "math"

// FreqXlating shifts a complex stream in frequency by mixing it with a
// local oscillator and then band-limits the result with a low-pass
// filter. It undoes an offset-tuned hardware center: a hardware center
// of f+offset with a shift of -offset brings the wanted signal back to
// zero frequency.
type FreqXlating struct {
	name string
	lpf  *FIRFilterC

	phase float64
	step  float64
	mixed []complex64
}

// NewFreqXlating creates a frequency-translating filter stage running at
// sampleRate, shifting by shiftHz (negative shifts move the spectrum
// down), with the given passband.
func NewFreqXlating(name string, sampleRate, shiftHz, cutoffHz, transitionHz float64) *FreqXlating {
	return &FreqXlating{
		name: name,
		lpf:  NewLowPassC(name+"/lpf", sampleRate, cutoffHz, transitionHz),
		step: 2 * math.Pi * shiftHz / sampleRate,
	}
}

func (x *FreqXlating) Name() string { return x.name }

// ProcessIQ mixes in with the oscillator and filters the product. The
// oscillator phase persists across buffers.
func (x *FreqXlating) ProcessIQ(in []complex64) []complex64 {
	if cap(x.mixed) < len(in) {
		x.mixed = make([]complex64, len(in))
	}
	mixed := x.mixed[:len(in)]
	for i, s := range in {
		osc := complex(float32(math.Cos(x.phase)), float32(math.Sin(x.phase)))
		mixed[i] = s * osc
		x.phase += x.step
		if x.phase > math.Pi {
			x.phase -= 2 * math.Pi
		} else if x.phase < -math.Pi {
			x.phase += 2 * math.Pi
		}
	}
	return x.lpf.ProcessIQ(mixed)
}
