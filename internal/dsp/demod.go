package dsp

import (
	"math"
	"math/cmplx"
)

// QuadratureDemod recovers the instantaneous frequency of an FM signal
// as the phase of the product of each sample with the conjugate of its
// predecessor, scaled by gain. For a deviation of d Hz at sample rate r,
// gain = r / (2π·d) maps full deviation to ±1.0 audio.
type QuadratureDemod struct {
	name string
	gain float64

	last complex64
	have bool
	out  []float32
}

// QuadratureSensitivity computes the demodulator gain for the given
// input rate and peak deviation.
func QuadratureSensitivity(sampleRate, deviationHz float64) float64 {
	return sampleRate / (2 * math.Pi * deviationHz)
}

// NewQuadratureDemod creates an FM quadrature demodulator with the given
// gain (see [QuadratureSensitivity]).
func NewQuadratureDemod(name string, gain float64) *QuadratureDemod {
	return &QuadratureDemod{name: name, gain: gain}
}

func (q *QuadratureDemod) Name() string { return q.name }

// Demodulate converts IQ samples to audio, one output per input, with
// phase continuity across buffers.
func (q *QuadratureDemod) Demodulate(in []complex64) []float32 {
	if cap(q.out) < len(in) {
		q.out = make([]float32, len(in))
	}
	out := q.out[:len(in)]

	last := complex128(q.last)
	for i, s := range in {
		cur := complex128(s)
		if !q.have {
			q.have = true
			last = cur
		}
		out[i] = float32(q.gain * cmplx.Phase(cur*cmplx.Conj(last)))
		last = cur
	}
	q.last = complex64(last)
	return out
}

// WFMReceiver is the composite wideband-FM receive stage: a wide
// quadrature demodulator followed by 75 µs deemphasis and integer
// decimation down to the audio rate. It mirrors the classic broadcast
// receiver block with quadRate input and quadRate/decim output.
type WFMReceiver struct {
	name  string
	quad  *QuadratureDemod
	decim int

	// deemphasis single-pole IIR state.
	alpha float64
	prev  float64

	carry    float64
	carryLen int
	out      []float32
}

// wfmDeviation is the broadcast FM peak deviation in Hz.
const wfmDeviation = 75_000

// NewWFMReceiver creates a broadcast FM receiver stage demodulating at
// quadRate and emitting audio at quadRate/decim.
func NewWFMReceiver(name string, quadRate float64, decim int) *WFMReceiver {
	if decim < 1 {
		decim = 1
	}
	// 75 µs deemphasis time constant (Americas broadcast standard).
	tau := 75e-6
	dt := 1.0 / quadRate
	return &WFMReceiver{
		name:  name,
		quad:  NewQuadratureDemod(name+"/quad", QuadratureSensitivity(quadRate, wfmDeviation)),
		decim: decim,
		alpha: dt / (tau + dt),
	}
}

func (w *WFMReceiver) Name() string { return w.name }

// Demodulate runs quadrature demodulation, deemphasis, and decimation.
func (w *WFMReceiver) Demodulate(in []complex64) []float32 {
	audio := w.quad.Demodulate(in)

	n := (w.carryLen + len(audio)) / w.decim
	if cap(w.out) < n {
		w.out = make([]float32, n)
	}
	out := w.out[:0]

	acc := w.carry
	cnt := w.carryLen
	inv := 1.0 / float64(w.decim)
	for _, s := range audio {
		w.prev += w.alpha * (float64(s) - w.prev)
		acc += w.prev
		cnt++
		if cnt == w.decim {
			out = append(out, float32(acc*inv))
			acc = 0
			cnt = 0
		}
	}
	w.carry = acc
	w.carryLen = cnt
	return out
}
