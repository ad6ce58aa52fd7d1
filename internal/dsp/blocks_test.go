package dsp

import (
	"math"
	"math/cmplx"
	"testing"
)

// tone generates n samples of a complex exponential at freq Hz sampled
// at rate Hz, continuing from sample offset start.
func tone(n, start int, freq, rate float64) []complex64 {
	out := make([]complex64, n)
	for i := range out {
		ph := 2 * math.Pi * freq * float64(start+i) / rate
		out[i] = complex64(cmplx.Exp(complex(0, ph)))
	}
	return out
}

func TestDecimatorC_AveragesGroups(t *testing.T) {
	t.Parallel()

	d := NewDecimatorC("dec", 4)
	in := make([]complex64, 8)
	for i := range in {
		in[i] = complex(float32(i), 0)
	}

	out := d.ProcessIQ(in)
	if len(out) != 2 {
		t.Fatalf("output = %d samples, want 2", len(out))
	}
	// Groups 0..3 and 4..7 average to 1.5 and 5.5.
	if real(out[0]) != 1.5 || real(out[1]) != 5.5 {
		t.Errorf("averages = %v, %v; want 1.5, 5.5", real(out[0]), real(out[1]))
	}
}

func TestDecimatorC_CarriesPartialGroups(t *testing.T) {
	t.Parallel()

	d := NewDecimatorC("dec", 4)

	// 6 samples leave a 2-sample partial group behind.
	if got := len(d.ProcessIQ(make([]complex64, 6))); got != 1 {
		t.Fatalf("first buffer output = %d, want 1", got)
	}
	// 2 more complete it.
	if got := len(d.ProcessIQ(make([]complex64, 2))); got != 1 {
		t.Fatalf("second buffer output = %d, want 1", got)
	}
}

func TestDecimatorC_FactorOnePassthrough(t *testing.T) {
	t.Parallel()

	d := NewDecimatorC("dec", 1)
	in := make([]complex64, 5)
	if out := d.ProcessIQ(in); len(out) != 5 {
		t.Errorf("output = %d samples, want 5", len(out))
	}
}

func TestResamplerF_RatioHoldsAcrossBuffers(t *testing.T) {
	t.Parallel()

	// 3/4 is the 64 kHz -> 48 kHz audio step.
	r := NewResamplerF("rs", 3, 4)

	in := make([]float32, 64)
	for i := range in {
		in[i] = 1
	}

	var total int
	for range 100 {
		out := r.ProcessAudio(in)
		total += len(out)
		for _, v := range out {
			if v != 1 {
				t.Fatalf("constant input produced %v, want 1", v)
			}
		}
	}
	// 6400 inputs at 3/4 is 4800 outputs, give or take edge phase.
	if total < 4799 || total > 4801 {
		t.Errorf("total outputs = %d, want ~4800", total)
	}
}

func TestResamplerF_RampStaysMonotonic(t *testing.T) {
	t.Parallel()

	r := NewResamplerF("rs", 3, 4)

	var prev float32 = -1
	for b := range 4 {
		in := make([]float32, 32)
		for i := range in {
			in[i] = float32(b*32 + i)
		}
		for _, v := range r.ProcessAudio(in) {
			if v < prev {
				t.Fatalf("output went backwards: %v after %v", v, prev)
			}
			prev = v
		}
	}
}

func TestQuadratureDemod_RecoversFrequency(t *testing.T) {
	t.Parallel()

	const rate, dev = 256000.0, 2500.0
	q := NewQuadratureDemod("quad", QuadratureSensitivity(rate, dev))

	// A tone at exactly the deviation frequency demodulates to 1.0.
	out := q.Demodulate(tone(512, 0, dev, rate))
	for i, v := range out[1:] {
		if math.Abs(float64(v)-1.0) > 1e-3 {
			t.Fatalf("sample %d = %v, want ~1.0", i+1, v)
		}
	}

	// Phase continuity: the first sample of the next buffer must not
	// glitch.
	next := q.Demodulate(tone(16, 512, dev, rate))
	if math.Abs(float64(next[0])-1.0) > 1e-3 {
		t.Errorf("first sample after buffer boundary = %v, want ~1.0", next[0])
	}
}

func TestQuadratureDemod_NegativeFrequency(t *testing.T) {
	t.Parallel()

	const rate, dev = 256000.0, 2500.0
	q := NewQuadratureDemod("quad", QuadratureSensitivity(rate, dev))

	out := q.Demodulate(tone(256, 0, -dev, rate))
	for _, v := range out[1:] {
		if math.Abs(float64(v)+1.0) > 1e-3 {
			t.Fatalf("sample = %v, want ~-1.0", v)
		}
	}
}

func TestDCBlocker_RemovesOffset(t *testing.T) {
	t.Parallel()

	d := NewDCBlocker("dc", 0)

	in := make([]float32, 4096)
	for i := range in {
		in[i] = 0.5
	}
	var out []float32
	for range 4 {
		out = d.ProcessAudio(in)
	}
	// After settling, a constant input yields (near) zero output.
	tail := out[len(out)-256:]
	for _, v := range tail {
		if math.Abs(float64(v)) > 1e-3 {
			t.Fatalf("residual DC = %v, want ~0", v)
		}
	}
}

func TestAGCF_PullsQuietSignalTowardReference(t *testing.T) {
	t.Parallel()

	a := NewAGCF("agc", DefaultAGC())

	in := make([]float32, 1024)
	for i := range in {
		if i%2 == 0 {
			in[i] = 0.05
		} else {
			in[i] = -0.05
		}
	}
	var out []float32
	for range 200 {
		out = a.ProcessAudio(in)
	}
	level := math.Abs(float64(out[len(out)-1]))
	if level < 0.3 || level > 0.7 {
		t.Errorf("settled level = %v, want near the 0.5 reference", level)
	}
}

func TestAGCF_GainIsBounded(t *testing.T) {
	t.Parallel()

	a := NewAGCF("agc", AGCConfig{MaxGain: 10})

	// Pure silence: the loop can only grow gain up to the cap.
	in := make([]float32, 1024)
	for range 200 {
		a.ProcessAudio(in)
	}
	if a.gain > 10 {
		t.Errorf("gain = %v, want <= 10", a.gain)
	}
}

func TestLowPassF_PassesDCBlocksNyquist(t *testing.T) {
	t.Parallel()

	const rate = 64000.0

	dcIn := make([]float32, 4096)
	nyIn := make([]float32, 4096)
	for i := range dcIn {
		dcIn[i] = 1
		if i%2 == 0 {
			nyIn[i] = 1
		} else {
			nyIn[i] = -1
		}
	}

	pass := NewLowPassF("lpf-dc", rate, 3500, 1500)
	var out []float32
	for range 2 {
		out = pass.ProcessAudio(dcIn)
	}
	if v := out[len(out)-1]; math.Abs(float64(v)-1.0) > 0.01 {
		t.Errorf("DC gain = %v, want ~1.0", v)
	}

	stop := NewLowPassF("lpf-ny", rate, 3500, 1500)
	for range 2 {
		out = stop.ProcessAudio(nyIn)
	}
	if v := out[len(out)-1]; math.Abs(float64(v)) > 0.01 {
		t.Errorf("Nyquist leakage = %v, want ~0", v)
	}
}

func TestWFMReceiver_DecimatesToAudioRate(t *testing.T) {
	t.Parallel()

	w := NewWFMReceiver("wfm", 256000, 4)

	out := w.Demodulate(make([]complex64, 1000))
	if len(out) != 250 {
		t.Errorf("output = %d samples, want 250", len(out))
	}
	// Partial group carries into the next buffer.
	out = w.Demodulate(make([]complex64, 2))
	if len(out) != 0 {
		t.Errorf("partial group emitted %d samples, want 0", len(out))
	}
	out = w.Demodulate(make([]complex64, 2))
	if len(out) != 1 {
		t.Errorf("completed group emitted %d samples, want 1", len(out))
	}
}

func TestFreqXlating_ShiftsToneToBaseband(t *testing.T) {
	t.Parallel()

	const rate, freq = 256000.0, 50000.0
	x := NewFreqXlating("xl", rate, -freq, 12000, 6000)

	// Shifting a 50 kHz tone down by 50 kHz leaves a DC-like signal:
	// successive output samples stop rotating.
	var out []complex64
	for b := range 4 {
		out = x.ProcessIQ(tone(1024, b*1024, freq, rate))
	}
	for i := 1; i < len(out); i++ {
		a, b := complex128(out[i-1]), complex128(out[i])
		if cmplx.Abs(a) < 0.1 {
			continue
		}
		if dphi := cmplx.Phase(b * cmplx.Conj(a)); math.Abs(dphi) > 0.01 {
			t.Fatalf("residual rotation %v rad/sample at %d, want ~0", dphi, i)
		}
	}
}
