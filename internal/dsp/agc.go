package dsp

import "math"

// AGCConfig holds the loop constants for an automatic gain control
// stage. Attack governs how fast gain drops on loud input, decay how
// fast it recovers, and reference the target envelope level. The
// defaults are deliberately sluggish so idle-channel noise is not pumped
// up to full scale.
type AGCConfig struct {
	Attack    float64
	Decay     float64
	Reference float64
	MaxGain   float64
}

// DefaultAGC returns loop constants suitable for both the pre-demod IQ
// stage and the post-demod audio stage.
func DefaultAGC() AGCConfig {
	return AGCConfig{
		Attack:    0.01,
		Decay:     0.0002,
		Reference: 0.5,
		MaxGain:   50,
	}
}

func (c AGCConfig) withDefaults() AGCConfig {
	d := DefaultAGC()
	if c.Attack <= 0 {
		c.Attack = d.Attack
	}
	if c.Decay <= 0 {
		c.Decay = d.Decay
	}
	if c.Reference <= 0 {
		c.Reference = d.Reference
	}
	if c.MaxGain <= 0 {
		c.MaxGain = d.MaxGain
	}
	return c
}

// AGCC is an automatic gain control stage for complex samples, placed
// ahead of the demodulator to level the channel before FM detection.
type AGCC struct {
	name string
	cfg  AGCConfig
	gain float64
	out  []complex64
}

// NewAGCC creates a complex AGC stage. Zero-valued config fields fall
// back to [DefaultAGC].
func NewAGCC(name string, cfg AGCConfig) *AGCC {
	return &AGCC{name: name, cfg: cfg.withDefaults(), gain: 1}
}

func (a *AGCC) Name() string { return a.name }

// ProcessIQ scales in by the tracked gain, adapting per sample.
func (a *AGCC) ProcessIQ(in []complex64) []complex64 {
	if cap(a.out) < len(in) {
		a.out = make([]complex64, len(in))
	}
	out := a.out[:len(in)]
	for i, s := range in {
		mag := math.Hypot(float64(real(s)), float64(imag(s))) * a.gain
		a.adapt(mag)
		g := float32(a.gain)
		out[i] = complex(real(s)*g, imag(s)*g)
	}
	return out
}

func (a *AGCC) adapt(level float64) {
	err := a.cfg.Reference - level
	rate := a.cfg.Decay
	if err < 0 {
		rate = a.cfg.Attack
	}
	a.gain += rate * err
	if a.gain > a.cfg.MaxGain {
		a.gain = a.cfg.MaxGain
	}
	if a.gain < 0 {
		a.gain = 0
	}
}

// AGCF is an automatic gain control stage for real audio samples,
// placed after the demodulator.
type AGCF struct {
	name string
	cfg  AGCConfig
	gain float64
	out  []float32
}

// NewAGCF creates an audio AGC stage. Zero-valued config fields fall
// back to [DefaultAGC].
func NewAGCF(name string, cfg AGCConfig) *AGCF {
	return &AGCF{name: name, cfg: cfg.withDefaults(), gain: 1}
}

func (a *AGCF) Name() string { return a.name }

// ProcessAudio scales in by the tracked gain, adapting per sample.
func (a *AGCF) ProcessAudio(in []float32) []float32 {
	if cap(a.out) < len(in) {
		a.out = make([]float32, len(in))
	}
	out := a.out[:len(in)]
	for i, s := range in {
		level := math.Abs(float64(s)) * a.gain
		a.adapt(level)
		out[i] = s * float32(a.gain)
	}
	return out
}

func (a *AGCF) adapt(level float64) {
	err := a.cfg.Reference - level
	rate := a.cfg.Decay
	if err < 0 {
		rate = a.cfg.Attack
	}
	a.gain += rate * err
	if a.gain > a.cfg.MaxGain {
		a.gain = a.cfg.MaxGain
	}
	if a.gain < 0 {
		a.gain = 0
	}
}
