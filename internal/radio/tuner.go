package radio

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"hz.tools/rf"

	"github.com/brvfd/scannerbot/internal/observe"
)

// Tuner is the hardware front-end the controller drives. Every call may
// fail; the controller treats failures as best-effort and keeps going.
type Tuner interface {
	SetCenterFrequency(rf.Hz) error
	CenterFrequency() (rf.Hz, error)
	SetSampleRate(uint32) error
	SetBandwidth(rf.Hz) error
	SetGain(float64) error
	Gain() (float64, error)
}

// TuningConfig holds the convergence constants of the tune procedure.
// They are empirical per front-end, so all of them come from
// configuration rather than being baked in.
type TuningConfig struct {
	// Offset is the hardware-center offset applied in offset-tuned
	// modes, large enough that the channel clears the tuner's DC spike.
	Offset rf.Hz

	// NudgeUp and NudgeDown are the overshoot step sizes. The synthesizer
	// locks with less residual error when approached from both sides.
	NudgeUp   rf.Hz
	NudgeDown rf.Hz

	// Settle is the pause after each overshoot step; SettleLong after the
	// final direct set; RetrySettle after each verify-retry set.
	Settle      time.Duration
	SettleLong  time.Duration
	RetrySettle time.Duration

	// Retries bounds the verify loop. Tolerance is the acceptable
	// difference between commanded and reported center frequency.
	Retries   int
	Tolerance rf.Hz

	// Bandwidth is the working tuner bandwidth restored after a tune.
	// Zero asks the hardware for automatic selection.
	Bandwidth rf.Hz
}

// DefaultTuningConfig returns constants known to behave on RTL2832-class
// front-ends.
func DefaultTuningConfig() TuningConfig {
	return TuningConfig{
		Offset:      250 * rf.KHz,
		NudgeUp:     50 * rf.KHz,
		NudgeDown:   25 * rf.KHz,
		Settle:      60 * time.Millisecond,
		SettleLong:  120 * time.Millisecond,
		RetrySettle: 80 * time.Millisecond,
		Retries:     3,
		Tolerance:   3 * rf.KHz,
		Bandwidth:   1.2 * rf.MHz,
	}
}

// TunerController converges the hardware tuner on a requested frequency
// and keeps the frequency-translating stage consistent with the active
// mode. Tune calls are serialized by an internal operation lock so two
// overlapping requests can never interleave their splice steps.
type TunerController struct {
	mu   sync.Mutex
	hw   Tuner
	cfg  TuningConfig
	log  *slog.Logger
	m    *observe.Metrics
	wait func(time.Duration)

	target rf.Hz
}

// NewTunerController wires a controller to the hardware front-end.
// metrics may be nil.
func NewTunerController(hw Tuner, cfg TuningConfig, log *slog.Logger, metrics *observe.Metrics) *TunerController {
	if log == nil {
		log = slog.Default()
	}
	return &TunerController{
		hw:   hw,
		cfg:  cfg,
		log:  log,
		m:    metrics,
		wait: time.Sleep,
	}
}

// Target returns the most recently requested receive frequency, zero if
// nothing has been tuned yet.
func (c *TunerController) Target() rf.Hz {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.target
}

// Tune drives the hardware to freq for the given topology. Hardware
// failures are logged and swallowed: the call reports an error only for
// an invalid request or a graph splice failure, never for the tuner
// refusing a command. In offset-tuned modes the hardware center lands at
// freq plus the configured offset and the translating stage is
// (re)installed to shift the signal back to baseband.
func (c *TunerController) Tune(ctx context.Context, topo *Topology, freq rf.Hz) error {
	if freq <= 0 {
		return fmt.Errorf("radio: tune: invalid frequency %v", freq)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()
	mode := topo.Mode()

	// Wide-open bandwidth first so the front-end does not clip the
	// transient of a large jump.
	c.set(ctx, "bandwidth", func() error { return c.hw.SetBandwidth(0) })

	center := freq
	if mode.OffsetTuned() {
		center += c.cfg.Offset
	}

	// Approach the target from both directions. Direct sets alone leave
	// some synthesizers with a residual lock error.
	steps := []struct {
		f    rf.Hz
		wait time.Duration
	}{
		{center, c.cfg.Settle},
		{center + c.cfg.NudgeUp, c.cfg.Settle},
		{center - c.cfg.NudgeDown, c.cfg.Settle},
		{center, c.cfg.SettleLong},
	}
	for _, st := range steps {
		f := st.f
		c.set(ctx, "frequency", func() error { return c.hw.SetCenterFrequency(f) })
		c.wait(st.wait)
	}

	retries := c.verify(ctx, center)

	c.set(ctx, "bandwidth", func() error { return c.hw.SetBandwidth(c.cfg.Bandwidth) })

	if mode.OffsetTuned() {
		if err := topo.InstallTranslator(-c.cfg.Offset); err != nil {
			return fmt.Errorf("radio: tune: %w", err)
		}
	} else if err := topo.RemoveTranslator(); err != nil {
		return fmt.Errorf("radio: tune: %w", err)
	}

	c.target = freq
	c.log.InfoContext(ctx, "tuned",
		slog.Float64("freq_mhz", float64(freq)/1e6),
		slog.String("mode", string(mode)),
		slog.Int("verify_retries", retries),
		slog.Duration("took", time.Since(start)))
	if c.m != nil {
		c.m.RecordTune(ctx, time.Since(start), retries)
	}
	return nil
}

// verify reads the center frequency back and reissues the direct set
// while it disagrees with center by more than the tolerance, up to the
// configured retry bound. Best-effort: the last commanded value stands
// even when the hardware never agrees.
func (c *TunerController) verify(ctx context.Context, center rf.Hz) (retries int) {
	tol := c.cfg.Tolerance
	for ; retries < c.cfg.Retries; retries++ {
		got, err := c.hw.CenterFrequency()
		if err == nil && got >= center-tol && got <= center+tol {
			return retries
		}
		if err != nil {
			c.log.WarnContext(ctx, "tuner read-back failed", slog.String("error", err.Error()))
		} else {
			c.log.WarnContext(ctx, "tuner off target",
				slog.Float64("want_mhz", float64(center)/1e6),
				slog.Float64("got_mhz", float64(got)/1e6))
		}
		c.set(ctx, "frequency", func() error { return c.hw.SetCenterFrequency(center) })
		c.wait(c.cfg.RetrySettle)
	}
	return retries
}

// set runs one hardware command and logs a failure instead of returning
// it.
func (c *TunerController) set(ctx context.Context, what string, fn func() error) {
	if err := fn(); err != nil {
		c.log.WarnContext(ctx, "tuner command failed",
			slog.String("command", what),
			slog.String("error", err.Error()))
	}
}
