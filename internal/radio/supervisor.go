package radio

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"hz.tools/rf"

	"github.com/brvfd/scannerbot/internal/dsp"
	"github.com/brvfd/scannerbot/internal/observe"
)

// ErrUnknownMode is returned by SetMode for a mode outside the closed
// set. The supervisor's state is untouched when it is returned.
var ErrUnknownMode = fmt.Errorf("radio: unknown mode")

// readBufSamples is how many IQ samples the engine pulls from the source
// per iteration: 8k samples is 4 ms at the capture rate, small enough to
// keep stage latency low and large enough to amortize the read.
const readBufSamples = 8192

// SupervisorConfig carries the deploy-time knobs of the receiver core.
type SupervisorConfig struct {
	// Mode is the initial demodulation mode.
	Mode Mode

	// Squelch is the initial squelch threshold (0 disables).
	Squelch float64

	// MaxBufferBytes bounds the sink's queue; 0 leaves it unbounded.
	MaxBufferBytes int

	// Chain holds the per-mode deviations.
	Chain ChainParams

	// Tuning holds the tune-procedure constants.
	Tuning TuningConfig
}

// Supervisor owns the receiver: the current mode, the live stage graph,
// the sink feeding playback, and the tuning controller. All mutations go
// through it so mode switches, tunes, and the playback puller cannot
// observe a half-built chain.
type Supervisor struct {
	mu sync.RWMutex

	src     dsp.Source
	graph   *dsp.Graph
	topo    *Topology
	sink    *Sink
	tuner   *TunerController
	mode    Mode
	running bool

	cfg SupervisorConfig
	log *slog.Logger
	m   *observe.Metrics
}

// NewSupervisor builds the initial topology for cfg.Mode and leaves the
// engine stopped. metrics may be nil.
func NewSupervisor(src dsp.Source, hw Tuner, cfg SupervisorConfig, log *slog.Logger, metrics *observe.Metrics) (*Supervisor, error) {
	if log == nil {
		log = slog.Default()
	}
	if !cfg.Mode.IsValid() {
		return nil, fmt.Errorf("%w %q", ErrUnknownMode, cfg.Mode)
	}

	s := &Supervisor{
		src:   src,
		graph: dsp.NewGraph(),
		tuner: NewTunerController(hw, cfg.Tuning, log, metrics),
		cfg:   cfg,
		log:   log,
		m:     metrics,
	}
	if err := s.rebuild(cfg.Mode, cfg.Squelch); err != nil {
		return nil, err
	}
	return s, nil
}

// rebuild constructs a fresh sink and topology for mode. Caller holds
// s.mu and has stopped the graph.
func (s *Supervisor) rebuild(mode Mode, squelch float64) error {
	sink := NewSink(ChunkBytes, squelch, s.cfg.MaxBufferBytes, s.m)
	topo, err := BuildTopology(s.graph, s.src, sink, mode, s.cfg.Chain)
	if err != nil {
		return err
	}
	s.sink = sink
	s.topo = topo
	s.mode = mode
	return nil
}

// Start launches the data-flow engine. Starting a running supervisor is
// a no-op.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	s.graph.Start(ctx, s.src, readBufSamples)
	s.running = true
	s.log.InfoContext(ctx, "receiver started", slog.String("mode", string(s.mode)))
	return nil
}

// Stop halts the data-flow engine and waits for the worker to exit.
// Stopping a stopped supervisor is a no-op.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.graph.Stop()
	s.running = false
	s.log.Info("receiver stopped")
}

// SetMode switches the demodulation topology. The engine is halted for
// the rebuild and restarted only if it was running before; the sink is
// reconstructed so priming and squelch readings start clean, carrying
// over only the configured threshold. An unknown mode returns
// [ErrUnknownMode] without touching anything.
func (s *Supervisor) SetMode(ctx context.Context, mode Mode) error {
	if !mode.IsValid() {
		return fmt.Errorf("%w %q", ErrUnknownMode, mode)
	}

	ctx, span := observe.StartSpan(ctx, "radio.SetMode")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	wasRunning := s.running
	if wasRunning {
		s.graph.Stop()
		s.running = false
	}

	threshold := s.sink.Threshold()
	if err := s.rebuild(mode, threshold); err != nil {
		// The old edges are already torn down; leave the engine stopped
		// rather than restart a half-wired chain.
		return fmt.Errorf("radio: set mode: %w", err)
	}

	if wasRunning {
		s.graph.Start(ctx, s.src, readBufSamples)
		s.running = true
	}

	s.log.InfoContext(ctx, "mode switched", slog.String("mode", string(mode)))
	if s.m != nil {
		s.m.ModeSwitches.Add(ctx, 1)
	}
	return nil
}

// TuneTo drives the tuner to freq for the current mode. Run state is
// unchanged; the translating stage is spliced live when the mode needs
// it.
func (s *Supervisor) TuneTo(ctx context.Context, freq rf.Hz) error {
	ctx, span := observe.StartSpan(ctx, "radio.Tune")
	defer span.End()

	s.mu.RLock()
	topo := s.topo
	s.mu.RUnlock()
	return s.tuner.Tune(ctx, topo, freq)
}

// ReadChunk returns the next fixed-size playback chunk from the current
// sink. Safe to call on any cadence, including across mode switches: a
// fresh sink simply starts out serving silence until it primes again.
func (s *Supervisor) ReadChunk() []byte {
	s.mu.RLock()
	sink := s.sink
	s.mu.RUnlock()
	return sink.Read()
}

// Mode returns the current demodulation mode.
func (s *Supervisor) Mode() Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// Running reports whether the data-flow engine is live.
func (s *Supervisor) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Frequency returns the most recently requested receive frequency, zero
// if nothing has been tuned.
func (s *Supervisor) Frequency() rf.Hz {
	return s.tuner.Target()
}

// CenterFrequency returns the hardware-reported center frequency,
// best-effort: -1 when the read fails.
func (s *Supervisor) CenterFrequency() rf.Hz {
	f, err := s.tuner.hw.CenterFrequency()
	if err != nil {
		return -1
	}
	return f
}

// Squelch returns the current squelch threshold.
func (s *Supervisor) Squelch() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sink.Threshold()
}

// SetSquelch updates the squelch threshold on the live sink.
func (s *Supervisor) SetSquelch(t float64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	s.sink.SetThreshold(t)
}

// RMS returns the RMS amplitude of the most recent demodulated block.
func (s *Supervisor) RMS() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sink.RMS()
}

// SetGain passes a gain setting to the hardware, best-effort.
func (s *Supervisor) SetGain(ctx context.Context, db float64) {
	if err := s.tuner.hw.SetGain(db); err != nil {
		s.log.WarnContext(ctx, "set gain failed", slog.String("error", err.Error()))
	}
}

// Gain returns the hardware-reported gain, best-effort: -1 on failure.
func (s *Supervisor) Gain() float64 {
	g, err := s.tuner.hw.Gain()
	if err != nil {
		return -1
	}
	return g
}

// SetBandwidth passes a tuner bandwidth to the hardware, best-effort,
// and remembers it as the working bandwidth restored after tunes.
func (s *Supervisor) SetBandwidth(ctx context.Context, bw rf.Hz) {
	s.tuner.mu.Lock()
	s.tuner.cfg.Bandwidth = bw
	s.tuner.mu.Unlock()
	if err := s.tuner.hw.SetBandwidth(bw); err != nil {
		s.log.WarnContext(ctx, "set bandwidth failed", slog.String("error", err.Error()))
	}
}
