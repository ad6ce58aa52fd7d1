package radio

import (
	"fmt"

	"hz.tools/rf"

	"github.com/brvfd/scannerbot/internal/dsp"
)

// Topology is the live, connected stage set for one mode. It remembers
// the junction (the front-end decimator output, at [ChanRate]) where a
// frequency-translating stage can be spliced ahead of the demodulation
// path, and tracks whether a translator is currently installed — nil
// means absent, so wiring state is never implicit.
type Topology struct {
	graph *dsp.Graph
	mode  Mode

	junction   dsp.Block // last front-end stage, output at ChanRate
	demodInput dsp.Block // first stage of the demodulation path
	translator *dsp.FreqXlating
}

// BuildTopology tears down every edge in g and wires the stage chain for
// mode, ending at sink. The source is connected as the chain head; the
// caller is responsible for the graph being stopped during a rebuild.
func BuildTopology(g *dsp.Graph, src dsp.Source, sink dsp.AudioSink, mode Mode, p ChainParams) (*Topology, error) {
	if !mode.IsValid() {
		return nil, fmt.Errorf("radio: build topology: unknown mode %q", mode)
	}

	// Full teardown first. Disconnecting edges that are already gone is
	// a no-op, so a rebuild can never fail on leftover wiring.
	g.DisconnectAll()

	t := &Topology{graph: g, mode: mode}

	frontEnd := dsp.NewDecimatorC("front-decim", CaptureRate/ChanRate)
	t.junction = frontEnd

	var chain []dsp.Block
	switch mode {
	case ModeWFM:
		chain = []dsp.Block{
			dsp.NewAGCC("rf-agc", dsp.DefaultAGC()),
			dsp.NewWFMReceiver("wfm-rcv", ChanRate, ChanRate/DemodRate),
			dsp.NewDCBlocker("dc-block", 0),
			dsp.NewAGCF("audio-agc", dsp.DefaultAGC()),
		}
	case ModeNFM, ModeWX:
		dev := p.NFMDeviation
		if mode == ModeWX {
			dev = p.WXDeviation
		}
		chain = []dsp.Block{
			dsp.NewLowPassC("chan-lpf", ChanRate, 6000, 6000),
			dsp.NewAGCC("rf-agc", dsp.DefaultAGC()),
			dsp.NewQuadratureDemod("quad-demod",
				dsp.QuadratureSensitivity(ChanRate, float64(dev))),
			dsp.NewDCBlocker("dc-block", 0),
			dsp.NewResamplerF("audio-decim", 1, ChanRate/DemodRate),
			dsp.NewAGCF("audio-agc", dsp.DefaultAGC()),
		}
	}
	t.demodInput = chain[0]

	cutoff, transition := audioCutoff(mode)
	chain = append(chain,
		dsp.NewLowPassF("audio-lpf", DemodRate, cutoff, transition),
		dsp.NewResamplerF("audio-resamp", AudioRate/16000, DemodRate/16000), // 3/4: 64k -> 48k
	)

	nodes := make([]dsp.Block, 0, len(chain)+3)
	nodes = append(nodes, src, frontEnd)
	nodes = append(nodes, chain...)
	nodes = append(nodes, sink)

	for i := 0; i+1 < len(nodes); i++ {
		if err := g.Connect(nodes[i], nodes[i+1]); err != nil {
			return nil, fmt.Errorf("radio: connect %s -> %s: %w",
				nodes[i].Name(), nodes[i+1].Name(), err)
		}
	}
	return t, nil
}

// Mode returns the mode this topology was built for.
func (t *Topology) Mode() Mode { return t.mode }

// TranslatorInstalled reports whether a frequency-translating stage is
// currently spliced between the junction and the demodulation path.
func (t *Topology) TranslatorInstalled() bool { return t.translator != nil }

// InstallTranslator splices a frequency-translating stage shifting by
// shift between the junction and the demodulation path, replacing any
// previously installed one. The direct junction edge and any old
// translator edges are removed first, so the single-producer invariant
// of the demodulator input is never violated: after this call exactly
// one path junction -> translator -> demodulator exists.
func (t *Topology) InstallTranslator(shift rf.Hz) error {
	// Remove whichever wiring currently feeds the demod path. Both
	// disconnects are idempotent.
	t.graph.Disconnect(t.junction, t.demodInput)
	if t.translator != nil {
		t.graph.Disconnect(t.junction, t.translator)
		t.graph.Disconnect(t.translator, t.demodInput)
		t.translator = nil
	}

	// Pass the whole channel; the chain's own filters do the narrow
	// selection downstream.
	xl := dsp.NewFreqXlating("freq-xlate", ChanRate, float64(shift), 12_000, 6000)
	if err := t.graph.Connect(t.junction, xl); err != nil {
		return fmt.Errorf("radio: install translator: %w", err)
	}
	if err := t.graph.Connect(xl, t.demodInput); err != nil {
		t.graph.Disconnect(t.junction, xl)
		return fmt.Errorf("radio: install translator: %w", err)
	}
	t.translator = xl
	return nil
}

// RemoveTranslator restores the direct junction -> demodulator edge.
// Removing an absent translator is a no-op.
func (t *Topology) RemoveTranslator() error {
	if t.translator == nil {
		return nil
	}
	t.graph.Disconnect(t.junction, t.translator)
	t.graph.Disconnect(t.translator, t.demodInput)
	t.translator = nil
	if err := t.graph.Connect(t.junction, t.demodInput); err != nil {
		return fmt.Errorf("radio: remove translator: %w", err)
	}
	return nil
}
