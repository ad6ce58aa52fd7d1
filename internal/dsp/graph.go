package dsp

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// readRetryDelay is how long the worker waits after a source read error
// before trying again.
const readRetryDelay = 100 * time.Millisecond

// Graph is a directed chain of DSP stages. Edges are explicit: Connect
// wires one block's output to another block's input, enforcing the
// single-producer-per-input rule, and Disconnect is idempotent so a
// rebuild can always start from a clean slate.
//
// Start launches one worker goroutine that reads IQ buffers from the
// source and walks them through the chain. The edge table is guarded by
// a mutex held for the duration of each traversal, which makes it safe
// to splice a stage in or out while the graph is running.
type Graph struct {
	mu  sync.Mutex
	out map[Block]Block // producer -> consumer
	in  map[Block]Block // consumer -> producer

	runMu   sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		out: make(map[Block]Block),
		in:  make(map[Block]Block),
	}
}

// Connect wires src's output to dst's input. It fails with
// [ErrInputConnected] or [ErrOutputConnected] if either port is taken.
func (g *Graph) Connect(src, dst Block) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.in[dst]; ok {
		return ErrInputConnected
	}
	if _, ok := g.out[src]; ok {
		return ErrOutputConnected
	}
	g.out[src] = dst
	g.in[dst] = src
	return nil
}

// Disconnect removes the src->dst edge. Removing an edge that does not
// exist is a no-op.
func (g *Graph) Disconnect(src, dst Block) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.out[src] == dst {
		delete(g.out, src)
		delete(g.in, dst)
	}
}

// DisconnectAll removes every edge. Idempotent.
func (g *Graph) DisconnectAll() {
	g.mu.Lock()
	defer g.mu.Unlock()
	clear(g.out)
	clear(g.in)
}

// Downstream returns the block fed by b's output, or nil if the output
// port is unconnected.
func (g *Graph) Downstream(b Block) Block {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.out[b]
}

// Upstream returns the block feeding b's input, or nil if the input
// port is unconnected.
func (g *Graph) Upstream(b Block) Block {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.in[b]
}

// Start launches the worker goroutine reading bufSize IQ samples per
// iteration from src. Calling Start on a running graph is a no-op.
func (g *Graph) Start(ctx context.Context, src Source, bufSize int) {
	g.runMu.Lock()
	defer g.runMu.Unlock()
	if g.running {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	g.cancel = cancel
	g.done = make(chan struct{})
	g.running = true

	go g.run(ctx, src, bufSize)
}

// Stop halts the worker and waits for it to exit, so no stage is mid-
// flight when Stop returns. Calling Stop on a stopped graph is a no-op.
func (g *Graph) Stop() {
	g.runMu.Lock()
	defer g.runMu.Unlock()
	if !g.running {
		return
	}
	g.cancel()
	<-g.done
	g.running = false
}

// Running reports whether the worker goroutine is active.
func (g *Graph) Running() bool {
	g.runMu.Lock()
	defer g.runMu.Unlock()
	return g.running
}

func (g *Graph) run(ctx context.Context, src Source, bufSize int) {
	defer close(g.done)

	buf := make([]complex64, bufSize)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		n, err := src.ReadIQ(buf)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Warn("dsp: source read failed", "source", src.Name(), "err", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(readRetryDelay):
			}
			continue
		}
		if n == 0 {
			continue
		}
		g.process(src, buf[:n])
	}
}

// process walks one buffer from src through the chain. The edge mutex is
// held for the whole traversal so concurrent splices see either the old
// or the new wiring, never a half-rewired chain.
func (g *Graph) process(src Block, iq []complex64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	var audio []float32
	demodulated := false

	for b := g.out[src]; b != nil; b = g.out[b] {
		switch stage := b.(type) {
		case IQProcessor:
			if demodulated {
				slog.Warn("dsp: IQ stage after demodulator, dropping buffer", "stage", stage.Name())
				return
			}
			iq = stage.ProcessIQ(iq)
		case Demodulator:
			if demodulated {
				slog.Warn("dsp: second demodulator in chain, dropping buffer", "stage", stage.Name())
				return
			}
			audio = stage.Demodulate(iq)
			demodulated = true
		case AudioProcessor:
			if !demodulated {
				slog.Warn("dsp: audio stage before demodulator, dropping buffer", "stage", stage.Name())
				return
			}
			audio = stage.ProcessAudio(audio)
		case AudioSink:
			if demodulated {
				stage.Deliver(audio)
			}
			return
		default:
			slog.Warn("dsp: block implements no processing interface", "stage", b.Name())
			return
		}
	}
}
