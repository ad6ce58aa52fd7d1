package radio

import (
	"context"
	"math"
	"sync"

	"github.com/brvfd/scannerbot/internal/observe"
)

// Audio chunk geometry: 48 kHz, 16-bit, stereo, served in 20 ms chunks.
const (
	bytesPerSample = 2
	sinkChannels   = 2

	// ChunkBytes is the fixed size of one playback chunk: 20 ms of
	// 48 kHz 16-bit stereo PCM.
	ChunkBytes = AudioRate * sinkChannels * bytesPerSample * 20 / 1000 // 3840

	// primeMultiplier sets the priming threshold as a multiple of the
	// chunk cadence, enough to absorb jitter from uneven stage delivery
	// sizes without adding perceptible latency.
	primeMultiplier = 3
)

// Sink is the squelch-gated jitter buffer between the demodulation chain
// and the voice transport. The chain pushes variable-size sample blocks
// through Deliver; the transport pulls fixed-size PCM chunks through
// Read on its own 20 ms cadence. Neither call ever blocks on the other:
// Read pads with silence when data is short, and Deliver returns as soon
// as the block is queued.
//
// Sink is safe for one producer and one consumer running concurrently.
type Sink struct {
	mu         sync.Mutex
	pending    [][]byte
	pendingLen int
	primed     bool
	lastRMS    float64
	threshold  float64

	chunkBytes int
	primeBytes int
	maxBytes   int // 0 = unbounded

	metrics *observe.Metrics
}

// NewSink creates a sink serving chunkBytes-sized chunks, gated on the
// given squelch threshold (0 disables squelch). maxBytes > 0 bounds the
// buffer with oldest-first dropping; 0 leaves it unbounded. metrics may
// be nil.
func NewSink(chunkBytes int, threshold float64, maxBytes int, metrics *observe.Metrics) *Sink {
	if chunkBytes <= 0 {
		chunkBytes = ChunkBytes
	}
	return &Sink{
		chunkBytes: chunkBytes,
		primeBytes: chunkBytes * primeMultiplier,
		threshold:  threshold,
		maxBytes:   maxBytes,
		metrics:    metrics,
	}
}

func (s *Sink) Name() string { return "sink" }

// Deliver converts a block of normalized mono samples to 16-bit stereo
// PCM and queues it. It records the block's RMS (after clamping to ±1.0)
// as the current squelch reading and flips the primed flag once enough
// audio is buffered.
func (s *Sink) Deliver(block []float32) {
	if len(block) == 0 {
		return
	}

	var sum float64
	buf := make([]byte, len(block)*sinkChannels*bytesPerSample)
	for i, f := range block {
		v := float64(f)
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		sum += v * v

		n := v * 32768
		if n > 32767 {
			n = 32767
		} else if n < -32768 {
			n = -32768
		}
		sample := int16(n)
		lo, hi := byte(sample), byte(sample>>8)
		j := i * 4
		buf[j] = lo
		buf[j+1] = hi
		buf[j+2] = lo
		buf[j+3] = hi
	}
	rms := math.Sqrt(sum / float64(len(block)))

	s.mu.Lock()
	s.lastRMS = rms
	s.pending = append(s.pending, buf)
	s.pendingLen += len(buf)
	if s.pendingLen > s.primeBytes {
		s.primed = true
	}
	var dropped int
	for s.maxBytes > 0 && s.pendingLen > s.maxBytes && len(s.pending) > 1 {
		dropped += len(s.pending[0])
		s.pendingLen -= len(s.pending[0])
		s.pending = s.pending[1:]
	}
	s.mu.Unlock()

	if s.metrics != nil {
		ctx := context.Background()
		s.metrics.BlocksDelivered.Add(ctx, 1)
		s.metrics.BytesBuffered.Add(ctx, int64(len(buf)-dropped))
	}
}

// Read returns exactly one chunk of PCM. It returns silence while the
// buffer is priming and while the squelch is closed (threshold > 0 and
// last RMS below it) — gated audio stays buffered so the stream does not
// fall behind, it just is not exposed. Otherwise the chunk is assembled
// from the front of the queue, splitting the last segment and pushing
// its tail back so no byte is lost; any shortfall stays zero-filled.
func (s *Sink) Read() []byte {
	chunk := make([]byte, s.chunkBytes)

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.primed {
		return chunk
	}
	if s.threshold > 0 && s.lastRMS < s.threshold {
		if s.metrics != nil {
			s.metrics.SquelchedReads.Add(context.Background(), 1)
		}
		return chunk
	}

	i := 0
	for i < len(chunk) && len(s.pending) > 0 {
		seg := s.pending[0]
		s.pending = s.pending[1:]
		s.pendingLen -= len(seg)

		if need := len(chunk) - i; len(seg) > need {
			tail := seg[need:]
			s.pending = append([][]byte{tail}, s.pending...)
			s.pendingLen += len(tail)
			seg = seg[:need]
		}
		copy(chunk[i:], seg)
		i += len(seg)
	}

	if s.metrics != nil {
		ctx := context.Background()
		s.metrics.ChunksServed.Add(ctx, 1)
		s.metrics.BytesBuffered.Add(ctx, -int64(i))
	}
	return chunk
}

// RMS returns the RMS amplitude of the most recently delivered block.
func (s *Sink) RMS() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRMS
}

// Threshold returns the current squelch threshold.
func (s *Sink) Threshold() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.threshold
}

// SetThreshold updates the squelch threshold. Values below zero clamp
// to zero (squelch off).
func (s *Sink) SetThreshold(t float64) {
	if t < 0 {
		t = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threshold = t
}

// Primed reports whether enough audio has been buffered to start
// playback.
func (s *Sink) Primed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.primed
}

// BufferedBytes returns the number of bytes currently queued.
func (s *Sink) BufferedBytes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingLen
}

// ChunkBytes returns the fixed chunk size served by Read.
func (s *Sink) ChunkBytes() int { return s.chunkBytes }
