// Package dsp provides the data-flow engine the receiver chain runs on:
// a small directed graph of single-input, single-output stages plus the
// stage library itself (filters, resamplers, demodulators, gain control).
//
// Every stage exposes exactly one input and one output port. The raw IQ
// source has no input and the audio sink has no output; everything in
// between transforms a buffer and hands it downstream. The [Graph] owns
// the edges and drives data through the chain from a single worker
// goroutine, so stages themselves need no internal locking.
package dsp

import "errors"

// Block is a node in the flow graph. Concrete stages additionally
// implement one of [IQProcessor], [Demodulator], [AudioProcessor], or
// [AudioSink] depending on their sample domain.
type Block interface {
	// Name identifies the stage in logs and errors.
	Name() string
}

// Source produces raw complex baseband samples. It is the head of the
// graph and has no input port.
type Source interface {
	Block

	// ReadIQ fills buf with IQ samples and returns the count read.
	// It may block waiting for hardware data.
	ReadIQ(buf []complex64) (int, error)
}

// IQProcessor transforms complex baseband samples (filters, resamplers,
// frequency translators, pre-demod gain control).
type IQProcessor interface {
	Block

	// ProcessIQ consumes in and returns the transformed buffer. The
	// returned slice may alias in or be owned by the stage; callers must
	// not retain it past the next call.
	ProcessIQ(in []complex64) []complex64
}

// Demodulator converts complex baseband samples to real audio samples.
type Demodulator interface {
	Block

	// Demodulate consumes IQ samples and returns normalized audio.
	Demodulate(in []complex64) []float32
}

// AudioProcessor transforms real audio samples (audio filters,
// resamplers, post-demod gain control, DC removal).
type AudioProcessor interface {
	Block

	// ProcessAudio consumes in and returns the transformed buffer.
	ProcessAudio(in []float32) []float32
}

// AudioSink is the tail of the graph; it consumes audio and has no
// output port.
type AudioSink interface {
	Block

	// Deliver hands a block of normalized audio samples to the sink.
	// Implementations must not block.
	Deliver(in []float32)
}

var (
	// ErrInputConnected is returned by [Graph.Connect] when the
	// destination's input port already has a producer. Most pull-based
	// engines forbid two producers feeding one input; so does this one.
	ErrInputConnected = errors.New("dsp: destination input already connected")

	// ErrOutputConnected is returned by [Graph.Connect] when the source's
	// output port already feeds another block.
	ErrOutputConnected = errors.New("dsp: source output already connected")
)
