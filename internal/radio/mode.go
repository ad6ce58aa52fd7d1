// Package radio contains the receiver core: the demodulation chain
// supervisor, the per-mode graph topology, the tuning controller, and
// the squelch-gated jitter buffer that feeds the voice transport.
package radio

import (
	"fmt"

	"hz.tools/rf"
)

// Mode selects the demodulation topology of the receiver.
type Mode string

const (
	// ModeWFM is wideband broadcast FM (75 kHz deviation).
	ModeWFM Mode = "wfm"

	// ModeNFM is narrowband voice FM (public-safety / amateur, ~2.5 kHz
	// deviation by default).
	ModeNFM Mode = "nfm"

	// ModeWX is the NOAA weather/alert mode: narrowband FM received with
	// offset tuning so the channel sits clear of the tuner's DC spike.
	ModeWX Mode = "wx"
)

// IsValid reports whether m is a recognised mode.
func (m Mode) IsValid() bool {
	switch m {
	case ModeWFM, ModeNFM, ModeWX:
		return true
	}
	return false
}

// OffsetTuned reports whether the mode receives with the hardware center
// offset from the target frequency.
func (m Mode) OffsetTuned() bool {
	return m == ModeWX
}

// ParseMode converts a string to a [Mode].
func ParseMode(s string) (Mode, error) {
	m := Mode(s)
	if !m.IsValid() {
		return "", fmt.Errorf("radio: unknown mode %q (valid: wfm, nfm, wx)", s)
	}
	return m, nil
}

// Fixed points of the rate plan. The capture rate divides by 8 to the
// channel rate, the demodulators emit at a quarter of the channel rate,
// and a final 3/4 resample lands on the 48 kHz playback rate. All ratios
// are exact integers so the end-to-end conversion is drift-free.
const (
	// CaptureRate is the raw IQ sample rate requested from the tuner.
	CaptureRate = 2_048_000

	// ChanRate is the complex rate after front-end decimation.
	ChanRate = CaptureRate / 8 // 256 kHz

	// DemodRate is the audio rate out of the demodulation path.
	DemodRate = ChanRate / 4 // 64 kHz

	// AudioRate is the playback sample rate.
	AudioRate = 48_000
)

// ChainParams are the per-deployment knobs of the demodulation chains.
type ChainParams struct {
	// NFMDeviation is the peak deviation assumed for ModeNFM.
	NFMDeviation rf.Hz

	// WXDeviation is the peak deviation assumed for ModeWX.
	WXDeviation rf.Hz
}

// DefaultChainParams returns the stock deviations: 2.5 kHz for narrow
// voice and 5 kHz for NOAA weather.
func DefaultChainParams() ChainParams {
	return ChainParams{
		NFMDeviation: 2.5 * rf.KHz,
		WXDeviation:  5 * rf.KHz,
	}
}

// audioCutoff returns the post-demodulation audio low-pass profile for a
// mode: narrower for voice, wider for broadcast and weather.
func audioCutoff(m Mode) (cutoffHz, transitionHz float64) {
	switch m {
	case ModeWFM:
		return 8000, 2000
	case ModeWX:
		return 4500, 1500
	default: // ModeNFM
		return 3500, 1500
	}
}
