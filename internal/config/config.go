// Package config provides the configuration schema, loader, and file
// watcher for the Scannerbot radio bridge.
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a [time.Duration] that unmarshals from YAML strings like
// "60ms" or "1.5s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler using [time.ParseDuration].
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns d as a [time.Duration].
func (d Duration) Std() time.Duration { return time.Duration(d) }

// LogLevel controls log verbosity for the Scannerbot server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for Scannerbot.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Discord DiscordConfig `yaml:"discord"`
	Radio   RadioConfig   `yaml:"radio"`
	Tuning  TuningConfig  `yaml:"tuning"`
	Presets []Preset      `yaml:"presets"`
}

// ServerConfig holds network and logging settings for the metrics/health
// HTTP server.
type ServerConfig struct {
	// ListenAddr is the TCP address the HTTP server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// DiscordConfig holds Discord gateway credentials.
type DiscordConfig struct {
	// Token is the bot token used to authenticate with the gateway.
	Token string `yaml:"token"`

	// GuildID scopes slash-command registration to one guild. Empty
	// registers the commands globally (slower propagation).
	GuildID string `yaml:"guild_id"`
}

// RadioConfig describes the SDR front-end and the receiver defaults.
type RadioConfig struct {
	// DriverAddr is the rtl_tcp server address (e.g., "127.0.0.1:1234").
	DriverAddr string `yaml:"driver_addr"`

	// Mode is the demodulation mode selected at startup: wfm, nfm, or wx.
	Mode string `yaml:"mode"`

	// DefaultSquelch is the startup squelch threshold; 0 disables squelch.
	DefaultSquelch float64 `yaml:"default_squelch"`

	// DefaultGain is the startup tuner gain in dB; negative selects
	// hardware AGC.
	DefaultGain float64 `yaml:"default_gain"`

	// NFMDeviationHz overrides the assumed peak deviation of the nfm mode.
	// Zero keeps the built-in default (2500).
	NFMDeviationHz float64 `yaml:"nfm_deviation_hz"`

	// WXDeviationHz overrides the assumed peak deviation of the wx mode.
	// Zero keeps the built-in default (5000).
	WXDeviationHz float64 `yaml:"wx_deviation_hz"`

	// MaxBufferBytes bounds the playback buffer, dropping oldest audio
	// when the voice transport stalls. Zero leaves the buffer unbounded.
	MaxBufferBytes int `yaml:"max_buffer_bytes"`
}

// TuningConfig exposes the tune-procedure constants. They are empirical
// per front-end; zero values fall back to defaults suitable for
// RTL2832-class dongles.
type TuningConfig struct {
	// OffsetHz is the hardware-center offset used by offset-tuned modes.
	OffsetHz float64 `yaml:"offset_hz"`

	// NudgeUpHz and NudgeDownHz are the overshoot step sizes.
	NudgeUpHz   float64 `yaml:"nudge_up_hz"`
	NudgeDownHz float64 `yaml:"nudge_down_hz"`

	// Settle is the pause after each overshoot step; SettleLong after the
	// final set; RetrySettle after each verify-retry set.
	Settle      Duration `yaml:"settle"`
	SettleLong  Duration `yaml:"settle_long"`
	RetrySettle Duration `yaml:"retry_settle"`

	// Retries bounds the verify loop; ToleranceHz is the acceptable
	// commanded-vs-reported difference.
	Retries     int     `yaml:"retries"`
	ToleranceHz float64 `yaml:"tolerance_hz"`

	// BandwidthHz is the working tuner bandwidth restored after a tune;
	// 0 asks the hardware for automatic selection.
	BandwidthHz float64 `yaml:"bandwidth_hz"`
}

// Preset is a named frequency with optional per-preset overrides.
type Preset struct {
	// Name is the label offered in command autocompletion.
	Name string `yaml:"name"`

	// MHz is the receive frequency in megahertz.
	MHz float64 `yaml:"mhz"`

	// Mode optionally switches the demodulation mode when the preset is
	// selected. Empty keeps the current mode.
	Mode string `yaml:"mode"`

	// Squelch optionally overrides the squelch threshold. Nil keeps the
	// current threshold; use an explicit 0 to disable squelch.
	Squelch *float64 `yaml:"squelch"`

	// Gain optionally overrides the tuner gain in dB.
	Gain *float64 `yaml:"gain"`
}
