package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// validModes lists the demodulation modes the receiver implements. Kept
// here as strings so the config package does not depend on the radio
// package.
var validModes = map[string]bool{"wfm": true, "nfm": true, "wx": true}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Discord
	if cfg.Discord.Token == "" {
		errs = append(errs, errors.New("discord.token is required"))
	}

	// Radio
	if cfg.Radio.DriverAddr == "" {
		errs = append(errs, errors.New("radio.driver_addr is required"))
	}
	if cfg.Radio.Mode != "" && !validModes[cfg.Radio.Mode] {
		errs = append(errs, fmt.Errorf("radio.mode %q is invalid; valid values: wfm, nfm, wx", cfg.Radio.Mode))
	}
	if cfg.Radio.DefaultSquelch < 0 {
		errs = append(errs, fmt.Errorf("radio.default_squelch %.3f must not be negative", cfg.Radio.DefaultSquelch))
	}
	if cfg.Radio.NFMDeviationHz < 0 || cfg.Radio.WXDeviationHz < 0 {
		errs = append(errs, errors.New("radio deviation overrides must not be negative"))
	}
	if cfg.Radio.MaxBufferBytes < 0 {
		errs = append(errs, fmt.Errorf("radio.max_buffer_bytes %d must not be negative", cfg.Radio.MaxBufferBytes))
	}

	// Tuning
	if cfg.Tuning.Retries < 0 {
		errs = append(errs, fmt.Errorf("tuning.retries %d must not be negative", cfg.Tuning.Retries))
	}
	if cfg.Tuning.Settle < 0 || cfg.Tuning.SettleLong < 0 || cfg.Tuning.RetrySettle < 0 {
		errs = append(errs, errors.New("tuning settle intervals must not be negative"))
	}
	if cfg.Tuning.OffsetHz < 0 {
		errs = append(errs, fmt.Errorf("tuning.offset_hz %.0f must not be negative", cfg.Tuning.OffsetHz))
	}

	// Presets
	namesSeen := make(map[string]int, len(cfg.Presets))
	for i, p := range cfg.Presets {
		prefix := fmt.Sprintf("presets[%d]", i)
		if p.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		} else {
			if prev, ok := namesSeen[p.Name]; ok {
				errs = append(errs, fmt.Errorf("%s.name %q is a duplicate of presets[%d]", prefix, p.Name, prev))
			}
			namesSeen[p.Name] = i
		}
		if p.MHz <= 0 {
			errs = append(errs, fmt.Errorf("%s.mhz %.4f must be positive", prefix, p.MHz))
		}
		if p.Mode != "" && !validModes[p.Mode] {
			errs = append(errs, fmt.Errorf("%s.mode %q is invalid; valid values: wfm, nfm, wx", prefix, p.Mode))
		}
		if p.Squelch != nil && *p.Squelch < 0 {
			errs = append(errs, fmt.Errorf("%s.squelch %.3f must not be negative", prefix, *p.Squelch))
		}
	}

	// A bot with no presets works, it just forces raw-frequency commands.
	if len(cfg.Presets) == 0 {
		slog.Warn("no presets configured; only direct frequency tuning will be available")
	}

	return errors.Join(errs...)
}

// PresetByName returns the named preset, or false when no preset with
// that name exists. Lookup is exact and case-sensitive.
func (c *Config) PresetByName(name string) (Preset, bool) {
	for _, p := range c.Presets {
		if p.Name == name {
			return p, true
		}
	}
	return Preset{}, false
}
