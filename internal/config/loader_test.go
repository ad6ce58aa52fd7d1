package config_test

import (
	"strings"
	"testing"

	"github.com/brvfd/scannerbot/internal/config"
)

const minimalYAML = `
discord:
  token: "abc123"
radio:
  driver_addr: "127.0.0.1:1234"
`

func TestLoadFromReader_Minimal(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader(minimalYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Discord.Token != "abc123" {
		t.Errorf("token = %q, want %q", cfg.Discord.Token, "abc123")
	}
	if cfg.Radio.DriverAddr != "127.0.0.1:1234" {
		t.Errorf("driver_addr = %q, want %q", cfg.Radio.DriverAddr, "127.0.0.1:1234")
	}
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	t.Parallel()
	yaml := minimalYAML + `
radar:
  enabled: true
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for unknown top-level field, got nil")
	}
}

func TestValidate_MissingToken(t *testing.T) {
	t.Parallel()
	yaml := `
radio:
  driver_addr: "127.0.0.1:1234"
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for missing discord token, got nil")
	}
	if !strings.Contains(err.Error(), "discord.token") {
		t.Errorf("error should mention discord.token, got: %v", err)
	}
}

func TestValidate_InvalidMode(t *testing.T) {
	t.Parallel()
	yaml := `
discord:
  token: "abc123"
radio:
  driver_addr: "127.0.0.1:1234"
  mode: ssb
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for invalid mode, got nil")
	}
	if !strings.Contains(err.Error(), "radio.mode") {
		t.Errorf("error should mention radio.mode, got: %v", err)
	}
}

func TestValidate_DuplicatePresetNames(t *testing.T) {
	t.Parallel()
	yaml := minimalYAML + `
presets:
  - name: wx1
    mhz: 162.55
  - name: wx1
    mhz: 162.4
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for duplicate preset names, got nil")
	}
	if !strings.Contains(err.Error(), "duplicate") {
		t.Errorf("error should mention duplicate, got: %v", err)
	}
}

func TestValidate_PresetRequiresPositiveFrequency(t *testing.T) {
	t.Parallel()
	yaml := minimalYAML + `
presets:
  - name: broken
    mhz: 0
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for zero preset frequency, got nil")
	}
	if !strings.Contains(err.Error(), "mhz") {
		t.Errorf("error should mention mhz, got: %v", err)
	}
}

func TestValidate_PresetOverrides(t *testing.T) {
	t.Parallel()
	yaml := minimalYAML + `
presets:
  - name: noaa
    mhz: 162.55
    mode: wx
    squelch: 0.05
    gain: 28.0
  - name: fm
    mhz: 101.1
    mode: wfm
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p, ok := cfg.PresetByName("noaa")
	if !ok {
		t.Fatal("preset noaa not found")
	}
	if p.Mode != "wx" {
		t.Errorf("mode = %q, want %q", p.Mode, "wx")
	}
	if p.Squelch == nil || *p.Squelch != 0.05 {
		t.Errorf("squelch = %v, want 0.05", p.Squelch)
	}
	if p.Gain == nil || *p.Gain != 28.0 {
		t.Errorf("gain = %v, want 28.0", p.Gain)
	}

	p, ok = cfg.PresetByName("fm")
	if !ok {
		t.Fatal("preset fm not found")
	}
	if p.Squelch != nil {
		t.Errorf("squelch = %v, want nil (no override)", p.Squelch)
	}

	if _, ok := cfg.PresetByName("nope"); ok {
		t.Error("PresetByName should not find a missing preset")
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: loud
radio:
  driver_addr: ""
  default_squelch: -1
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected errors, got nil")
	}
	errStr := err.Error()
	for _, want := range []string{"log_level", "discord.token", "driver_addr", "default_squelch"} {
		if !strings.Contains(errStr, want) {
			t.Errorf("error should mention %s, got: %v", want, err)
		}
	}
}

func TestValidate_NegativeTuningValues(t *testing.T) {
	t.Parallel()
	yaml := minimalYAML + `
tuning:
  retries: -1
  settle: -10ms
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for negative tuning values, got nil")
	}
	if !strings.Contains(err.Error(), "tuning.retries") {
		t.Errorf("error should mention tuning.retries, got: %v", err)
	}
}
