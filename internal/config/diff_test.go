package config_test

import (
	"testing"

	"github.com/brvfd/scannerbot/internal/config"
)

func fptr(v float64) *float64 { return &v }

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{
		Server: config.ServerConfig{LogLevel: config.LogInfo},
		Radio:  config.RadioConfig{DefaultSquelch: 0.05, DefaultGain: 28},
		Presets: []config.Preset{
			{Name: "noaa", MHz: 162.55, Mode: "wx", Squelch: fptr(0.05)},
		},
	}
	d := config.Diff(cfg, cfg)
	if d.PresetsChanged {
		t.Error("expected PresetsChanged=false for identical configs")
	}
	if d.LogLevelChanged || d.SquelchChanged || d.GainChanged {
		t.Error("expected no scalar changes for identical configs")
	}
	if len(d.PresetChanges) != 0 {
		t.Errorf("expected 0 preset changes, got %d", len(d.PresetChanges))
	}
}

func TestDiff_LogLevelChanged(t *testing.T) {
	t.Parallel()
	old := &config.Config{Server: config.ServerConfig{LogLevel: config.LogInfo}}
	new := &config.Config{Server: config.ServerConfig{LogLevel: config.LogDebug}}

	d := config.Diff(old, new)
	if !d.LogLevelChanged {
		t.Error("expected LogLevelChanged=true")
	}
	if d.NewLogLevel != config.LogDebug {
		t.Errorf("expected NewLogLevel=debug, got %q", d.NewLogLevel)
	}
}

func TestDiff_SquelchAndGainChanged(t *testing.T) {
	t.Parallel()
	old := &config.Config{Radio: config.RadioConfig{DefaultSquelch: 0.02, DefaultGain: 20}}
	new := &config.Config{Radio: config.RadioConfig{DefaultSquelch: 0.08, DefaultGain: 33.8}}

	d := config.Diff(old, new)
	if !d.SquelchChanged || d.NewSquelch != 0.08 {
		t.Errorf("squelch diff = (%v, %v), want (true, 0.08)", d.SquelchChanged, d.NewSquelch)
	}
	if !d.GainChanged || d.NewGain != 33.8 {
		t.Errorf("gain diff = (%v, %v), want (true, 33.8)", d.GainChanged, d.NewGain)
	}
}

func TestDiff_PresetModified(t *testing.T) {
	t.Parallel()
	old := &config.Config{
		Presets: []config.Preset{{Name: "fm", MHz: 101.1, Mode: "wfm"}},
	}
	new := &config.Config{
		Presets: []config.Preset{{Name: "fm", MHz: 104.3, Mode: "wfm"}},
	}

	d := config.Diff(old, new)
	if !d.PresetsChanged {
		t.Error("expected PresetsChanged=true")
	}
	if len(d.PresetChanges) != 1 {
		t.Fatalf("expected 1 preset change, got %d", len(d.PresetChanges))
	}
	if !d.PresetChanges[0].Modified {
		t.Error("expected Modified=true")
	}
}

func TestDiff_OverridePresenceMatters(t *testing.T) {
	t.Parallel()
	old := &config.Config{
		Presets: []config.Preset{{Name: "noaa", MHz: 162.55, Squelch: nil}},
	}
	new := &config.Config{
		Presets: []config.Preset{{Name: "noaa", MHz: 162.55, Squelch: fptr(0)}},
	}

	// nil squelch (keep current) and explicit 0 (squelch off) differ.
	d := config.Diff(old, new)
	if !d.PresetsChanged {
		t.Error("expected PresetsChanged=true when an override appears")
	}
}

func TestDiff_PresetAddedAndRemoved(t *testing.T) {
	t.Parallel()
	old := &config.Config{
		Presets: []config.Preset{
			{Name: "keep", MHz: 146.52},
			{Name: "drop", MHz: 155.16},
		},
	}
	new := &config.Config{
		Presets: []config.Preset{
			{Name: "keep", MHz: 146.52},
			{Name: "add", MHz: 162.4},
		},
	}

	d := config.Diff(old, new)
	if !d.PresetsChanged {
		t.Error("expected PresetsChanged=true")
	}
	changes := make(map[string]config.PresetDiff)
	for _, pc := range d.PresetChanges {
		changes[pc.Name] = pc
	}
	if !changes["drop"].Removed {
		t.Error("expected drop Removed=true")
	}
	if !changes["add"].Added {
		t.Error("expected add Added=true")
	}
	if _, ok := changes["keep"]; ok {
		t.Error("unchanged preset should not appear in the diff")
	}
}
