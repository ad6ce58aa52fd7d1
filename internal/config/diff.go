package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked: the preset
// table, the default squelch/gain, and the log level. Radio driver,
// Discord credentials, and tuning constants need a restart.
type ConfigDiff struct {
	PresetsChanged  bool         // true if any preset was added, removed, or modified
	PresetChanges   []PresetDiff // per-preset diffs
	SquelchChanged  bool
	NewSquelch      float64
	GainChanged     bool
	NewGain         float64
	LogLevelChanged bool
	NewLogLevel     LogLevel
}

// PresetDiff describes what changed for a single preset between two
// configs.
type PresetDiff struct {
	Name     string
	Modified bool
	Added    bool
	Removed  bool
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if old.Radio.DefaultSquelch != new.Radio.DefaultSquelch {
		d.SquelchChanged = true
		d.NewSquelch = new.Radio.DefaultSquelch
	}
	if old.Radio.DefaultGain != new.Radio.DefaultGain {
		d.GainChanged = true
		d.NewGain = new.Radio.DefaultGain
	}

	oldPresets := make(map[string]*Preset, len(old.Presets))
	for i := range old.Presets {
		oldPresets[old.Presets[i].Name] = &old.Presets[i]
	}
	newPresets := make(map[string]*Preset, len(new.Presets))
	for i := range new.Presets {
		newPresets[new.Presets[i].Name] = &new.Presets[i]
	}

	// Modified and removed presets.
	for name, op := range oldPresets {
		np, exists := newPresets[name]
		if !exists {
			d.PresetChanges = append(d.PresetChanges, PresetDiff{Name: name, Removed: true})
			d.PresetsChanged = true
			continue
		}
		if !samePreset(op, np) {
			d.PresetChanges = append(d.PresetChanges, PresetDiff{Name: name, Modified: true})
			d.PresetsChanged = true
		}
	}

	// Added presets.
	for name := range newPresets {
		if _, exists := oldPresets[name]; !exists {
			d.PresetChanges = append(d.PresetChanges, PresetDiff{Name: name, Added: true})
			d.PresetsChanged = true
		}
	}

	return d
}

// samePreset compares two presets with the same name, treating the
// optional overrides as equal only when both presence and value match.
func samePreset(a, b *Preset) bool {
	if a.MHz != b.MHz || a.Mode != b.Mode {
		return false
	}
	if !sameOverride(a.Squelch, b.Squelch) {
		return false
	}
	return sameOverride(a.Gain, b.Gain)
}

func sameOverride(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
