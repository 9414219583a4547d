package camera

import "sort"

// Preset names for common capture setups.
const (
	PresetDefault = "default"
	PresetFast    = "fast"
	PresetHD      = "hd"
	PresetBench   = "bench"
)

// Presets returns all available preset configurations.
func Presets() map[string]Config {
	return map[string]Config{
		PresetDefault: DefaultConfig(),
		PresetFast:    FastConfig(),
		PresetHD:      HDConfig(),
		PresetBench:   BenchConfig(),
	}
}

// PresetNames returns the sorted list of preset names.
func PresetNames() []string {
	names := make([]string, 0, 4)
	for name := range Presets() {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetPreset returns a preset config by name, or nil if not found.
func GetPreset(name string) *Config {
	if cfg, ok := Presets()[name]; ok {
		return &cfg
	}
	return nil
}

// FastConfig trades resolution for frame rate.
func FastConfig() Config {
	cfg := DefaultConfig()
	cfg.Width = 320
	cfg.Height = 240
	cfg.FPS = 120
	return cfg
}

// HDConfig is for setting up color ranges and corners, not for play.
func HDConfig() Config {
	cfg := DefaultConfig()
	cfg.Width = 1280
	cfg.Height = 720
	cfg.FPS = 30
	return cfg
}

// BenchConfig is a webcam on a desk: autofocus, single flip.
func BenchConfig() Config {
	cfg := DefaultConfig()
	cfg.FPS = 30
	cfg.Focus = -1
	cfg.Flips = 1
	return cfg
}
