package camera

import (
	"fmt"
	"sync"
)

// Patch is a partial settings change from the dashboard. A preset is
// applied first, then the individual fields on top of it. The device
// index is never patched on a running source.
type Patch struct {
	Preset     string   `json:"preset,omitempty"`
	Width      *int     `json:"width,omitempty"`
	Height     *int     `json:"height,omitempty"`
	FPS        *int     `json:"fps,omitempty"`
	Focus      *float64 `json:"focus,omitempty"`
	BufferSize *int     `json:"buffer_size,omitempty"`
	Flips      *int     `json:"flips,omitempty"`
}

// Apply returns base with the patch applied.
func (p Patch) Apply(base Config) (Config, error) {
	cfg := base
	if p.Preset != "" {
		preset := GetPreset(p.Preset)
		if preset == nil {
			return base, fmt.Errorf("%w: %s", ErrUnknownPreset, p.Preset)
		}
		cfg = *preset
		cfg.Device = base.Device
	}
	setInt(&cfg.Width, p.Width)
	setInt(&cfg.Height, p.Height)
	setInt(&cfg.FPS, p.FPS)
	setInt(&cfg.BufferSize, p.BufferSize)
	setInt(&cfg.Flips, p.Flips)
	if p.Focus != nil {
		cfg.Focus = *p.Focus
	}
	return cfg, nil
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

// Manager owns the live camera settings. Changes go through
// OnConfigChange and are kept only when it accepts them.
type Manager struct {
	applyMu sync.Mutex // serializes SetConfig
	mu      sync.RWMutex
	config  Config

	// OnConfigChange applies new settings to the running source.
	OnConfigChange func(cfg Config) error
}

// NewManager creates a manager seeded with cfg.
func NewManager(cfg Config) *Manager {
	return &Manager{config: cfg}
}

// GetConfig returns the current settings.
func (m *Manager) GetConfig() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// SetConfig validates cfg, hands it to OnConfigChange and stores it.
func (m *Manager) SetConfig(cfg Config) error {
	if problems := cfg.Validate(); len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}

	m.applyMu.Lock()
	defer m.applyMu.Unlock()
	if m.OnConfigChange != nil {
		if err := m.OnConfigChange(cfg); err != nil {
			return fmt.Errorf("camera: apply settings: %w", err)
		}
	}

	m.mu.Lock()
	m.config = cfg
	m.mu.Unlock()
	return nil
}

// Update applies a patch to the current settings.
func (m *Manager) Update(p Patch) (Config, error) {
	cfg, err := p.Apply(m.GetConfig())
	if err != nil {
		return Config{}, err
	}
	if err := m.SetConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
