// Package bootconfig loads the boot-time descriptor cmd/y4ku reads before
// kmain starts: timer frequency, which drivers to bring up, and whether a
// wheel mouse is attached. Config is ordinary YAML via gopkg.in/yaml.v3,
// the same library the example pack's CLI surfaces use for structured
// config, rather than a bespoke key=value format.
package bootconfig

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the root boot descriptor document.
type Config struct {
	TimerFrequencyHz uint32       `yaml:"timer_frequency_hz"`
	Drivers          DriversConfig `yaml:"drivers"`
}

// DriversConfig toggles and parameterises the L4 driver layer.
type DriversConfig struct {
	Keyboard bool `yaml:"keyboard"`
	Mouse    bool `yaml:"mouse"`
	WheelMouse bool `yaml:"wheel_mouse"`
	PCI      bool `yaml:"pci"`
	ATA      bool `yaml:"ata"`
}

// Default returns the boot descriptor used when no file is supplied: the
// spec's default 1000 Hz timer with every driver enabled.
func Default() Config {
	return Config{
		TimerFrequencyHz: 1000,
		Drivers: DriversConfig{
			Keyboard: true,
			Mouse:    true,
			WheelMouse: true,
			PCI:      true,
			ATA:      true,
		},
	}
}

// Load reads and parses a boot descriptor from path. A missing frequency
// falls back to the spec default of 1000 Hz rather than zero.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("bootconfig: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("bootconfig: parsing %s: %w", path, err)
	}
	if cfg.TimerFrequencyHz == 0 {
		cfg.TimerFrequencyHz = 1000
	}
	return cfg, nil
}
