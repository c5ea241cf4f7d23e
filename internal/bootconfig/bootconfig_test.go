package bootconfig

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadParsesYAMLDescriptor(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "boot.yaml")
	doc := "timer_frequency_hz: 500\ndrivers:\n  keyboard: true\n  mouse: false\n  wheel_mouse: false\n  pci: true\n  ata: false\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.TimerFrequencyHz != 500 {
		t.Fatalf("TimerFrequencyHz = %d, want 500", cfg.TimerFrequencyHz)
	}
	if !cfg.Drivers.Keyboard || cfg.Drivers.Mouse {
		t.Fatalf("unexpected drivers config: %+v", cfg.Drivers)
	}
}

func TestLoadDefaultsZeroFrequencyTo1000(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "boot.yaml")
	if err := os.WriteFile(path, []byte("drivers:\n  keyboard: true\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.TimerFrequencyHz != 1000 {
		t.Fatalf("TimerFrequencyHz = %d, want default 1000", cfg.TimerFrequencyHz)
	}
}

func TestDefaultEnablesEveryDriver(t *testing.T) {
	cfg := Default()
	if !cfg.Drivers.Keyboard || !cfg.Drivers.Mouse || !cfg.Drivers.PCI || !cfg.Drivers.ATA {
		t.Fatalf("Default() should enable every driver: %+v", cfg.Drivers)
	}
}
