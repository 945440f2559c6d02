package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/streamforge/sidecar/internal/config"
)

// writeTemp writes content to a temp file and returns its path.
func writeTemp(t *testing.T, content string) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "config-*.yaml")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	f.Close()
	return f.Name()
}

const validYAML = `
preferred_port: 40000
port_range_min: 40000
port_range_max: 40010
data_dir: "/tmp/streamforge-data"
log_level: debug
`

func TestLoadConfig_Valid(t *testing.T) {
	path := writeTemp(t, validYAML)
	cfg, err := config.LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.PreferredPort != 40000 {
		t.Errorf("PreferredPort = %d, want 40000", cfg.PreferredPort)
	}
	if cfg.PortRangeMin != 40000 || cfg.PortRangeMax != 40010 {
		t.Errorf("PortRange = [%d,%d]", cfg.PortRangeMin, cfg.PortRangeMax)
	}
	if cfg.DataDir != "/tmp/streamforge-data" {
		t.Errorf("DataDir = %q", cfg.DataDir)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "debug")
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	path := writeTemp(t, "")
	cfg, err := config.LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("default LogLevel = %q, want %q", cfg.LogLevel, "info")
	}
	if cfg.PreferredPort != 39283 {
		t.Errorf("default PreferredPort = %d, want 39283", cfg.PreferredPort)
	}
	if cfg.PortRangeMin != 39283 || cfg.PortRangeMax != 39383 {
		t.Errorf("default PortRange = [%d,%d]", cfg.PortRangeMin, cfg.PortRangeMax)
	}
}

func TestLoadConfig_InvalidLogLevel(t *testing.T) {
	path := writeTemp(t, "log_level: \"verbose\"\n")
	_, err := config.LoadConfig(path)
	if err == nil {
		t.Fatal("expected error for invalid log_level, got nil")
	}
	if !strings.Contains(err.Error(), "log_level") {
		t.Errorf("error %q does not mention log_level", err.Error())
	}
}

func TestLoadConfig_InvalidPortRange(t *testing.T) {
	path := writeTemp(t, "port_range_min: 50000\nport_range_max: 100\n")
	_, err := config.LoadConfig(path)
	if err == nil {
		t.Fatal("expected error for inverted port range, got nil")
	}
	if !strings.Contains(err.Error(), "port_range_min") {
		t.Errorf("error %q does not mention port_range_min", err.Error())
	}
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	missingPath := filepath.Join(t.TempDir(), "nonexistent.yaml")
	_, err := config.LoadConfig(missingPath)
	if err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	path := writeTemp(t, ":::invalid yaml:::")
	_, err := config.LoadConfig(path)
	if err == nil {
		t.Fatal("expected error for invalid YAML, got nil")
	}
}

func TestDefault(t *testing.T) {
	cfg := config.Default()
	if cfg.LogLevel != "info" || cfg.PreferredPort != 39283 {
		t.Errorf("Default() = %+v", cfg)
	}
}
