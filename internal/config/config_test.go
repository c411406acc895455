package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_NoFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load error = %v", err)
	}
	if cfg != Default() {
		t.Errorf("cfg = %+v, want defaults", cfg)
	}
}

func TestLoad_OverridesSubsetOfFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bbsyncer.toml")
	content := `
serial_port = "/dev/ttyACM0"
web_port = 8080
erase_after_sync = false
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile error = %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error = %v", err)
	}
	if cfg.SerialPort != "/dev/ttyACM0" || cfg.WebPort != 8080 || cfg.EraseAfterSync {
		t.Errorf("cfg = %+v", cfg)
	}
	// Unset fields keep their defaults.
	if cfg.SerialBaud != 115200 || cfg.FlashChunkSize != 16384 {
		t.Errorf("unset fields did not keep defaults: %+v", cfg)
	}
}

func TestLoad_InvalidTOMLReturnsError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bbsyncer.toml")
	if err := os.WriteFile(path, []byte("not = [valid toml"), 0o644); err != nil {
		t.Fatalf("WriteFile error = %v", err)
	}

	_, err := Load(path)
	if err == nil {
		t.Error("Load error = nil, want parse error for invalid TOML")
	}
}
