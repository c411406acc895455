// Package config loads bbsyncer's TOML configuration file over a set of
// defaults, the way the original Python service does with stdlib
// tomllib, via github.com/pelletier/go-toml/v2.
package config

import (
	"os"

	"github.com/pelletier/go-toml/v2"
)

const (
	defaultConfigPath = "/etc/bbsyncer/bbsyncer.toml"
	localConfigPath   = "config/bbsyncer.toml"
)

// Config mirrors the Python original's dataclass defaults field-for-field.
type Config struct {
	// Serial
	SerialBaud    int     `toml:"serial_baud"`
	SerialPort    string  `toml:"serial_port"` // empty = auto-detect /dev/ttyACM*
	SerialTimeout float64 `toml:"serial_timeout"`

	// Storage
	StoragePath    string `toml:"storage_path"`
	MinFreeSpaceMB int    `toml:"min_free_space_mb"`

	// Sync behaviour
	EraseAfterSync       bool `toml:"erase_after_sync"`
	FlashChunkSize       int  `toml:"flash_chunk_size"`
	EraseTimeoutSec      int  `toml:"erase_timeout_sec"`
	FlashReadCompression bool `toml:"flash_read_compression"`

	// LED
	LEDBackend string `toml:"led_backend"` // "sysfs" or "gpio"
	LEDGPIOPin int    `toml:"led_gpio_pin"`

	// Web server
	WebPort          int    `toml:"web_port"`
	HotspotSSID      string `toml:"hotspot_ssid"`
	HotspotPassword  string `toml:"hotspot_password"`
}

// Default returns the built-in defaults, identical to the Python
// original's dataclass field defaults.
func Default() Config {
	return Config{
		SerialBaud:           115200,
		SerialPort:           "",
		SerialTimeout:        5.0,
		StoragePath:          "/mnt/bbsyncer-logs",
		MinFreeSpaceMB:       200,
		EraseAfterSync:       true,
		FlashChunkSize:       16384,
		EraseTimeoutSec:      120,
		FlashReadCompression: false,
		LEDBackend:           "sysfs",
		LEDGPIOPin:           17,
		WebPort:              80,
		HotspotSSID:          "BF-Blackbox",
		HotspotPassword:      "fpvpilot",
	}
}

// Load reads a TOML config file, falling back through a search order:
// 1. path, if non-empty
// 2. /etc/bbsyncer/bbsyncer.toml
// 3. ./config/bbsyncer.toml (relative to the working directory)
// 4. built-in defaults, if none of the above exist or parse
//
// A file that exists but fails to parse is logged by the caller (Load
// returns the error alongside the defaults) rather than treated as fatal,
// matching the Python original's warn-and-continue behavior.
func Load(path string) (Config, error) {
	candidates := make([]string, 0, 3)
	if path != "" {
		candidates = append(candidates, path)
	}
	candidates = append(candidates, defaultConfigPath, localConfigPath)

	for _, candidate := range candidates {
		data, err := os.ReadFile(candidate)
		if err != nil {
			continue
		}
		cfg := Default()
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return Default(), err
		}
		return cfg, nil
	}
	return Default(), nil
}
