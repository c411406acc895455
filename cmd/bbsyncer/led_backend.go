package main

import (
	"fmt"

	"github.com/kstaniek/bbsyncer/internal/led"
)

// newLEDBackend selects the LED backend named by cfg.LEDBackend, falling
// back to the sysfs backend (always succeeds, writes are best-effort) if
// the GPIO backend can't be constructed.
func newLEDBackend(cfg appConfig) (led.Backend, error) {
	switch cfg.LEDBackend {
	case "gpio":
		b, err := led.NewGPIOBackend("gpiochip0", cfg.LEDGPIOPin)
		if err != nil {
			return led.NewSysfsBackend(), fmt.Errorf("gpio backend unavailable, falling back to sysfs: %w", err)
		}
		return b, nil
	case "sysfs", "":
		return led.NewSysfsBackend(), nil
	default:
		return led.NewSysfsBackend(), fmt.Errorf("unknown led_backend %q, falling back to sysfs", cfg.LEDBackend)
	}
}
