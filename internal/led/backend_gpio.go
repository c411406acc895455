//go:build linux

package led

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// GPIOBackend drives an external LED on a GPIO line via the Linux
// gpio-cdev ABI.
type GPIOBackend struct {
	line *gpiocdev.Line
}

// NewGPIOBackend requests pin as an output on chip (e.g. "gpiochip0"),
// initially low.
func NewGPIOBackend(chip string, pin int) (*GPIOBackend, error) {
	line, err := gpiocdev.RequestLine(chip, pin, gpiocdev.AsOutput(0))
	if err != nil {
		return nil, fmt.Errorf("led: request gpio line %s:%d: %w", chip, pin, err)
	}
	return &GPIOBackend{line: line}, nil
}

// SetRaw drives the line high or low. Failures are swallowed — the LED
// is best-effort status, never load-bearing.
func (b *GPIOBackend) SetRaw(on bool) error {
	value := 0
	if on {
		value = 1
	}
	_ = b.line.SetValue(value)
	return nil
}

// Close releases the GPIO line.
func (b *GPIOBackend) Close() error {
	return b.line.Close()
}
