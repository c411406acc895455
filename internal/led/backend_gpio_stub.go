//go:build !linux

package led

import "errors"

// ErrGPIOUnsupported is returned by NewGPIOBackend on non-Linux builds —
// the gpio-cdev ABI this backend drives is Linux-only.
var ErrGPIOUnsupported = errors.New("led: gpio backend requires linux")

// GPIOBackend is a non-functional stub on non-Linux platforms.
type GPIOBackend struct{}

// NewGPIOBackend always fails on non-Linux builds; callers should fall
// back to the sysfs backend.
func NewGPIOBackend(chip string, pin int) (*GPIOBackend, error) {
	return nil, ErrGPIOUnsupported
}

func (b *GPIOBackend) SetRaw(on bool) error { return nil }
func (b *GPIOBackend) Close() error         { return nil }
