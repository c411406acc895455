//go:build !linux

package diskspace

import "errors"

// ErrUnsupported is returned on platforms other than Linux — bbsyncer
// only ever runs on a Linux single-board computer, but the package stays
// buildable elsewhere for development.
var ErrUnsupported = errors.New("diskspace: unsupported platform")

// FreeBytes is unimplemented outside Linux.
func FreeBytes(path string) (uint64, error) { return 0, ErrUnsupported }

// UsedAndFreeGB is unimplemented outside Linux.
func UsedAndFreeGB(path string) (usedGB, freeGB float64, err error) {
	return 0, 0, ErrUnsupported
}
