package msp

import (
	"time"

	"github.com/tarm/serial"
)

// Port abstracts tarm/serial for testability — Client is driven against a
// fake Port in tests instead of a real device.
type Port interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
}

// OpenPort opens a real serial port at the given baud rate. readTimeout
// bounds each Read call so Client.Receive can poll in short slices instead
// of blocking indefinitely.
func OpenPort(name string, baud int, readTimeout time.Duration) (Port, error) {
	cfg := &serial.Config{Name: name, Baud: baud, ReadTimeout: readTimeout}
	return serial.OpenPort(cfg)
}
