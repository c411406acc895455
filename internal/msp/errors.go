package msp

import "errors"

// ErrTimeout is returned by Client.Receive when no response for the
// requested code arrives within the configured timeout.
var ErrTimeout = errors.New("msp: timeout waiting for response")

// ErrShortResponse is returned by the high-level command helpers when the
// FC's response payload is shorter than the command requires to decode.
var ErrShortResponse = errors.New("msp: short response payload")

// ErrPortClosed reports use of a port that has already been closed.
// Client does not track whether its port is closed and never returns it
// itself; Send and Receive pass on whatever error the Port returns.
var ErrPortClosed = errors.New("msp: port is closed")
