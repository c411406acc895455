package msp

import (
	"github.com/kstaniek/bbsyncer/internal/metrics"
	"github.com/kstaniek/bbsyncer/internal/mspcrc"
)

type decoderState int

const (
	stateIdle decoderState = iota
	stateExpectMX
	stateExpectDir
	stateV1Len
	stateV1Code
	stateV1Payload
	stateV1Checksum
	stateV2Flag
	stateV2CodeLo
	stateV2CodeHi
	stateV2LenLo
	stateV2LenHi
	stateV2Payload
	stateV2Checksum
)

// Decoder is a stateful, byte-fed MSP frame decoder. Feed bytes one at a
// time (or in bulk via Feed); complete, checksum-valid frames land in
// Frames. Garbage or a checksum mismatch silently resyncs to idle — the
// decoder never returns an error, matching the wire's self-resynchronizing
// framing.
type Decoder struct {
	Frames []Frame

	state     decoderState
	version   int
	direction byte
	code      int
	size      int
	payload   []byte
	payloadAt int
	checksum  byte   // running XOR for v1
	v2Header  []byte // accumulated v2 header for the batched CRC
}

// NewDecoder returns a Decoder ready to accept bytes.
func NewDecoder() *Decoder {
	d := &Decoder{}
	d.reset()
	return d
}

func (d *Decoder) reset() {
	d.state = stateIdle
	d.version = 0
	d.direction = 0
	d.code = 0
	d.size = 0
	d.payload = nil
	d.payloadAt = 0
	d.checksum = 0
	d.v2Header = nil
}

// Feed processes a chunk of bytes read from the wire.
func (d *Decoder) Feed(data []byte) {
	for _, b := range data {
		d.process(b)
	}
}

func (d *Decoder) process(b byte) {
	switch d.state {
	case stateIdle:
		if b == '$' {
			d.state = stateExpectMX
		}

	case stateExpectMX:
		switch b {
		case 'M':
			d.version = 1
			d.state = stateExpectDir
		case 'X':
			d.version = 2
			d.state = stateExpectDir
		default:
			d.reset()
		}

	case stateExpectDir:
		switch b {
		case DirToFC, DirFromFC, DirError:
			d.direction = b
			if d.version == 1 {
				d.state = stateV1Len
			} else {
				d.state = stateV2Flag
			}
		default:
			d.reset()
		}

	// --- v1 ---
	case stateV1Len:
		d.size = int(b)
		d.checksum = b
		d.state = stateV1Code

	case stateV1Code:
		d.code = int(b)
		d.checksum ^= b
		if d.size == 0 {
			d.payload = nil
			d.state = stateV1Checksum
		} else {
			d.payload = make([]byte, d.size)
			d.payloadAt = 0
			d.state = stateV1Payload
		}

	case stateV1Payload:
		d.payload[d.payloadAt] = b
		d.payloadAt++
		d.checksum ^= b
		if d.payloadAt == d.size {
			d.state = stateV1Checksum
		}

	case stateV1Checksum:
		if b == d.checksum {
			d.emit(1)
		} else {
			metrics.IncChecksumError()
		}
		d.reset()

	// --- v2 ---
	case stateV2Flag:
		d.v2Header = []byte{b}
		d.state = stateV2CodeLo

	case stateV2CodeLo:
		d.code = int(b)
		d.v2Header = append(d.v2Header, b)
		d.state = stateV2CodeHi

	case stateV2CodeHi:
		d.code |= int(b) << 8
		d.v2Header = append(d.v2Header, b)
		d.state = stateV2LenLo

	case stateV2LenLo:
		d.size = int(b)
		d.v2Header = append(d.v2Header, b)
		d.state = stateV2LenHi

	case stateV2LenHi:
		d.size |= int(b) << 8
		d.v2Header = append(d.v2Header, b)
		if d.size == 0 {
			d.payload = nil
			d.state = stateV2Checksum
		} else {
			d.payload = make([]byte, d.size)
			d.payloadAt = 0
			d.state = stateV2Payload
		}

	case stateV2Payload:
		d.payload[d.payloadAt] = b
		d.payloadAt++
		if d.payloadAt == d.size {
			d.state = stateV2Checksum
		}

	case stateV2Checksum:
		expected := mspcrc.DVBS2(d.payload, mspcrc.DVBS2(d.v2Header, 0))
		if b == expected {
			d.emit(2)
		} else {
			metrics.IncChecksumError()
		}
		d.reset()
	}
}

func (d *Decoder) emit(version int) {
	payload := make([]byte, len(d.payload))
	copy(payload, d.payload)
	d.Frames = append(d.Frames, Frame{
		Version:   version,
		Direction: d.direction,
		Code:      d.code,
		Payload:   payload,
	})
	metrics.IncFramesDecoded()
}
