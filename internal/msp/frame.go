package msp

import "github.com/kstaniek/bbsyncer/internal/mspcrc"

// Frame is a decoded MSP message, immutable once produced by the decoder.
type Frame struct {
	Version   int    // 1 or 2
	Direction byte   // DirToFC, DirFromFC, or DirError
	Code      int
	Payload   []byte
}

// EncodeV1 builds an MSP v1 request frame:
// '$' 'M' '<' size(1B) code(1B) payload[size] xor(1B).
// The checksum folds size, code, and payload together.
func EncodeV1(code int, payload []byte) []byte {
	size := len(payload)
	header := []byte{byte(size), byte(code)}
	checksum := mspcrc.XOR(append(append([]byte{}, header...), payload...))

	out := make([]byte, 0, 3+2+size+1)
	out = append(out, '$', 'M', '<')
	out = append(out, header...)
	out = append(out, payload...)
	out = append(out, checksum)
	return out
}

// EncodeV2 builds an MSP v2 request frame:
// '$' 'X' '<' flag(0) code(2B LE) size(2B LE) payload[size] crc(1B).
// The CRC8-DVB-S2 checksum covers the 5-byte header plus payload.
func EncodeV2(code int, payload []byte) []byte {
	size := len(payload)
	header := []byte{
		0,
		byte(code), byte(code >> 8),
		byte(size), byte(size >> 8),
	}
	crc := mspcrc.DVBS2(payload, mspcrc.DVBS2(header, 0))

	out := make([]byte, 0, 3+5+size+1)
	out = append(out, '$', 'X', '<')
	out = append(out, header...)
	out = append(out, payload...)
	out = append(out, crc)
	return out
}
