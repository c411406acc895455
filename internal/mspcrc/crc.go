// Package mspcrc implements the two checksums used on the MSP wire:
// the plain XOR fold used by MSP v1 and the CRC8-DVB-S2 used by MSP v2.
package mspcrc

// dvbS2Table is a precomputed lookup table for the CRC8-DVB-S2 polynomial
// (0xD5), so DVBS2 stays a table lookup per byte instead of an 8-iteration
// bit loop. Flash reads sustain tens of KB/s and go through this on every
// byte of every v2 frame.
var dvbS2Table [256]byte

func init() {
	for i := 0; i < 256; i++ {
		crc := byte(i)
		for bit := 0; bit < 8; bit++ {
			if crc&0x80 != 0 {
				crc = (crc << 1) ^ 0xD5
			} else {
				crc <<= 1
			}
		}
		dvbS2Table[i] = crc
	}
}

// XOR folds data into a single byte via XOR, starting from zero. Used for
// the MSP v1 checksum over length||code||payload.
func XOR(data []byte) byte {
	var result byte
	for _, b := range data {
		result ^= b
	}
	return result
}

// DVBS2 computes CRC8-DVB-S2 over data, starting from initial. Passing the
// result of a prior call as initial lets the v2 checksum be accumulated
// across the header and payload in two calls instead of concatenating them.
func DVBS2(data []byte, initial byte) byte {
	crc := initial
	for _, b := range data {
		crc = dvbS2Table[crc^b]
	}
	return crc
}
