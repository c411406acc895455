package msp

import (
	"bytes"
	"testing"
)

// FuzzDecoderNeverPanics ensures arbitrary byte streams never panic the
// decoder, whatever garbage or partial frames they contain.
func FuzzDecoderNeverPanics(f *testing.F) {
	seed := EncodeV1(CodeAPIVersion, nil)
	f.Add(seed)
	f.Add(EncodeV2(CodeDataflashRead, []byte{1, 2, 3, 4}))
	f.Add([]byte{'$', 'M', '<', 0xFF})
	f.Add([]byte{'$', 'X', '!', 0, 0, 0, 0, 0xFF, 0xFF})

	f.Fuzz(func(t *testing.T, data []byte) {
		d := NewDecoder()
		d.Feed(data)
	})
}

// FuzzDecoderRoundTrip checks that a well-formed v1 frame following an
// arbitrary byte stream with no '$' start marker in it is still recovered.
// A '$' in the prefix can open a frame header that consumes the bytes
// after it, so start markers are stripped from the prefix.
func FuzzDecoderRoundTrip(f *testing.F) {
	f.Add([]byte{}, byte(CodeUID), []byte("hello"))
	f.Fuzz(func(t *testing.T, prefix []byte, code byte, payload []byte) {
		prefix = bytes.ReplaceAll(prefix, []byte{'$'}, nil)
		if len(payload) > 255 {
			payload = payload[:255]
		}
		frame := EncodeV1(int(code), payload)
		frame[2] = DirFromFC
		frame[len(frame)-1] = recomputeV1Checksum(frame)

		d := NewDecoder()
		d.Feed(prefix)
		d.Feed(frame)

		found := false
		for _, got := range d.Frames {
			if got.Code == int(code) && string(got.Payload) == string(payload) {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("frame for code=%d payload=%v not recovered after prefix=%v", code, payload, prefix)
		}
	})
}
