package msp

import (
	"bytes"
	"testing"
)

func TestEncodeV1_Structure(t *testing.T) {
	raw := EncodeV1(CodeAPIVersion, []byte{0x01, 0x02})
	want := []byte{'$', 'M', '<', 2, CodeAPIVersion, 0x01, 0x02}
	want = append(want, recomputeV1Checksum(append(append([]byte{}, want...))))
	if !bytes.Equal(raw, want) {
		t.Errorf("EncodeV1 = %v, want %v", raw, want)
	}
}

func TestEncodeV1_EmptyPayload(t *testing.T) {
	raw := EncodeV1(CodeDataflashErase, nil)
	if len(raw) != 5 {
		t.Fatalf("len(raw) = %d, want 5", len(raw))
	}
	if raw[3] != 0 || raw[4] != CodeDataflashErase {
		t.Errorf("unexpected header: %v", raw[3:5])
	}
}

func TestEncodeV2_Structure(t *testing.T) {
	payload := bytes.Repeat([]byte{0x09}, 300)
	raw := EncodeV2(CodeDataflashRead, payload)
	if raw[0] != '$' || raw[1] != 'X' || raw[2] != '<' {
		t.Fatalf("bad preamble: %v", raw[:3])
	}
	gotSize := int(raw[6]) | int(raw[7])<<8
	if gotSize != len(payload) {
		t.Errorf("size field = %d, want %d", gotSize, len(payload))
	}
	gotCode := int(raw[4]) | int(raw[5])<<8
	if gotCode != CodeDataflashRead {
		t.Errorf("code field = %d, want %d", gotCode, CodeDataflashRead)
	}
}

func TestEncodeDecode_V1Property(t *testing.T) {
	// For all (code, payload), feeding EncodeV1 (direction rewritten to
	// '>') into a fresh decoder produces exactly one matching frame.
	cases := []struct {
		code    int
		payload []byte
	}{
		{0, nil},
		{1, []byte{0}},
		{255, bytes.Repeat([]byte{0x7F}, 255)},
		{42, []byte("hello")},
	}
	for _, tc := range cases {
		raw := EncodeV1(tc.code, tc.payload)
		raw[2] = DirFromFC
		raw[len(raw)-1] = recomputeV1Checksum(raw)

		d := NewDecoder()
		d.Feed(raw)
		if len(d.Frames) != 1 {
			t.Fatalf("code=%d: got %d frames, want 1", tc.code, len(d.Frames))
		}
		got := d.Frames[0]
		if got.Version != 1 || got.Code != tc.code || !bytes.Equal(got.Payload, tc.payload) {
			t.Errorf("code=%d: got %+v, want code=%d payload=%v", tc.code, got, tc.code, tc.payload)
		}
	}
}
