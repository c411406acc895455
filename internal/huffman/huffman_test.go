package huffman

import (
	"bytes"
	"math/rand"
	"testing"
)

func TestDecode_RoundTrip(t *testing.T) {
	cases := [][]byte{
		nil,
		{0x00},
		{0xFF},
		{0x00, 0xFF, 0x01, 0xFE, 0x7F},
		bytes.Repeat([]byte{0xAA}, 64),
	}
	r := rand.New(rand.NewSource(1))
	random := make([]byte, 512)
	r.Read(random)
	cases = append(cases, random)

	for _, want := range cases {
		enc := Encode(want)
		got, err := Decode(enc, len(want))
		if err != nil {
			t.Fatalf("Decode(Encode(%v)) error = %v", want, err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("Decode(Encode(%v)) = %v, want %v", want, got, want)
		}
	}
}

func TestDecode_StopsEarlyOnEOF(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03}
	enc := Encode(data)

	got, err := Decode(enc, 100)
	if err != nil {
		t.Fatalf("Decode error = %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("Decode with oversized charCount = %v, want %v", got, data)
	}
}

func TestDecode_CharCountBeforeEOF(t *testing.T) {
	data := []byte{0x10, 0x20, 0x30, 0x40}
	enc := Encode(data)

	got, err := Decode(enc, 2)
	if err != nil {
		t.Fatalf("Decode error = %v", err)
	}
	if !bytes.Equal(got, data[:2]) {
		t.Errorf("Decode(enc, 2) = %v, want %v", got, data[:2])
	}
}

func TestDecode_TruncatedInput(t *testing.T) {
	_, err := Decode([]byte{0x00}, 50)
	if err != ErrTruncated {
		t.Errorf("Decode with truncated input: err = %v, want ErrTruncated", err)
	}
}

func TestDecode_EmptyInput(t *testing.T) {
	got, err := Decode(nil, 0)
	if err != nil {
		t.Fatalf("Decode(nil, 0) error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Decode(nil, 0) = %v, want empty", got)
	}
}

func TestTable_Kraft(t *testing.T) {
	// Sum of 2^-length over all 257 symbols must equal 1 for a complete
	// prefix code: the shape of the table that makes decoding unambiguous.
	var sum float64
	for _, sym := range table {
		sum += 1.0 / float64(uint(1)<<sym.length)
	}
	if sum < 0.999999 || sum > 1.000001 {
		t.Errorf("Kraft sum = %v, want 1.0", sum)
	}
}

func BenchmarkDecode(b *testing.B) {
	data := make([]byte, 4096)
	r := rand.New(rand.NewSource(2))
	r.Read(data)
	enc := Encode(data)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Decode(enc, len(data))
	}
}
