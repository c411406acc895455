package msp

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/kstaniek/bbsyncer/internal/huffman"
)

// fakePort is an in-memory Port: writes land in TX, reads are served from
// a queue of response chunks pushed via Respond.
type fakePort struct {
	tx       bytes.Buffer
	rx       [][]byte
	closed   bool
	readErr  error
}

func (p *fakePort) Write(b []byte) (int, error) {
	return p.tx.Write(b)
}

func (p *fakePort) Read(buf []byte) (int, error) {
	if len(p.rx) == 0 {
		if p.readErr != nil {
			return 0, p.readErr
		}
		return 0, nil // simulate a serial read-timeout: no data, no error
	}
	chunk := p.rx[0]
	p.rx = p.rx[1:]
	n := copy(buf, chunk)
	return n, nil
}

func (p *fakePort) Close() error {
	p.closed = true
	return nil
}

func (p *fakePort) respond(raw []byte) { p.rx = append(p.rx, raw) }

func newTestClient(port *fakePort) *Client {
	c := NewClient(port)
	c.SetResponseTimeout(50 * time.Millisecond)
	return c
}

func v1Response(code int, payload []byte) []byte {
	raw := EncodeV1(code, payload)
	raw[2] = DirFromFC
	raw[len(raw)-1] = recomputeV1Checksum(raw)
	return raw
}

func TestClient_GetAPIVersion(t *testing.T) {
	port := &fakePort{}
	port.respond(v1Response(CodeAPIVersion, []byte{0, 1, 45}))
	c := newTestClient(port)

	major, minor, err := c.GetAPIVersion()
	if err != nil {
		t.Fatalf("GetAPIVersion error = %v", err)
	}
	if major != 1 || minor != 45 {
		t.Errorf("GetAPIVersion = (%d, %d), want (1, 45)", major, minor)
	}
	if !bytes.HasPrefix(port.tx.Bytes(), []byte("$M<")) {
		t.Errorf("request not written as v1 frame: %v", port.tx.Bytes())
	}
}

func TestClient_GetFCVariant(t *testing.T) {
	port := &fakePort{}
	port.respond(v1Response(CodeFCVariant, []byte(BTFLVariant)))
	c := newTestClient(port)

	variant, err := c.GetFCVariant()
	if err != nil {
		t.Fatalf("GetFCVariant error = %v", err)
	}
	if variant != BTFLVariant {
		t.Errorf("GetFCVariant = %q, want %q", variant, BTFLVariant)
	}
}

func TestClient_GetUID_ShortResponseReturnsUnknown(t *testing.T) {
	port := &fakePort{}
	port.respond(v1Response(CodeUID, []byte{1, 2, 3}))
	c := newTestClient(port)

	uid, err := c.GetUID()
	if err != nil {
		t.Fatalf("GetUID error = %v", err)
	}
	if uid != "unknown" {
		t.Errorf("GetUID = %q, want \"unknown\"", uid)
	}
}

func TestClient_GetUID_FullResponse(t *testing.T) {
	port := &fakePort{}
	uidBytes := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0a, 0x0b, 0x0c}
	port.respond(v1Response(CodeUID, uidBytes))
	c := newTestClient(port)

	uid, err := c.GetUID()
	if err != nil {
		t.Fatalf("GetUID error = %v", err)
	}
	if uid != "0102030405060708090a0b0c" {
		t.Errorf("GetUID = %q", uid)
	}
}

func TestClient_GetDataflashSummary(t *testing.T) {
	port := &fakePort{}
	payload := []byte{0x03, 0x10, 0, 0, 0, 0x00, 0x10, 0, 0, 0x00, 0x08, 0, 0}
	port.respond(v1Response(CodeDataflashSummary, payload))
	c := newTestClient(port)

	summary, err := c.GetDataflashSummary()
	if err != nil {
		t.Fatalf("GetDataflashSummary error = %v", err)
	}
	if !summary.Supported() || !summary.Ready() {
		t.Errorf("summary flags = %#x, want supported+ready", summary.Flags)
	}
	if summary.Sectors != 16 || summary.TotalSize != 0x00001000 || summary.UsedSize != 0x00000800 {
		t.Errorf("summary = %+v", summary)
	}
}

func TestClient_FlashReadPipelining(t *testing.T) {
	port := &fakePort{}
	resp := make([]byte, 7+4)
	resp[0], resp[1], resp[2], resp[3] = 0, 0, 0, 0 // addr=0
	resp[4], resp[5] = 4, 0                         // data_size=4
	resp[6] = CompressionNone
	copy(resp[7:], []byte{0xDE, 0xAD, 0xBE, 0xEF})
	port.respond(v1Response(CodeDataflashRead, resp))

	c := newTestClient(port)
	if err := c.SendFlashReadRequest(0, 4, false); err != nil {
		t.Fatalf("SendFlashReadRequest error = %v", err)
	}
	addr, data, err := c.ReceiveFlashReadResponse()
	if err != nil {
		t.Fatalf("ReceiveFlashReadResponse error = %v", err)
	}
	if addr != 0 || !bytes.Equal(data, []byte{0xDE, 0xAD, 0xBE, 0xEF}) {
		t.Errorf("got addr=%d data=%v", addr, data)
	}
}

func TestClient_FlashReadHuffmanDecompression(t *testing.T) {
	plain := []byte{0x00, 0x00, 0xFF, 0x10}
	compressed := huffman.Encode(plain)

	body := make([]byte, 2+len(compressed))
	body[0], body[1] = byte(len(plain)), byte(len(plain)>>8)
	copy(body[2:], compressed)

	resp := make([]byte, 7+len(body))
	resp[4], resp[5] = byte(len(body)), byte(len(body)>>8)
	resp[6] = CompressionHuffman
	copy(resp[7:], body)
	port := &fakePort{}
	port.respond(v1Response(CodeDataflashRead, resp))

	c := newTestClient(port)
	_ = c.SendFlashReadRequest(0, uint16(len(plain)), true)
	_, data, err := c.ReceiveFlashReadResponse()
	if err != nil {
		t.Fatalf("ReceiveFlashReadResponse error = %v", err)
	}
	if !bytes.Equal(data, plain) {
		t.Errorf("decoded = %v, want %v", data, plain)
	}
}

func TestClient_Timeout(t *testing.T) {
	port := &fakePort{}
	c := newTestClient(port)
	_, err := c.Receive(CodeAPIVersion)
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("err = %v, want ErrTimeout", err)
	}
}

func TestClient_ReadErrorPropagates(t *testing.T) {
	port := &fakePort{readErr: io.ErrClosedPipe}
	c := newTestClient(port)
	_, err := c.Receive(CodeAPIVersion)
	if !errors.Is(err, io.ErrClosedPipe) {
		t.Errorf("err = %v, want wrapped io.ErrClosedPipe", err)
	}
}

func TestClient_Close(t *testing.T) {
	port := &fakePort{}
	c := newTestClient(port)
	if err := c.Close(); err != nil {
		t.Fatalf("Close error = %v", err)
	}
	if !port.closed {
		t.Error("underlying port was not closed")
	}
}
