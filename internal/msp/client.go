package msp

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/kstaniek/bbsyncer/internal/huffman"
	"github.com/kstaniek/bbsyncer/internal/metrics"
)

const (
	defaultResponseTimeout = 5 * time.Second
	readChunkSize          = 4096
)

// FlashSummary is the decoded DATAFLASH_SUMMARY response.
type FlashSummary struct {
	Flags     byte
	Sectors   uint32
	TotalSize uint32
	UsedSize  uint32
}

// Supported reports whether the FC's dataflash subsystem is present.
func (s FlashSummary) Supported() bool { return s.Flags&DataflashFlagSupported != 0 }

// Ready reports whether the dataflash is ready to be read (not mid-erase).
func (s FlashSummary) Ready() bool { return s.Flags&DataflashFlagReady != 0 }

// Client owns a serial Port and a Decoder. Single-threaded by contract:
// the orchestrator is the only caller, so Client keeps no internal locking.
type Client struct {
	port            Port
	decoder         *Decoder
	pending         map[int]Frame
	responseTimeout time.Duration
	now             func() time.Time
	sleep           func(time.Duration)
}

// NewClient wraps an already-open Port.
func NewClient(port Port) *Client {
	return &Client{
		port:            port,
		decoder:         NewDecoder(),
		pending:         make(map[int]Frame),
		responseTimeout: defaultResponseTimeout,
		now:             time.Now,
		sleep:           time.Sleep,
	}
}

// SetResponseTimeout overrides the default 5s response wait.
func (c *Client) SetResponseTimeout(d time.Duration) { c.responseTimeout = d }

// Close releases the underlying port.
func (c *Client) Close() error { return c.port.Close() }

// Send encodes code/payload as an MSP v1 request and writes it to the
// port. v1 payloads are capped at 255 bytes by the wire format.
func (c *Client) Send(code int, payload []byte) error {
	_, err := c.port.Write(EncodeV1(code, payload))
	return err
}

// SendV2 encodes code/payload as an MSP v2 request, for payloads that
// don't fit v1's 255-byte length field.
func (c *Client) SendV2(code int, payload []byte) error {
	_, err := c.port.Write(EncodeV2(code, payload))
	return err
}

// Receive blocks until a FC-to-host frame for code is decoded or the
// response timeout elapses. Frames for other codes are cached in pending
// for a later Receive call.
func (c *Client) Receive(code int) (Frame, error) {
	deadline := c.now().Add(c.responseTimeout)
	buf := make([]byte, readChunkSize)

	for c.now().Before(deadline) {
		n, err := c.port.Read(buf)
		if n > 0 {
			c.decoder.Feed(buf[:n])
		}
		if err != nil {
			return Frame{}, fmt.Errorf("msp: serial read: %w", err)
		}

		if len(c.decoder.Frames) > 0 {
			frames := c.decoder.Frames
			c.decoder.Frames = nil
			for _, f := range frames {
				c.pending[f.Code] = f
			}
		}

		if f, ok := c.pending[code]; ok && f.Direction == DirFromFC {
			delete(c.pending, code)
			return f, nil
		}
	}
	metrics.IncTimeout(code)
	return Frame{}, ErrTimeout
}

// Request flushes stale cached/pending frames for code, sends it, and
// waits for the matching response.
func (c *Client) Request(code int, payload []byte) (Frame, error) {
	kept := c.decoder.Frames[:0]
	for _, f := range c.decoder.Frames {
		if f.Code != code {
			kept = append(kept, f)
		}
	}
	c.decoder.Frames = kept
	delete(c.pending, code)

	metrics.IncRequestSent(code)
	if err := c.Send(code, payload); err != nil {
		return Frame{}, err
	}
	return c.Receive(code)
}

// GetAPIVersion returns the FC's (major, minor) MSP API version.
func (c *Client) GetAPIVersion() (major, minor int, err error) {
	frame, err := c.Request(CodeAPIVersion, nil)
	if err != nil {
		return 0, 0, err
	}
	if len(frame.Payload) < 3 {
		return 0, 0, fmt.Errorf("%w: API_VERSION", ErrShortResponse)
	}
	return int(frame.Payload[1]), int(frame.Payload[2]), nil
}

// GetFCVariant returns the 4-byte FC variant string, e.g. "BTFL".
func (c *Client) GetFCVariant() (string, error) {
	frame, err := c.Request(CodeFCVariant, nil)
	if err != nil {
		return "", err
	}
	if len(frame.Payload) < 4 {
		return "", fmt.Errorf("%w: FC_VARIANT", ErrShortResponse)
	}
	return string(frame.Payload[:4]), nil
}

// GetUID returns the FC's 12-byte unique ID as 24 lowercase hex chars, or
// "unknown" if the response was short.
func (c *Client) GetUID() (string, error) {
	frame, err := c.Request(CodeUID, nil)
	if err != nil {
		return "", err
	}
	if len(frame.Payload) < 12 {
		return "unknown", nil
	}
	return hex.EncodeToString(frame.Payload[:12]), nil
}

// GetBlackboxConfig returns the blackbox device type byte.
func (c *Client) GetBlackboxConfig() (device byte, err error) {
	frame, err := c.Request(CodeBlackboxConfig, nil)
	if err != nil {
		return 0, err
	}
	if len(frame.Payload) < 1 {
		return 0, fmt.Errorf("%w: BLACKBOX_CONFIG", ErrShortResponse)
	}
	return frame.Payload[0], nil
}

// GetDataflashSummary returns the decoded flash summary.
func (c *Client) GetDataflashSummary() (FlashSummary, error) {
	frame, err := c.Request(CodeDataflashSummary, nil)
	if err != nil {
		return FlashSummary{}, err
	}
	if len(frame.Payload) < 13 {
		return FlashSummary{}, fmt.Errorf("%w: DATAFLASH_SUMMARY (len=%d)", ErrShortResponse, len(frame.Payload))
	}
	p := frame.Payload
	return FlashSummary{
		Flags:     p[0],
		Sectors:   binary.LittleEndian.Uint32(p[1:5]),
		TotalSize: binary.LittleEndian.Uint32(p[5:9]),
		UsedSize:  binary.LittleEndian.Uint32(p[9:13]),
	}, nil
}

// SendFlashReadRequest issues a DATAFLASH_READ request without waiting
// for the response, so the orchestrator can pipeline one request ahead of
// the response it's currently processing.
func (c *Client) SendFlashReadRequest(address uint32, size uint16, compression bool) error {
	payload := make([]byte, 7)
	binary.LittleEndian.PutUint32(payload[0:4], address)
	binary.LittleEndian.PutUint16(payload[4:6], size)
	if compression {
		payload[6] = 1
	}
	kept := c.decoder.Frames[:0]
	for _, f := range c.decoder.Frames {
		if f.Code != CodeDataflashRead {
			kept = append(kept, f)
		}
	}
	c.decoder.Frames = kept
	return c.Send(CodeDataflashRead, payload)
}

// ReceiveFlashReadResponse waits for the matching DATAFLASH_READ response
// and decodes it, transparently Huffman-decoding the payload when the FC
// reports compression type 1.
func (c *Client) ReceiveFlashReadResponse() (addr uint32, data []byte, err error) {
	frame, err := c.Receive(CodeDataflashRead)
	if err != nil {
		return 0, nil, err
	}
	p := frame.Payload
	if len(p) < 7 {
		return 0, nil, fmt.Errorf("%w: DATAFLASH_READ (len=%d)", ErrShortResponse, len(p))
	}
	chunkAddr := binary.LittleEndian.Uint32(p[0:4])
	dataSize := binary.LittleEndian.Uint16(p[4:6])
	compType := p[6]
	raw := p[7:]
	if int(dataSize) > len(raw) {
		return 0, nil, fmt.Errorf("%w: DATAFLASH_READ data_size=%d exceeds payload", ErrShortResponse, dataSize)
	}
	raw = raw[:dataSize]

	if compType == CompressionHuffman {
		if len(raw) < 2 {
			return 0, nil, fmt.Errorf("%w: compressed chunk too short for char count", ErrShortResponse)
		}
		charCount := int(binary.LittleEndian.Uint16(raw[:2]))
		decoded, derr := huffman.Decode(raw[2:], charCount)
		if derr != nil {
			metrics.IncHuffmanError()
			return 0, nil, fmt.Errorf("huffman decode: %w", derr)
		}
		return chunkAddr, decoded, nil
	}
	return chunkAddr, raw, nil
}

// EraseFlash sends DATAFLASH_ERASE. The FC does not reply reliably, so
// this is fire-and-forget; callers poll GetDataflashSummary afterward.
func (c *Client) EraseFlash() error {
	return c.Send(CodeDataflashErase, nil)
}
