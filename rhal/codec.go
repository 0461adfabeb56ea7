package rhal

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
)

const (
	// MaxFrameSize is the largest payload accepted in one frame.
	MaxFrameSize = 1 << 20

	frameHeaderSize = 4
)

// Encoder writes length-prefixed JSON frames to an io.Writer.
//
// Each frame is a 4-byte big-endian payload length followed by the JSON payload,
// written with a single Write call. Encoder is safe for concurrent use.
type Encoder struct {
	mu sync.Mutex
	w  io.Writer
}

// NewEncoder returns an Encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode marshals v and writes it as one frame.
func (e *Encoder) Encode(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}

	if len(payload) > MaxFrameSize {
		return fmt.Errorf("%w: payload length %d exceeds maximum %d", ErrInvalidFrameLength, len(payload), MaxFrameSize)
	}

	frame := make([]byte, frameHeaderSize+len(payload))
	binary.BigEndian.PutUint32(frame, uint32(len(payload)))
	copy(frame[frameHeaderSize:], payload)

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.w.Write(frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}

	return nil
}

// Decoder reads length-prefixed JSON frames from an io.Reader.
//
// Decoder is NOT goroutine-safe. The caller must ensure that only one
// Decode call is active at a time, consistent with the single receiver
// of a connection.
type Decoder struct {
	r      *bufio.Reader
	lenBuf [frameHeaderSize]byte
}

// NewDecoder returns a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

// ReadFrame reads one complete frame and returns its payload.
//
// An error wrapping ErrInvalidFrameLength means the stream is out of sync and must be abandoned.
func (d *Decoder) ReadFrame() ([]byte, error) {
	if _, err := io.ReadFull(d.r, d.lenBuf[:]); err != nil {
		return nil, err
	}

	n := binary.BigEndian.Uint32(d.lenBuf[:])
	if n == 0 {
		return nil, fmt.Errorf("%w: frame length is zero", ErrInvalidFrameLength)
	}
	if n > MaxFrameSize {
		return nil, fmt.Errorf("%w: frame length %d exceeds maximum %d", ErrInvalidFrameLength, n, MaxFrameSize)
	}

	payload := make([]byte, n)
	if _, err := io.ReadFull(d.r, payload); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("read frame payload: %w", err)
	}

	return payload, nil
}

// Decode reads one frame and unmarshals it into v.
//
// When the frame is complete but its payload does not decode, the returned error wraps
// ErrMalformedMessage and the stream remains usable for the next frame.
func (d *Decoder) Decode(v any) error {
	payload, err := d.ReadFrame()
	if err != nil {
		return err
	}

	if err := json.Unmarshal(payload, v); err != nil {
		if IsMalformed(err) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}

	return nil
}

// IsMalformed reports whether err is a recoverable protocol error, i.e. a single bad
// message on an otherwise healthy stream.
func IsMalformed(err error) bool {
	return errors.Is(err, ErrMalformedMessage) || errors.Is(err, ErrInvalidData)
}
