package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
)

// HeaderLen is the size of the big-endian length prefix.
const HeaderLen = 4

var (
	ErrShortHeader     = errors.New("frame: short length header")
	ErrShortPayload    = errors.New("frame: short payload")
	ErrPayloadTooLarge = errors.New("frame: payload too large")
	ErrEmptyPayload    = errors.New("frame: empty payload")
)

// Limits constrains frame decode/encode memory use.
type Limits struct {
	MaxPayloadBytes uint32
}

func DefaultLimits() Limits {
	return Limits{
		MaxPayloadBytes: 8 * 1024,
	}
}

// ReadFrame reads one [u32 length][payload] unit. A clean end of stream before
// any header byte returns io.EOF; a stream that ends mid-frame returns
// ErrShortHeader or ErrShortPayload.
func ReadFrame(r io.Reader, limits Limits) ([]byte, error) {
	var hdr [HeaderLen]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrShortHeader
		}
		return nil, err
	}

	n := binary.BigEndian.Uint32(hdr[:])
	if limits.MaxPayloadBytes > 0 && n > limits.MaxPayloadBytes {
		return nil, fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, n, limits.MaxPayloadBytes)
	}

	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: want %d bytes", ErrShortPayload, n)
		}
		return nil, err
	}
	return payload, nil
}

// WriteFrame writes the length header and payload together so concurrent
// observers of the stream never see a header without its body.
func WriteFrame(w io.Writer, payload []byte, limits Limits) error {
	if err := CheckSize(len(payload), limits); err != nil {
		return err
	}
	var hdr [HeaderLen]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(payload)))
	bufs := net.Buffers{hdr[:], payload}
	_, err := bufs.WriteTo(w)
	return err
}

// CheckSize reports whether a payload of n bytes may be framed.
func CheckSize(n int, limits Limits) error {
	if n == 0 {
		return ErrEmptyPayload
	}
	if limits.MaxPayloadBytes > 0 && uint64(n) > uint64(limits.MaxPayloadBytes) {
		return fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, n, limits.MaxPayloadBytes)
	}
	return nil
}
