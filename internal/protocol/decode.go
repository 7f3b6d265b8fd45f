package protocol

import (
	"fmt"

	"github.com/danmuck/rilctl/internal/protocol/parcel"
)

// Kind classifies an inbound payload.
type Kind int

const (
	KindSolicited Kind = iota
	KindUnsolicited
)

func (k Kind) String() string {
	switch k {
	case KindSolicited:
		return "solicited"
	case KindUnsolicited:
		return "unsolicited"
	default:
		return "unknown"
	}
}

// Response is one classified inbound payload. Body holds the type- or
// event-specific bytes that follow the fixed fields.
type Response struct {
	Kind   Kind
	Serial int32
	Status Status
	Event  int32
	Body   []byte
}

// ParseResponse classifies payload by its leading discriminator.
func ParseResponse(payload []byte) (Response, error) {
	r := parcel.NewReader(payload)
	disc, err := r.ReadInt32()
	if err != nil {
		return Response{}, fmt.Errorf("%w: discriminator", ErrTruncated)
	}

	switch disc {
	case ResponseSolicited:
		serial, err := r.ReadInt32()
		if err != nil {
			return Response{}, fmt.Errorf("%w: serial", ErrTruncated)
		}
		status, err := r.ReadInt32()
		if err != nil {
			return Response{}, fmt.Errorf("%w: status serial=%d", ErrTruncated, serial)
		}
		return Response{Kind: KindSolicited, Serial: serial, Status: Status(status), Body: r.Rest()}, nil
	case ResponseUnsolicited:
		code, err := r.ReadInt32()
		if err != nil {
			return Response{}, fmt.Errorf("%w: event code", ErrTruncated)
		}
		return Response{Kind: KindUnsolicited, Event: code, Body: r.Rest()}, nil
	default:
		return Response{}, fmt.Errorf("%w: %d", ErrUnknownDiscriminator, disc)
	}
}

// Request is a decoded outbound payload, used by daemon-side tooling.
type Request struct {
	Type   int32
	Serial int32
	Body   []byte
}

// ParseRequest splits an outbound payload into header and body.
func ParseRequest(payload []byte) (Request, error) {
	r := parcel.NewReader(payload)
	typ, err := r.ReadInt32()
	if err != nil {
		return Request{}, ErrMalformedRequest
	}
	serial, err := r.ReadInt32()
	if err != nil {
		return Request{}, ErrMalformedRequest
	}
	return Request{Type: typ, Serial: serial, Body: r.Rest()}, nil
}
