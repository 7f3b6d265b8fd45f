package ril

import (
	"time"

	"github.com/danmuck/rilctl/internal/protocol"
	"github.com/danmuck/rilctl/internal/protocol/parcel"
)

// Result is delivered exactly once per submitted request.
type Result struct {
	Serial  int32
	Request int32
	Value   any
	Err     error
}

// Completion receives a request's Result. It runs on the dispatcher or the
// reader goroutine and must not block.
type Completion func(Result)

// EncodeFunc appends request-specific bytes after the fixed request header.
type EncodeFunc func(w *parcel.Writer) error

// DecodeFunc turns type- or event-specific bytes into a typed value.
type DecodeFunc func(r *parcel.Reader) (any, error)

// Event is one unsolicited push from the daemon. Err is set when the payload
// could not be decoded.
type Event struct {
	Code  int32
	Value any
	Err   error
}

// NITZ is a network time report with the local time it was received, so
// consumers can correct for delivery delay.
type NITZ struct {
	Time     string    `json:"time"`
	Received time.Time `json:"received"`
}

// Subscriber receives events on the reader goroutine, in registration order.
type Subscriber func(Event)

// ConnState is the connection manager state.
type ConnState int32

const (
	Disconnected ConnState = iota
	Connecting
	Connected
)

func (s ConnState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

func (s ConnState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Status is a point-in-time view of the client.
type Status struct {
	State         ConnState           `json:"state"`
	Radio         protocol.RadioState `json:"radio"`
	Epoch         uint64              `json:"epoch"`
	EpochID       string              `json:"epoch_id,omitempty"`
	Pending       int                 `json:"pending"`
	Inflight      int                 `json:"inflight"`
	KeepAliveHeld bool                `json:"keepalive_held"`
}
