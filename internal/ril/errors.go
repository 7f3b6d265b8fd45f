package ril

import (
	"errors"
	"fmt"

	"github.com/danmuck/rilctl/internal/protocol"
)

var (
	ErrAddressRequired    = errors.New("ril: socket address required")
	ErrAlreadyRunning     = errors.New("ril: client already running")
	ErrChannelUnavailable = errors.New("ril: channel unavailable")
	ErrDecode             = errors.New("ril: decode failed")
	ErrEncode             = errors.New("ril: encode failed")
	ErrProtocolViolation  = errors.New("ril: protocol violation")
	ErrOversizeRequest    = errors.New("ril: request exceeds max frame size")
	ErrRemoteStatus       = errors.New("ril: remote status")
)

// RemoteStatusError carries a non-zero status returned by the daemon. Payload
// holds decoded error-path bytes when the response carried any.
type RemoteStatusError struct {
	Request int32
	Status  protocol.Status
	Payload any
}

func (e *RemoteStatusError) Error() string {
	return fmt.Sprintf("ril: %s failed: %s (%d)", protocol.RequestName(e.Request), e.Status, int32(e.Status))
}

func (e *RemoteStatusError) Is(target error) bool {
	return target == ErrRemoteStatus
}

// StatusOf extracts the daemon status from err.
func StatusOf(err error) (protocol.Status, bool) {
	var rse *RemoteStatusError
	if errors.As(err, &rse) {
		return rse.Status, true
	}
	return protocol.StatusSuccess, false
}

// outcome labels an error for metrics.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrChannelUnavailable):
		return "unavailable"
	case errors.Is(err, ErrRemoteStatus):
		return "remote_status"
	case errors.Is(err, ErrDecode):
		return "decode"
	case errors.Is(err, ErrProtocolViolation):
		return "violation"
	case errors.Is(err, ErrOversizeRequest):
		return "oversize"
	case errors.Is(err, ErrEncode):
		return "encode"
	default:
		return "error"
	}
}
