package fakedaemon

import (
	"github.com/danmuck/rilctl/internal/protocol"
	"github.com/danmuck/rilctl/internal/protocol/parcel"
)

// Identity is the canned modem identity DefaultResponder reports.
type Identity struct {
	IMEI     string
	IMSI     string
	Baseband string
}

// DefaultResponder answers the requests the client builds itself with canned
// values and REQUEST_NOT_SUPPORTED for anything else.
func DefaultResponder(id Identity) Responder {
	return func(req protocol.Request) (Reply, bool) {
		w := parcel.NewWriter(64)
		switch req.Type {
		case protocol.RequestGetIMEI:
			w.WriteString(id.IMEI)
		case protocol.RequestGetIMSI:
			w.WriteString(id.IMSI)
		case protocol.RequestBasebandVersion:
			w.WriteString(id.Baseband)
		case protocol.RequestSignalStrength:
			w.WriteInt32s([]int32{17, 99, -1, -1, -1, -1, -1})
		case protocol.RequestRadioPower, protocol.RequestScreenState:
		default:
			return Reply{Status: protocol.StatusRequestNotSupported}, true
		}
		return Reply{Status: protocol.StatusSuccess, Body: w.Bytes()}, true
	}
}
