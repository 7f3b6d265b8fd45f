package protocol

import "github.com/danmuck/rilctl/internal/protocol/parcel"

const (
	// RequestHeaderLen covers [int32 type][int32 serial].
	RequestHeaderLen = 8
	// RequestSerialOffset is where the serial sits inside a request payload.
	RequestSerialOffset = 4
)

// WriteRequestHeader writes the fixed fields that open every request payload.
func WriteRequestHeader(w *parcel.Writer, requestType, serial int32) {
	w.WriteInt32(requestType)
	w.WriteInt32(serial)
}

// EncodeSolicited builds a solicited response payload.
func EncodeSolicited(serial int32, status Status, body []byte) []byte {
	w := parcel.NewWriter(12 + len(body))
	w.WriteInt32(ResponseSolicited)
	w.WriteInt32(serial)
	w.WriteInt32(int32(status))
	return append(w.Bytes(), body...)
}

// EncodeUnsolicited builds an unsolicited event payload.
func EncodeUnsolicited(event int32, body []byte) []byte {
	w := parcel.NewWriter(8 + len(body))
	w.WriteInt32(ResponseUnsolicited)
	w.WriteInt32(event)
	return append(w.Bytes(), body...)
}
