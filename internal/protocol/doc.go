// Package protocol owns the radio daemon wire contract.
//
// Ownership boundary:
// - response/event/request codes and status numbering
// - payload classification (solicited vs unsolicited)
// - request/response payload builders
//
// Framing lives in protocol/frame, primitive encodings in protocol/parcel.
package protocol
