package ril

import (
	"fmt"
	"time"

	"github.com/danmuck/rilctl/internal/protocol"
	"github.com/danmuck/rilctl/internal/protocol/parcel"
)

func DecodeVoid(*parcel.Reader) (any, error) {
	return nil, nil
}

// DecodeInts decodes a counted int32 array into []int32.
func DecodeInts(r *parcel.Reader) (any, error) {
	v, err := r.ReadInt32s()
	if err != nil {
		return nil, err
	}
	return v, nil
}

func DecodeString(r *parcel.Reader) (any, error) {
	s, _, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	return s, nil
}

// DecodeStrings decodes a counted string array into []string.
func DecodeStrings(r *parcel.Reader) (any, error) {
	v, err := r.ReadStrings()
	if err != nil {
		return nil, err
	}
	return v, nil
}

// DecodeRaw returns the length-prefixed opaque bytes as []byte.
func DecodeRaw(r *parcel.Reader) (any, error) {
	v, err := r.ReadBytes()
	if err != nil {
		return nil, err
	}
	return v, nil
}

// DecodeRadioState decodes the radio state carried by state-change events.
func DecodeRadioState(r *parcel.Reader) (any, error) {
	v, err := r.ReadInt32()
	if err != nil {
		return nil, err
	}
	state := protocol.RadioState(v)
	if !state.Valid() {
		return nil, fmt.Errorf("unrecognized radio state %d", v)
	}
	return state, nil
}

// DecodeNITZ decodes a network time string and stamps it with the receive time.
func DecodeNITZ(r *parcel.Reader) (any, error) {
	s, _, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	return NITZ{Time: s, Received: time.Now()}, nil
}

func registerBuiltins(reg *Registry) {
	requests := map[int32]DecodeFunc{
		protocol.RequestGetSIMStatus:      DecodeRaw,
		protocol.RequestEnterSIMPIN:       DecodeInts,
		protocol.RequestGetCurrentCalls:   DecodeRaw,
		protocol.RequestDial:              DecodeVoid,
		protocol.RequestGetIMSI:           DecodeString,
		protocol.RequestHangup:            DecodeVoid,
		protocol.RequestSignalStrength:    DecodeInts,
		protocol.RequestRegistrationState: DecodeStrings,
		protocol.RequestOperator:          DecodeStrings,
		protocol.RequestRadioPower:        DecodeVoid,
		protocol.RequestSendSMS:           DecodeRaw,
		protocol.RequestGetIMEI:           DecodeString,
		protocol.RequestGetIMEISV:         DecodeString,
		protocol.RequestBasebandVersion:   DecodeString,
		protocol.RequestScreenState:       DecodeVoid,
	}
	for code, fn := range requests {
		reg.RegisterRequest(code, fn)
	}

	events := map[int32]DecodeFunc{
		protocol.EventRadioStateChanged:      DecodeRadioState,
		protocol.EventCallStateChanged:       DecodeVoid,
		protocol.EventNetworkStateChanged:    DecodeVoid,
		protocol.EventNewSMS:                 DecodeString,
		protocol.EventNITZTimeReceived:       DecodeNITZ,
		protocol.EventSignalStrength:         DecodeInts,
		protocol.EventCallRing:               DecodeInts,
		protocol.EventSIMStatusChanged:       DecodeVoid,
		protocol.EventRestrictedStateChanged: DecodeInts,
		protocol.EventOEMHookRaw:             DecodeRaw,
		protocol.EventRingbackTone:           DecodeInts,
	}
	for code, fn := range events {
		reg.RegisterEvent(code, fn)
	}
}
