package protocol

import (
	"slices"
	"strconv"
)

// Response discriminators, first int32 of every inbound payload.
const (
	ResponseSolicited   int32 = 0
	ResponseUnsolicited int32 = 1
)

// Request type codes understood by the daemon. Only the codes the client
// builds or decodes itself are listed; others can still be submitted raw.
const (
	RequestGetSIMStatus      int32 = 1
	RequestEnterSIMPIN       int32 = 2
	RequestGetCurrentCalls   int32 = 9
	RequestDial              int32 = 10
	RequestGetIMSI           int32 = 11
	RequestHangup            int32 = 12
	RequestSignalStrength    int32 = 19
	RequestRegistrationState int32 = 20
	RequestOperator          int32 = 22
	RequestRadioPower        int32 = 23
	RequestSendSMS           int32 = 25
	RequestGetIMEI           int32 = 38
	RequestGetIMEISV         int32 = 39
	RequestBasebandVersion   int32 = 51
	RequestScreenState       int32 = 61
)

// Unsolicited event codes.
const (
	EventRadioStateChanged      int32 = 1000
	EventCallStateChanged       int32 = 1001
	EventNetworkStateChanged    int32 = 1002
	EventNewSMS                 int32 = 1003
	EventNITZTimeReceived       int32 = 1008
	EventSignalStrength         int32 = 1009
	EventCallRing               int32 = 1018
	EventSIMStatusChanged       int32 = 1019
	EventRestrictedStateChanged int32 = 1023
	EventOEMHookRaw             int32 = 1028
	EventRingbackTone           int32 = 1029
)

var requestNames = map[int32]string{
	RequestGetSIMStatus:      "GET_SIM_STATUS",
	RequestEnterSIMPIN:       "ENTER_SIM_PIN",
	RequestGetCurrentCalls:   "GET_CURRENT_CALLS",
	RequestDial:              "DIAL",
	RequestGetIMSI:           "GET_IMSI",
	RequestHangup:            "HANGUP",
	RequestSignalStrength:    "SIGNAL_STRENGTH",
	RequestRegistrationState: "REGISTRATION_STATE",
	RequestOperator:          "OPERATOR",
	RequestRadioPower:        "RADIO_POWER",
	RequestSendSMS:           "SEND_SMS",
	RequestGetIMEI:           "GET_IMEI",
	RequestGetIMEISV:         "GET_IMEISV",
	RequestBasebandVersion:   "BASEBAND_VERSION",
	RequestScreenState:       "SCREEN_STATE",
}

var eventNames = map[int32]string{
	EventRadioStateChanged:      "UNSOL_RADIO_STATE_CHANGED",
	EventCallStateChanged:       "UNSOL_CALL_STATE_CHANGED",
	EventNetworkStateChanged:    "UNSOL_NETWORK_STATE_CHANGED",
	EventNewSMS:                 "UNSOL_NEW_SMS",
	EventNITZTimeReceived:       "UNSOL_NITZ_TIME_RECEIVED",
	EventSignalStrength:         "UNSOL_SIGNAL_STRENGTH",
	EventCallRing:               "UNSOL_CALL_RING",
	EventSIMStatusChanged:       "UNSOL_SIM_STATUS_CHANGED",
	EventRestrictedStateChanged: "UNSOL_RESTRICTED_STATE_CHANGED",
	EventOEMHookRaw:             "UNSOL_OEM_HOOK_RAW",
	EventRingbackTone:           "UNSOL_RINGBACK_TONE",
}

// EventCodes lists the event codes with known names, in ascending order.
func EventCodes() []int32 {
	codes := make([]int32, 0, len(eventNames))
	for code := range eventNames {
		codes = append(codes, code)
	}
	slices.Sort(codes)
	return codes
}

// RequestName returns a log label for a request code.
func RequestName(code int32) string {
	if name, ok := requestNames[code]; ok {
		return name
	}
	return "REQUEST_" + strconv.Itoa(int(code))
}

// EventName returns a log label for an event code.
func EventName(code int32) string {
	if name, ok := eventNames[code]; ok {
		return name
	}
	return "UNSOL_" + strconv.Itoa(int(code))
}

// Status is the daemon's per-response result code.
type Status int32

const (
	StatusSuccess                   Status = 0
	StatusRadioNotAvailable         Status = 1
	StatusGenericFailure            Status = 2
	StatusPasswordIncorrect         Status = 3
	StatusSIMPIN2                   Status = 4
	StatusSIMPUK2                   Status = 5
	StatusRequestNotSupported       Status = 6
	StatusRequestCancelled          Status = 7
	StatusOpNotAllowedDuringCall    Status = 8
	StatusOpNotAllowedBeforeNetwork Status = 9
	StatusSMSSendFailRetry          Status = 10
	StatusSIMAbsent                 Status = 11
	StatusSubscriptionNotAvailable  Status = 12
	StatusModeNotSupported          Status = 13
	StatusFDNCheckFailure           Status = 14
	StatusIllegalSIMOrME            Status = 15
)

var statusNames = map[Status]string{
	StatusSuccess:                   "SUCCESS",
	StatusRadioNotAvailable:         "RADIO_NOT_AVAILABLE",
	StatusGenericFailure:            "GENERIC_FAILURE",
	StatusPasswordIncorrect:         "PASSWORD_INCORRECT",
	StatusSIMPIN2:                   "SIM_PIN2",
	StatusSIMPUK2:                   "SIM_PUK2",
	StatusRequestNotSupported:       "REQUEST_NOT_SUPPORTED",
	StatusRequestCancelled:          "REQUEST_CANCELLED",
	StatusOpNotAllowedDuringCall:    "OP_NOT_ALLOWED_DURING_VOICE_CALL",
	StatusOpNotAllowedBeforeNetwork: "OP_NOT_ALLOWED_BEFORE_REG_NW",
	StatusSMSSendFailRetry:          "SMS_SEND_FAIL_RETRY",
	StatusSIMAbsent:                 "SIM_ABSENT",
	StatusSubscriptionNotAvailable:  "SUBSCRIPTION_NOT_AVAILABLE",
	StatusModeNotSupported:          "MODE_NOT_SUPPORTED",
	StatusFDNCheckFailure:           "FDN_CHECK_FAILURE",
	StatusIllegalSIMOrME:            "ILLEGAL_SIM_OR_ME",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "STATUS_" + strconv.Itoa(int(s))
}

// RadioState mirrors the daemon's radio state numbering.
type RadioState int32

const (
	RadioOff                RadioState = 0
	RadioUnavailable        RadioState = 1
	RadioSIMNotReady        RadioState = 2
	RadioSIMLockedOrAbsent  RadioState = 3
	RadioSIMReady           RadioState = 4
	RadioRUIMNotReady       RadioState = 5
	RadioRUIMReady          RadioState = 6
	RadioRUIMLockedOrAbsent RadioState = 7
	RadioNVNotReady         RadioState = 8
	RadioNVReady            RadioState = 9
)

var radioStateNames = [...]string{
	"RADIO_OFF",
	"RADIO_UNAVAILABLE",
	"SIM_NOT_READY",
	"SIM_LOCKED_OR_ABSENT",
	"SIM_READY",
	"RUIM_NOT_READY",
	"RUIM_READY",
	"RUIM_LOCKED_OR_ABSENT",
	"NV_NOT_READY",
	"NV_READY",
}

func (s RadioState) Valid() bool {
	return s >= RadioOff && s <= RadioNVReady
}

// IsOn reports whether the radio is powered.
func (s RadioState) IsOn() bool {
	return s.Valid() && s != RadioOff && s != RadioUnavailable
}

// IsAvailable reports whether the daemon can currently talk to the modem.
func (s RadioState) IsAvailable() bool {
	return s.Valid() && s != RadioUnavailable
}

func (s RadioState) String() string {
	if s.Valid() {
		return radioStateNames[s]
	}
	return "RADIO_STATE_" + strconv.Itoa(int(s))
}

func (s RadioState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
