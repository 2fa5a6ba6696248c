package telephony

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/FrontdeskLabs/reception-voice-service/internal/domain"
)

// Webhook form parsing. Twilio delivers callbacks as
// application/x-www-form-urlencoded; only the fields the gateway acts on are
// captured here. Business decisions are not made in this file.

// StatusCallbackForm is a call lifecycle status callback.
type StatusCallbackForm struct {
	CallSID         string
	CallStatus      string
	DurationSeconds int
	From            string
	To              string
	Direction       string
}

// ParseStatusCallback parses a status callback request.
func ParseStatusCallback(r *http.Request) (StatusCallbackForm, error) {
	if err := r.ParseForm(); err != nil {
		return StatusCallbackForm{}, err
	}
	return StatusCallbackForm{
		CallSID:         r.PostFormValue("CallSid"),
		CallStatus:      r.PostFormValue("CallStatus"),
		DurationSeconds: atoiOrZero(r.PostFormValue("CallDuration")),
		From:            strings.TrimSpace(r.PostFormValue("From")),
		To:              strings.TrimSpace(r.PostFormValue("To")),
		Direction:       r.PostFormValue("Direction"),
	}, nil
}

// RecordingCallbackForm is a recording-ready callback.
type RecordingCallbackForm struct {
	CallSID           string
	RecordingSID      string
	RecordingURL      string
	RecordingDuration int
}

// ParseRecordingCallback parses a recording-ready callback request.
func ParseRecordingCallback(r *http.Request) (RecordingCallbackForm, error) {
	if err := r.ParseForm(); err != nil {
		return RecordingCallbackForm{}, err
	}
	return RecordingCallbackForm{
		CallSID:           r.PostFormValue("CallSid"),
		RecordingSID:      r.PostFormValue("RecordingSid"),
		RecordingURL:      r.PostFormValue("RecordingUrl"),
		RecordingDuration: atoiOrZero(r.PostFormValue("RecordingDuration")),
	}, nil
}

// TranscriptionCallbackForm is a transcription-ready callback.
type TranscriptionCallbackForm struct {
	CallSID             string
	TranscriptionText   string
	TranscriptionStatus string
}

// ParseTranscriptionCallback parses a transcription-ready callback request.
func ParseTranscriptionCallback(r *http.Request) (TranscriptionCallbackForm, error) {
	if err := r.ParseForm(); err != nil {
		return TranscriptionCallbackForm{}, err
	}
	return TranscriptionCallbackForm{
		CallSID:             r.PostFormValue("CallSid"),
		TranscriptionText:   r.PostFormValue("TranscriptionText"),
		TranscriptionStatus: r.PostFormValue("TranscriptionStatus"),
	}, nil
}

// InboundVoiceForm is an inbound call hitting a tenant's number.
type InboundVoiceForm struct {
	CallSID    string
	From       string
	To         string
	CallStatus string
}

// ParseInboundVoice parses an inbound voice webhook request.
func ParseInboundVoice(r *http.Request) (InboundVoiceForm, error) {
	if err := r.ParseForm(); err != nil {
		return InboundVoiceForm{}, err
	}
	return InboundVoiceForm{
		CallSID:    r.PostFormValue("CallSid"),
		From:       strings.TrimSpace(r.PostFormValue("From")),
		To:         strings.TrimSpace(r.PostFormValue("To")),
		CallStatus: r.PostFormValue("CallStatus"),
	}, nil
}

// MapProviderStatus maps Twilio's call status vocabulary onto the rank-ordered
// domain statuses. Unknown values report false.
func MapProviderStatus(providerStatus string) (domain.CallStatus, bool) {
	switch strings.ToLower(providerStatus) {
	case "queued", "initiated":
		return domain.CallStatusInitiated, true
	case "ringing":
		return domain.CallStatusRinging, true
	case "in-progress", "answered":
		return domain.CallStatusAnswered, true
	case "completed":
		return domain.CallStatusCompleted, true
	case "busy", "failed", "no-answer", "canceled":
		return domain.CallStatusFailed, true
	default:
		return "", false
	}
}

func atoiOrZero(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
