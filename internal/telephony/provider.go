// Package telephony is the provider boundary: a provider-agnostic interface,
// the Twilio implementation, webhook payload parsing and call-control
// document rendering. No provider SDK calls happen outside this package.
package telephony

import (
	"context"
)

// CallbackURLs are the three callback classes handed to the provider at call
// creation time.
type CallbackURLs struct {
	// Answer is fetched when the callee picks up; it returns the
	// call-control document that connects the conversational stream and
	// carries the dispatch context as query parameters.
	Answer string
	// Status receives lifecycle status callbacks.
	Status string
	// Recording receives the recording-ready callback.
	Recording string
}

// CreateCallRequest describes one outbound call to place.
type CreateCallRequest struct {
	To        string
	From      string
	Callbacks CallbackURLs
	// StatusEvents is the lifecycle event set to subscribe to.
	StatusEvents []string
	// Record asks the provider to record the call.
	Record bool
}

// CreatedCall is the provider's acknowledgment of a placed call.
type CreatedCall struct {
	CallSID string
}

// NumberCandidate is one available number returned by a search.
type NumberCandidate struct {
	PhoneNumber  string `json:"phone_number"`
	FriendlyName string `json:"friendly_name,omitempty"`
	Locality     string `json:"locality,omitempty"`
	Region       string `json:"region,omitempty"`
}

// PurchasedNumber is the result of reserving a number.
type PurchasedNumber struct {
	PhoneNumber    string
	PhoneNumberSID string
}

// Provider is the narrow contract the gateway has with the telephony
// upstream. Implementations must bound every call with a timeout; a hung
// provider call must never hang a webhook response.
type Provider interface {
	CreateCall(ctx context.Context, req CreateCallRequest) (*CreatedCall, error)
	CreateSubAccount(ctx context.Context, friendlyName string) (string, error)
	SearchAvailableNumbers(ctx context.Context, subAccountSID, areaCode string, limit int) ([]NumberCandidate, error)
	PurchaseNumber(ctx context.Context, subAccountSID, phoneNumber, voiceWebhookURL string) (*PurchasedNumber, error)
	RequestTranscription(ctx context.Context, recordingSID, callbackURL string) error
}

// DefaultStatusEvents is the lifecycle event set subscribed to for outbound
// calls.
var DefaultStatusEvents = []string{"initiated", "ringing", "answered", "completed"}
