package telephony

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/FrontdeskLabs/reception-voice-service/internal/domain"
	"github.com/twilio/twilio-go"
	api "github.com/twilio/twilio-go/rest/api/v2010"
)

// TwilioProvider implements Provider on the Twilio REST API. The client is
// constructed once at process start and injected into every component that
// needs it; the HTTP timeout set here bounds every upstream call since the
// SDK does not take a context.
type TwilioProvider struct {
	client      *twilio.RestClient
	accountSID  string
	countryCode string
}

// NewTwilioProvider creates a Twilio-backed provider adapter.
func NewTwilioProvider(accountSID, authToken, countryCode string, timeout time.Duration) *TwilioProvider {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	client.Client.SetTimeout(timeout)

	return &TwilioProvider{
		client:      client,
		accountSID:  accountSID,
		countryCode: countryCode,
	}
}

// CreateCall places an outbound call with the three callback URL classes and
// the status event subscription.
func (p *TwilioProvider) CreateCall(ctx context.Context, req CreateCallRequest) (*CreatedCall, error) {
	if err := ctx.Err(); err != nil {
		return nil, &domain.TimeoutError{Op: "create call"}
	}

	params := &api.CreateCallParams{}
	params.SetTo(req.To)
	params.SetFrom(req.From)
	params.SetUrl(req.Callbacks.Answer)
	params.SetMethod("POST")
	params.SetStatusCallback(req.Callbacks.Status)
	params.SetStatusCallbackMethod("POST")
	params.SetStatusCallbackEvent(req.StatusEvents)
	if req.Record {
		params.SetRecord(true)
		params.SetRecordingStatusCallback(req.Callbacks.Recording)
		params.SetRecordingStatusCallbackMethod("POST")
	}

	resp, err := p.client.Api.CreateCall(params)
	if err != nil {
		return nil, wrapProviderErr("create call", err)
	}
	if resp.Sid == nil || *resp.Sid == "" {
		return nil, &domain.ProviderError{Op: "create call", Err: errors.New("no call SID returned")}
	}
	return &CreatedCall{CallSID: *resp.Sid}, nil
}

// CreateSubAccount creates a tenant-scoped sub-account.
func (p *TwilioProvider) CreateSubAccount(ctx context.Context, friendlyName string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &domain.TimeoutError{Op: "create sub-account"}
	}

	params := &api.CreateAccountParams{}
	params.SetFriendlyName(friendlyName)

	resp, err := p.client.Api.CreateAccount(params)
	if err != nil {
		return "", wrapProviderErr("create sub-account", err)
	}
	if resp.Sid == nil || *resp.Sid == "" {
		return "", &domain.ProviderError{Op: "create sub-account", Err: errors.New("no account SID returned")}
	}
	return *resp.Sid, nil
}

// SearchAvailableNumbers lists purchasable local numbers within the tenant's
// sub-account.
func (p *TwilioProvider) SearchAvailableNumbers(ctx context.Context, subAccountSID, areaCode string, limit int) ([]NumberCandidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, &domain.TimeoutError{Op: "search numbers"}
	}

	params := &api.ListAvailablePhoneNumberLocalParams{}
	params.SetPathAccountSid(subAccountSID)
	params.SetPageSize(limit)
	params.SetLimit(limit)
	if code, err := strconv.Atoi(areaCode); err == nil {
		params.SetAreaCode(code)
	}

	items, err := p.client.Api.ListAvailablePhoneNumberLocal(p.countryCode, params)
	if err != nil {
		return nil, wrapProviderErr("search numbers", err)
	}

	candidates := make([]NumberCandidate, 0, len(items))
	for _, item := range items {
		candidates = append(candidates, NumberCandidate{
			PhoneNumber:  deref(item.PhoneNumber),
			FriendlyName: deref(item.FriendlyName),
			Locality:     deref(item.Locality),
			Region:       deref(item.Region),
		})
	}
	return candidates, nil
}

// PurchaseNumber buys a number in the tenant's sub-account, bound to the
// tenant's inbound voice webhook URL.
func (p *TwilioProvider) PurchaseNumber(ctx context.Context, subAccountSID, phoneNumber, voiceWebhookURL string) (*PurchasedNumber, error) {
	if err := ctx.Err(); err != nil {
		return nil, &domain.TimeoutError{Op: "purchase number"}
	}

	params := &api.CreateIncomingPhoneNumberParams{}
	params.SetPathAccountSid(subAccountSID)
	params.SetPhoneNumber(phoneNumber)
	params.SetVoiceUrl(voiceWebhookURL)
	params.SetVoiceMethod("POST")

	resp, err := p.client.Api.CreateIncomingPhoneNumber(params)
	if err != nil {
		return nil, wrapProviderErr("purchase number", err)
	}
	if resp.Sid == nil || *resp.Sid == "" {
		return nil, &domain.ProviderError{Op: "purchase number", Err: errors.New("no number SID returned")}
	}
	return &PurchasedNumber{
		PhoneNumber:    deref(resp.PhoneNumber),
		PhoneNumberSID: *resp.Sid,
	}, nil
}

// RequestTranscription asks the provider to transcribe a finished recording
// and deliver the result to the callback URL. The SDK has no typed helper
// for this endpoint, so it goes through the authenticated request handler.
func (p *TwilioProvider) RequestTranscription(ctx context.Context, recordingSID, callbackURL string) error {
	if err := ctx.Err(); err != nil {
		return &domain.TimeoutError{Op: "request transcription"}
	}

	endpoint := fmt.Sprintf("https://api.twilio.com/2010-04-01/Accounts/%s/Recordings/%s/Transcriptions.json",
		p.accountSID, recordingSID)
	data := url.Values{}
	data.Set("CallbackUrl", callbackURL)
	data.Set("CallbackMethod", "POST")

	resp, err := p.client.Post(endpoint, data, nil)
	if err != nil {
		return wrapProviderErr("request transcription", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &domain.ProviderError{
			Op:  "request transcription",
			Err: fmt.Errorf("status %d: %s", resp.StatusCode, string(body)),
		}
	}
	return nil
}

// wrapProviderErr maps transport timeouts to TimeoutError and everything else
// to ProviderError, keeping the upstream detail.
func wrapProviderErr(op string, err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &domain.TimeoutError{Op: op}
	}
	return &domain.ProviderError{Op: op, Err: err}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
