// Package dispatch places outbound calls: it validates the destination,
// builds the callback URLs the provider will deliver events to, and writes
// the initial call record before returning so that an out-of-order webhook
// always has somewhere to land.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/FrontdeskLabs/reception-voice-service/internal/config"
	"github.com/FrontdeskLabs/reception-voice-service/internal/domain"
	"github.com/FrontdeskLabs/reception-voice-service/internal/ops"
	"github.com/FrontdeskLabs/reception-voice-service/internal/repository"
	"github.com/FrontdeskLabs/reception-voice-service/internal/telephony"
	"github.com/FrontdeskLabs/reception-voice-service/pkg/logger"
	"github.com/FrontdeskLabs/reception-voice-service/pkg/phone"
	"go.uber.org/zap"
)

// CallContext carries the correlation data echoed into the generated callback
// URLs, so the webhook side can attribute events without a prior lookup.
type CallContext struct {
	SubjectID    string            `json:"subject_id,omitempty"`
	BusinessName string            `json:"business_name,omitempty"`
	Extra        map[string]string `json:"extra,omitempty"`
}

// PlacedCall is the dispatcher's result. SideEffect distinguishes "primary
// success, side effect failed" from a primary failure: it is set when the
// best-effort call-log write failed, and never fails the placement.
type PlacedCall struct {
	CallSID    string
	SideEffect error
}

// Service is the call dispatcher.
type Service struct {
	cfg      *config.Config
	provider telephony.Provider
	calls    repository.CallRepository
	bindings repository.BindingRepository
	alerter  *ops.Alerter
}

// NewService creates a call dispatcher.
func NewService(cfg *config.Config, provider telephony.Provider, calls repository.CallRepository, bindings repository.BindingRepository, alerter *ops.Alerter) *Service {
	return &Service{
		cfg:      cfg,
		provider: provider,
		calls:    calls,
		bindings: bindings,
		alerter:  alerter,
	}
}

// PlaceCall places one outbound call for the tenant. Configuration problems
// fail fast before any network call; an invalid destination is the caller's
// fault; provider rejections surface with the upstream detail.
func (s *Service) PlaceCall(ctx context.Context, tenantID, toNumber string, callCtx CallContext) (*PlacedCall, error) {
	if s.cfg.TwilioAccountSID == "" || s.cfg.TwilioAuthToken == "" {
		return nil, &domain.ConfigError{Missing: "TWILIO_ACCOUNT_SID/TWILIO_AUTH_TOKEN"}
	}
	if s.cfg.PublicBaseURL == "" {
		return nil, &domain.ConfigError{Missing: "PUBLIC_BASE_URL"}
	}

	toNumber = phone.Normalize(toNumber)
	if !phone.IsE164(toNumber) {
		return nil, &domain.ValidationError{Field: "destination", Reason: "must be E.164, e.g. +13475551234"}
	}

	fromNumber, err := s.callerNumber(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	created, err := s.provider.CreateCall(ctx, telephony.CreateCallRequest{
		To:           toNumber,
		From:         fromNumber,
		Callbacks:    s.callbackURLs(tenantID, callCtx),
		StatusEvents: telephony.DefaultStatusEvents,
		Record:       true,
	})
	if err != nil {
		return nil, err
	}

	record := &domain.CallRecord{
		CallSID:    created.CallSID,
		TenantID:   tenantID,
		SubjectID:  callCtx.SubjectID,
		Direction:  domain.DirectionOutbound,
		ToNumber:   toNumber,
		FromNumber: fromNumber,
		Status:     domain.CallStatusInitiated,
		Metadata:   callCtx.metadata(),
	}
	if err := s.calls.Create(ctx, record); err != nil {
		return nil, &domain.PersistenceError{Op: "create call record", Err: err}
	}

	result := &PlacedCall{CallSID: created.CallSID}

	// Best-effort call-log entry; a logging failure never fails placement.
	turn := &domain.CallTurn{
		CallSID: created.CallSID,
		Role:    "system",
		Content: fmt.Sprintf("outbound call placed to %s", toNumber),
	}
	if err := s.calls.AppendTurn(ctx, turn); err != nil {
		result.SideEffect = err
		s.alerter.SideEffectFailure(ctx, "call log", tenantID, created.CallSID, err)
	}

	logger.Base().Info("outbound call placed",
		zap.String("tenant_id", tenantID),
		zap.String("call_sid", created.CallSID),
		zap.String("to", toNumber),
	)
	return result, nil
}

// callerNumber resolves the tenant's outbound caller ID: the reserved number
// when provisioned, otherwise the process-wide default.
func (s *Service) callerNumber(ctx context.Context, tenantID string) (string, error) {
	binding, err := s.bindings.GetByTenantID(ctx, tenantID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return "", &domain.PersistenceError{Op: "load tenant binding", Err: err}
	}
	if binding != nil && binding.PhoneNumber != "" {
		return binding.PhoneNumber, nil
	}
	if s.cfg.DefaultCallerNumber != "" {
		return s.cfg.DefaultCallerNumber, nil
	}
	return "", &domain.NotConnectedError{TenantID: tenantID, Integration: "telephony"}
}

// callbackURLs builds the three callback URL classes, echoing the dispatch
// context as query parameters on the answer URL.
func (s *Service) callbackURLs(tenantID string, callCtx CallContext) telephony.CallbackURLs {
	base := strings.TrimRight(s.cfg.PublicBaseURL, "/")
	prefix := fmt.Sprintf("%s/webhooks/voice/%s", base, url.PathEscape(tenantID))

	query := url.Values{}
	if callCtx.SubjectID != "" {
		query.Set("subject_id", callCtx.SubjectID)
	}
	if callCtx.BusinessName != "" {
		query.Set("business", callCtx.BusinessName)
	}
	for key, value := range callCtx.Extra {
		query.Set(key, value)
	}

	answer := prefix + "/answer"
	if encoded := query.Encode(); encoded != "" {
		answer += "?" + encoded
	}

	return telephony.CallbackURLs{
		Answer:    answer,
		Status:    prefix + "/status",
		Recording: prefix + "/recording",
	}
}

func (c CallContext) metadata() domain.JSONB {
	if c.SubjectID == "" && c.BusinessName == "" && len(c.Extra) == 0 {
		return nil
	}
	meta := domain.JSONB{}
	if c.SubjectID != "" {
		meta["subject_id"] = c.SubjectID
	}
	if c.BusinessName != "" {
		meta["business_name"] = c.BusinessName
	}
	for key, value := range c.Extra {
		meta[key] = value
	}
	return meta
}
