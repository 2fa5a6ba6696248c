// Package ingest applies asynchronous provider callbacks to the call store.
// The three callback kinds are independent, idempotent, and may be
// redelivered or arrive out of order; every mutation is a conditional
// per-record update so concurrent deliveries for the same call cannot lose
// writes.
package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/FrontdeskLabs/reception-voice-service/internal/domain"
	"github.com/FrontdeskLabs/reception-voice-service/internal/ops"
	"github.com/FrontdeskLabs/reception-voice-service/internal/repository"
	"github.com/FrontdeskLabs/reception-voice-service/internal/telephony"
	"github.com/FrontdeskLabs/reception-voice-service/pkg/logger"
	"go.uber.org/zap"
)

// Service is the webhook ingestor.
type Service struct {
	calls    repository.CallRepository
	provider telephony.Provider
	alerter  *ops.Alerter

	// storeTimeout bounds the persistence step so the provider always gets
	// a prompt acknowledgment.
	storeTimeout time.Duration

	// publicBaseURL builds the transcription callback URL for the chained
	// transcription request.
	publicBaseURL string
}

// NewService creates a webhook ingestor.
func NewService(calls repository.CallRepository, provider telephony.Provider, alerter *ops.Alerter, storeTimeout time.Duration, publicBaseURL string) *Service {
	if storeTimeout <= 0 {
		storeTimeout = 2 * time.Second
	}
	return &Service{
		calls:         calls,
		provider:      provider,
		alerter:       alerter,
		storeTimeout:  storeTimeout,
		publicBaseURL: publicBaseURL,
	}
}

// ApplyStatus applies a status callback. An unknown call SID is not an error:
// the callback may have beaten the dispatcher's write, or belong to an
// inbound call this process never placed, so the store upserts a minimal
// record. A persistence failure is routed to the operational channel; the
// returned error exists for observability, callers still acknowledge.
func (s *Service) ApplyStatus(ctx context.Context, tenantID, callSID, providerStatus string, durationSeconds int) error {
	if callSID == "" {
		return &domain.ValidationError{Field: "CallSid", Reason: "required"}
	}
	status, ok := telephony.MapProviderStatus(providerStatus)
	if !ok {
		return &domain.ValidationError{Field: "CallStatus", Reason: fmt.Sprintf("unknown status %q", providerStatus)}
	}

	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	applied, err := s.calls.ApplyStatus(storeCtx, callSID, tenantID, status, durationSeconds)
	if err != nil {
		s.alerter.PersistenceFailure(ctx, "apply status", tenantID, callSID, err)
		return &domain.PersistenceError{Op: "apply status", Err: err}
	}

	if !applied {
		logger.Base().Debug("stale status callback ignored",
			zap.String("call_sid", callSID),
			zap.String("status", string(status)),
		)
		return nil
	}

	// Intermediate transitions are noisy; only terminal ones are worth an
	// operator's attention.
	logAt := logger.Base().Debug
	if status.Terminal() {
		logAt = logger.Base().Info
	}
	logAt("call status applied",
		zap.String("tenant_id", tenantID),
		zap.String("call_sid", callSID),
		zap.String("status", string(status)),
	)
	return nil
}

// ApplyRecording applies a recording-ready callback (first-write-wins) and
// chains a transcription request. A failure to trigger transcription is
// reported operationally, never to the provider.
func (s *Service) ApplyRecording(ctx context.Context, tenantID, callSID, recordingSID, mediaURL string, durationSeconds int) error {
	if callSID == "" {
		return &domain.ValidationError{Field: "CallSid", Reason: "required"}
	}
	if recordingSID == "" {
		return &domain.ValidationError{Field: "RecordingSid", Reason: "required"}
	}

	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	applied, err := s.calls.SetRecording(storeCtx, callSID, tenantID, recordingSID, mediaURL, durationSeconds)
	if err != nil {
		s.alerter.PersistenceFailure(ctx, "set recording", tenantID, callSID, err)
		return &domain.PersistenceError{Op: "set recording", Err: err}
	}
	if !applied {
		logger.Base().Debug("duplicate recording callback ignored",
			zap.String("call_sid", callSID),
			zap.String("recording_sid", recordingSID),
		)
		return nil
	}

	// A redelivered callback with the same recording SID counts as applied;
	// once the transcription has landed there is nothing left to chain.
	record, getErr := s.calls.GetByCallSID(storeCtx, callSID)
	if getErr != nil || !record.HasTranscription() {
		if err := s.provider.RequestTranscription(ctx, recordingSID, s.transcriptionCallbackURL(tenantID)); err != nil {
			s.alerter.SideEffectFailure(ctx, "request transcription", tenantID, callSID, err)
		}
	}

	logger.Base().Info("call recording attached",
		zap.String("tenant_id", tenantID),
		zap.String("call_sid", callSID),
		zap.String("recording_sid", recordingSID),
	)
	return nil
}

// ApplyTranscription applies a transcription-ready callback. No further
// chaining.
func (s *Service) ApplyTranscription(ctx context.Context, tenantID, callSID, text, status string) error {
	if callSID == "" {
		return &domain.ValidationError{Field: "CallSid", Reason: "required"}
	}

	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	applied, err := s.calls.SetTranscription(storeCtx, callSID, tenantID, text, status)
	if err != nil {
		s.alerter.PersistenceFailure(ctx, "set transcription", tenantID, callSID, err)
		return &domain.PersistenceError{Op: "set transcription", Err: err}
	}
	if !applied {
		logger.Base().Debug("duplicate transcription callback ignored",
			zap.String("call_sid", callSID),
		)
		return nil
	}

	logger.Base().Info("call transcription attached",
		zap.String("tenant_id", tenantID),
		zap.String("call_sid", callSID),
		zap.String("transcription_status", status),
	)
	return nil
}

func (s *Service) transcriptionCallbackURL(tenantID string) string {
	base := strings.TrimRight(s.publicBaseURL, "/")
	return fmt.Sprintf("%s/webhooks/voice/%s/transcription", base, tenantID)
}
