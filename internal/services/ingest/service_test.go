package ingest

import (
	"context"
	"testing"

	"github.com/FrontdeskLabs/reception-voice-service/internal/domain"
	"github.com/FrontdeskLabs/reception-voice-service/internal/ops"
	"github.com/FrontdeskLabs/reception-voice-service/internal/repository"
	"github.com/FrontdeskLabs/reception-voice-service/internal/telephony"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService() (*Service, *repository.MemoryCallRepository, *telephony.StubProvider) {
	calls := repository.NewMemoryCallRepository()
	provider := telephony.NewStubProvider()
	svc := NewService(calls, provider, ops.NewAlerter(nil), 0, "https://api.example.com")
	return svc, calls, provider
}

func seedCall(t *testing.T, calls *repository.MemoryCallRepository, callSID string) {
	t.Helper()
	err := calls.Create(context.Background(), &domain.CallRecord{
		CallSID:  callSID,
		TenantID: "t1",
		ToNumber: "+13475551234",
		Status:   domain.CallStatusInitiated,
	})
	require.NoError(t, err)
}

func TestApplyStatusAdvancesThroughLifecycle(t *testing.T) {
	svc, calls, _ := newTestService()
	seedCall(t, calls, "CA1")

	for _, providerStatus := range []string{"ringing", "in-progress", "completed"} {
		require.NoError(t, svc.ApplyStatus(context.Background(), "t1", "CA1", providerStatus, 0))
	}

	record, err := calls.GetByCallSID(context.Background(), "CA1")
	require.NoError(t, err)
	assert.Equal(t, domain.CallStatusCompleted, record.Status)
}

func TestApplyStatusOutOfOrderKeepsHighestRank(t *testing.T) {
	svc, calls, _ := newTestService()
	seedCall(t, calls, "CA1")

	// The answered event beats the ringing one to the store.
	require.NoError(t, svc.ApplyStatus(context.Background(), "t1", "CA1", "in-progress", 0))
	require.NoError(t, svc.ApplyStatus(context.Background(), "t1", "CA1", "ringing", 0))

	record, err := calls.GetByCallSID(context.Background(), "CA1")
	require.NoError(t, err)
	assert.Equal(t, domain.CallStatusAnswered, record.Status)
}

func TestApplyStatusAnyOrderConvergesToCompleted(t *testing.T) {
	orders := [][]string{
		{"ringing", "in-progress", "completed"},
		{"completed", "in-progress", "ringing"},
		{"in-progress", "completed", "ringing"},
		{"completed", "ringing", "in-progress"},
	}
	for _, order := range orders {
		svc, calls, _ := newTestService()
		seedCall(t, calls, "CA1")
		for _, providerStatus := range order {
			require.NoError(t, svc.ApplyStatus(context.Background(), "t1", "CA1", providerStatus, 0))
		}
		record, err := calls.GetByCallSID(context.Background(), "CA1")
		require.NoError(t, err)
		assert.Equal(t, domain.CallStatusCompleted, record.Status, "order %v", order)
	}
}

func TestApplyStatusFailedOverridesAnswered(t *testing.T) {
	svc, calls, _ := newTestService()
	seedCall(t, calls, "CA1")

	require.NoError(t, svc.ApplyStatus(context.Background(), "t1", "CA1", "in-progress", 0))
	require.NoError(t, svc.ApplyStatus(context.Background(), "t1", "CA1", "no-answer", 0))

	record, err := calls.GetByCallSID(context.Background(), "CA1")
	require.NoError(t, err)
	assert.Equal(t, domain.CallStatusFailed, record.Status)
}

func TestApplyStatusLateCompletedDoesNotOverrideFailed(t *testing.T) {
	svc, calls, _ := newTestService()
	seedCall(t, calls, "CA1")

	require.NoError(t, svc.ApplyStatus(context.Background(), "t1", "CA1", "failed", 0))
	require.NoError(t, svc.ApplyStatus(context.Background(), "t1", "CA1", "completed", 30))

	record, err := calls.GetByCallSID(context.Background(), "CA1")
	require.NoError(t, err)
	assert.Equal(t, domain.CallStatusFailed, record.Status)
}

func TestApplyStatusFailedDoesNotOverrideCompleted(t *testing.T) {
	svc, calls, _ := newTestService()
	seedCall(t, calls, "CA1")

	require.NoError(t, svc.ApplyStatus(context.Background(), "t1", "CA1", "completed", 30))
	require.NoError(t, svc.ApplyStatus(context.Background(), "t1", "CA1", "busy", 0))

	record, err := calls.GetByCallSID(context.Background(), "CA1")
	require.NoError(t, err)
	assert.Equal(t, domain.CallStatusCompleted, record.Status)
	assert.Equal(t, 30, record.DurationSeconds)
}

func TestApplyStatusUnknownCallCreatesMinimalRecord(t *testing.T) {
	svc, calls, _ := newTestService()

	require.NoError(t, svc.ApplyStatus(context.Background(), "t1", "CA-unseen", "ringing", 0))

	record, err := calls.GetByCallSID(context.Background(), "CA-unseen")
	require.NoError(t, err)
	assert.Equal(t, "t1", record.TenantID)
	assert.Equal(t, domain.CallStatusRinging, record.Status)
}

func TestApplyStatusRejectsUnknownVocabulary(t *testing.T) {
	svc, _, _ := newTestService()

	err := svc.ApplyStatus(context.Background(), "t1", "CA1", "exploded", 0)
	var validationErr *domain.ValidationError
	assert.ErrorAs(t, err, &validationErr)
}

func TestApplyStatusPersistenceFailureReportsError(t *testing.T) {
	svc, calls, _ := newTestService()
	calls.FailWrites = true

	err := svc.ApplyStatus(context.Background(), "t1", "CA1", "completed", 10)
	var persistenceErr *domain.PersistenceError
	assert.ErrorAs(t, err, &persistenceErr)
}

func TestApplyRecordingFirstWriteWins(t *testing.T) {
	svc, calls, provider := newTestService()
	seedCall(t, calls, "CA1")

	require.NoError(t, svc.ApplyRecording(context.Background(), "t1", "CA1", "RE1", "https://media/RE1", 20))
	require.NoError(t, svc.ApplyRecording(context.Background(), "t1", "CA1", "RE2", "https://media/RE2", 25))

	record, err := calls.GetByCallSID(context.Background(), "CA1")
	require.NoError(t, err)
	assert.True(t, record.HasRecording())
	assert.Equal(t, "RE1", record.RecordingSID)
	assert.Equal(t, "https://media/RE1", record.RecordingURL)

	// Only the winning write chains a transcription request.
	assert.Equal(t, []string{"RE1"}, provider.TranscriptionReqs)
}

func TestApplyRecordingRedeliveryIsIdempotent(t *testing.T) {
	svc, calls, _ := newTestService()
	seedCall(t, calls, "CA1")

	require.NoError(t, svc.ApplyRecording(context.Background(), "t1", "CA1", "RE1", "https://media/RE1", 20))
	require.NoError(t, svc.ApplyRecording(context.Background(), "t1", "CA1", "RE1", "https://media/RE1", 20))

	record, err := calls.GetByCallSID(context.Background(), "CA1")
	require.NoError(t, err)
	assert.Equal(t, "RE1", record.RecordingSID)
}

func TestApplyRecordingRedeliveryAfterTranscriptionDoesNotRechain(t *testing.T) {
	svc, calls, provider := newTestService()
	seedCall(t, calls, "CA1")

	require.NoError(t, svc.ApplyRecording(context.Background(), "t1", "CA1", "RE1", "https://media/RE1", 20))
	require.NoError(t, svc.ApplyTranscription(context.Background(), "t1", "CA1", "hello", "completed"))
	require.NoError(t, svc.ApplyRecording(context.Background(), "t1", "CA1", "RE1", "https://media/RE1", 20))

	assert.Equal(t, []string{"RE1"}, provider.TranscriptionReqs)
}

func TestApplyRecordingChainsTranscriptionCallback(t *testing.T) {
	svc, calls, provider := newTestService()
	seedCall(t, calls, "CA1")

	require.NoError(t, svc.ApplyRecording(context.Background(), "t1", "CA1", "RE1", "https://media/RE1", 20))

	require.Len(t, provider.TranscriptionReqs, 1)
	assert.Equal(t, "https://api.example.com/webhooks/voice/t1/transcription", svc.transcriptionCallbackURL("t1"))
}

func TestApplyRecordingTranscriptionFailureIsNotFatal(t *testing.T) {
	svc, calls, provider := newTestService()
	seedCall(t, calls, "CA1")
	provider.TranscriptionErr = assert.AnError

	// The recording still lands; the chained request failure goes to ops.
	require.NoError(t, svc.ApplyRecording(context.Background(), "t1", "CA1", "RE1", "https://media/RE1", 20))

	record, err := calls.GetByCallSID(context.Background(), "CA1")
	require.NoError(t, err)
	assert.Equal(t, "RE1", record.RecordingSID)
}

func TestApplyTranscriptionAbsentToPresentOnly(t *testing.T) {
	svc, calls, _ := newTestService()
	seedCall(t, calls, "CA1")

	require.NoError(t, svc.ApplyTranscription(context.Background(), "t1", "CA1", "first text", "completed"))
	require.NoError(t, svc.ApplyTranscription(context.Background(), "t1", "CA1", "second text", "completed"))

	record, err := calls.GetByCallSID(context.Background(), "CA1")
	require.NoError(t, err)
	assert.Equal(t, "first text", record.TranscriptionText)
}

func TestApplyTranscriptionUnknownCallCreatesMinimalRecord(t *testing.T) {
	svc, calls, _ := newTestService()

	require.NoError(t, svc.ApplyTranscription(context.Background(), "t1", "CA-late", "hello", "completed"))

	record, err := calls.GetByCallSID(context.Background(), "CA-late")
	require.NoError(t, err)
	assert.True(t, record.HasTranscription())
	assert.Equal(t, "hello", record.TranscriptionText)
}

func TestCallSIDRequired(t *testing.T) {
	svc, _, _ := newTestService()

	var validationErr *domain.ValidationError
	assert.ErrorAs(t, svc.ApplyStatus(context.Background(), "t1", "", "ringing", 0), &validationErr)
	assert.ErrorAs(t, svc.ApplyRecording(context.Background(), "t1", "", "RE1", "", 0), &validationErr)
	assert.ErrorAs(t, svc.ApplyTranscription(context.Background(), "t1", "", "x", "completed"), &validationErr)
}
