package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/FrontdeskLabs/reception-voice-service/internal/config"
	"github.com/FrontdeskLabs/reception-voice-service/internal/domain"
	"github.com/FrontdeskLabs/reception-voice-service/internal/ops"
	"github.com/FrontdeskLabs/reception-voice-service/internal/repository"
	"github.com/FrontdeskLabs/reception-voice-service/internal/services/ingest"
	"github.com/FrontdeskLabs/reception-voice-service/internal/services/provision"
	"github.com/FrontdeskLabs/reception-voice-service/internal/telephony"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type webhookFixture struct {
	router   *mux.Router
	calls    *repository.MemoryCallRepository
	bindings *repository.MemoryBindingRepository
	provider *telephony.StubProvider
}

func newWebhookFixture() *webhookFixture {
	cfg := &config.Config{PublicBaseURL: "https://api.example.com"}
	calls := repository.NewMemoryCallRepository()
	bindings := repository.NewMemoryBindingRepository()
	provider := telephony.NewStubProvider()

	ingestService := ingest.NewService(calls, provider, ops.NewAlerter(nil), 0, cfg.PublicBaseURL)
	provisionService := provision.NewService(cfg, bindings, provider, nil)

	router := mux.NewRouter()
	NewWebhookHandler(ingestService, provisionService, cfg.PublicBaseURL).SetupWebhookRoutes(router)

	return &webhookFixture{router: router, calls: calls, bindings: bindings, provider: provider}
}

func (f *webhookFixture) post(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestStatusWebhookAppliesAndAcks(t *testing.T) {
	f := newWebhookFixture()

	form := url.Values{}
	form.Set("CallSid", "CA1")
	form.Set("CallStatus", "ringing")
	rec := f.post("/webhooks/voice/t1/status", form)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)

	record, err := f.calls.GetByCallSID(context.Background(), "CA1")
	require.NoError(t, err)
	assert.Equal(t, domain.CallStatusRinging, record.Status)
	assert.Equal(t, "t1", record.TenantID)
}

func TestStatusWebhookAcksOnPersistenceFailure(t *testing.T) {
	f := newWebhookFixture()
	f.calls.FailWrites = true

	form := url.Values{}
	form.Set("CallSid", "CA1")
	form.Set("CallStatus", "completed")
	rec := f.post("/webhooks/voice/t1/status", form)

	// The provider must never see the internal failure.
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStatusWebhookAcksMalformedPayload(t *testing.T) {
	f := newWebhookFixture()

	rec := f.post("/webhooks/voice/t1/status", url.Values{})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRecordingWebhookAttachesAndChainsTranscription(t *testing.T) {
	f := newWebhookFixture()

	form := url.Values{}
	form.Set("CallSid", "CA1")
	form.Set("RecordingSid", "RE1")
	form.Set("RecordingUrl", "https://media/RE1")
	form.Set("RecordingDuration", "17")
	rec := f.post("/webhooks/voice/t1/recording", form)

	assert.Equal(t, http.StatusOK, rec.Code)

	record, err := f.calls.GetByCallSID(context.Background(), "CA1")
	require.NoError(t, err)
	assert.Equal(t, "RE1", record.RecordingSID)
	assert.Equal(t, []string{"RE1"}, f.provider.TranscriptionReqs)
}

func TestTranscriptionWebhookAttachesText(t *testing.T) {
	f := newWebhookFixture()

	form := url.Values{}
	form.Set("CallSid", "CA1")
	form.Set("TranscriptionText", "see you tomorrow")
	form.Set("TranscriptionStatus", "completed")
	rec := f.post("/webhooks/voice/t1/transcription", form)

	assert.Equal(t, http.StatusOK, rec.Code)

	record, err := f.calls.GetByCallSID(context.Background(), "CA1")
	require.NoError(t, err)
	assert.Equal(t, "see you tomorrow", record.TranscriptionText)
}

func TestAnswerWebhookReturnsStreamDocument(t *testing.T) {
	f := newWebhookFixture()

	rec := f.post("/webhooks/voice/t1/answer?subject_id=cust-7", url.Values{})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/xml", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `<Stream url="wss://api.example.com/media/stream/t1">`)
}

func TestInboundWebhookStreamsByDefault(t *testing.T) {
	f := newWebhookFixture()
	_, err := f.bindings.EnsureExists(context.Background(), "t1")
	require.NoError(t, err)

	form := url.Values{}
	form.Set("CallSid", "CA9")
	form.Set("CallStatus", "ringing")
	rec := f.post("/webhooks/voice/t1/inbound", form)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<Connect>")

	// The inbound call shows up in the same call store.
	record, err := f.calls.GetByCallSID(context.Background(), "CA9")
	require.NoError(t, err)
	assert.Equal(t, domain.CallStatusRinging, record.Status)
}

func TestInboundWebhookForwardsWhenEnabled(t *testing.T) {
	f := newWebhookFixture()
	_, err := f.bindings.EnsureExists(context.Background(), "t1")
	require.NoError(t, err)
	require.NoError(t, f.bindings.SetForwarding(context.Background(), "t1", true, "+13475551234"))

	form := url.Values{}
	form.Set("CallSid", "CA9")
	form.Set("CallStatus", "ringing")
	rec := f.post("/webhooks/voice/t1/inbound", form)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<Number>+13475551234</Number>")
}

func TestInboundWebhookRejectsUnknownTenant(t *testing.T) {
	f := newWebhookFixture()

	form := url.Values{}
	form.Set("CallSid", "CA9")
	form.Set("CallStatus", "ringing")
	rec := f.post("/webhooks/voice/t-ghost/inbound", form)

	// Still a 200: the provider gets a document, not an error.
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<Reject")
}
