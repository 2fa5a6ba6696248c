package handler

import (
	"net/http"
	"strings"

	"github.com/FrontdeskLabs/reception-voice-service/internal/services/ingest"
	"github.com/FrontdeskLabs/reception-voice-service/internal/services/provision"
	"github.com/FrontdeskLabs/reception-voice-service/internal/telephony"
	"github.com/FrontdeskLabs/reception-voice-service/pkg/logger"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// WebhookHandler receives provider callbacks. Every endpoint acknowledges
// with 200 regardless of internal outcome: a non-2xx makes the provider
// retry or, worse, drop the call, and persistence problems are already
// routed to the ops alert channel by the ingest service.
type WebhookHandler struct {
	ingestService    *ingest.Service
	provisionService *provision.Service
	publicBaseURL    string
}

// NewWebhookHandler creates a new webhook handler.
func NewWebhookHandler(ingestService *ingest.Service, provisionService *provision.Service, publicBaseURL string) *WebhookHandler {
	return &WebhookHandler{
		ingestService:    ingestService,
		provisionService: provisionService,
		publicBaseURL:    publicBaseURL,
	}
}

// SetupWebhookRoutes registers the provider callback routes. Tenant identity
// comes from the URL path, not from API auth: the provider calls these.
func (h *WebhookHandler) SetupWebhookRoutes(router *mux.Router) {
	webhooks := router.PathPrefix("/webhooks/voice/{tenantID}").Subrouter()
	webhooks.HandleFunc("/answer", h.HandleAnswer).Methods("POST")
	webhooks.HandleFunc("/status", h.HandleStatus).Methods("POST")
	webhooks.HandleFunc("/recording", h.HandleRecording).Methods("POST")
	webhooks.HandleFunc("/transcription", h.HandleTranscription).Methods("POST")
	webhooks.HandleFunc("/inbound", h.HandleInbound).Methods("POST")
}

// HandleAnswer is fetched by the provider when an outbound call is answered.
// It hands the live call to the conversational stream.
func (h *WebhookHandler) HandleAnswer(w http.ResponseWriter, r *http.Request) {
	tenantID := mux.Vars(r)["tenantID"]

	route := telephony.InboundRoute{
		Action:    telephony.InboundActionStream,
		StreamURL: h.streamURL(tenantID),
	}
	h.writeTwiML(w, route)
}

// HandleStatus applies a call lifecycle status callback.
func (h *WebhookHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	tenantID := mux.Vars(r)["tenantID"]

	form, err := telephony.ParseStatusCallback(r)
	if err != nil || form.CallSID == "" {
		logger.Base().Warn("malformed status callback",
			zap.String("tenant_id", tenantID), zap.Error(err))
		h.ack(w)
		return
	}

	if err := h.ingestService.ApplyStatus(r.Context(), tenantID, form.CallSID, form.CallStatus, form.DurationSeconds); err != nil {
		logger.Base().Error("status callback not applied",
			zap.String("tenant_id", tenantID),
			zap.String("call_sid", form.CallSID),
			zap.Error(err))
	}
	h.ack(w)
}

// HandleRecording applies a recording-ready callback.
func (h *WebhookHandler) HandleRecording(w http.ResponseWriter, r *http.Request) {
	tenantID := mux.Vars(r)["tenantID"]

	form, err := telephony.ParseRecordingCallback(r)
	if err != nil || form.CallSID == "" {
		logger.Base().Warn("malformed recording callback",
			zap.String("tenant_id", tenantID), zap.Error(err))
		h.ack(w)
		return
	}

	if err := h.ingestService.ApplyRecording(r.Context(), tenantID, form.CallSID, form.RecordingSID, form.RecordingURL, form.RecordingDuration); err != nil {
		logger.Base().Error("recording callback not applied",
			zap.String("tenant_id", tenantID),
			zap.String("call_sid", form.CallSID),
			zap.Error(err))
	}
	h.ack(w)
}

// HandleTranscription applies a transcription-ready callback.
func (h *WebhookHandler) HandleTranscription(w http.ResponseWriter, r *http.Request) {
	tenantID := mux.Vars(r)["tenantID"]

	form, err := telephony.ParseTranscriptionCallback(r)
	if err != nil || form.CallSID == "" {
		logger.Base().Warn("malformed transcription callback",
			zap.String("tenant_id", tenantID), zap.Error(err))
		h.ack(w)
		return
	}

	if err := h.ingestService.ApplyTranscription(r.Context(), tenantID, form.CallSID, form.TranscriptionText, form.TranscriptionStatus); err != nil {
		logger.Base().Error("transcription callback not applied",
			zap.String("tenant_id", tenantID),
			zap.String("call_sid", form.CallSID),
			zap.Error(err))
	}
	h.ack(w)
}

// HandleInbound answers a call arriving on a tenant's provisioned number.
// The routing decision depends only on the stored binding: forward when the
// tenant enabled forwarding, otherwise connect the caller to the
// conversational stream.
func (h *WebhookHandler) HandleInbound(w http.ResponseWriter, r *http.Request) {
	tenantID := mux.Vars(r)["tenantID"]

	form, err := telephony.ParseInboundVoice(r)
	if err != nil {
		logger.Base().Warn("malformed inbound callback",
			zap.String("tenant_id", tenantID), zap.Error(err))
		h.writeTwiML(w, telephony.InboundRoute{Action: telephony.InboundActionReject})
		return
	}

	if form.CallSID != "" {
		// Track the inbound call in the same state machine as outbound ones.
		if err := h.ingestService.ApplyStatus(r.Context(), tenantID, form.CallSID, form.CallStatus, 0); err != nil {
			logger.Base().Error("inbound call not recorded",
				zap.String("tenant_id", tenantID),
				zap.String("call_sid", form.CallSID),
				zap.Error(err))
		}
	}

	binding, err := h.provisionService.GetBinding(r.Context(), tenantID)
	if err != nil {
		logger.Base().Warn("inbound call for unprovisioned tenant",
			zap.String("tenant_id", tenantID), zap.Error(err))
		h.writeTwiML(w, telephony.InboundRoute{Action: telephony.InboundActionReject})
		return
	}

	route := provision.RouteInbound(binding, h.streamURL(tenantID))
	h.writeTwiML(w, route)
}

func (h *WebhookHandler) ack(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *WebhookHandler) writeTwiML(w http.ResponseWriter, route telephony.InboundRoute) {
	doc, err := telephony.RenderInboundRoute(route)
	if err != nil {
		logger.Base().Error("failed to render call-control document", zap.Error(err))
		doc, _ = telephony.RenderInboundRoute(telephony.InboundRoute{Action: telephony.InboundActionReject})
	}
	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(doc)); err != nil {
		logger.Base().Error("failed to write call-control document", zap.Error(err))
	}
}

// streamURL derives the websocket endpoint of the conversational media
// stream from the public base URL.
func (h *WebhookHandler) streamURL(tenantID string) string {
	base := strings.TrimRight(h.publicBaseURL, "/")
	base = strings.Replace(base, "https://", "wss://", 1)
	base = strings.Replace(base, "http://", "ws://", 1)
	return base + "/media/stream/" + tenantID
}
