package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/FrontdeskLabs/reception-voice-service/internal/domain"
	"github.com/FrontdeskLabs/reception-voice-service/internal/repository"
	"github.com/FrontdeskLabs/reception-voice-service/internal/services/dispatch"
	"github.com/FrontdeskLabs/reception-voice-service/pkg/logger"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// CallHandler exposes outbound call placement and call-record reads.
type CallHandler struct {
	dispatchService *dispatch.Service
	callRepo        repository.CallRepository
}

// NewCallHandler creates a new call handler.
func NewCallHandler(dispatchService *dispatch.Service, callRepo repository.CallRepository) *CallHandler {
	return &CallHandler{
		dispatchService: dispatchService,
		callRepo:        callRepo,
	}
}

// SetupCallRoutes registers the call API routes.
func (h *CallHandler) SetupCallRoutes(router *mux.Router) {
	router.HandleFunc("/calls", h.PlaceCall).Methods("POST")
	router.HandleFunc("/calls", h.ListCalls).Methods("GET")
	router.HandleFunc("/calls/{callSid}", h.GetCall).Methods("GET")
	router.HandleFunc("/calls/{callSid}/turns", h.ListTurns).Methods("GET")
}

type placeCallRequest struct {
	To           string            `json:"to"`
	SubjectID    string            `json:"subjectId,omitempty"`
	BusinessName string            `json:"businessName,omitempty"`
	Context      map[string]string `json:"context,omitempty"`
}

type placeCallResponse struct {
	CallID string `json:"callId"`
}

// PlaceCall dispatches an outbound call for the authenticated tenant.
func (h *CallHandler) PlaceCall(w http.ResponseWriter, r *http.Request) {
	tenantID := TenantFromContext(r.Context())

	var req placeCallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, &domain.ValidationError{Field: "body", Reason: "invalid JSON"})
		return
	}

	placed, err := h.dispatchService.PlaceCall(r.Context(), tenantID, req.To, dispatch.CallContext{
		SubjectID:    req.SubjectID,
		BusinessName: req.BusinessName,
		Extra:        req.Context,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	if placed.SideEffect != nil {
		logger.Base().Warn("call placed with degraded call log",
			zap.String("tenant_id", tenantID),
			zap.String("call_sid", placed.CallSID),
			zap.Error(placed.SideEffect))
	}

	writeJSON(w, http.StatusCreated, placeCallResponse{CallID: placed.CallSID})
}

// ListCalls returns the tenant's most recent calls.
func (h *CallHandler) ListCalls(w http.ResponseWriter, r *http.Request) {
	tenantID := TenantFromContext(r.Context())

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 500 {
			writeError(w, &domain.ValidationError{Field: "limit", Reason: "must be an integer between 1 and 500"})
			return
		}
		limit = parsed
	}

	records, err := h.callRepo.ListByTenant(r.Context(), tenantID, limit)
	if err != nil {
		writeError(w, &domain.PersistenceError{Op: "list calls", Err: err})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"calls": records})
}

// GetCall returns one call record, tenant-scoped.
func (h *CallHandler) GetCall(w http.ResponseWriter, r *http.Request) {
	tenantID := TenantFromContext(r.Context())
	callSID := mux.Vars(r)["callSid"]

	record, err := h.callRepo.GetByCallSID(r.Context(), callSID)
	if err != nil {
		writeError(w, err)
		return
	}
	if record.TenantID != tenantID {
		writeError(w, repository.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// ListTurns returns the conversation turns of one call, tenant-scoped.
func (h *CallHandler) ListTurns(w http.ResponseWriter, r *http.Request) {
	tenantID := TenantFromContext(r.Context())
	callSID := mux.Vars(r)["callSid"]

	record, err := h.callRepo.GetByCallSID(r.Context(), callSID)
	if err != nil {
		writeError(w, err)
		return
	}
	if record.TenantID != tenantID {
		writeError(w, repository.ErrNotFound)
		return
	}

	turns, err := h.callRepo.ListTurns(r.Context(), callSID)
	if err != nil {
		writeError(w, &domain.PersistenceError{Op: "list call turns", Err: err})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"turns": turns})
}
