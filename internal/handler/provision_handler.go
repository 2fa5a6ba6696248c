package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/FrontdeskLabs/reception-voice-service/internal/domain"
	"github.com/FrontdeskLabs/reception-voice-service/internal/services/provision"
	"github.com/gorilla/mux"
)

// ProvisionHandler exposes the tenant telephony provisioning API.
type ProvisionHandler struct {
	provisionService *provision.Service
}

// NewProvisionHandler creates a new provisioning handler.
func NewProvisionHandler(provisionService *provision.Service) *ProvisionHandler {
	return &ProvisionHandler{provisionService: provisionService}
}

// SetupProvisionRoutes registers the telephony provisioning routes.
func (h *ProvisionHandler) SetupProvisionRoutes(router *mux.Router) {
	router.HandleFunc("/telephony/subaccount", h.EnsureSubAccount).Methods("POST")
	router.HandleFunc("/telephony/numbers/search", h.SearchNumbers).Methods("GET")
	router.HandleFunc("/telephony/numbers/reserve", h.ReserveNumber).Methods("POST")
	router.HandleFunc("/telephony/forwarding", h.SetForwarding).Methods("POST")
	router.HandleFunc("/telephony/binding", h.GetBinding).Methods("GET")
}

// EnsureSubAccount lazily creates the tenant's provider sub-account.
// Repeat calls return the same SID.
func (h *ProvisionHandler) EnsureSubAccount(w http.ResponseWriter, r *http.Request) {
	tenantID := TenantFromContext(r.Context())

	sid, err := h.provisionService.EnsureSubAccount(r.Context(), tenantID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"subAccountSid": sid})
}

// SearchNumbers lists purchasable numbers for an area code.
func (h *ProvisionHandler) SearchNumbers(w http.ResponseWriter, r *http.Request) {
	tenantID := TenantFromContext(r.Context())
	areaCode := r.URL.Query().Get("areaCode")

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, &domain.ValidationError{Field: "limit", Reason: "must be an integer"})
			return
		}
		limit = parsed
	}

	candidates, err := h.provisionService.SearchNumbers(r.Context(), tenantID, areaCode, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"numbers": candidates})
}

type reserveNumberRequest struct {
	PhoneNumber string `json:"phoneNumber"`
}

// ReserveNumber purchases a number for the tenant and points its inbound
// webhook at this service.
func (h *ProvisionHandler) ReserveNumber(w http.ResponseWriter, r *http.Request) {
	tenantID := TenantFromContext(r.Context())

	var req reserveNumberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, &domain.ValidationError{Field: "body", Reason: "invalid JSON"})
		return
	}

	binding, err := h.provisionService.ReserveNumber(r.Context(), tenantID, req.PhoneNumber)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, binding)
}

type setForwardingRequest struct {
	Enabled          bool   `json:"enabled"`
	ForwardingNumber string `json:"forwardingNumber,omitempty"`
}

// SetForwarding enables or disables call forwarding for the tenant.
func (h *ProvisionHandler) SetForwarding(w http.ResponseWriter, r *http.Request) {
	tenantID := TenantFromContext(r.Context())

	var req setForwardingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, &domain.ValidationError{Field: "body", Reason: "invalid JSON"})
		return
	}

	binding, err := h.provisionService.SetForwarding(r.Context(), tenantID, req.Enabled, req.ForwardingNumber)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, binding)
}

// GetBinding returns the tenant's telephony binding.
func (h *ProvisionHandler) GetBinding(w http.ResponseWriter, r *http.Request) {
	tenantID := TenantFromContext(r.Context())

	binding, err := h.provisionService.GetBinding(r.Context(), tenantID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, binding)
}
