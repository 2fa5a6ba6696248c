package handler

import (
	"net/http"
	"time"

	"github.com/FrontdeskLabs/reception-voice-service/internal/services/reminder"
	"github.com/gorilla/mux"
)

// ReminderHandler triggers reminder campaign runs.
type ReminderHandler struct {
	reminderService *reminder.Service
}

// NewReminderHandler creates a new reminder handler.
func NewReminderHandler(reminderService *reminder.Service) *ReminderHandler {
	return &ReminderHandler{reminderService: reminderService}
}

// SetupReminderRoutes registers the reminder API routes.
func (h *ReminderHandler) SetupReminderRoutes(router *mux.Router) {
	router.HandleFunc("/reminders/run", h.RunCampaign).Methods("POST")
}

// RunCampaign walks the tenant's upcoming appointments and dispatches a
// reminder call per appointment. The run completes even when individual
// dispatches fail; the per-appointment outcomes are the response.
func (h *ReminderHandler) RunCampaign(w http.ResponseWriter, r *http.Request) {
	tenantID := TenantFromContext(r.Context())

	run, err := h.reminderService.Run(r.Context(), tenantID, time.Now().UTC())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}
