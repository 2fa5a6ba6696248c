package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/FrontdeskLabs/reception-voice-service/internal/repository"
	"github.com/FrontdeskLabs/reception-voice-service/pkg/redis"
	"github.com/gorilla/mux"
)

// HealthHandler reports process liveness and dependency health.
type HealthHandler struct {
	repoManager repository.RepositoryManager
	redisSvc    *redis.Service
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(repoManager repository.RepositoryManager, redisSvc *redis.Service) *HealthHandler {
	return &HealthHandler{repoManager: repoManager, redisSvc: redisSvc}
}

// SetupHealthRoutes registers the health route.
func (h *HealthHandler) SetupHealthRoutes(router *mux.Router) {
	router.HandleFunc("/health", h.Health).Methods("GET")
}

// Health pings the database and redis. Redis being down degrades the
// response but does not fail it: the provisioning lock and ops channel fall
// back gracefully without it.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	deps := map[string]string{}

	if err := h.repoManager.Ping(ctx); err != nil {
		deps["database"] = "down"
		status = http.StatusServiceUnavailable
	} else {
		deps["database"] = "up"
	}

	if h.redisSvc == nil {
		deps["redis"] = "disabled"
	} else if err := h.redisSvc.Ping(ctx); err != nil {
		deps["redis"] = "down"
	} else {
		deps["redis"] = "up"
	}

	overall := "ok"
	if status != http.StatusOK {
		overall = "degraded"
	}
	writeJSON(w, status, map[string]interface{}{
		"status":       overall,
		"dependencies": deps,
	})
}
