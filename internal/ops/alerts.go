// Package ops is the operational alerting path. Webhook handlers must always
// acknowledge the provider, so internal persistence failures are routed here
// for reconciliation instead of being reflected in the HTTP response.
package ops

import (
	"context"
	"time"

	"github.com/FrontdeskLabs/reception-voice-service/pkg/logger"
	"github.com/FrontdeskLabs/reception-voice-service/pkg/redis"
	"go.uber.org/zap"
)

// AlertChannel is the Redis pub/sub channel reconciliation tooling consumes.
const AlertChannel = "ops:alerts"

// Alert is one operational failure record.
type Alert struct {
	Kind     string    `json:"kind"`
	Op       string    `json:"op"`
	TenantID string    `json:"tenant_id,omitempty"`
	CallSID  string    `json:"call_sid,omitempty"`
	Error    string    `json:"error"`
	At       time.Time `json:"at"`
}

// Alerter publishes operational alerts. Redis is optional; without it alerts
// still land in the structured log.
type Alerter struct {
	redis *redis.Service
}

// NewAlerter creates an alerter. redisSvc may be nil.
func NewAlerter(redisSvc *redis.Service) *Alerter {
	return &Alerter{redis: redisSvc}
}

// PersistenceFailure reports a webhook persistence failure that was
// acknowledged to the provider anyway.
func (a *Alerter) PersistenceFailure(ctx context.Context, op, tenantID, callSID string, err error) {
	a.publish(ctx, Alert{
		Kind:     "persistence_failure",
		Op:       op,
		TenantID: tenantID,
		CallSID:  callSID,
		Error:    err.Error(),
		At:       time.Now().UTC(),
	})
}

// SideEffectFailure reports a best-effort side effect that failed without
// failing its primary operation.
func (a *Alerter) SideEffectFailure(ctx context.Context, op, tenantID, callSID string, err error) {
	a.publish(ctx, Alert{
		Kind:     "side_effect_failure",
		Op:       op,
		TenantID: tenantID,
		CallSID:  callSID,
		Error:    err.Error(),
		At:       time.Now().UTC(),
	})
}

func (a *Alerter) publish(ctx context.Context, alert Alert) {
	logger.Base().Error("operational alert",
		zap.String("kind", alert.Kind),
		zap.String("op", alert.Op),
		zap.String("tenant_id", alert.TenantID),
		zap.String("call_sid", alert.CallSID),
		zap.String("detail", alert.Error),
	)

	if a.redis == nil {
		return
	}
	if err := a.redis.Publish(ctx, AlertChannel, alert); err != nil {
		logger.Base().Warn("failed to publish operational alert", zap.Error(err))
	}
}
