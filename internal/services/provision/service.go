// Package provision manages per-tenant telephony resources: the lazily
// created provider sub-account, number search and reservation, and the
// call-forwarding configuration.
package provision

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/FrontdeskLabs/reception-voice-service/internal/config"
	"github.com/FrontdeskLabs/reception-voice-service/internal/domain"
	"github.com/FrontdeskLabs/reception-voice-service/internal/repository"
	"github.com/FrontdeskLabs/reception-voice-service/internal/telephony"
	"github.com/FrontdeskLabs/reception-voice-service/pkg/logger"
	"github.com/FrontdeskLabs/reception-voice-service/pkg/phone"
	"github.com/FrontdeskLabs/reception-voice-service/pkg/redis"
	"go.uber.org/zap"
)

// provisionLockTTL bounds how long a cross-process provision lock can be held
// if the holder dies.
const provisionLockTTL = 30 * time.Second

// bindingCacheTTL keeps binding reads off the database on the inbound webhook
// hot path. Writes invalidate eagerly, so a short TTL is only a backstop.
const bindingCacheTTL = 60 * time.Second

// Service is the tenant telephony provisioner.
type Service struct {
	cfg      *config.Config
	bindings repository.BindingRepository
	provider telephony.Provider
	redis    *redis.Service // optional cross-process lock backstop

	mu    sync.Mutex
	locks map[string]*sync.Mutex // per-tenant critical section
}

// NewService creates a tenant telephony provisioner. redisSvc may be nil; the
// store-level conditional write remains the final uniqueness guarantee.
func NewService(cfg *config.Config, bindings repository.BindingRepository, provider telephony.Provider, redisSvc *redis.Service) *Service {
	return &Service{
		cfg:      cfg,
		bindings: bindings,
		provider: provider,
		redis:    redisSvc,
		locks:    make(map[string]*sync.Mutex),
	}
}

// tenantLock returns the mutex serializing provisioning for one tenant.
func (s *Service) tenantLock(tenantID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[tenantID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[tenantID] = lock
	}
	return lock
}

// EnsureSubAccount returns the tenant's sub-account SID, creating it lazily
// at most once. Concurrent first calls serialize on a per-tenant lock; the
// conditional store write is the backstop if another process won anyway.
func (s *Service) EnsureSubAccount(ctx context.Context, tenantID string) (string, error) {
	if tenantID == "" {
		return "", &domain.ValidationError{Field: "tenant_id", Reason: "required"}
	}

	binding, err := s.bindings.EnsureExists(ctx, tenantID)
	if err != nil {
		return "", &domain.PersistenceError{Op: "ensure tenant binding", Err: err}
	}
	if binding.SubAccountSID != "" {
		return binding.SubAccountSID, nil
	}

	lock := s.tenantLock(tenantID)
	lock.Lock()
	defer lock.Unlock()

	// Re-check under the lock: another goroutine may have finished first.
	binding, err = s.bindings.GetByTenantID(ctx, tenantID)
	if err != nil {
		return "", &domain.PersistenceError{Op: "load tenant binding", Err: err}
	}
	if binding.SubAccountSID != "" {
		return binding.SubAccountSID, nil
	}

	release := s.acquireCrossProcessLock(ctx, tenantID)
	defer release()

	subAccountSID, err := s.provider.CreateSubAccount(ctx, fmt.Sprintf("tenant-%s", tenantID))
	if err != nil {
		return "", err
	}

	won, err := s.bindings.SetSubAccountIfEmpty(ctx, tenantID, subAccountSID)
	if err != nil {
		return "", &domain.PersistenceError{Op: "store sub-account", Err: err}
	}
	s.invalidateBinding(ctx, tenantID)
	if !won {
		// Another process created one between our read and write. Use the
		// stored SID; the orphaned sub-account is reported for cleanup.
		logger.Base().Warn("lost sub-account creation race, orphan created",
			zap.String("tenant_id", tenantID),
			zap.String("orphan_sid", subAccountSID),
		)
		binding, err = s.bindings.GetByTenantID(ctx, tenantID)
		if err != nil {
			return "", &domain.PersistenceError{Op: "load tenant binding", Err: err}
		}
		return binding.SubAccountSID, nil
	}

	logger.Base().Info("tenant sub-account created",
		zap.String("tenant_id", tenantID),
		zap.String("sub_account_sid", subAccountSID),
	)
	return subAccountSID, nil
}

// acquireCrossProcessLock takes a best-effort Redis lock so two pods do not
// both call the provider. Redis being down never blocks provisioning; the
// store write stays authoritative.
func (s *Service) acquireCrossProcessLock(ctx context.Context, tenantID string) func() {
	if s.redis == nil {
		return func() {}
	}
	key := s.redis.GenerateKey(redis.PROVISION_LOCK, tenantID)
	ok, err := s.redis.SetNX(ctx, key, "1", provisionLockTTL)
	if err != nil {
		logger.Base().Warn("provision lock unavailable, relying on store constraint", zap.Error(err))
		return func() {}
	}
	if !ok {
		// Holder is mid-creation elsewhere; wait out the TTL window briefly
		// and proceed, the conditional write resolves the outcome.
		logger.Base().Warn("provision lock held elsewhere", zap.String("tenant_id", tenantID))
		return func() {}
	}
	return func() {
		if err := s.redis.DelValue(ctx, key); err != nil {
			logger.Base().Warn("failed to release provision lock", zap.Error(err))
		}
	}
}

// SearchNumbers lists purchasable numbers in the tenant's sub-account. The
// area code must be exactly three digits; the limit is clamped to the
// configured range.
func (s *Service) SearchNumbers(ctx context.Context, tenantID, areaCode string, limit int) ([]telephony.NumberCandidate, error) {
	if !phone.IsAreaCode(areaCode) {
		return nil, &domain.ValidationError{Field: "area_code", Reason: "must be exactly three digits"}
	}
	if limit < s.cfg.NumberSearchMin {
		limit = s.cfg.NumberSearchMin
	}
	if limit > s.cfg.NumberSearchMax {
		limit = s.cfg.NumberSearchMax
	}

	subAccountSID, err := s.EnsureSubAccount(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	return s.provider.SearchAvailableNumbers(ctx, subAccountSID, areaCode, limit)
}

// ReserveNumber purchases a number in the tenant's sub-account, binds it to
// the tenant's deterministic inbound webhook URL and persists the binding.
// Validation happens before any provider call. Calling again with a different
// number is a deliberate re-provisioning and overwrites the binding.
func (s *Service) ReserveNumber(ctx context.Context, tenantID, phoneNumber string) (*domain.TenantTelephonyBinding, error) {
	phoneNumber = phone.Normalize(phoneNumber)
	if !phone.IsE164(phoneNumber) {
		return nil, &domain.ValidationError{Field: "phone_number", Reason: "must be E.164, e.g. +13475551234"}
	}

	subAccountSID, err := s.EnsureSubAccount(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	binding, err := s.bindings.GetByTenantID(ctx, tenantID)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "load tenant binding", Err: err}
	}
	if binding.PhoneNumber == phoneNumber {
		// Idempotent re-reservation of the number already held.
		return binding, nil
	}

	webhookURL := s.InboundWebhookURL(tenantID)
	purchased, err := s.provider.PurchaseNumber(ctx, subAccountSID, phoneNumber, webhookURL)
	if err != nil {
		return nil, err
	}

	if err := s.bindings.UpsertNumber(ctx, tenantID, purchased.PhoneNumber, purchased.PhoneNumberSID, webhookURL); err != nil {
		return nil, &domain.PersistenceError{Op: "store tenant number", Err: err}
	}
	s.invalidateBinding(ctx, tenantID)

	logger.Base().Info("tenant number reserved",
		zap.String("tenant_id", tenantID),
		zap.String("phone_number", purchased.PhoneNumber),
	)
	return s.bindings.GetByTenantID(ctx, tenantID)
}

// SetForwarding updates the forwarding configuration. Enabling requires a
// valid E.164 forwarding number before any persistence; disabling clears the
// stored number.
func (s *Service) SetForwarding(ctx context.Context, tenantID string, enabled bool, forwardingNumber string) (*domain.TenantTelephonyBinding, error) {
	if enabled {
		forwardingNumber = phone.Normalize(forwardingNumber)
		if !phone.IsE164(forwardingNumber) {
			return nil, &domain.ValidationError{Field: "forwarding_number", Reason: "must be E.164, e.g. +13475551234"}
		}
	}

	if _, err := s.bindings.EnsureExists(ctx, tenantID); err != nil {
		return nil, &domain.PersistenceError{Op: "ensure tenant binding", Err: err}
	}
	if err := s.bindings.SetForwarding(ctx, tenantID, enabled, forwardingNumber); err != nil {
		return nil, &domain.PersistenceError{Op: "store forwarding", Err: err}
	}
	s.invalidateBinding(ctx, tenantID)
	return s.bindings.GetByTenantID(ctx, tenantID)
}

// GetBinding returns the tenant's binding, or NotConnectedError when the
// tenant has never been provisioned. Every inbound call resolves a binding,
// so reads go through a short-lived Redis cache when one is configured.
func (s *Service) GetBinding(ctx context.Context, tenantID string) (*domain.TenantTelephonyBinding, error) {
	if binding := s.cachedBinding(ctx, tenantID); binding != nil {
		return binding, nil
	}
	binding, err := s.bindings.GetByTenantID(ctx, tenantID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &domain.NotConnectedError{TenantID: tenantID, Integration: "telephony"}
		}
		return nil, &domain.PersistenceError{Op: "load tenant binding", Err: err}
	}
	s.cacheBinding(ctx, binding)
	return binding, nil
}

func (s *Service) cachedBinding(ctx context.Context, tenantID string) *domain.TenantTelephonyBinding {
	if s.redis == nil {
		return nil
	}
	raw, err := s.redis.GetValue(ctx, s.redis.GenerateKey(redis.TENANT_BINDING, tenantID))
	if err != nil {
		if !errors.Is(err, redis.ErrKeyNotExist) {
			logger.Base().Warn("tenant binding cache read failed", zap.Error(err))
		}
		return nil
	}
	var binding domain.TenantTelephonyBinding
	if err := json.Unmarshal([]byte(raw), &binding); err != nil {
		return nil
	}
	return &binding
}

func (s *Service) cacheBinding(ctx context.Context, binding *domain.TenantTelephonyBinding) {
	if s.redis == nil || binding == nil {
		return
	}
	raw, err := json.Marshal(binding)
	if err != nil {
		return
	}
	key := s.redis.GenerateKey(redis.TENANT_BINDING, binding.TenantID)
	if err := s.redis.SetValue(ctx, key, string(raw), bindingCacheTTL); err != nil {
		logger.Base().Warn("failed to cache tenant binding", zap.Error(err))
	}
}

func (s *Service) invalidateBinding(ctx context.Context, tenantID string) {
	if s.redis == nil {
		return
	}
	key := s.redis.GenerateKey(redis.TENANT_BINDING, tenantID)
	if err := s.redis.DelValue(ctx, key); err != nil {
		logger.Base().Warn("failed to invalidate cached tenant binding", zap.Error(err))
	}
}

// InboundWebhookURL is the deterministic per-tenant inbound voice webhook URL.
func (s *Service) InboundWebhookURL(tenantID string) string {
	base := strings.TrimRight(s.cfg.PublicBaseURL, "/")
	return fmt.Sprintf("%s/webhooks/voice/%s/inbound", base, url.PathEscape(tenantID))
}

// RouteInbound decides what to do with an inbound call: a pure branch over
// the binding's forwarding fields. Forwarding enabled connects the caller to
// the forwarding number; otherwise the call goes to the conversational AI
// stream.
func RouteInbound(binding *domain.TenantTelephonyBinding, streamURL string) telephony.InboundRoute {
	if binding != nil && binding.ForwardingEnabled && binding.ForwardingNumber != "" {
		return telephony.InboundRoute{
			Action: telephony.InboundActionForward,
			Number: binding.ForwardingNumber,
		}
	}
	return telephony.InboundRoute{
		Action:    telephony.InboundActionStream,
		StreamURL: streamURL,
	}
}
