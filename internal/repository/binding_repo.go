package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/FrontdeskLabs/reception-voice-service/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormBindingRepository implements BindingRepository using GORM. The unique
// index on tenant_id together with conditional updates gives the at-most-one
// sub-account guarantee even if two processes race past the in-process lock.
type GormBindingRepository struct {
	db *gorm.DB
}

// NewGormBindingRepository creates a new GORM binding repository.
func NewGormBindingRepository(db *gorm.DB) *GormBindingRepository {
	return &GormBindingRepository{db: db}
}

// GetByTenantID retrieves the binding for a tenant.
func (r *GormBindingRepository) GetByTenantID(ctx context.Context, tenantID string) (*domain.TenantTelephonyBinding, error) {
	var binding domain.TenantTelephonyBinding
	if err := r.db.WithContext(ctx).First(&binding, "tenant_id = ?", tenantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get tenant telephony binding: %w", err)
	}
	return &binding, nil
}

// EnsureExists creates an empty binding row for the tenant if none exists and
// returns the current row. The DoNothing upsert makes concurrent first calls
// converge on a single row.
func (r *GormBindingRepository) EnsureExists(ctx context.Context, tenantID string) (*domain.TenantTelephonyBinding, error) {
	binding := &domain.TenantTelephonyBinding{TenantID: tenantID}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}},
			DoNothing: true,
		}).
		Create(binding).Error
	if err != nil {
		return nil, fmt.Errorf("failed to ensure tenant telephony binding: %w", err)
	}
	return r.GetByTenantID(ctx, tenantID)
}

// SetSubAccountIfEmpty writes the sub-account SID only if none is stored and
// reports whether this write won the race.
func (r *GormBindingRepository) SetSubAccountIfEmpty(ctx context.Context, tenantID, subAccountSID string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&domain.TenantTelephonyBinding{}).
		Where("tenant_id = ? AND (sub_account_sid = '' OR sub_account_sid IS NULL)", tenantID).
		Update("sub_account_sid", subAccountSID)
	if result.Error != nil {
		return false, fmt.Errorf("failed to set sub-account: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// UpsertNumber stores the reserved number and its webhook URL. Overwriting an
// existing number is a deliberate re-provisioning.
func (r *GormBindingRepository) UpsertNumber(ctx context.Context, tenantID, phoneNumber, phoneNumberSID, webhookURL string) error {
	result := r.db.WithContext(ctx).
		Model(&domain.TenantTelephonyBinding{}).
		Where("tenant_id = ?", tenantID).
		Updates(map[string]interface{}{
			"phone_number":        phoneNumber,
			"phone_number_sid":    phoneNumberSID,
			"inbound_webhook_url": webhookURL,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to upsert tenant number: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetForwarding stores the forwarding configuration. Disabling always clears
// the forwarding number.
func (r *GormBindingRepository) SetForwarding(ctx context.Context, tenantID string, enabled bool, forwardingNumber string) error {
	if !enabled {
		forwardingNumber = ""
	}
	result := r.db.WithContext(ctx).
		Model(&domain.TenantTelephonyBinding{}).
		Where("tenant_id = ?", tenantID).
		Updates(map[string]interface{}{
			"forwarding_enabled": enabled,
			"forwarding_number":  forwardingNumber,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to set forwarding: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
