package domain

import (
	"time"
)

// TenantTelephonyBinding is the per-tenant telephony resource set: the
// provider sub-account, the reserved inbound number and the call-forwarding
// configuration. One row per tenant; the sub-account is created lazily and at
// most once.
type TenantTelephonyBinding struct {
	ID       string `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID string `json:"tenant_id" gorm:"type:varchar(255);uniqueIndex:uni_tenant_telephony_bindings_tenant_id;not null"`

	SubAccountSID string `json:"sub_account_sid,omitempty" gorm:"type:varchar(64)"`

	PhoneNumber       string `json:"phone_number,omitempty" gorm:"type:varchar(32)"`
	PhoneNumberSID    string `json:"phone_number_sid,omitempty" gorm:"type:varchar(64)"`
	InboundWebhookURL string `json:"inbound_webhook_url,omitempty" gorm:"type:text"`

	ForwardingEnabled bool   `json:"forwarding_enabled" gorm:"default:false"`
	ForwardingNumber  string `json:"forwarding_number,omitempty" gorm:"type:varchar(32)"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName sets the table name for TenantTelephonyBinding.
func (TenantTelephonyBinding) TableName() string {
	return "tenant_telephony_bindings"
}

// Provisioned reports whether a number has been reserved for the tenant.
func (b *TenantTelephonyBinding) Provisioned() bool {
	return b.PhoneNumber != "" && b.PhoneNumberSID != ""
}
