package domain

import (
	"time"
)

// Appointment is a scheduled customer appointment the reminder campaign calls
// about. The gateway only reads these; booking happens upstream.
type Appointment struct {
	ID           string    `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID     string    `json:"tenant_id" gorm:"type:varchar(255);index;not null"`
	CustomerID   string    `json:"customer_id,omitempty" gorm:"type:varchar(255)"`
	CustomerName string    `json:"customer_name" gorm:"type:varchar(255)"`
	PhoneNumber  string    `json:"phone_number" gorm:"type:varchar(32)"`
	ServiceName  string    `json:"service_name" gorm:"type:varchar(255)"`
	StartTime    time.Time `json:"start_time" gorm:"index;not null"`
	CreatedAt    time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt    time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName sets the table name for Appointment.
func (Appointment) TableName() string {
	return "appointments"
}
