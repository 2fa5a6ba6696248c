package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/FrontdeskLabs/reception-voice-service/internal/domain"
	"gorm.io/gorm"
)

// GormAppointmentRepository implements AppointmentRepository using GORM.
type GormAppointmentRepository struct {
	db *gorm.DB
}

// NewGormAppointmentRepository creates a new GORM appointment repository.
func NewGormAppointmentRepository(db *gorm.DB) *GormAppointmentRepository {
	return &GormAppointmentRepository{db: db}
}

// ListUpcoming retrieves all appointments for the tenant starting at or after
// the given time, soonest first.
func (r *GormAppointmentRepository) ListUpcoming(ctx context.Context, tenantID string, from time.Time) ([]*domain.Appointment, error) {
	var appointments []*domain.Appointment
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND start_time >= ?", tenantID, from).
		Order("start_time ASC").
		Find(&appointments).Error; err != nil {
		return nil, fmt.Errorf("failed to list upcoming appointments: %w", err)
	}
	return appointments, nil
}
