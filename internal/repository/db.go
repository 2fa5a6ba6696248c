package repository

import (
	"context"
	"time"

	"github.com/FrontdeskLabs/reception-voice-service/internal/domain"
	"gorm.io/gorm"
)

// CallRepository persists call records and their append-only conversation
// turns. All mutations are atomic per-record conditional updates so that
// concurrently delivered (or redelivered) provider callbacks cannot lose
// writes; read-modify-write sequences are deliberately absent.
type CallRepository interface {
	Create(ctx context.Context, record *domain.CallRecord) error
	GetByCallSID(ctx context.Context, callSID string) (*domain.CallRecord, error)
	ListByTenant(ctx context.Context, tenantID string, limit int) ([]*domain.CallRecord, error)

	// ApplyStatus upserts a minimal record if the call SID is unknown, then
	// applies the status only if it does not rank below the stored one.
	// failed overrides anything but completed; completed never overrides
	// failed. Returns whether the update was applied.
	ApplyStatus(ctx context.Context, callSID, tenantID string, status domain.CallStatus, durationSeconds int) (bool, error)

	// SetRecording attaches recording artifacts, first-write-wins. A repeat
	// delivery of the same recording is a no-op, not an error.
	SetRecording(ctx context.Context, callSID, tenantID, recordingSID, mediaURL string, durationSeconds int) (bool, error)

	// SetTranscription attaches the transcription, absent-to-present only.
	SetTranscription(ctx context.Context, callSID, tenantID, text, status string) (bool, error)

	AppendTurn(ctx context.Context, turn *domain.CallTurn) error
	ListTurns(ctx context.Context, callSID string) ([]*domain.CallTurn, error)
}

// BindingRepository persists per-tenant telephony bindings.
type BindingRepository interface {
	GetByTenantID(ctx context.Context, tenantID string) (*domain.TenantTelephonyBinding, error)

	// EnsureExists creates an empty binding row for the tenant if none
	// exists and returns the current row either way. Safe under concurrent
	// first use.
	EnsureExists(ctx context.Context, tenantID string) (*domain.TenantTelephonyBinding, error)

	// SetSubAccountIfEmpty writes the sub-account SID only if none is
	// stored yet and reports whether the write won. This is the store-level
	// uniqueness backstop for lazy sub-account creation.
	SetSubAccountIfEmpty(ctx context.Context, tenantID, subAccountSID string) (bool, error)

	// UpsertNumber stores the reserved number, its SID and the inbound
	// webhook URL. A second call overwrites deliberately (re-provisioning).
	UpsertNumber(ctx context.Context, tenantID, phoneNumber, phoneNumberSID, webhookURL string) error

	SetForwarding(ctx context.Context, tenantID string, enabled bool, forwardingNumber string) error
}

// AppointmentRepository reads the appointments the reminder campaign calls about.
type AppointmentRepository interface {
	ListUpcoming(ctx context.Context, tenantID string, from time.Time) ([]*domain.Appointment, error)
}

// RepositoryManager combines all repositories behind one construction point.
type RepositoryManager interface {
	Calls() CallRepository
	Bindings() BindingRepository
	Appointments() AppointmentRepository

	Ping(ctx context.Context) error
	Close() error
}

// GormRepositoryManager implements RepositoryManager using GORM.
type GormRepositoryManager struct {
	db              *gorm.DB
	callRepo        *GormCallRepository
	bindingRepo     *GormBindingRepository
	appointmentRepo *GormAppointmentRepository
}

// NewGormRepositoryManager creates a repository manager over one database
// connection.
func NewGormRepositoryManager(db *gorm.DB) *GormRepositoryManager {
	return &GormRepositoryManager{
		db:              db,
		callRepo:        NewGormCallRepository(db),
		bindingRepo:     NewGormBindingRepository(db),
		appointmentRepo: NewGormAppointmentRepository(db),
	}
}

// Calls returns the call repository.
func (m *GormRepositoryManager) Calls() CallRepository {
	return m.callRepo
}

// Bindings returns the binding repository.
func (m *GormRepositoryManager) Bindings() BindingRepository {
	return m.bindingRepo
}

// Appointments returns the appointment repository.
func (m *GormRepositoryManager) Appointments() AppointmentRepository {
	return m.appointmentRepo
}

// Ping checks the database connection.
func (m *GormRepositoryManager) Ping(ctx context.Context) error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database connection.
func (m *GormRepositoryManager) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
