package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/FrontdeskLabs/reception-voice-service/internal/domain"
	"github.com/google/uuid"
)

// In-memory repositories for tests and early development. They implement the
// same conditional-update semantics as the GORM repositories so the state
// machine can be exercised without a database.

// MemoryCallRepository is an in-memory CallRepository.
type MemoryCallRepository struct {
	mu      sync.Mutex
	records map[string]*domain.CallRecord // keyed by call SID
	turns   map[string][]*domain.CallTurn

	// FailWrites makes every mutation return a PersistenceError, for
	// exercising the webhook always-acknowledge path.
	FailWrites bool
}

// NewMemoryCallRepository creates an empty in-memory call repository.
func NewMemoryCallRepository() *MemoryCallRepository {
	return &MemoryCallRepository{
		records: make(map[string]*domain.CallRecord),
		turns:   make(map[string][]*domain.CallTurn),
	}
}

func (r *MemoryCallRepository) failure(op string) error {
	return &domain.PersistenceError{Op: op, Err: context.DeadlineExceeded}
}

// Create creates a new call record. A callback can beat this write and leave
// a minimal row for the SID; the identity and context columns are merged into
// it and the status machine columns stay untouched, mirroring the conflict
// clause in the GORM implementation.
func (r *MemoryCallRepository) Create(ctx context.Context, record *domain.CallRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailWrites {
		return r.failure("create")
	}
	if record.Status == "" {
		record.Status = domain.CallStatusInitiated
	}
	record.StatusRank = record.Status.Rank()
	now := time.Now()

	if existing, ok := r.records[record.CallSID]; ok {
		existing.TenantID = record.TenantID
		existing.SubjectID = record.SubjectID
		existing.Direction = record.Direction
		existing.ToNumber = record.ToNumber
		existing.FromNumber = record.FromNumber
		existing.Metadata = record.Metadata
		existing.UpdatedAt = now
		return nil
	}

	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	record.CreatedAt = now
	record.UpdatedAt = now
	clone := *record
	r.records[record.CallSID] = &clone
	return nil
}

// GetByCallSID retrieves a call record by SID.
func (r *MemoryCallRepository) GetByCallSID(ctx context.Context, callSID string) (*domain.CallRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[callSID]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *record
	return &clone, nil
}

// ListByTenant retrieves the most recent call records for a tenant.
func (r *MemoryCallRepository) ListByTenant(ctx context.Context, tenantID string, limit int) ([]*domain.CallRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.CallRecord, 0)
	for _, record := range r.records {
		if record.TenantID != tenantID {
			continue
		}
		clone := *record
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryCallRepository) ensureLocked(callSID, tenantID string) *domain.CallRecord {
	if record, ok := r.records[callSID]; ok {
		return record
	}
	record := &domain.CallRecord{
		ID:         uuid.NewString(),
		CallSID:    callSID,
		TenantID:   tenantID,
		Direction:  domain.DirectionInbound,
		Status:     domain.CallStatusInitiated,
		StatusRank: domain.CallStatusInitiated.Rank(),
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	r.records[callSID] = record
	return record
}

// ApplyStatus mirrors the GORM rank-guard semantics.
func (r *MemoryCallRepository) ApplyStatus(ctx context.Context, callSID, tenantID string, status domain.CallStatus, durationSeconds int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailWrites {
		return false, r.failure("apply status")
	}
	record := r.ensureLocked(callSID, tenantID)

	apply := false
	switch status {
	case domain.CallStatusFailed:
		apply = record.Status != domain.CallStatusCompleted
	case domain.CallStatusCompleted:
		apply = record.Status != domain.CallStatusFailed
	default:
		apply = record.StatusRank <= status.Rank()
	}
	if !apply {
		return false, nil
	}

	record.Status = status
	record.StatusRank = status.Rank()
	if durationSeconds > 0 {
		record.DurationSeconds = durationSeconds
	}
	record.UpdatedAt = time.Now()
	return true, nil
}

// SetRecording mirrors the GORM first-write-wins semantics.
func (r *MemoryCallRepository) SetRecording(ctx context.Context, callSID, tenantID, recordingSID, mediaURL string, durationSeconds int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailWrites {
		return false, r.failure("set recording")
	}
	record := r.ensureLocked(callSID, tenantID)
	if record.RecordingSID != "" && record.RecordingSID != recordingSID {
		return false, nil
	}
	record.RecordingSID = recordingSID
	record.RecordingURL = mediaURL
	record.RecordingDuration = durationSeconds
	record.UpdatedAt = time.Now()
	return true, nil
}

// SetTranscription mirrors the GORM absent-to-present semantics.
func (r *MemoryCallRepository) SetTranscription(ctx context.Context, callSID, tenantID, text, status string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailWrites {
		return false, r.failure("set transcription")
	}
	record := r.ensureLocked(callSID, tenantID)
	if record.TranscriptionStatus != "" {
		return false, nil
	}
	record.TranscriptionText = text
	record.TranscriptionStatus = status
	record.UpdatedAt = time.Now()
	return true, nil
}

// AppendTurn appends one conversation log entry.
func (r *MemoryCallRepository) AppendTurn(ctx context.Context, turn *domain.CallTurn) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailWrites {
		return r.failure("append turn")
	}
	if turn.ID == "" {
		turn.ID = uuid.NewString()
	}
	turn.CreatedAt = time.Now()
	clone := *turn
	r.turns[turn.CallSID] = append(r.turns[turn.CallSID], &clone)
	return nil
}

// ListTurns retrieves a call's conversation log in order.
func (r *MemoryCallRepository) ListTurns(ctx context.Context, callSID string) ([]*domain.CallTurn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.CallTurn, 0, len(r.turns[callSID]))
	for _, turn := range r.turns[callSID] {
		clone := *turn
		out = append(out, &clone)
	}
	return out, nil
}

// MemoryBindingRepository is an in-memory BindingRepository.
type MemoryBindingRepository struct {
	mu       sync.Mutex
	bindings map[string]*domain.TenantTelephonyBinding
}

// NewMemoryBindingRepository creates an empty in-memory binding repository.
func NewMemoryBindingRepository() *MemoryBindingRepository {
	return &MemoryBindingRepository{bindings: make(map[string]*domain.TenantTelephonyBinding)}
}

// GetByTenantID retrieves the binding for a tenant.
func (r *MemoryBindingRepository) GetByTenantID(ctx context.Context, tenantID string) (*domain.TenantTelephonyBinding, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	binding, ok := r.bindings[tenantID]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *binding
	return &clone, nil
}

// EnsureExists creates an empty binding row if none exists.
func (r *MemoryBindingRepository) EnsureExists(ctx context.Context, tenantID string) (*domain.TenantTelephonyBinding, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if binding, ok := r.bindings[tenantID]; ok {
		clone := *binding
		return &clone, nil
	}
	binding := &domain.TenantTelephonyBinding{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	r.bindings[tenantID] = binding
	clone := *binding
	return &clone, nil
}

// SetSubAccountIfEmpty writes the sub-account SID only if none is stored.
func (r *MemoryBindingRepository) SetSubAccountIfEmpty(ctx context.Context, tenantID, subAccountSID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	binding, ok := r.bindings[tenantID]
	if !ok || binding.SubAccountSID != "" {
		return false, nil
	}
	binding.SubAccountSID = subAccountSID
	binding.UpdatedAt = time.Now()
	return true, nil
}

// UpsertNumber stores the reserved number fields.
func (r *MemoryBindingRepository) UpsertNumber(ctx context.Context, tenantID, phoneNumber, phoneNumberSID, webhookURL string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	binding, ok := r.bindings[tenantID]
	if !ok {
		return ErrNotFound
	}
	binding.PhoneNumber = phoneNumber
	binding.PhoneNumberSID = phoneNumberSID
	binding.InboundWebhookURL = webhookURL
	binding.UpdatedAt = time.Now()
	return nil
}

// SetForwarding stores the forwarding configuration.
func (r *MemoryBindingRepository) SetForwarding(ctx context.Context, tenantID string, enabled bool, forwardingNumber string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	binding, ok := r.bindings[tenantID]
	if !ok {
		return ErrNotFound
	}
	if !enabled {
		forwardingNumber = ""
	}
	binding.ForwardingEnabled = enabled
	binding.ForwardingNumber = forwardingNumber
	binding.UpdatedAt = time.Now()
	return nil
}

// MemoryAppointmentRepository is an in-memory AppointmentRepository.
type MemoryAppointmentRepository struct {
	mu           sync.Mutex
	Appointments []*domain.Appointment

	// Err makes ListUpcoming fail, for exercising the store-unavailable path.
	Err error
}

// NewMemoryAppointmentRepository creates an empty in-memory appointment repository.
func NewMemoryAppointmentRepository() *MemoryAppointmentRepository {
	return &MemoryAppointmentRepository{}
}

// ListUpcoming retrieves appointments at or after the given time for the tenant.
func (r *MemoryAppointmentRepository) ListUpcoming(ctx context.Context, tenantID string, from time.Time) ([]*domain.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	out := make([]*domain.Appointment, 0)
	for _, appt := range r.Appointments {
		if appt.TenantID != tenantID || appt.StartTime.Before(from) {
			continue
		}
		clone := *appt
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}
