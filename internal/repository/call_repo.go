package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/FrontdeskLabs/reception-voice-service/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormCallRepository implements CallRepository using GORM.
//
// Status, recording and transcription writes are single conditional UPDATE
// statements guarded by the stored state, so concurrent or redelivered
// provider callbacks resolve at the database rather than in application code.
type GormCallRepository struct {
	db *gorm.DB
}

// NewGormCallRepository creates a new GORM call repository.
func NewGormCallRepository(db *gorm.DB) *GormCallRepository {
	return &GormCallRepository{db: db}
}

// Create persists the dispatcher's call record. A status callback can land
// before this write, in which case a minimal row for the SID already exists;
// the conflict clause then fills in the identity and context columns while
// leaving the status machine columns alone, so an already-applied status is
// never reset and the dispatcher never fails on the unique index.
func (r *GormCallRepository) Create(ctx context.Context, record *domain.CallRecord) error {
	if record.Status == "" {
		record.Status = domain.CallStatusInitiated
	}
	record.StatusRank = record.Status.Rank()

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "call_sid"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"tenant_id", "subject_id", "direction", "to_number", "from_number", "metadata",
			}),
		}).
		Create(record).Error
	if err != nil {
		return fmt.Errorf("failed to create call record: %w", err)
	}
	return nil
}

// GetByCallSID retrieves a call record by its provider-assigned SID.
func (r *GormCallRepository) GetByCallSID(ctx context.Context, callSID string) (*domain.CallRecord, error) {
	var record domain.CallRecord
	if err := r.db.WithContext(ctx).First(&record, "call_sid = ?", callSID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get call record: %w", err)
	}
	return &record, nil
}

// ListByTenant retrieves the most recent call records for a tenant.
func (r *GormCallRepository) ListByTenant(ctx context.Context, tenantID string, limit int) ([]*domain.CallRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var records []*domain.CallRecord
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at DESC").
		Limit(limit).
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list call records: %w", err)
	}
	return records, nil
}

// ensureRecord inserts a minimal record for the call SID if none exists.
// Callbacks may race the dispatcher's synchronous write or belong to inbound
// calls this process never placed; either way they need a row to land on.
func (r *GormCallRepository) ensureRecord(ctx context.Context, callSID, tenantID string) error {
	record := &domain.CallRecord{
		CallSID:    callSID,
		TenantID:   tenantID,
		Direction:  domain.DirectionInbound,
		Status:     domain.CallStatusInitiated,
		StatusRank: domain.CallStatusInitiated.Rank(),
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "call_sid"}},
			DoNothing: true,
		}).
		Create(record).Error
	if err != nil {
		return fmt.Errorf("failed to upsert minimal call record: %w", err)
	}
	return nil
}

// ApplyStatus applies a status callback. The guard clauses encode the rank
// table: a lower-ranked status never overwrites a higher one, failed
// overrides everything except completed, and completed never overrides
// failed. Equal-rank redelivery is applied again with identical values, which
// keeps the operation idempotent.
func (r *GormCallRepository) ApplyStatus(ctx context.Context, callSID, tenantID string, status domain.CallStatus, durationSeconds int) (bool, error) {
	if !status.Valid() {
		return false, fmt.Errorf("unknown call status: %s", status)
	}

	if err := r.ensureRecord(ctx, callSID, tenantID); err != nil {
		return false, err
	}

	updates := map[string]interface{}{
		"status":      status,
		"status_rank": status.Rank(),
	}
	if durationSeconds > 0 {
		updates["duration_seconds"] = durationSeconds
	}

	query := r.db.WithContext(ctx).
		Model(&domain.CallRecord{}).
		Where("call_sid = ?", callSID)

	switch status {
	case domain.CallStatusFailed:
		query = query.Where("status <> ?", domain.CallStatusCompleted)
	case domain.CallStatusCompleted:
		query = query.Where("status <> ?", domain.CallStatusFailed)
	default:
		query = query.Where("status_rank <= ?", status.Rank())
	}

	result := query.Updates(updates)
	if result.Error != nil {
		return false, fmt.Errorf("failed to apply call status: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// SetRecording attaches recording artifacts, first-write-wins. The guard
// accepts the empty slot or the same recording SID, so redelivery of an
// identical payload is a harmless re-write of the same values.
func (r *GormCallRepository) SetRecording(ctx context.Context, callSID, tenantID, recordingSID, mediaURL string, durationSeconds int) (bool, error) {
	if err := r.ensureRecord(ctx, callSID, tenantID); err != nil {
		return false, err
	}

	result := r.db.WithContext(ctx).
		Model(&domain.CallRecord{}).
		Where("call_sid = ? AND (recording_sid = '' OR recording_sid IS NULL OR recording_sid = ?)", callSID, recordingSID).
		Updates(map[string]interface{}{
			"recording_sid":      recordingSID,
			"recording_url":      mediaURL,
			"recording_duration": durationSeconds,
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to set call recording: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// SetTranscription attaches the transcription result, absent-to-present only.
func (r *GormCallRepository) SetTranscription(ctx context.Context, callSID, tenantID, text, status string) (bool, error) {
	if err := r.ensureRecord(ctx, callSID, tenantID); err != nil {
		return false, err
	}

	result := r.db.WithContext(ctx).
		Model(&domain.CallRecord{}).
		Where("call_sid = ? AND (transcription_status = '' OR transcription_status IS NULL)", callSID).
		Updates(map[string]interface{}{
			"transcription_text":   text,
			"transcription_status": status,
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to set call transcription: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// AppendTurn appends one entry to a call's conversation log.
func (r *GormCallRepository) AppendTurn(ctx context.Context, turn *domain.CallTurn) error {
	if err := r.db.WithContext(ctx).Create(turn).Error; err != nil {
		return fmt.Errorf("failed to append call turn: %w", err)
	}
	return nil
}

// ListTurns retrieves a call's conversation log in order.
func (r *GormCallRepository) ListTurns(ctx context.Context, callSID string) ([]*domain.CallTurn, error) {
	var turns []*domain.CallTurn
	if err := r.db.WithContext(ctx).
		Where("call_sid = ?", callSID).
		Order("created_at ASC").
		Find(&turns).Error; err != nil {
		return nil, fmt.Errorf("failed to list call turns: %w", err)
	}
	return turns, nil
}
