package domain

import (
	"time"
)

// CallStatus is the lifecycle state of a call as reported by the telephony
// provider. Statuses are ordered by rank so that stale or out-of-order
// callbacks can be rejected; see CallStatus.Rank.
type CallStatus string

const (
	CallStatusInitiated CallStatus = "initiated"
	CallStatusRinging   CallStatus = "ringing"
	CallStatusAnswered  CallStatus = "answered"
	CallStatusCompleted CallStatus = "completed"
	CallStatusFailed    CallStatus = "failed"
)

// Rank returns the ordinal used to reject out-of-order status updates.
// A call cannot un-ring: a callback carrying a lower rank than the stored
// status is ignored. failed shares the top rank with completed; it overrides
// any non-completed state and is itself terminal.
func (s CallStatus) Rank() int {
	switch s {
	case CallStatusInitiated:
		return 0
	case CallStatusRinging:
		return 1
	case CallStatusAnswered:
		return 2
	case CallStatusCompleted, CallStatusFailed:
		return 3
	default:
		return -1
	}
}

// Valid reports whether s is a known call status.
func (s CallStatus) Valid() bool {
	return s.Rank() >= 0
}

// Terminal reports whether no further status transitions are expected.
func (s CallStatus) Terminal() bool {
	return s == CallStatusCompleted || s == CallStatusFailed
}

// CallRecord is one outbound or inbound call attempt, keyed by the
// provider-assigned call SID. Recording and transcription fields only move
// from absent to present; they are never reset.
type CallRecord struct {
	ID         string        `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	CallSID    string        `json:"call_sid" gorm:"type:varchar(64);uniqueIndex:uni_call_records_call_sid;not null"`
	TenantID   string        `json:"tenant_id" gorm:"type:varchar(255);index;not null"`
	SubjectID  string        `json:"subject_id,omitempty" gorm:"type:varchar(255)"`
	Direction  CallDirection `json:"direction" gorm:"type:varchar(16);not null"`
	ToNumber   string        `json:"to_number" gorm:"type:varchar(32)"`
	FromNumber string        `json:"from_number" gorm:"type:varchar(32)"`

	Status          CallStatus `json:"status" gorm:"type:varchar(16);not null"`
	StatusRank      int        `json:"-" gorm:"not null;default:0"`
	DurationSeconds int        `json:"duration_seconds" gorm:"default:0"`

	RecordingSID      string `json:"recording_sid,omitempty" gorm:"type:varchar(64)"`
	RecordingURL      string `json:"recording_url,omitempty" gorm:"type:text"`
	RecordingDuration int    `json:"recording_duration,omitempty" gorm:"default:0"`

	TranscriptionText   string `json:"transcription_text,omitempty" gorm:"type:text"`
	TranscriptionStatus string `json:"transcription_status,omitempty" gorm:"type:varchar(32)"`

	Metadata  JSONB     `json:"metadata,omitempty" gorm:"type:jsonb"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName sets the table name for CallRecord.
func (CallRecord) TableName() string {
	return "call_records"
}

// HasRecording reports whether a recording-ready callback has landed.
func (c *CallRecord) HasRecording() bool {
	return c.RecordingSID != ""
}

// HasTranscription reports whether a transcription-ready callback has landed.
func (c *CallRecord) HasTranscription() bool {
	return c.TranscriptionStatus != ""
}

// CallTurn is one entry in a call's append-only conversation log.
type CallTurn struct {
	ID        string    `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	CallSID   string    `json:"call_sid" gorm:"type:varchar(64);index;not null"`
	Role      string    `json:"role" gorm:"type:varchar(32);not null"` // user, assistant, system
	Content   string    `json:"content" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName sets the table name for CallTurn.
func (CallTurn) TableName() string {
	return "call_turns"
}
