package domain

import (
	"time"
)

// ReminderOutcomeStatus is the per-appointment result of a reminder run.
type ReminderOutcomeStatus string

const (
	ReminderOutcomeSuccess ReminderOutcomeStatus = "success"
	ReminderOutcomeSkipped ReminderOutcomeStatus = "skipped"
	ReminderOutcomeFailed  ReminderOutcomeStatus = "failed"
)

// ReminderOutcome records what happened for one appointment in a run.
type ReminderOutcome struct {
	AppointmentID string                `json:"appointment_id"`
	Status        ReminderOutcomeStatus `json:"status"`
	Detail        string                `json:"detail,omitempty"`
	CallSID       string                `json:"call_sid,omitempty"`
}

// ReminderRun is the full report of one reminder campaign batch. It is not
// persisted; callers get it back synchronously.
type ReminderRun struct {
	TenantID   string            `json:"tenant_id"`
	Considered int               `json:"considered"`
	Outcomes   []ReminderOutcome `json:"outcomes"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
}
