// Package reminder runs appointment reminder campaigns: one outbound call per
// due appointment, with pacing between dispatches and per-item failure
// isolation. A bad appointment never aborts the batch.
package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/FrontdeskLabs/reception-voice-service/internal/domain"
	"github.com/FrontdeskLabs/reception-voice-service/internal/repository"
	"github.com/FrontdeskLabs/reception-voice-service/internal/services/dispatch"
	"github.com/FrontdeskLabs/reception-voice-service/pkg/logger"
	"github.com/FrontdeskLabs/reception-voice-service/pkg/phone"
	"go.uber.org/zap"
)

// Dispatcher is the slice of the call dispatcher the runner needs.
type Dispatcher interface {
	PlaceCall(ctx context.Context, tenantID, toNumber string, callCtx dispatch.CallContext) (*dispatch.PlacedCall, error)
}

// Service is the reminder campaign runner.
type Service struct {
	appointments repository.AppointmentRepository
	dispatcher   Dispatcher

	// pacing is the minimum delay between successive dispatches. Zero
	// disables pacing (tests).
	pacing time.Duration
}

// NewService creates a reminder campaign runner.
func NewService(appointments repository.AppointmentRepository, dispatcher Dispatcher, pacing time.Duration) *Service {
	return &Service{
		appointments: appointments,
		dispatcher:   dispatcher,
		pacing:       pacing,
	}
}

// Run dispatches one reminder call per upcoming appointment and returns the
// full per-appointment report. Only a total inability to read the appointment
// set is an error; individual failures are isolated into the report.
// Cancelling ctx stops further dispatches promptly without corrupting the
// outcomes already recorded.
func (s *Service) Run(ctx context.Context, tenantID string, now time.Time) (*domain.ReminderRun, error) {
	appointments, err := s.appointments.ListUpcoming(ctx, tenantID, now)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "list upcoming appointments", Err: err}
	}

	run := &domain.ReminderRun{
		TenantID:   tenantID,
		Considered: len(appointments),
		Outcomes:   make([]domain.ReminderOutcome, 0, len(appointments)),
		StartedAt:  time.Now().UTC(),
	}

	dispatched := false
	for _, appt := range appointments {
		if ctx.Err() != nil {
			break
		}

		number := phone.Normalize(appt.PhoneNumber)
		if !phone.IsE164(number) {
			run.Outcomes = append(run.Outcomes, domain.ReminderOutcome{
				AppointmentID: appt.ID,
				Status:        domain.ReminderOutcomeSkipped,
				Detail:        "no usable phone number",
			})
			continue
		}

		// Pace between dispatches, not before the first one.
		if dispatched && s.pacing > 0 {
			if !s.sleep(ctx) {
				break
			}
		}
		dispatched = true

		placed, err := s.dispatcher.PlaceCall(ctx, tenantID, number, dispatch.CallContext{
			SubjectID: appt.CustomerID,
			Extra: map[string]string{
				"reminder":         "true",
				"appointment_id":   appt.ID,
				"appointment_time": appt.StartTime.Format(time.RFC3339),
				"service":          appt.ServiceName,
			},
		})
		if err != nil {
			run.Outcomes = append(run.Outcomes, domain.ReminderOutcome{
				AppointmentID: appt.ID,
				Status:        domain.ReminderOutcomeFailed,
				Detail:        err.Error(),
			})
			continue
		}

		run.Outcomes = append(run.Outcomes, domain.ReminderOutcome{
			AppointmentID: appt.ID,
			Status:        domain.ReminderOutcomeSuccess,
			Detail:        fmt.Sprintf("reminder call placed for %s", appt.StartTime.Format(time.RFC1123)),
			CallSID:       placed.CallSID,
		})
	}

	run.FinishedAt = time.Now().UTC()
	logger.Base().Info("reminder run finished",
		zap.String("tenant_id", tenantID),
		zap.Int("considered", run.Considered),
		zap.Int("reported", len(run.Outcomes)),
	)
	return run, nil
}

// sleep waits out the pacing delay; false means the run was cancelled.
func (s *Service) sleep(ctx context.Context) bool {
	timer := time.NewTimer(s.pacing)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
