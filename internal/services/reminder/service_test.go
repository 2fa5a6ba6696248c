package reminder

import (
	"context"
	"testing"
	"time"

	"github.com/FrontdeskLabs/reception-voice-service/internal/domain"
	"github.com/FrontdeskLabs/reception-voice-service/internal/repository"
	"github.com/FrontdeskLabs/reception-voice-service/internal/services/dispatch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDispatcher records dispatched numbers and can fail specific ones.
type fakeDispatcher struct {
	placed  []string
	failFor map[string]error

	// onPlace runs after each dispatch, for cancellation tests.
	onPlace func()
}

func (d *fakeDispatcher) PlaceCall(ctx context.Context, tenantID, toNumber string, callCtx dispatch.CallContext) (*dispatch.PlacedCall, error) {
	if err, ok := d.failFor[toNumber]; ok {
		return nil, err
	}
	d.placed = append(d.placed, toNumber)
	if d.onPlace != nil {
		d.onPlace()
	}
	return &dispatch.PlacedCall{CallSID: "CA-" + toNumber}, nil
}

func futureAppointment(id, tenant, number string, start time.Time) *domain.Appointment {
	return &domain.Appointment{
		ID:          id,
		TenantID:    tenant,
		PhoneNumber: number,
		ServiceName: "checkup",
		StartTime:   start,
	}
}

func TestRunReportsEveryAppointment(t *testing.T) {
	now := time.Now().UTC()
	appointments := repository.NewMemoryAppointmentRepository()
	appointments.Appointments = []*domain.Appointment{
		futureAppointment("apt-1", "t1", "+13475551234", now.Add(time.Hour)),
		futureAppointment("apt-2", "t1", "not-a-number", now.Add(2*time.Hour)),
		futureAppointment("apt-3", "t1", "+12125550000", now.Add(3*time.Hour)),
	}
	dispatcher := &fakeDispatcher{failFor: map[string]error{
		"+12125550000": &domain.ProviderError{Op: "create call", Err: assert.AnError},
	}}
	svc := NewService(appointments, dispatcher, 0)

	run, err := svc.Run(context.Background(), "t1", now)
	require.NoError(t, err)

	assert.Equal(t, 3, run.Considered)
	require.Len(t, run.Outcomes, 3)
	assert.Equal(t, domain.ReminderOutcomeSuccess, run.Outcomes[0].Status)
	assert.Equal(t, "CA-+13475551234", run.Outcomes[0].CallSID)
	assert.Equal(t, domain.ReminderOutcomeSkipped, run.Outcomes[1].Status)
	assert.Equal(t, "no usable phone number", run.Outcomes[1].Detail)
	assert.Equal(t, domain.ReminderOutcomeFailed, run.Outcomes[2].Status)
}

func TestRunOneFailureDoesNotAbortTheBatch(t *testing.T) {
	now := time.Now().UTC()
	appointments := repository.NewMemoryAppointmentRepository()
	appointments.Appointments = []*domain.Appointment{
		futureAppointment("apt-1", "t1", "+13475550001", now.Add(time.Hour)),
		futureAppointment("apt-2", "t1", "+13475550002", now.Add(2*time.Hour)),
		futureAppointment("apt-3", "t1", "+13475550003", now.Add(3*time.Hour)),
	}
	dispatcher := &fakeDispatcher{failFor: map[string]error{
		"+13475550001": assert.AnError,
	}}
	svc := NewService(appointments, dispatcher, 0)

	run, err := svc.Run(context.Background(), "t1", now)
	require.NoError(t, err)

	require.Len(t, run.Outcomes, 3)
	assert.Equal(t, []string{"+13475550002", "+13475550003"}, dispatcher.placed)
}

func TestRunSkipsPastAndForeignAppointments(t *testing.T) {
	now := time.Now().UTC()
	appointments := repository.NewMemoryAppointmentRepository()
	appointments.Appointments = []*domain.Appointment{
		futureAppointment("apt-past", "t1", "+13475550001", now.Add(-time.Hour)),
		futureAppointment("apt-other", "t2", "+13475550002", now.Add(time.Hour)),
		futureAppointment("apt-due", "t1", "+13475550003", now.Add(time.Hour)),
	}
	svc := NewService(appointments, &fakeDispatcher{}, 0)

	run, err := svc.Run(context.Background(), "t1", now)
	require.NoError(t, err)

	assert.Equal(t, 1, run.Considered)
	require.Len(t, run.Outcomes, 1)
	assert.Equal(t, "apt-due", run.Outcomes[0].AppointmentID)
}

func TestRunStoreFailure(t *testing.T) {
	appointments := repository.NewMemoryAppointmentRepository()
	appointments.Err = assert.AnError
	svc := NewService(appointments, &fakeDispatcher{}, 0)

	_, err := svc.Run(context.Background(), "t1", time.Now().UTC())

	var persistenceErr *domain.PersistenceError
	assert.ErrorAs(t, err, &persistenceErr)
}

func TestRunCancellationStopsFurtherDispatches(t *testing.T) {
	now := time.Now().UTC()
	appointments := repository.NewMemoryAppointmentRepository()
	appointments.Appointments = []*domain.Appointment{
		futureAppointment("apt-1", "t1", "+13475550001", now.Add(time.Hour)),
		futureAppointment("apt-2", "t1", "+13475550002", now.Add(2*time.Hour)),
		futureAppointment("apt-3", "t1", "+13475550003", now.Add(3*time.Hour)),
	}

	ctx, cancel := context.WithCancel(context.Background())
	dispatcher := &fakeDispatcher{onPlace: cancel}
	svc := NewService(appointments, dispatcher, 0)

	run, err := svc.Run(ctx, "t1", now)
	require.NoError(t, err)

	// The first dispatch cancels the run; the remaining appointments are
	// neither dispatched nor reported.
	assert.Len(t, dispatcher.placed, 1)
	assert.Len(t, run.Outcomes, 1)
	assert.Equal(t, 3, run.Considered)
}

func TestRunEmptySchedule(t *testing.T) {
	svc := NewService(repository.NewMemoryAppointmentRepository(), &fakeDispatcher{}, 0)

	run, err := svc.Run(context.Background(), "t1", time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, 0, run.Considered)
	assert.Empty(t, run.Outcomes)
}
