package repository

import (
	"context"
	"sync"
	"testing"

	"github.com/FrontdeskLabs/reception-voice-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyStatusConcurrentDeliveriesConverge(t *testing.T) {
	repo := NewMemoryCallRepository()
	statuses := []domain.CallStatus{
		domain.CallStatusInitiated,
		domain.CallStatusRinging,
		domain.CallStatusAnswered,
		domain.CallStatusCompleted,
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		for _, status := range statuses {
			wg.Add(1)
			go func(status domain.CallStatus) {
				defer wg.Done()
				_, err := repo.ApplyStatus(context.Background(), "CA1", "t1", status, 0)
				assert.NoError(t, err)
			}(status)
		}
	}
	wg.Wait()

	record, err := repo.GetByCallSID(context.Background(), "CA1")
	require.NoError(t, err)
	assert.Equal(t, domain.CallStatusCompleted, record.Status)
}

func TestCreateAfterStatusCallbackKeepsAppliedStatus(t *testing.T) {
	repo := NewMemoryCallRepository()

	// A ringing callback lands before the dispatcher's synchronous write.
	_, err := repo.ApplyStatus(context.Background(), "CA1", "t1", domain.CallStatusRinging, 0)
	require.NoError(t, err)

	err = repo.Create(context.Background(), &domain.CallRecord{
		CallSID:    "CA1",
		TenantID:   "t1",
		SubjectID:  "cust-9",
		Direction:  domain.DirectionOutbound,
		ToNumber:   "+13475551234",
		FromNumber: "+12125550000",
		Status:     domain.CallStatusInitiated,
	})
	require.NoError(t, err)

	record, err := repo.GetByCallSID(context.Background(), "CA1")
	require.NoError(t, err)
	// Identity and context columns are filled in, the status machine is not reset.
	assert.Equal(t, domain.CallStatusRinging, record.Status)
	assert.Equal(t, domain.CallStatusRinging.Rank(), record.StatusRank)
	assert.Equal(t, domain.DirectionOutbound, record.Direction)
	assert.Equal(t, "cust-9", record.SubjectID)
	assert.Equal(t, "+13475551234", record.ToNumber)
}

func TestApplyStatusDurationOnlyOnPositive(t *testing.T) {
	repo := NewMemoryCallRepository()

	_, err := repo.ApplyStatus(context.Background(), "CA1", "t1", domain.CallStatusCompleted, 42)
	require.NoError(t, err)
	// A redelivery without a duration must not zero the stored one.
	_, err = repo.ApplyStatus(context.Background(), "CA1", "t1", domain.CallStatusCompleted, 0)
	require.NoError(t, err)

	record, err := repo.GetByCallSID(context.Background(), "CA1")
	require.NoError(t, err)
	assert.Equal(t, 42, record.DurationSeconds)
}

func TestSetRecordingConcurrentDistinctRecordings(t *testing.T) {
	repo := NewMemoryCallRepository()

	var wg sync.WaitGroup
	wins := make([]bool, 2)
	for i, sid := range []string{"RE1", "RE2"} {
		wg.Add(1)
		go func(i int, sid string) {
			defer wg.Done()
			won, err := repo.SetRecording(context.Background(), "CA1", "t1", sid, "https://media/"+sid, 10)
			assert.NoError(t, err)
			wins[i] = won
		}(i, sid)
	}
	wg.Wait()

	// Exactly one writer wins; the record holds that writer's artifacts.
	assert.NotEqual(t, wins[0], wins[1])
	record, err := repo.GetByCallSID(context.Background(), "CA1")
	require.NoError(t, err)
	assert.Contains(t, []string{"RE1", "RE2"}, record.RecordingSID)
}

func TestBindingSetSubAccountIfEmpty(t *testing.T) {
	repo := NewMemoryBindingRepository()
	_, err := repo.EnsureExists(context.Background(), "t1")
	require.NoError(t, err)

	won, err := repo.SetSubAccountIfEmpty(context.Background(), "t1", "AC1")
	require.NoError(t, err)
	assert.True(t, won)

	won, err = repo.SetSubAccountIfEmpty(context.Background(), "t1", "AC2")
	require.NoError(t, err)
	assert.False(t, won)

	binding, err := repo.GetByTenantID(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, "AC1", binding.SubAccountSID)
}
