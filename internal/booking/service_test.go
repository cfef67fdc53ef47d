package booking

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/carehub/clinic-ops/internal/config"
	"github.com/carehub/clinic-ops/internal/lock"
)

func testConfig() config.Config {
	return config.Config{
		DentalCapacity:  2,
		MedicalCapacity: 3,
		DefaultCapacity: 2,
		ClinicOpenHour:  9,
		ClinicCloseHour: 17,
		SlotDuration:    30 * time.Minute,
	}
}

func newTestService(t *testing.T) (*Service, *MemoryRepository, uuid.UUID) {
	t.Helper()

	repo := NewMemoryRepository()
	patientID := uuid.New()
	repo.AddPatient(Patient{ID: patientID, Name: "Test Patient"})

	svc := NewService(repo, lock.NewKeyMutex(), testConfig(), zap.NewNop())
	return svc, repo, patientID
}

func futureDate(days int) time.Time {
	return DateOf(time.Now().AddDate(0, 0, days))
}

func TestOverlaps(t *testing.T) {
	start1, _ := ParseTimeOfDay("09:00")
	end1, _ := ParseTimeOfDay("09:30")
	start2, _ := ParseTimeOfDay("09:30")
	end2, _ := ParseTimeOfDay("10:00")

	t.Run("Touching Endpoints Do Not Conflict", func(t *testing.T) {
		assert.False(t, Overlaps(start1, end1, start2, end2))
		assert.False(t, Overlaps(start2, end2, start1, end1))
	})

	t.Run("Contained Range Conflicts", func(t *testing.T) {
		outerEnd, _ := ParseTimeOfDay("10:00")
		innerStart, _ := ParseTimeOfDay("09:15")
		innerEnd, _ := ParseTimeOfDay("09:45")
		assert.True(t, Overlaps(start1, outerEnd, innerStart, innerEnd))
	})

	t.Run("Identical Ranges Conflict", func(t *testing.T) {
		assert.True(t, Overlaps(start1, end1, start1, end1))
	})
}

func TestIsRangeAvailable(t *testing.T) {
	svc, repo, patientID := newTestService(t)
	ctx := context.Background()
	date := futureDate(7)

	// Fill the 09:00-10:00 range to Dental capacity.
	for i := 0; i < 2; i++ {
		require.NoError(t, repo.Insert(ctx, &Appointment{
			ID:          uuid.New(),
			PatientID:   patientID,
			ServiceType: ServiceDental,
			Date:        date,
			Start:       NewTimeOfDay(9, 0),
			End:         NewTimeOfDay(10, 0),
			Status:      StatusPending,
		}))
	}

	t.Run("Overlapping Range At Capacity Is Unavailable", func(t *testing.T) {
		available, err := svc.IsRangeAvailable(ctx, date, ServiceDental, NewTimeOfDay(9, 15), NewTimeOfDay(9, 45))
		require.NoError(t, err)
		assert.False(t, available)
	})

	t.Run("Touching Range Is Available", func(t *testing.T) {
		available, err := svc.IsRangeAvailable(ctx, date, ServiceDental, NewTimeOfDay(10, 0), NewTimeOfDay(10, 30))
		require.NoError(t, err)
		assert.True(t, available)
	})

	t.Run("Inverted Range Is Rejected", func(t *testing.T) {
		_, err := svc.IsRangeAvailable(ctx, date, ServiceDental, NewTimeOfDay(10, 0), NewTimeOfDay(9, 0))
		assert.ErrorIs(t, err, ErrInvalidRange)
	})

	t.Run("Other Service Is Unaffected", func(t *testing.T) {
		available, err := svc.IsRangeAvailable(ctx, date, ServiceMedical, NewTimeOfDay(9, 15), NewTimeOfDay(9, 45))
		require.NoError(t, err)
		assert.True(t, available)
	})
}

func TestBookSlotCapacity(t *testing.T) {
	svc, _, patientID := newTestService(t)
	ctx := context.Background()
	date := futureDate(7)
	start := NewTimeOfDay(9, 0)
	end := NewTimeOfDay(9, 30)

	// Dental capacity is 2: two bookings succeed, the third reports SlotFull.
	first, err := svc.Book(ctx, patientID, ServiceDental, date, start, end)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, first.Status)

	_, err = svc.Book(ctx, patientID, ServiceDental, date, start, end)
	require.NoError(t, err)

	_, err = svc.Book(ctx, patientID, ServiceDental, date, start, end)
	assert.ErrorIs(t, err, ErrSlotFull)

	t.Run("Different Start Time Still Open", func(t *testing.T) {
		_, err := svc.Book(ctx, patientID, ServiceDental, date, NewTimeOfDay(9, 30), NewTimeOfDay(10, 0))
		assert.NoError(t, err)
	})

	t.Run("Medical Capacity Is Independent", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			_, err := svc.Book(ctx, patientID, ServiceMedical, date, start, end)
			require.NoError(t, err)
		}
		_, err := svc.Book(ctx, patientID, ServiceMedical, date, start, end)
		assert.ErrorIs(t, err, ErrSlotFull)
	})
}

func TestBookValidation(t *testing.T) {
	svc, _, patientID := newTestService(t)
	ctx := context.Background()

	t.Run("Past Date", func(t *testing.T) {
		_, err := svc.Book(ctx, patientID, ServiceMedical, time.Now().AddDate(0, 0, -1), NewTimeOfDay(9, 0), NewTimeOfDay(9, 30))
		assert.ErrorIs(t, err, ErrPastDate)
	})

	t.Run("Inverted Range", func(t *testing.T) {
		_, err := svc.Book(ctx, patientID, ServiceMedical, futureDate(7), NewTimeOfDay(9, 30), NewTimeOfDay(9, 0))
		assert.ErrorIs(t, err, ErrInvalidRange)
	})

	t.Run("Unknown Patient", func(t *testing.T) {
		_, err := svc.Book(ctx, uuid.New(), ServiceMedical, futureDate(7), NewTimeOfDay(9, 0), NewTimeOfDay(9, 30))
		assert.ErrorIs(t, err, ErrPatientNotFound)
	})
}

func TestConcurrentBookingLastSlot(t *testing.T) {
	svc, _, patientID := newTestService(t)
	ctx := context.Background()
	date := futureDate(7)
	start := NewTimeOfDay(9, 0)
	end := NewTimeOfDay(9, 30)

	// Take one of Dental's two openings, leaving exactly one.
	_, err := svc.Book(ctx, patientID, ServiceDental, date, start, end)
	require.NoError(t, err)

	const attempts = 16
	var wg sync.WaitGroup
	errs := make([]error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Book(ctx, patientID, ServiceDental, date, start, end)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, ErrSlotFull)
		}
	}
	assert.Equal(t, 1, succeeded, "exactly one concurrent booking may take the last opening")
}

func TestStatusTransitions(t *testing.T) {
	svc, _, patientID := newTestService(t)
	ctx := context.Background()

	book := func(t *testing.T, start TimeOfDay) *Appointment {
		t.Helper()
		appt, err := svc.Book(ctx, patientID, ServiceMedical, futureDate(14), start, start+30)
		require.NoError(t, err)
		return appt
	}

	t.Run("Pending To Confirmed To Completed", func(t *testing.T) {
		appt := book(t, NewTimeOfDay(9, 0))

		confirmed, err := svc.Confirm(ctx, appt.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusConfirmed, confirmed.Status)

		completed, err := svc.Complete(ctx, appt.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusCompleted, completed.Status)
	})

	t.Run("Cancel Is A Status Change Not A Delete", func(t *testing.T) {
		appt := book(t, NewTimeOfDay(10, 0))

		cancelled, err := svc.Cancel(ctx, appt.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusCancelled, cancelled.Status)

		reloaded, err := svc.repo.GetAppointmentByID(ctx, appt.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusCancelled, reloaded.Status)
	})

	t.Run("Cancelling Twice Reports Invalid Transition", func(t *testing.T) {
		appt := book(t, NewTimeOfDay(11, 0))

		_, err := svc.Cancel(ctx, appt.ID)
		require.NoError(t, err)

		_, err = svc.Cancel(ctx, appt.ID)
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("Cancellation Frees The Slot", func(t *testing.T) {
		date := futureDate(21)
		start := NewTimeOfDay(9, 0)

		a, err := svc.Book(ctx, patientID, ServiceDental, date, start, start+30)
		require.NoError(t, err)
		_, err = svc.Book(ctx, patientID, ServiceDental, date, start, start+30)
		require.NoError(t, err)

		_, err = svc.Book(ctx, patientID, ServiceDental, date, start, start+30)
		require.ErrorIs(t, err, ErrSlotFull)

		_, err = svc.Cancel(ctx, a.ID)
		require.NoError(t, err)

		_, err = svc.Book(ctx, patientID, ServiceDental, date, start, start+30)
		assert.NoError(t, err)
	})

	t.Run("Unknown Appointment", func(t *testing.T) {
		_, err := svc.Cancel(ctx, uuid.New())
		assert.ErrorIs(t, err, ErrAppointmentNotFound)
	})
}

func TestMarkNoShows(t *testing.T) {
	svc, repo, patientID := newTestService(t)
	ctx := context.Background()

	yesterday := DateOf(time.Now().AddDate(0, 0, -1))
	pastDue := &Appointment{
		ID:          uuid.New(),
		PatientID:   patientID,
		ServiceType: ServiceMedical,
		Date:        yesterday,
		Start:       NewTimeOfDay(9, 0),
		End:         NewTimeOfDay(9, 30),
		Status:      StatusConfirmed,
	}
	require.NoError(t, repo.Insert(ctx, pastDue))

	upcoming, err := svc.Book(ctx, patientID, ServiceMedical, futureDate(7), NewTimeOfDay(9, 0), NewTimeOfDay(9, 30))
	require.NoError(t, err)

	marked, err := svc.MarkNoShows(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, marked)

	swept, err := repo.GetAppointmentByID(ctx, pastDue.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusNoShow, swept.Status)

	untouched, err := repo.GetAppointmentByID(ctx, upcoming.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, untouched.Status)
}

func TestDaySchedule(t *testing.T) {
	svc, _, patientID := newTestService(t)
	ctx := context.Background()
	date := futureDate(7)

	_, err := svc.Book(ctx, patientID, ServiceDental, date, NewTimeOfDay(9, 0), NewTimeOfDay(9, 30))
	require.NoError(t, err)

	grid, err := svc.DaySchedule(ctx, date, ServiceDental)
	require.NoError(t, err)
	require.Len(t, grid, 16, "09:00-17:00 in 30-minute steps")

	assert.Equal(t, "09:00", grid[0].Start.String())
	assert.True(t, grid[0].Available)
	assert.Equal(t, 1, grid[0].Remaining)

	assert.Equal(t, "09:30", grid[1].Start.String())
	assert.Equal(t, 2, grid[1].Remaining)
}
