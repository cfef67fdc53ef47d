package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/carehub/clinic-ops/internal/lock"
)

func newTestService(t *testing.T) (*Service, *MemoryRepository) {
	t.Helper()
	repo := NewMemoryRepository()
	return NewService(repo, lock.NewKeyMutex(), zap.NewNop()), repo
}

// seedEntry inserts a Waiting entry with an explicit arrival time so ordering
// tests do not depend on the wall clock.
func seedEntry(t *testing.T, repo *MemoryRepository, name string, severity Severity, arrival time.Time) *Entry {
	t.Helper()
	entry := &Entry{
		ID:          uuid.New(),
		PatientName: name,
		Severity:    severity,
		ArrivalTime: arrival,
		Status:      StatusWaiting,
	}
	require.NoError(t, repo.Insert(context.Background(), entry))
	return entry
}

func TestEnqueue(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	t.Run("Valid Check In", func(t *testing.T) {
		entry, err := svc.Enqueue(ctx, "Ana Reyes", SeverityUrgent)
		require.NoError(t, err)
		assert.Equal(t, StatusWaiting, entry.Status)
		assert.Equal(t, SeverityUrgent, entry.Severity)
		assert.False(t, entry.ArrivalTime.IsZero())
	})

	t.Run("Rejects Severity Out Of Range", func(t *testing.T) {
		_, err := svc.Enqueue(ctx, "Out Of Range", Severity(0))
		assert.ErrorIs(t, err, ErrInvalidSeverity)

		_, err = svc.Enqueue(ctx, "Out Of Range", Severity(4))
		assert.ErrorIs(t, err, ErrInvalidSeverity)
	})
}

func TestPriorityOrdering(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	base := time.Now()

	// Arrival order: Routine, Emergency, Urgent, Emergency.
	seedEntry(t, repo, "routine-first", SeverityRoutine, base)
	seedEntry(t, repo, "emergency-early", SeverityEmergency, base.Add(1*time.Minute))
	seedEntry(t, repo, "urgent", SeverityUrgent, base.Add(2*time.Minute))
	seedEntry(t, repo, "emergency-late", SeverityEmergency, base.Add(3*time.Minute))

	// Severity wins first, arrival breaks ties.
	want := []string{"emergency-early", "emergency-late", "urgent", "routine-first"}
	for _, name := range want {
		called, err := svc.CallNext(ctx)
		require.NoError(t, err)
		require.NotNil(t, called)
		assert.Equal(t, name, called.PatientName)
		assert.Equal(t, StatusServing, called.Status)
	}

	called, err := svc.CallNext(ctx)
	require.NoError(t, err)
	assert.Nil(t, called, "drained queue returns no entry")
}

func TestCallNext(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	base := time.Now()

	bob := seedEntry(t, repo, "Bob", SeverityRoutine, base)
	jane := seedEntry(t, repo, "Jane", SeverityEmergency, base.Add(1*time.Minute))
	john := seedEntry(t, repo, "John", SeverityUrgent, base.Add(2*time.Minute))

	t.Run("Serves By Severity Then Arrival", func(t *testing.T) {
		first, err := svc.CallNext(ctx)
		require.NoError(t, err)
		assert.Equal(t, jane.ID, first.ID)
		require.NotNil(t, first.ServedAt)

		second, err := svc.CallNext(ctx)
		require.NoError(t, err)
		assert.Equal(t, john.ID, second.ID)

		third, err := svc.CallNext(ctx)
		require.NoError(t, err)
		assert.Equal(t, bob.ID, third.ID)

		fourth, err := svc.CallNext(ctx)
		require.NoError(t, err)
		assert.Nil(t, fourth)
	})

	t.Run("Previous Serving Entry Is Completed", func(t *testing.T) {
		reloaded, err := repo.GetByID(ctx, jane.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusCompleted, reloaded.Status)

		last, err := repo.GetByID(ctx, bob.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusServing, last.Status)
	})
}

func TestNextPatientDoesNotDequeue(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	entry := seedEntry(t, repo, "peeked", SeverityRoutine, time.Now())

	for i := 0; i < 3; i++ {
		peeked, err := svc.NextPatient(ctx)
		require.NoError(t, err)
		require.NotNil(t, peeked)
		assert.Equal(t, entry.ID, peeked.ID)
		assert.Equal(t, StatusWaiting, peeked.Status)
	}
}

func TestTransitions(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	t.Run("Waiting To Absent", func(t *testing.T) {
		entry := seedEntry(t, repo, "no-show", SeverityRoutine, time.Now())

		absent, err := svc.MarkAbsent(ctx, entry.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusAbsent, absent.Status)
	})

	t.Run("Absent Entry Is Skipped By CallNext", func(t *testing.T) {
		called, err := svc.CallNext(ctx)
		require.NoError(t, err)
		assert.Nil(t, called)
	})

	t.Run("Completed Is Terminal", func(t *testing.T) {
		entry := seedEntry(t, repo, "served", SeverityEmergency, time.Now())

		called, err := svc.CallNext(ctx)
		require.NoError(t, err)
		require.Equal(t, entry.ID, called.ID)

		done, err := svc.Complete(ctx, entry.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusCompleted, done.Status)

		_, err = svc.MarkAbsent(ctx, entry.ID)
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("Cannot Complete A Waiting Entry", func(t *testing.T) {
		entry := seedEntry(t, repo, "still-waiting", SeverityRoutine, time.Now())

		_, err := svc.Complete(ctx, entry.ID)
		assert.ErrorIs(t, err, ErrInvalidTransition)

		_, err = svc.MarkAbsent(ctx, entry.ID)
		require.NoError(t, err)
	})

	t.Run("Unknown Entry", func(t *testing.T) {
		_, err := svc.Complete(ctx, uuid.New())
		assert.ErrorIs(t, err, ErrEntryNotFound)
	})
}

func TestConcurrentCallNext(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	base := time.Now()

	const entries = 8
	for i := 0; i < entries; i++ {
		seedEntry(t, repo, "patient", SeverityRoutine, base.Add(time.Duration(i)*time.Minute))
	}

	var wg sync.WaitGroup
	called := make([]*Entry, entries)
	errs := make([]error, entries)
	for i := 0; i < entries; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			called[i], errs[i] = svc.CallNext(ctx)
		}(i)
	}
	wg.Wait()

	seen := make(map[uuid.UUID]bool)
	for i, entry := range called {
		require.NoError(t, errs[i])
		require.NotNil(t, entry)
		assert.False(t, seen[entry.ID], "entry %s called twice", entry.ID)
		seen[entry.ID] = true
	}
	assert.Len(t, seen, entries)
}

func TestSummary(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	base := time.Now()

	seedEntry(t, repo, "a", SeverityEmergency, base)
	seedEntry(t, repo, "b", SeverityRoutine, base.Add(time.Minute))
	seedEntry(t, repo, "c", SeverityRoutine, base.Add(2*time.Minute))

	serving, err := svc.CallNext(ctx)
	require.NoError(t, err)

	summary, err := svc.Summary(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.WaitingTotal)
	assert.Equal(t, 2, summary.WaitingByLevel[SeverityRoutine])
	assert.Zero(t, summary.WaitingByLevel[SeverityEmergency])
	require.NotNil(t, summary.Serving)
	assert.Equal(t, serving.ID, summary.Serving.ID)
}
