package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/carehub/clinic-ops/internal/lock"
)

const walkInLockKey = "lock:queue:walkin"

var (
	ErrInvalidSeverity        = errors.New("severity score must be 1 (emergency), 2 (urgent) or 3 (routine)")
	ErrInvalidTransition      = errors.New("invalid queue entry status transition")
	ErrConcurrentModification = errors.New("queue is being updated concurrently, please retry")
)

type Service struct {
	repo   Repository
	locker lock.Locker
	log    *zap.Logger
}

func NewService(repo Repository, locker lock.Locker, log *zap.Logger) *Service {
	return &Service{
		repo:   repo,
		locker: locker,
		log:    log,
	}
}

// Enqueue adds a walk-in patient with arrival time now.
func (s *Service) Enqueue(ctx context.Context, patientName string, severity Severity) (*Entry, error) {
	if !severity.Valid() {
		return nil, ErrInvalidSeverity
	}

	entry := &Entry{
		ID:          uuid.New(),
		PatientName: patientName,
		Severity:    severity,
		ArrivalTime: time.Now(),
		Status:      StatusWaiting,
	}
	if err := s.repo.Insert(ctx, entry); err != nil {
		return nil, fmt.Errorf("insert queue entry: %w", err)
	}

	s.log.Info("walk-in checked in",
		zap.String("entry_id", entry.ID.String()),
		zap.String("severity", severity.Label()),
	)

	return entry, nil
}

// NextPatient peeks at the next entry to serve without side effects.
// Waiting entries rank by severity ascending, then arrival ascending.
// Returns nil, nil on an empty queue.
func (s *Service) NextPatient(ctx context.Context) (*Entry, error) {
	entry, err := s.repo.NextWaiting(ctx)
	if err != nil {
		if errors.Is(err, ErrEntryNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("peek next waiting: %w", err)
	}
	return entry, nil
}

// CallNext atomically promotes the highest-priority Waiting entry to Serving.
// The peek and the transition share one critical section so two staff members
// cannot both be told the same patient is next. An entry still Serving from
// the previous call is completed first, keeping at most one active service
// point. Returns nil, nil on an empty queue.
func (s *Service) CallNext(ctx context.Context) (*Entry, error) {
	var called *Entry

	err := s.locker.WithLock(ctx, walkInLockKey, func(lockCtx context.Context) error {
		next, err := s.repo.NextWaiting(lockCtx)
		if err != nil {
			if errors.Is(err, ErrEntryNotFound) {
				return nil
			}
			return fmt.Errorf("peek next waiting: %w", err)
		}

		if serving, err := s.repo.CurrentServing(lockCtx); err == nil {
			if _, err := s.repo.UpdateStatus(lockCtx, serving.ID, StatusServing, StatusCompleted, nil); err != nil && !errors.Is(err, ErrEntryNotFound) {
				return fmt.Errorf("complete previous serving entry: %w", err)
			}
		} else if !errors.Is(err, ErrEntryNotFound) {
			return fmt.Errorf("load serving entry: %w", err)
		}

		now := time.Now()
		updated, err := s.repo.UpdateStatus(lockCtx, next.ID, StatusWaiting, StatusServing, &now)
		if err != nil {
			return fmt.Errorf("promote entry to serving: %w", err)
		}

		called = updated
		return nil
	})

	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			return nil, ErrConcurrentModification
		}
		return nil, err
	}

	if called != nil {
		s.log.Info("now serving",
			zap.String("entry_id", called.ID.String()),
			zap.String("patient", called.PatientName),
		)
	}

	return called, nil
}

// MarkAbsent transitions a Waiting or Serving entry to Absent.
func (s *Service) MarkAbsent(ctx context.Context, id uuid.UUID) (*Entry, error) {
	return s.transition(ctx, id, StatusAbsent)
}

// Complete transitions a Serving entry to Completed on visit completion.
func (s *Service) Complete(ctx context.Context, id uuid.UUID) (*Entry, error) {
	return s.transition(ctx, id, StatusCompleted)
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, to EntryStatus) (*Entry, error) {
	entry, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !CanTransition(entry.Status, to) {
		return nil, ErrInvalidTransition
	}

	updated, err := s.repo.UpdateStatus(ctx, id, entry.Status, to, nil)
	if err != nil {
		if errors.Is(err, ErrEntryNotFound) {
			return nil, ErrConcurrentModification
		}
		return nil, fmt.Errorf("update queue entry status: %w", err)
	}

	return updated, nil
}

// Summary reports waiting counts by severity and the entry being served.
func (s *Service) Summary(ctx context.Context) (*Summary, error) {
	counts, err := s.repo.CountWaitingBySeverity(ctx)
	if err != nil {
		return nil, fmt.Errorf("count waiting entries: %w", err)
	}

	total := 0
	for _, n := range counts {
		total += n
	}

	summary := &Summary{
		WaitingTotal:   total,
		WaitingByLevel: counts,
	}

	serving, err := s.repo.CurrentServing(ctx)
	if err != nil && !errors.Is(err, ErrEntryNotFound) {
		return nil, fmt.Errorf("load serving entry: %w", err)
	}
	if err == nil {
		summary.Serving = serving
	}

	return summary, nil
}
