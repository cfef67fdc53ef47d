package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/carehub/clinic-ops/internal/config"
	"github.com/carehub/clinic-ops/internal/lock"
)

var (
	ErrSlotFull               = errors.New("slot capacity already reached")
	ErrInvalidRange           = errors.New("start time must be before end time")
	ErrPastDate               = errors.New("cannot book appointments in the past")
	ErrInvalidTransition      = errors.New("invalid appointment status transition")
	ErrConcurrentModification = errors.New("slot is being booked concurrently, please retry")
)

type Service struct {
	repo   Repository
	locker lock.Locker
	cfg    config.Config
	log    *zap.Logger
}

func NewService(repo Repository, locker lock.Locker, cfg config.Config, log *zap.Logger) *Service {
	return &Service{
		repo:   repo,
		locker: locker,
		cfg:    cfg,
		log:    log,
	}
}

// IsSlotAvailable applies the production capacity rule: count appointments
// sharing the exact (date, serviceType, start) key against the per-service
// capacity. Pure read; callers re-check inside Book's critical section.
func (s *Service) IsSlotAvailable(ctx context.Context, date time.Time, serviceType ServiceType, start TimeOfDay) (bool, error) {
	count, err := s.repo.CountAtSlot(ctx, DateOf(date), serviceType, start)
	if err != nil {
		return false, fmt.Errorf("count slot appointments: %w", err)
	}
	return count < s.cfg.SlotCapacity(string(serviceType)), nil
}

// IsRangeAvailable checks an arbitrary [start, end) range against the day's
// appointments with the half-open overlap test. Touching endpoints do not
// conflict. The checker does not reject past dates; that policy is Book's.
func (s *Service) IsRangeAvailable(ctx context.Context, date time.Time, serviceType ServiceType, start, end TimeOfDay) (bool, error) {
	if start >= end {
		return false, ErrInvalidRange
	}

	existing, err := s.repo.ListForDay(ctx, DateOf(date), serviceType)
	if err != nil {
		return false, fmt.Errorf("list appointments for day: %w", err)
	}

	overlapping := 0
	for _, appt := range existing {
		if Overlaps(appt.Start, appt.End, start, end) {
			overlapping++
		}
	}

	return overlapping < s.cfg.SlotCapacity(string(serviceType)), nil
}

// DaySchedule returns the clinic day grid with remaining capacity per slot.
func (s *Service) DaySchedule(ctx context.Context, date time.Time, serviceType ServiceType) ([]SlotAvailability, error) {
	existing, err := s.repo.ListForDay(ctx, DateOf(date), serviceType)
	if err != nil {
		return nil, fmt.Errorf("list appointments for day: %w", err)
	}

	counts := make(map[TimeOfDay]int)
	for _, appt := range existing {
		counts[appt.Start]++
	}

	capacity := s.cfg.SlotCapacity(string(serviceType))
	step := TimeOfDay(s.cfg.SlotDuration / time.Minute)
	open := NewTimeOfDay(s.cfg.ClinicOpenHour, 0)
	closing := NewTimeOfDay(s.cfg.ClinicCloseHour, 0)

	var grid []SlotAvailability
	for start := open; start < closing; start += step {
		remaining := capacity - counts[start]
		if remaining < 0 {
			remaining = 0
		}
		grid = append(grid, SlotAvailability{
			Start:     start,
			Available: remaining > 0,
			Remaining: remaining,
		})
	}
	return grid, nil
}

// Book creates a Pending appointment for the requested slot. Capacity is
// re-checked inside a per-slot critical section so two concurrent requests
// for the last opening cannot both succeed.
func (s *Service) Book(ctx context.Context, patientID uuid.UUID, serviceType ServiceType, date time.Time, start, end TimeOfDay) (*Appointment, error) {
	if start >= end {
		return nil, ErrInvalidRange
	}

	day := DateOf(date)
	if day.Before(DateOf(time.Now())) {
		return nil, ErrPastDate
	}

	if _, err := s.repo.GetPatientByID(ctx, patientID); err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}

	var created *Appointment

	key := slotLockKey(day, serviceType, start)
	err := s.locker.WithLock(ctx, key, func(lockCtx context.Context) error {
		count, err := s.repo.CountAtSlot(lockCtx, day, serviceType, start)
		if err != nil {
			return fmt.Errorf("recheck slot capacity: %w", err)
		}
		if count >= s.cfg.SlotCapacity(string(serviceType)) {
			return ErrSlotFull
		}

		appt := &Appointment{
			ID:          uuid.New(),
			PatientID:   patientID,
			ServiceType: serviceType,
			Date:        day,
			Start:       start,
			End:         end,
			Status:      StatusPending,
		}
		if err := s.repo.Insert(lockCtx, appt); err != nil {
			return fmt.Errorf("insert appointment: %w", err)
		}

		created = appt
		return nil
	})

	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			return nil, ErrConcurrentModification
		}
		return nil, err
	}

	s.log.Info("appointment booked",
		zap.String("appointment_id", created.ID.String()),
		zap.String("service_type", string(serviceType)),
		zap.String("date", day.Format("2006-01-02")),
		zap.String("start", start.String()),
	)

	return created, nil
}

// Confirm moves a pending appointment to confirmed.
func (s *Service) Confirm(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, StatusConfirmed)
}

// Cancel marks an appointment cancelled. Cancellation is a status change,
// never a delete; re-cancelling reports ErrInvalidTransition.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, StatusCancelled)
}

// Complete marks an appointment completed after the visit.
func (s *Service) Complete(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, StatusCompleted)
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, to AppointmentStatus) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !CanTransition(appt.Status, to) {
		return nil, ErrInvalidTransition
	}

	updated, err := s.repo.UpdateStatus(ctx, id, appt.Status, to)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// Status moved under us between the read and the CAS.
			return nil, ErrConcurrentModification
		}
		return nil, fmt.Errorf("update appointment status: %w", err)
	}

	return updated, nil
}

// MarkNoShows transitions past-due Pending/Confirmed appointments to NoShow.
// Intended to be called by the sweep worker.
func (s *Service) MarkNoShows(ctx context.Context, asOf time.Time) (int, error) {
	pastDue, err := s.repo.FindPastDue(ctx, DateOf(asOf))
	if err != nil {
		return 0, fmt.Errorf("find past-due appointments: %w", err)
	}

	marked := 0
	for _, appt := range pastDue {
		if _, err := s.repo.UpdateStatus(ctx, appt.ID, appt.Status, StatusNoShow); err != nil {
			if errors.Is(err, ErrAppointmentNotFound) {
				continue
			}
			s.log.Error("failed to mark no-show",
				zap.String("appointment_id", appt.ID.String()),
				zap.Error(err),
			)
			continue
		}
		marked++
	}

	return marked, nil
}

// ListByPatient returns a patient's appointments, newest first.
func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}

func slotLockKey(date time.Time, serviceType ServiceType, start TimeOfDay) string {
	return fmt.Sprintf("lock:slot:%s:%s:%s", date.Format("2006-01-02"), serviceType, start)
}
