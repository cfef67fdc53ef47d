package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/carehub/clinic-ops/internal/lock"
)

var (
	ErrInsufficientStock      = errors.New("requested quantity exceeds total available stock")
	ErrInvalidQuantity        = errors.New("quantity must be a positive integer")
	ErrDuplicateBatch         = errors.New("batch id already exists for this medicine with a different expiry date")
	ErrInvalidTransition      = errors.New("invalid reservation status transition")
	ErrConcurrentModification = errors.New("inventory is being updated concurrently, please retry")
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

// Dispense consumes quantity units of a medicine from its batches, soonest
// expiry first. The pre-flight total check and the per-batch decrements run
// in one critical section per medicine, so the operation is all-or-nothing
// even under concurrent dispenses.
func (s *Service) Dispense(ctx context.Context, medicineName string, quantity int) (*DispenseResult, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	var result *DispenseResult

	err := s.locker.WithLock(ctx, medicineLockKey(medicineName), func(lockCtx context.Context) error {
		batches, err := s.repo.BatchesByMedicine(lockCtx, medicineName)
		if err != nil {
			return fmt.Errorf("load batches: %w", err)
		}
		if len(batches) == 0 {
			return ErrMedicineNotFound
		}

		total := 0
		for _, b := range batches {
			total += b.QuantityOnHand
		}
		if total < quantity {
			return fmt.Errorf("needed %d, available %d: %w", quantity, total, ErrInsufficientStock)
		}

		// Plan the walk first, then apply every decrement in one repository
		// call so the batches move together or not at all.
		res := &DispenseResult{MedicineName: medicineName, Dispensed: quantity}
		var plan []BatchAdjustment
		remaining := quantity
		for _, b := range batches {
			if remaining == 0 {
				break
			}

			take := b.QuantityOnHand
			if take > remaining {
				take = remaining
			}
			remaining -= take

			plan = append(plan, BatchAdjustment{BatchUUID: b.ID, Delta: -take})
			res.Batches = append(res.Batches, BatchConsumption{
				BatchID:    b.BatchID,
				ExpiryDate: b.ExpiryDate,
				Taken:      take,
			})
		}

		left, err := s.repo.ApplyAdjustments(lockCtx, plan)
		if err != nil {
			return fmt.Errorf("decrement batches: %w", err)
		}
		for i := range res.Batches {
			res.Batches[i].Remaining = left[i]
		}

		result = res
		return nil
	})

	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			return nil, ErrConcurrentModification
		}
		return nil, err
	}

	s.log.Info("medicine dispensed",
		zap.String("medicine", medicineName),
		zap.Int("quantity", quantity),
		zap.Int("batches_touched", len(result.Batches)),
	)

	return result, nil
}

// ReceiveStock creates a batch or tops up an existing one. The batch id plus
// expiry date form the batch identity: the same id with a different expiry
// is rejected as a duplicate.
func (s *Service) ReceiveStock(ctx context.Context, medicineName, batchID string, expiry time.Time, quantity int) (*Batch, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	var received *Batch

	err := s.locker.WithLock(ctx, medicineLockKey(medicineName), func(lockCtx context.Context) error {
		existing, err := s.repo.GetBatch(lockCtx, medicineName, batchID)
		if err != nil && !errors.Is(err, ErrBatchNotFound) {
			return fmt.Errorf("load batch: %w", err)
		}

		if existing != nil {
			if !sameDay(existing.ExpiryDate, expiry) {
				return ErrDuplicateBatch
			}
			if _, err := s.repo.AdjustQuantity(lockCtx, existing.ID, quantity); err != nil {
				return fmt.Errorf("top up batch: %w", err)
			}
			topped, err := s.repo.GetBatch(lockCtx, medicineName, batchID)
			if err != nil {
				return fmt.Errorf("reload batch: %w", err)
			}
			received = topped
			return nil
		}

		batch := &Batch{
			ID:             uuid.New(),
			MedicineName:   medicineName,
			BatchID:        batchID,
			ExpiryDate:     expiry,
			QuantityOnHand: quantity,
		}
		if err := s.repo.InsertBatch(lockCtx, batch); err != nil {
			return fmt.Errorf("insert batch: %w", err)
		}
		received = batch
		return nil
	})

	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			return nil, ErrConcurrentModification
		}
		return nil, err
	}

	return received, nil
}

// TotalStock sums stock on hand across a medicine's batches.
func (s *Service) TotalStock(ctx context.Context, medicineName string) (int, error) {
	return s.repo.TotalStock(ctx, medicineName)
}

// Reserve holds quantity units of a medicine for pickup. Stock is not
// decremented until fulfilment, but a reservation over the live total is
// rejected up front.
func (s *Service) Reserve(ctx context.Context, patientID uuid.UUID, medicineName string, quantity int) (*Reservation, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	total, err := s.repo.TotalStock(ctx, medicineName)
	if err != nil {
		return nil, fmt.Errorf("total stock: %w", err)
	}
	if total == 0 {
		return nil, ErrMedicineNotFound
	}
	if total < quantity {
		return nil, fmt.Errorf("needed %d, available %d: %w", quantity, total, ErrInsufficientStock)
	}

	res := &Reservation{
		ID:           uuid.New(),
		PatientID:    patientID,
		MedicineName: medicineName,
		Quantity:     quantity,
		Status:       ReservationReserved,
		ReservedAt:   time.Now(),
	}
	if err := s.repo.InsertReservation(ctx, res); err != nil {
		return nil, fmt.Errorf("insert reservation: %w", err)
	}

	return res, nil
}

// CancelReservation releases a held reservation.
func (s *Service) CancelReservation(ctx context.Context, id uuid.UUID) (*Reservation, error) {
	return s.transitionReservation(ctx, id, ReservationCancelled)
}

// FulfillReservation dispenses the reserved quantity FIFO and marks the
// reservation picked up. The status check, the transition and the dispense
// share one critical section per reservation, and cancellations take the
// same lock, so a concurrent cancel can never interleave with a fulfilment.
// The transition lands before the dispense; a dispense failure restores the
// reservation to Reserved, so stock is decremented exactly when the
// reservation reads PickedUp.
func (s *Service) FulfillReservation(ctx context.Context, id uuid.UUID) (*Reservation, *DispenseResult, error) {
	var (
		updated   *Reservation
		dispensed *DispenseResult
	)

	err := s.locker.WithLock(ctx, reservationLockKey(id), func(lockCtx context.Context) error {
		res, err := s.repo.GetReservationByID(lockCtx, id)
		if err != nil {
			return err
		}
		if !CanTransitionReservation(res.Status, ReservationPickedUp) {
			return ErrInvalidTransition
		}

		picked, err := s.repo.UpdateReservationStatus(lockCtx, id, ReservationReserved, ReservationPickedUp)
		if err != nil {
			if errors.Is(err, ErrReservationNotFound) {
				return ErrConcurrentModification
			}
			return fmt.Errorf("mark reservation picked up: %w", err)
		}

		result, err := s.Dispense(lockCtx, res.MedicineName, res.Quantity)
		if err != nil {
			if _, revertErr := s.repo.UpdateReservationStatus(lockCtx, id, ReservationPickedUp, ReservationReserved); revertErr != nil {
				s.log.Error("failed to restore reservation after dispense failure",
					zap.String("reservation_id", id.String()),
					zap.Error(revertErr),
				)
			}
			return err
		}

		updated = picked
		dispensed = result
		return nil
	})

	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			return nil, nil, ErrConcurrentModification
		}
		return nil, nil, err
	}

	return updated, dispensed, nil
}

// ExpireStaleReservations releases Reserved holds older than the cutoff.
// Intended to be called by the sweep worker.
func (s *Service) ExpireStaleReservations(ctx context.Context, before time.Time) (int, error) {
	stale, err := s.repo.FindStaleReservations(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("find stale reservations: %w", err)
	}

	expired := 0
	for _, res := range stale {
		if _, err := s.repo.UpdateReservationStatus(ctx, res.ID, ReservationReserved, ReservationExpired); err != nil {
			if errors.Is(err, ErrReservationNotFound) {
				continue
			}
			s.log.Error("failed to expire reservation",
				zap.String("reservation_id", res.ID.String()),
				zap.Error(err),
			)
			continue
		}
		expired++
	}

	return expired, nil
}

// ExpiringSoon lists stocked batches expiring before the cutoff.
func (s *Service) ExpiringSoon(ctx context.Context, before time.Time) ([]Batch, error) {
	return s.repo.ExpiringSoon(ctx, before)
}

// ListReservationsByPatient returns a patient's reservations, newest first.
func (s *Service) ListReservationsByPatient(ctx context.Context, patientID uuid.UUID) ([]Reservation, error) {
	return s.repo.ListReservationsByPatient(ctx, patientID)
}

func (s *Service) transitionReservation(ctx context.Context, id uuid.UUID, to ReservationStatus) (*Reservation, error) {
	var updated *Reservation

	err := s.locker.WithLock(ctx, reservationLockKey(id), func(lockCtx context.Context) error {
		res, err := s.repo.GetReservationByID(lockCtx, id)
		if err != nil {
			return err
		}
		if !CanTransitionReservation(res.Status, to) {
			return ErrInvalidTransition
		}

		updated, err = s.repo.UpdateReservationStatus(lockCtx, id, res.Status, to)
		if err != nil {
			if errors.Is(err, ErrReservationNotFound) {
				return ErrConcurrentModification
			}
			return fmt.Errorf("update reservation status: %w", err)
		}
		return nil
	})

	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			return nil, ErrConcurrentModification
		}
		return nil, err
	}

	return updated, nil
}

func medicineLockKey(medicineName string) string {
	return "lock:medicine:" + strings.ToLower(strings.ReplaceAll(medicineName, " ", "-"))
}

func reservationLockKey(id uuid.UUID) string {
	return "lock:reservation:" + id.String()
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
