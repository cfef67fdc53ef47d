package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrMedicineNotFound    = errors.New("medicine not found in inventory")
	ErrBatchNotFound       = errors.New("inventory batch not found")
	ErrReservationNotFound = errors.New("medicine reservation not found")
)

// BatchAdjustment is one quantity delta in an atomic multi-batch update.
type BatchAdjustment struct {
	BatchUUID uuid.UUID
	Delta     int
}

// Repository contains all DB interactions needed by the inventory service.
type Repository interface {
	// BatchesByMedicine returns batches with stock on hand, soonest expiry
	// first. Drained batches are excluded.
	BatchesByMedicine(ctx context.Context, medicineName string) ([]Batch, error)

	// GetBatch looks a batch up by its (medicineName, batchID) identity,
	// drained or not.
	GetBatch(ctx context.Context, medicineName, batchID string) (*Batch, error)

	InsertBatch(ctx context.Context, batch *Batch) error

	// AdjustQuantity adds delta (negative to consume) to a batch and returns
	// the new quantity. Implementations must never let quantity go negative.
	AdjustQuantity(ctx context.Context, id uuid.UUID, delta int) (int, error)

	// ApplyAdjustments applies every delta or none of them, returning the new
	// quantities in input order. A dispense touching several batches goes
	// through here so an error mid-walk cannot commit a partial decrement.
	ApplyAdjustments(ctx context.Context, adjustments []BatchAdjustment) ([]int, error)

	// TotalStock sums QuantityOnHand across a medicine's batches.
	TotalStock(ctx context.Context, medicineName string) (int, error)

	// ExpiringSoon returns stocked batches expiring before the cutoff.
	ExpiringSoon(ctx context.Context, before time.Time) ([]Batch, error)

	InsertReservation(ctx context.Context, res *Reservation) error
	GetReservationByID(ctx context.Context, id uuid.UUID) (*Reservation, error)

	// UpdateReservationStatus performs a compare-and-set transition; it
	// returns ErrReservationNotFound when no row matches (id, from).
	UpdateReservationStatus(ctx context.Context, id uuid.UUID, from, to ReservationStatus) (*Reservation, error)

	// FindStaleReservations returns Reserved reservations older than the cutoff.
	FindStaleReservations(ctx context.Context, before time.Time) ([]Reservation, error)

	ListReservationsByPatient(ctx context.Context, patientID uuid.UUID) ([]Reservation, error)
}
