package inventory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is an in-memory Repository used by tests and the
// single-binary dev wiring. All methods are safe for concurrent use.
type MemoryRepository struct {
	mu           sync.RWMutex
	batches      map[uuid.UUID]Batch
	reservations map[uuid.UUID]Reservation
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		batches:      make(map[uuid.UUID]Batch),
		reservations: make(map[uuid.UUID]Reservation),
	}
}

func (r *MemoryRepository) BatchesByMedicine(ctx context.Context, medicineName string) ([]Batch, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []Batch
	for _, b := range r.batches {
		if b.MedicineName == medicineName && b.QuantityOnHand > 0 {
			result = append(result, b)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ExpiryDate.Before(result[j].ExpiryDate)
	})
	return result, nil
}

func (r *MemoryRepository) GetBatch(ctx context.Context, medicineName, batchID string) (*Batch, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, b := range r.batches {
		if b.MedicineName == medicineName && b.BatchID == batchID {
			return &b, nil
		}
	}
	return nil, ErrBatchNotFound
}

func (r *MemoryRepository) InsertBatch(ctx context.Context, batch *Batch) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	batch.CreatedAt = now
	batch.UpdatedAt = now
	r.batches[batch.ID] = *batch
	return nil
}

func (r *MemoryRepository) AdjustQuantity(ctx context.Context, id uuid.UUID, delta int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.batches[id]
	if !ok || b.QuantityOnHand+delta < 0 {
		return 0, fmt.Errorf("batch %s: %w", id, ErrBatchNotFound)
	}
	b.QuantityOnHand += delta
	b.UpdatedAt = time.Now()
	r.batches[id] = b
	return b.QuantityOnHand, nil
}

func (r *MemoryRepository) ApplyAdjustments(ctx context.Context, adjustments []BatchAdjustment) ([]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Validate everything before touching anything.
	for _, adj := range adjustments {
		b, ok := r.batches[adj.BatchUUID]
		if !ok || b.QuantityOnHand+adj.Delta < 0 {
			return nil, fmt.Errorf("batch %s: %w", adj.BatchUUID, ErrBatchNotFound)
		}
	}

	now := time.Now()
	quantities := make([]int, 0, len(adjustments))
	for _, adj := range adjustments {
		b := r.batches[adj.BatchUUID]
		b.QuantityOnHand += adj.Delta
		b.UpdatedAt = now
		r.batches[adj.BatchUUID] = b
		quantities = append(quantities, b.QuantityOnHand)
	}
	return quantities, nil
}

func (r *MemoryRepository) TotalStock(ctx context.Context, medicineName string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := 0
	for _, b := range r.batches {
		if b.MedicineName == medicineName {
			total += b.QuantityOnHand
		}
	}
	return total, nil
}

func (r *MemoryRepository) ExpiringSoon(ctx context.Context, before time.Time) ([]Batch, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []Batch
	for _, b := range r.batches {
		if b.QuantityOnHand > 0 && b.ExpiryDate.Before(before) {
			result = append(result, b)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ExpiryDate.Before(result[j].ExpiryDate)
	})
	return result, nil
}

func (r *MemoryRepository) InsertReservation(ctx context.Context, res *Reservation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	res.UpdatedAt = time.Now()
	r.reservations[res.ID] = *res
	return nil
}

func (r *MemoryRepository) GetReservationByID(ctx context.Context, id uuid.UUID) (*Reservation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res, ok := r.reservations[id]
	if !ok {
		return nil, ErrReservationNotFound
	}
	return &res, nil
}

func (r *MemoryRepository) UpdateReservationStatus(ctx context.Context, id uuid.UUID, from, to ReservationStatus) (*Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, ok := r.reservations[id]
	if !ok || res.Status != from {
		return nil, ErrReservationNotFound
	}
	res.Status = to
	res.UpdatedAt = time.Now()
	r.reservations[id] = res
	return &res, nil
}

func (r *MemoryRepository) FindStaleReservations(ctx context.Context, before time.Time) ([]Reservation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []Reservation
	for _, res := range r.reservations {
		if res.Status == ReservationReserved && res.ReservedAt.Before(before) {
			result = append(result, res)
		}
	}
	return result, nil
}

func (r *MemoryRepository) ListReservationsByPatient(ctx context.Context, patientID uuid.UUID) ([]Reservation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []Reservation
	for _, res := range r.reservations {
		if res.PatientID == patientID {
			result = append(result, res)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ReservedAt.After(result[j].ReservedAt)
	})
	return result, nil
}
