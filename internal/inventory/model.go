package inventory

import (
	"time"

	"github.com/google/uuid"
)

// Batch is one expiry-dated lot of a medicine. A drained batch stays on
// record with QuantityOnHand zero and is skipped by dispensing.
type Batch struct {
	ID             uuid.UUID
	MedicineName   string
	BatchID        string
	ExpiryDate     time.Time
	QuantityOnHand int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// BatchConsumption records how much one dispense took from one batch.
type BatchConsumption struct {
	BatchID    string
	ExpiryDate time.Time
	Taken      int
	Remaining  int
}

// DispenseResult is the audit record of one all-or-nothing dispense,
// with per-batch consumption in soonest-expiry-first order.
type DispenseResult struct {
	MedicineName string
	Dispensed    int
	Batches      []BatchConsumption
}

type ReservationStatus string

const (
	ReservationReserved  ReservationStatus = "Reserved"
	ReservationPickedUp  ReservationStatus = "PickedUp"
	ReservationCancelled ReservationStatus = "Cancelled"
	ReservationExpired   ReservationStatus = "Expired"
)

var reservationTransitions = map[ReservationStatus][]ReservationStatus{
	ReservationReserved: {ReservationPickedUp, ReservationCancelled, ReservationExpired},
}

func CanTransitionReservation(from, to ReservationStatus) bool {
	for _, next := range reservationTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Reservation holds a quantity of a medicine for pickup. Stock is only
// decremented when the reservation is fulfilled.
type Reservation struct {
	ID           uuid.UUID
	PatientID    uuid.UUID
	MedicineName string
	Quantity     int
	Status       ReservationStatus
	ReservedAt   time.Time
	UpdatedAt    time.Time
}
