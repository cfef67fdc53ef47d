package notify

import (
	"context"
	"time"
)

// Event kinds emitted after a core transaction commits. Delivery is
// fire-and-forget: the core never waits on a dispatcher inside a critical
// section.
const (
	EventAppointmentBooked    = "APPOINTMENT_BOOKED"
	EventAppointmentConfirmed = "APPOINTMENT_CONFIRMED"
	EventAppointmentCancelled = "APPOINTMENT_CANCELLED"
	EventAppointmentNoShow    = "APPOINTMENT_NO_SHOW"
	EventWalkInCheckedIn      = "WALKIN_CHECKED_IN"
	EventWalkInCalled         = "WALKIN_CALLED"
	EventReservationReady     = "RESERVATION_READY"
	EventReservationPickedUp  = "RESERVATION_PICKED_UP"
	EventMedicineDispensed    = "MEDICINE_DISPENSED"
	EventStockExpiringSoon    = "STOCK_EXPIRING_SOON"
)

// Event is the plain data record handed to the notification layer.
type Event struct {
	Type       string         `json:"type"`
	OccurredAt time.Time      `json:"occurred_at"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// Dispatcher delivers post-commit events to the outside world (email, SMS,
// display boards). Implementations must not block the caller for long;
// errors are the dispatcher's to report.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev Event) error
}
