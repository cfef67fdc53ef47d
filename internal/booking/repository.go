package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrPatientNotFound     = errors.New("patient not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
)

// Repository contains all DB interactions needed by the booking service.
type Repository interface {
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)

	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// CountAtSlot counts capacity-blocking appointments sharing the exact
	// (date, serviceType, start) key.
	CountAtSlot(ctx context.Context, date time.Time, serviceType ServiceType, start TimeOfDay) (int, error)

	// ListForDay returns capacity-blocking appointments for (date, serviceType).
	ListForDay(ctx context.Context, date time.Time, serviceType ServiceType) ([]Appointment, error)

	Insert(ctx context.Context, appt *Appointment) error

	// UpdateStatus performs a compare-and-set transition; it returns
	// ErrAppointmentNotFound when no row matches (id, from).
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error)

	// FindPastDue returns Pending/Confirmed appointments dated before the cutoff.
	FindPastDue(ctx context.Context, before time.Time) ([]Appointment, error)

	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error)
}
