package booking

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type ServiceType string

const (
	ServiceMedical ServiceType = "Medical"
	ServiceDental  ServiceType = "Dental"
)

type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "Pending"
	StatusConfirmed AppointmentStatus = "Confirmed"
	StatusCompleted AppointmentStatus = "Completed"
	StatusCancelled AppointmentStatus = "Cancelled"
	StatusNoShow    AppointmentStatus = "NoShow"
)

// transitions is the closed set of legal status edges. Everything else is
// rejected with ErrInvalidTransition, including Cancelled -> Cancelled.
var transitions = map[AppointmentStatus][]AppointmentStatus{
	StatusPending:   {StatusConfirmed, StatusCompleted, StatusCancelled, StatusNoShow},
	StatusConfirmed: {StatusCompleted, StatusCancelled, StatusNoShow},
}

func CanTransition(from, to AppointmentStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// blockingStatuses are the statuses that count against slot capacity.
// Cancellation frees the slot; a no-show row only exists for past dates.
var blockingStatuses = []AppointmentStatus{StatusPending, StatusConfirmed, StatusCompleted}

// TimeOfDay is a clock time within a clinic day, in minutes since midnight.
type TimeOfDay int

func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*60 + minute)
}

func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var hour, minute int
	if _, err := fmt.Sscanf(s, "%d:%d", &hour, &minute); err != nil {
		return 0, fmt.Errorf("parse time of day %q: %w", s, err)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("time of day %q out of range", s)
	}
	return NewTimeOfDay(hour, minute), nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// Overlaps reports whether [aStart, aEnd) and [bStart, bEnd) intersect.
// Half-open intervals: touching endpoints do not conflict.
func Overlaps(aStart, aEnd, bStart, bEnd TimeOfDay) bool {
	return aStart < bEnd && aEnd > bStart
}

// DateOf truncates a timestamp to its UTC calendar date.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Appointment struct {
	ID          uuid.UUID
	PatientID   uuid.UUID
	ServiceType ServiceType
	Date        time.Time // calendar date, midnight UTC
	Start       TimeOfDay
	End         TimeOfDay
	Status      AppointmentStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SlotAvailability is one row of the clinic day grid.
type SlotAvailability struct {
	Start     TimeOfDay
	Available bool
	Remaining int
}
