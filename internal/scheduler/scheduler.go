// Package scheduler is the boundary the web layer calls. It composes the
// booking, queue, and inventory services behind request-shaped operations,
// each a single atomic unit of work, and fans post-commit events out to the
// notification layer.
package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/carehub/clinic-ops/internal/booking"
	"github.com/carehub/clinic-ops/internal/inventory"
	"github.com/carehub/clinic-ops/internal/notify"
	"github.com/carehub/clinic-ops/internal/queue"
)

type Scheduler struct {
	booking     *booking.Service
	queue       *queue.Service
	inventory   *inventory.Service
	dispatchers []notify.Dispatcher
	log         *zap.Logger
}

func New(bookingSvc *booking.Service, queueSvc *queue.Service, inventorySvc *inventory.Service, log *zap.Logger, dispatchers ...notify.Dispatcher) *Scheduler {
	return &Scheduler{
		booking:     bookingSvc,
		queue:       queueSvc,
		inventory:   inventorySvc,
		dispatchers: dispatchers,
		log:         log,
	}
}

// RequestAppointment books a slot and emits APPOINTMENT_BOOKED on success.
func (s *Scheduler) RequestAppointment(ctx context.Context, patientID uuid.UUID, serviceType booking.ServiceType, date time.Time, start, end booking.TimeOfDay) (*booking.Appointment, error) {
	appt, err := s.booking.Book(ctx, patientID, serviceType, date, start, end)
	if err != nil {
		return nil, err
	}

	s.emit(ctx, notify.EventAppointmentBooked, map[string]any{
		"appointment_id": appt.ID.String(),
		"patient_id":     appt.PatientID.String(),
		"service_type":   string(appt.ServiceType),
		"date":           appt.Date.Format("2006-01-02"),
		"start":          appt.Start.String(),
	})
	return appt, nil
}

// ConfirmAppointment moves a pending appointment to confirmed.
func (s *Scheduler) ConfirmAppointment(ctx context.Context, id uuid.UUID) (*booking.Appointment, error) {
	appt, err := s.booking.Confirm(ctx, id)
	if err != nil {
		return nil, err
	}

	s.emit(ctx, notify.EventAppointmentConfirmed, map[string]any{
		"appointment_id": appt.ID.String(),
	})
	return appt, nil
}

// CancelAppointment cancels a live appointment and emits APPOINTMENT_CANCELLED.
func (s *Scheduler) CancelAppointment(ctx context.Context, id uuid.UUID) (*booking.Appointment, error) {
	appt, err := s.booking.Cancel(ctx, id)
	if err != nil {
		return nil, err
	}

	s.emit(ctx, notify.EventAppointmentCancelled, map[string]any{
		"appointment_id": appt.ID.String(),
		"service_type":   string(appt.ServiceType),
		"date":           appt.Date.Format("2006-01-02"),
		"start":          appt.Start.String(),
	})
	return appt, nil
}

// CompleteAppointment marks a visit done.
func (s *Scheduler) CompleteAppointment(ctx context.Context, id uuid.UUID) (*booking.Appointment, error) {
	return s.booking.Complete(ctx, id)
}

// SlotAvailable applies the production exact-slot capacity rule.
func (s *Scheduler) SlotAvailable(ctx context.Context, date time.Time, serviceType booking.ServiceType, start booking.TimeOfDay) (bool, error) {
	return s.booking.IsSlotAvailable(ctx, date, serviceType, start)
}

// RangeAvailable checks an arbitrary half-open range.
func (s *Scheduler) RangeAvailable(ctx context.Context, date time.Time, serviceType booking.ServiceType, start, end booking.TimeOfDay) (bool, error) {
	return s.booking.IsRangeAvailable(ctx, date, serviceType, start, end)
}

// DaySchedule returns the clinic day grid for the availability view.
func (s *Scheduler) DaySchedule(ctx context.Context, date time.Time, serviceType booking.ServiceType) ([]booking.SlotAvailability, error) {
	return s.booking.DaySchedule(ctx, date, serviceType)
}

// PatientAppointments lists a patient's appointments.
func (s *Scheduler) PatientAppointments(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]booking.Appointment, error) {
	return s.booking.ListByPatient(ctx, patientID, limit, offset)
}

// MarkNoShows sweeps past-due appointments to NoShow.
func (s *Scheduler) MarkNoShows(ctx context.Context, asOf time.Time) (int, error) {
	marked, err := s.booking.MarkNoShows(ctx, asOf)
	if err != nil {
		return 0, err
	}

	if marked > 0 {
		s.emit(ctx, notify.EventAppointmentNoShow, map[string]any{
			"marked": marked,
			"as_of":  asOf.Format("2006-01-02"),
		})
	}
	return marked, nil
}

// CheckInWalkIn adds a walk-in patient to the priority queue.
func (s *Scheduler) CheckInWalkIn(ctx context.Context, patientName string, severity queue.Severity) (*queue.Entry, error) {
	entry, err := s.queue.Enqueue(ctx, patientName, severity)
	if err != nil {
		return nil, err
	}

	s.emit(ctx, notify.EventWalkInCheckedIn, map[string]any{
		"entry_id": entry.ID.String(),
		"severity": entry.Severity.Label(),
	})
	return entry, nil
}

// NextWalkIn peeks at the next patient without calling them.
func (s *Scheduler) NextWalkIn(ctx context.Context) (*queue.Entry, error) {
	return s.queue.NextPatient(ctx)
}

// CallNextWalkIn atomically promotes the next patient to Serving.
// A nil entry with nil error means the queue is empty.
func (s *Scheduler) CallNextWalkIn(ctx context.Context) (*queue.Entry, error) {
	entry, err := s.queue.CallNext(ctx)
	if err != nil || entry == nil {
		return entry, err
	}

	s.emit(ctx, notify.EventWalkInCalled, map[string]any{
		"entry_id": entry.ID.String(),
		"patient":  entry.PatientName,
	})
	return entry, nil
}

// MarkWalkInAbsent marks a queued patient absent.
func (s *Scheduler) MarkWalkInAbsent(ctx context.Context, id uuid.UUID) (*queue.Entry, error) {
	return s.queue.MarkAbsent(ctx, id)
}

// CompleteWalkIn records visit completion for the patient being served.
func (s *Scheduler) CompleteWalkIn(ctx context.Context, id uuid.UUID) (*queue.Entry, error) {
	return s.queue.Complete(ctx, id)
}

// QueueSummary reports the queue state for the display board.
func (s *Scheduler) QueueSummary(ctx context.Context) (*queue.Summary, error) {
	return s.queue.Summary(ctx)
}

// ReserveMedicine holds stock for pickup and emits RESERVATION_READY.
func (s *Scheduler) ReserveMedicine(ctx context.Context, patientID uuid.UUID, medicineName string, quantity int) (*inventory.Reservation, error) {
	res, err := s.inventory.Reserve(ctx, patientID, medicineName, quantity)
	if err != nil {
		return nil, err
	}

	s.emit(ctx, notify.EventReservationReady, map[string]any{
		"reservation_id": res.ID.String(),
		"medicine":       res.MedicineName,
		"quantity":       res.Quantity,
	})
	return res, nil
}

// CancelReservation releases a held reservation.
func (s *Scheduler) CancelReservation(ctx context.Context, id uuid.UUID) (*inventory.Reservation, error) {
	return s.inventory.CancelReservation(ctx, id)
}

// FulfillReservation dispenses the reserved quantity and marks it picked up.
func (s *Scheduler) FulfillReservation(ctx context.Context, id uuid.UUID) (*inventory.Reservation, *inventory.DispenseResult, error) {
	res, dispensed, err := s.inventory.FulfillReservation(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	s.emit(ctx, notify.EventReservationPickedUp, map[string]any{
		"reservation_id": res.ID.String(),
		"medicine":       res.MedicineName,
		"quantity":       res.Quantity,
	})
	return res, dispensed, nil
}

// DispenseMedicine consumes stock FIFO-by-expiry for a clinic visit.
func (s *Scheduler) DispenseMedicine(ctx context.Context, medicineName string, quantity int) (*inventory.DispenseResult, error) {
	result, err := s.inventory.Dispense(ctx, medicineName, quantity)
	if err != nil {
		return nil, err
	}

	s.emit(ctx, notify.EventMedicineDispensed, map[string]any{
		"medicine":        result.MedicineName,
		"quantity":        result.Dispensed,
		"batches_touched": len(result.Batches),
	})
	return result, nil
}

// ReceiveStock records a stock receipt.
func (s *Scheduler) ReceiveStock(ctx context.Context, medicineName, batchID string, expiry time.Time, quantity int) (*inventory.Batch, error) {
	return s.inventory.ReceiveStock(ctx, medicineName, batchID, expiry, quantity)
}

// SweepReservations expires stale medicine holds.
func (s *Scheduler) SweepReservations(ctx context.Context, before time.Time) (int, error) {
	return s.inventory.ExpireStaleReservations(ctx, before)
}

// AlertExpiringStock emits STOCK_EXPIRING_SOON for batches nearing expiry.
func (s *Scheduler) AlertExpiringStock(ctx context.Context, before time.Time) (int, error) {
	batches, err := s.inventory.ExpiringSoon(ctx, before)
	if err != nil {
		return 0, err
	}
	if len(batches) == 0 {
		return 0, nil
	}

	names := make([]string, 0, len(batches))
	for _, b := range batches {
		names = append(names, b.MedicineName+"/"+b.BatchID)
	}
	s.emit(ctx, notify.EventStockExpiringSoon, map[string]any{
		"batches": names,
	})
	return len(batches), nil
}

// emit fans an event out to all dispatchers after the transaction committed.
// Delivery failures are logged, never surfaced to the caller.
func (s *Scheduler) emit(ctx context.Context, eventType string, payload map[string]any) {
	ev := notify.Event{
		Type:       eventType,
		OccurredAt: time.Now(),
		Payload:    payload,
	}

	for _, d := range s.dispatchers {
		if err := d.Dispatch(ctx, ev); err != nil {
			s.log.Error("event dispatch failed",
				zap.String("event_type", eventType),
				zap.Error(err),
			)
		}
	}
}
