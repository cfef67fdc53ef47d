package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/carehub/clinic-ops/internal/booking"
	"github.com/carehub/clinic-ops/internal/inventory"
	"github.com/carehub/clinic-ops/internal/queue"
)

type CreateAppointmentRequest struct {
	PatientID   string `json:"patient_id" validate:"required,uuid4"`
	ServiceType string `json:"service_type" validate:"required,oneof=Medical Dental"`
	Date        string `json:"date" validate:"required,datetime=2006-01-02"`
	Start       string `json:"start" validate:"required"`
	End         string `json:"end" validate:"required"`
}

type AppointmentResponse struct {
	ID          uuid.UUID `json:"id"`
	PatientID   uuid.UUID `json:"patient_id"`
	ServiceType string    `json:"service_type"`
	Date        string    `json:"date"`
	Start       string    `json:"start"`
	End         string    `json:"end"`
	Status      string    `json:"status"`
}

func toAppointmentResponse(a *booking.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:          a.ID,
		PatientID:   a.PatientID,
		ServiceType: string(a.ServiceType),
		Date:        a.Date.Format("2006-01-02"),
		Start:       a.Start.String(),
		End:         a.End.String(),
		Status:      string(a.Status),
	}
}

type SlotResponse struct {
	Start     string `json:"start"`
	Available bool   `json:"available"`
	Remaining int    `json:"remaining"`
}

type DayScheduleResponse struct {
	Date    string         `json:"date"`
	Service string         `json:"service"`
	Slots   []SlotResponse `json:"slots"`
}

type AvailabilityResponse struct {
	Available bool `json:"available"`
}

type CheckInRequest struct {
	PatientName string `json:"patient_name" validate:"required"`
	Severity    int    `json:"severity_score" validate:"required,min=1,max=3"`
}

type QueueEntryResponse struct {
	ID          uuid.UUID  `json:"id"`
	PatientName string     `json:"patient_name"`
	Severity    int        `json:"severity_score"`
	Priority    string     `json:"priority"`
	ArrivalTime time.Time  `json:"arrival_time"`
	Status      string     `json:"status"`
	ServedAt    *time.Time `json:"served_at,omitempty"`
}

func toQueueEntryResponse(e *queue.Entry) QueueEntryResponse {
	return QueueEntryResponse{
		ID:          e.ID,
		PatientName: e.PatientName,
		Severity:    int(e.Severity),
		Priority:    e.Severity.Label(),
		ArrivalTime: e.ArrivalTime,
		Status:      string(e.Status),
		ServedAt:    e.ServedAt,
	}
}

type QueueSummaryResponse struct {
	WaitingTotal int                 `json:"waiting_total"`
	Waiting      map[string]int      `json:"waiting_by_priority"`
	Serving      *QueueEntryResponse `json:"serving,omitempty"`
}

type ReceiveStockRequest struct {
	MedicineName string `json:"medicine_name" validate:"required"`
	BatchID      string `json:"batch_id" validate:"required"`
	ExpiryDate   string `json:"expiry_date" validate:"required,datetime=2006-01-02"`
	Quantity     int    `json:"quantity" validate:"required,gt=0"`
}

type BatchResponse struct {
	MedicineName   string `json:"medicine_name"`
	BatchID        string `json:"batch_id"`
	ExpiryDate     string `json:"expiry_date"`
	QuantityOnHand int    `json:"quantity_on_hand"`
}

func toBatchResponse(b *inventory.Batch) BatchResponse {
	return BatchResponse{
		MedicineName:   b.MedicineName,
		BatchID:        b.BatchID,
		ExpiryDate:     b.ExpiryDate.Format("2006-01-02"),
		QuantityOnHand: b.QuantityOnHand,
	}
}

type DispenseRequest struct {
	MedicineName string `json:"medicine_name" validate:"required"`
	Quantity     int    `json:"quantity" validate:"required,gt=0"`
}

type BatchConsumptionResponse struct {
	BatchID    string `json:"batch_id"`
	ExpiryDate string `json:"expiry_date"`
	Taken      int    `json:"quantity_dispensed"`
	Remaining  int    `json:"remaining_in_batch"`
}

type DispenseResponse struct {
	MedicineName string                     `json:"medicine_name"`
	Dispensed    int                        `json:"dispensed"`
	Batches      []BatchConsumptionResponse `json:"batches_used"`
}

func toDispenseResponse(r *inventory.DispenseResult) DispenseResponse {
	resp := DispenseResponse{
		MedicineName: r.MedicineName,
		Dispensed:    r.Dispensed,
	}
	for _, b := range r.Batches {
		resp.Batches = append(resp.Batches, BatchConsumptionResponse{
			BatchID:    b.BatchID,
			ExpiryDate: b.ExpiryDate.Format("2006-01-02"),
			Taken:      b.Taken,
			Remaining:  b.Remaining,
		})
	}
	return resp
}

type ReserveMedicineRequest struct {
	PatientID    string `json:"patient_id" validate:"required,uuid4"`
	MedicineName string `json:"medicine_name" validate:"required"`
	Quantity     int    `json:"quantity" validate:"required,gt=0"`
}

type ReservationResponse struct {
	ID           uuid.UUID `json:"id"`
	PatientID    uuid.UUID `json:"patient_id"`
	MedicineName string    `json:"medicine_name"`
	Quantity     int       `json:"quantity"`
	Status       string    `json:"status"`
	ReservedAt   time.Time `json:"reserved_at"`
}

func toReservationResponse(r *inventory.Reservation) ReservationResponse {
	return ReservationResponse{
		ID:           r.ID,
		PatientID:    r.PatientID,
		MedicineName: r.MedicineName,
		Quantity:     r.Quantity,
		Status:       string(r.Status),
		ReservedAt:   r.ReservedAt,
	}
}

type FulfillReservationResponse struct {
	Reservation ReservationResponse `json:"reservation"`
	Dispense    DispenseResponse    `json:"dispense"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
