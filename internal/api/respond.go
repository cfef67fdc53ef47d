package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/carehub/clinic-ops/internal/booking"
	"github.com/carehub/clinic-ops/internal/inventory"
	"github.com/carehub/clinic-ops/internal/lock"
	"github.com/carehub/clinic-ops/internal/queue"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// writeDomainError maps the core's typed errors to HTTP codes. Business
// failures are values, not 500s; only unrecognized errors fall through to
// internal_error.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, booking.ErrSlotFull):
		writeError(w, http.StatusConflict, "slot_full", err.Error())
	case errors.Is(err, booking.ErrInvalidRange), errors.Is(err, booking.ErrPastDate):
		writeError(w, http.StatusBadRequest, "invalid_slot_request", err.Error())
	case errors.Is(err, queue.ErrInvalidSeverity):
		writeError(w, http.StatusBadRequest, "invalid_severity", err.Error())
	case errors.Is(err, inventory.ErrInvalidQuantity):
		writeError(w, http.StatusBadRequest, "invalid_quantity", err.Error())
	case errors.Is(err, booking.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, booking.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, queue.ErrEntryNotFound):
		writeError(w, http.StatusNotFound, "queue_entry_not_found", err.Error())
	case errors.Is(err, inventory.ErrMedicineNotFound), errors.Is(err, inventory.ErrBatchNotFound):
		writeError(w, http.StatusNotFound, "medicine_not_found", err.Error())
	case errors.Is(err, inventory.ErrReservationNotFound):
		writeError(w, http.StatusNotFound, "reservation_not_found", err.Error())
	case errors.Is(err, inventory.ErrInsufficientStock):
		writeError(w, http.StatusConflict, "insufficient_stock", err.Error())
	case errors.Is(err, inventory.ErrDuplicateBatch):
		writeError(w, http.StatusConflict, "duplicate_batch", err.Error())
	case errors.Is(err, booking.ErrInvalidTransition),
		errors.Is(err, queue.ErrInvalidTransition),
		errors.Is(err, inventory.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, booking.ErrConcurrentModification),
		errors.Is(err, queue.ErrConcurrentModification),
		errors.Is(err, inventory.ErrConcurrentModification),
		errors.Is(err, lock.ErrNotAcquired):
		writeError(w, http.StatusConflict, "concurrent_modification", "resource is being updated, please retry shortly")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
