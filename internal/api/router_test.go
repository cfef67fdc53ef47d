package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/carehub/clinic-ops/internal/booking"
	"github.com/carehub/clinic-ops/internal/config"
	"github.com/carehub/clinic-ops/internal/inventory"
	"github.com/carehub/clinic-ops/internal/lock"
	"github.com/carehub/clinic-ops/internal/queue"
	"github.com/carehub/clinic-ops/internal/scheduler"
)

func newTestRouter(t *testing.T) (http.Handler, uuid.UUID) {
	t.Helper()

	cfg := config.Config{
		DentalCapacity:  2,
		MedicalCapacity: 3,
		DefaultCapacity: 2,
		ClinicOpenHour:  9,
		ClinicCloseHour: 17,
		SlotDuration:    30 * time.Minute,
	}
	locker := lock.NewKeyMutex()
	log := zap.NewNop()

	bookingRepo := booking.NewMemoryRepository()
	patientID := uuid.New()
	bookingRepo.AddPatient(booking.Patient{ID: patientID, Name: "Test Patient"})

	sched := scheduler.New(
		booking.NewService(bookingRepo, locker, cfg, log),
		queue.NewService(queue.NewMemoryRepository(), locker, log),
		inventory.NewService(inventory.NewMemoryRepository(), locker, log),
		log,
	)

	return NewRouter(RouterConfig{
		Scheduler: sched,
		Logger:    log,
		Env:       "test",
		Version:   "test",
	}), patientID
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealthEndpoints(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/health/live", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAppointmentEndpoints(t *testing.T) {
	router, patientID := newTestRouter(t)
	date := time.Now().AddDate(0, 0, 7).Format("2006-01-02")

	makeBody := func(start, end string) CreateAppointmentRequest {
		return CreateAppointmentRequest{
			PatientID:   patientID.String(),
			ServiceType: "Dental",
			Date:        date,
			Start:       start,
			End:         end,
		}
	}

	t.Run("Create", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/appointments", makeBody("09:00", "09:30"))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		resp := decode[AppointmentResponse](t, rec)
		assert.Equal(t, patientID, resp.PatientID)
		assert.Equal(t, "09:00", resp.Start)
		assert.Equal(t, "Pending", resp.Status)
	})

	t.Run("Slot Full Returns Conflict", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/appointments", makeBody("09:00", "09:30"))
		require.Equal(t, http.StatusCreated, rec.Code)

		rec = doJSON(t, router, http.MethodPost, "/appointments", makeBody("09:00", "09:30"))
		assert.Equal(t, http.StatusConflict, rec.Code)

		resp := decode[ErrorResponse](t, rec)
		assert.Equal(t, "slot_full", resp.Error)
	})

	t.Run("Invalid Body", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/appointments", map[string]string{"service_type": "Surgery"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Past Date Returns Bad Request", func(t *testing.T) {
		body := makeBody("09:00", "09:30")
		body.Date = time.Now().AddDate(0, 0, -1).Format("2006-01-02")
		rec := doJSON(t, router, http.MethodPost, "/appointments", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Cancel Then Cancel Again", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/appointments", makeBody("10:00", "10:30"))
		require.Equal(t, http.StatusCreated, rec.Code)
		created := decode[AppointmentResponse](t, rec)

		rec = doJSON(t, router, http.MethodPost, fmt.Sprintf("/appointments/%s/cancel", created.ID), nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Cancelled", decode[AppointmentResponse](t, rec).Status)

		rec = doJSON(t, router, http.MethodPost, fmt.Sprintf("/appointments/%s/cancel", created.ID), nil)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("Unknown Appointment Returns Not Found", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, fmt.Sprintf("/appointments/%s/confirm", uuid.New()), nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("List By Patient", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/appointments?patient_id="+patientID.String(), nil)
		require.Equal(t, http.StatusOK, rec.Code)
		appts := decode[[]AppointmentResponse](t, rec)
		assert.NotEmpty(t, appts)
	})

	t.Run("Availability Check", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/availability/check?date="+date+"&service=Dental&start=09:00", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.False(t, decode[AvailabilityResponse](t, rec).Available)

		rec = doJSON(t, router, http.MethodGet, "/availability/check?date="+date+"&service=Dental&start=11:00", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, decode[AvailabilityResponse](t, rec).Available)
	})

	t.Run("Day Schedule", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/availability/day?date="+date+"&service=Dental", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		resp := decode[DayScheduleResponse](t, rec)
		require.Len(t, resp.Slots, 16)
		assert.Equal(t, "09:00", resp.Slots[0].Start)
		assert.False(t, resp.Slots[0].Available)
	})
}

func TestQueueEndpoints(t *testing.T) {
	router, _ := newTestRouter(t)

	t.Run("Empty Queue", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/queue/next", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "queue empty")
	})

	t.Run("Check In And Call", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/queue", CheckInRequest{PatientName: "Bob", Severity: 3})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		rec = doJSON(t, router, http.MethodPost, "/queue", CheckInRequest{PatientName: "Jane", Severity: 1})
		require.Equal(t, http.StatusCreated, rec.Code)

		rec = doJSON(t, router, http.MethodGet, "/queue/next", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Jane")

		rec = doJSON(t, router, http.MethodPost, "/queue/next", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Jane")
		assert.Contains(t, rec.Body.String(), "Serving")
	})

	t.Run("Severity Out Of Range Rejected", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/queue", CheckInRequest{PatientName: "X", Severity: 5})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Summary", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/queue/summary", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		resp := decode[QueueSummaryResponse](t, rec)
		assert.Equal(t, 1, resp.WaitingTotal)
		assert.Equal(t, 1, resp.Waiting["Routine"])
		require.NotNil(t, resp.Serving)
		assert.Equal(t, "Jane", resp.Serving.PatientName)
	})
}

func TestInventoryEndpoints(t *testing.T) {
	router, patientID := newTestRouter(t)
	expiry := time.Now().AddDate(0, 0, 30).Format("2006-01-02")

	t.Run("Receive Stock", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/inventory/batches", ReceiveStockRequest{
			MedicineName: "Paracetamol",
			BatchID:      "B1",
			ExpiryDate:   expiry,
			Quantity:     30,
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		assert.Equal(t, 30, decode[BatchResponse](t, rec).QuantityOnHand)
	})

	t.Run("Dispense", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/inventory/dispense", DispenseRequest{
			MedicineName: "Paracetamol",
			Quantity:     10,
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		resp := decode[DispenseResponse](t, rec)
		assert.Equal(t, 10, resp.Dispensed)
		require.Len(t, resp.Batches, 1)
		assert.Equal(t, 20, resp.Batches[0].Remaining)
	})

	t.Run("Insufficient Stock Returns Conflict", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/inventory/dispense", DispenseRequest{
			MedicineName: "Paracetamol",
			Quantity:     1000,
		})
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("Unknown Medicine Returns Not Found", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/inventory/dispense", DispenseRequest{
			MedicineName: "Unknown",
			Quantity:     1,
		})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("Reservation Lifecycle", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/reservations", ReserveMedicineRequest{
			PatientID:    patientID.String(),
			MedicineName: "Paracetamol",
			Quantity:     5,
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		res := decode[ReservationResponse](t, rec)
		assert.Equal(t, "Reserved", res.Status)

		rec = doJSON(t, router, http.MethodPost, fmt.Sprintf("/reservations/%s/fulfill", res.ID), nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		fulfilled := decode[FulfillReservationResponse](t, rec)
		assert.Equal(t, "PickedUp", fulfilled.Reservation.Status)
		assert.Equal(t, 5, fulfilled.Dispense.Dispensed)

		rec = doJSON(t, router, http.MethodPost, fmt.Sprintf("/reservations/%s/fulfill", res.ID), nil)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}
