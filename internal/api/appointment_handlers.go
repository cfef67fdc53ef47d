package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/carehub/clinic-ops/internal/booking"
	"github.com/carehub/clinic-ops/internal/scheduler"
)

var validate = validator.New()

func createAppointmentHandler(sched *scheduler.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if err := validate.Struct(req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}

		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}

		date, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}

		start, err := booking.ParseTimeOfDay(req.Start)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_start", "start must be HH:MM")
			return
		}
		end, err := booking.ParseTimeOfDay(req.End)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_end", "end must be HH:MM")
			return
		}

		appt, err := sched.RequestAppointment(r.Context(), patientID, booking.ServiceType(req.ServiceType), date, start, end)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func appointmentTransitionHandler(fn func(r *http.Request, id uuid.UUID) (*booking.Appointment, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		appt, err := fn(r, id)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func listAppointmentsHandler(sched *scheduler.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patientID, err := uuid.Parse(r.URL.Query().Get("patient_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}

		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

		appts, err := sched.PatientAppointments(r.Context(), patientID, limit, offset)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		resp := make([]AppointmentResponse, 0, len(appts))
		for i := range appts {
			resp = append(resp, toAppointmentResponse(&appts[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func dayScheduleHandler(sched *scheduler.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date, serviceType, ok := parseDateService(w, r)
		if !ok {
			return
		}

		slots, err := sched.DaySchedule(r.Context(), date, serviceType)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		resp := DayScheduleResponse{
			Date:    date.Format("2006-01-02"),
			Service: string(serviceType),
		}
		for _, s := range slots {
			resp.Slots = append(resp.Slots, SlotResponse{
				Start:     s.Start.String(),
				Available: s.Available,
				Remaining: s.Remaining,
			})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func checkAvailabilityHandler(sched *scheduler.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date, serviceType, ok := parseDateService(w, r)
		if !ok {
			return
		}

		start, err := booking.ParseTimeOfDay(r.URL.Query().Get("start"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_start", "start must be HH:MM")
			return
		}

		var available bool
		if endStr := r.URL.Query().Get("end"); endStr != "" {
			end, err := booking.ParseTimeOfDay(endStr)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_end", "end must be HH:MM")
				return
			}
			available, err = sched.RangeAvailable(r.Context(), date, serviceType, start, end)
			if err != nil {
				writeDomainError(w, err)
				return
			}
		} else {
			available, err = sched.SlotAvailable(r.Context(), date, serviceType, start)
			if err != nil {
				writeDomainError(w, err)
				return
			}
		}

		writeJSON(w, http.StatusOK, AvailabilityResponse{Available: available})
	}
}

func parseDateService(w http.ResponseWriter, r *http.Request) (time.Time, booking.ServiceType, bool) {
	date, err := time.Parse("2006-01-02", r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
		return time.Time{}, "", false
	}

	serviceType := booking.ServiceType(r.URL.Query().Get("service"))
	if serviceType == "" {
		serviceType = booking.ServiceMedical
	}

	return date, serviceType, true
}
