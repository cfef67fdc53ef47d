package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/carehub/clinic-ops/internal/queue"
	"github.com/carehub/clinic-ops/internal/scheduler"
)

func checkInWalkInHandler(sched *scheduler.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CheckInRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if err := validate.Struct(req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}

		entry, err := sched.CheckInWalkIn(r.Context(), req.PatientName, queue.Severity(req.Severity))
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toQueueEntryResponse(entry))
	}
}

func nextWalkInHandler(sched *scheduler.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entry, err := sched.NextWalkIn(r.Context())
		if err != nil {
			writeDomainError(w, err)
			return
		}
		if entry == nil {
			writeJSON(w, http.StatusOK, map[string]any{"next_patient": nil})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"next_patient": toQueueEntryResponse(entry)})
	}
}

func callNextWalkInHandler(sched *scheduler.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entry, err := sched.CallNextWalkIn(r.Context())
		if err != nil {
			writeDomainError(w, err)
			return
		}
		if entry == nil {
			writeJSON(w, http.StatusOK, map[string]any{"called": nil, "message": "queue empty"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"called": toQueueEntryResponse(entry)})
	}
}

func queueTransitionHandler(fn func(r *http.Request, id uuid.UUID) (*queue.Entry, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_entry_id", "id must be a valid UUID")
			return
		}

		entry, err := fn(r, id)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toQueueEntryResponse(entry))
	}
}

func queueSummaryHandler(sched *scheduler.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summary, err := sched.QueueSummary(r.Context())
		if err != nil {
			writeDomainError(w, err)
			return
		}

		resp := QueueSummaryResponse{
			WaitingTotal: summary.WaitingTotal,
			Waiting:      make(map[string]int),
		}
		for sev, n := range summary.WaitingByLevel {
			resp.Waiting[sev.Label()] = n
		}
		if summary.Serving != nil {
			serving := toQueueEntryResponse(summary.Serving)
			resp.Serving = &serving
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
