package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/carehub/clinic-ops/internal/booking"
	"github.com/carehub/clinic-ops/internal/queue"
	"github.com/carehub/clinic-ops/internal/scheduler"
)

type RouterConfig struct {
	Scheduler *scheduler.Scheduler
	PgPool    *pgxpool.Pool
	Redis     *redis.Client
	Logger    *zap.Logger
	Env       string
	Version   string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(httprate.LimitByIP(100, time.Minute))

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	sched := cfg.Scheduler

	r.Route("/appointments", func(r chi.Router) {
		r.Post("/", createAppointmentHandler(sched))
		r.Get("/", listAppointmentsHandler(sched))
		r.Post("/{id}/confirm", appointmentTransitionHandler(func(req *http.Request, id uuid.UUID) (*booking.Appointment, error) {
			return sched.ConfirmAppointment(req.Context(), id)
		}))
		r.Post("/{id}/cancel", appointmentTransitionHandler(func(req *http.Request, id uuid.UUID) (*booking.Appointment, error) {
			return sched.CancelAppointment(req.Context(), id)
		}))
		r.Post("/{id}/complete", appointmentTransitionHandler(func(req *http.Request, id uuid.UUID) (*booking.Appointment, error) {
			return sched.CompleteAppointment(req.Context(), id)
		}))
	})

	r.Route("/availability", func(r chi.Router) {
		r.Get("/day", dayScheduleHandler(sched))
		r.Get("/check", checkAvailabilityHandler(sched))
	})

	r.Route("/queue", func(r chi.Router) {
		r.Post("/", checkInWalkInHandler(sched))
		r.Get("/next", nextWalkInHandler(sched))
		r.Post("/next", callNextWalkInHandler(sched))
		r.Get("/summary", queueSummaryHandler(sched))
		r.Post("/{id}/absent", queueTransitionHandler(func(req *http.Request, id uuid.UUID) (*queue.Entry, error) {
			return sched.MarkWalkInAbsent(req.Context(), id)
		}))
		r.Post("/{id}/complete", queueTransitionHandler(func(req *http.Request, id uuid.UUID) (*queue.Entry, error) {
			return sched.CompleteWalkIn(req.Context(), id)
		}))
	})

	r.Route("/inventory", func(r chi.Router) {
		r.Post("/batches", receiveStockHandler(sched))
		r.Post("/dispense", dispenseHandler(sched))
	})

	r.Route("/reservations", func(r chi.Router) {
		r.Post("/", reserveMedicineHandler(sched))
		r.Post("/{id}/cancel", cancelReservationHandler(sched))
		r.Post("/{id}/fulfill", fulfillReservationHandler(sched))
	})

	return r
}
