package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/medtrack/ehr-scheduling/internal/appointment"
	"github.com/medtrack/ehr-scheduling/internal/metrics"
)

type RouterConfig struct {
	Service *appointment.Service
	PgPool  *pgxpool.Pool
	Redis   *redis.Client
	Logger  *zap.Logger
	Metrics *metrics.BookingMetrics
	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	if cfg.Logger != nil {
		r.Use(LoggingMiddleware(cfg.Logger))
	}
	if cfg.Metrics != nil {
		r.Use(MetricsMiddleware(cfg.Metrics))
	}

	// Health and metrics endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Handle("/metrics", promhttp.Handler())

	// Appointment endpoints
	svc := cfg.Service
	r.Route("/appointments", func(r chi.Router) {
		r.Get("/", listAppointmentsHandler(svc))
		r.Post("/", createAppointmentHandler(svc))
		r.Get("/upcoming", upcomingAppointmentsHandler(svc))
		r.Get("/range", rangeAppointmentsHandler(svc))
		r.Get("/stats", statsHandler(svc))
		r.Get("/available-slots/{date}/{doctor}", availableSlotsHandler(svc))

		r.Get("/{id}", getAppointmentHandler(svc))
		r.Get("/{id}/events", appointmentEventsHandler(svc))
		r.Put("/{id}", updateAppointmentHandler(svc))
		r.Patch("/{id}", updateAppointmentHandler(svc))
		r.Delete("/{id}", deleteAppointmentHandler(svc))

		r.Patch("/{id}/cancel", transitionHandler(func(req *http.Request, id uuid.UUID) (*appointment.Appointment, error) {
			return svc.Cancel(req.Context(), id)
		}))
		r.Post("/{id}/confirm", transitionHandler(func(req *http.Request, id uuid.UUID) (*appointment.Appointment, error) {
			return svc.Confirm(req.Context(), id)
		}))
		r.Post("/{id}/complete", transitionHandler(func(req *http.Request, id uuid.UUID) (*appointment.Appointment, error) {
			return svc.Complete(req.Context(), id)
		}))
	})

	return r
}
