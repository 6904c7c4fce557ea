package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/medibook/appointment-booking/internal/admin"
	"github.com/medibook/appointment-booking/internal/appointment"
	"github.com/medibook/appointment-booking/internal/settings"
	"github.com/medibook/appointment-booking/internal/user"
	"github.com/medibook/appointment-booking/pkg/logging"
)

type RouterConfig struct {
	Appointments *appointment.Service
	Users        *user.Service
	UserRepo     user.Repository
	Settings     settings.Store
	Stats        *admin.StatsRepository
	PgPool       *pgxpool.Pool
	Redis        *redis.Client
	Logger       *logging.Logger
	Env          string
	Version      string
}

func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}

	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(IdentityMiddleware(cfg.UserRepo))

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Doctor directory
	r.Get("/doctors", listDoctorsHandler(cfg.Users))
	r.Get("/doctors/{id}", getDoctorHandler(cfg.Users))
	r.Get("/doctors/available-slots", availableSlotsHandler(cfg.Appointments))
	r.Put("/doctors/availability", updateAvailabilityHandler(cfg.Users))

	// Appointment endpoints
	r.Post("/appointments", bookAppointmentHandler(cfg.Appointments))
	r.Get("/appointments", listAppointmentsHandler(cfg.Appointments))
	r.Get("/appointments/{id}", getAppointmentHandler(cfg.Appointments))
	r.Post("/appointments/{id}/confirm", confirmAppointmentHandler(cfg.Appointments))
	r.Post("/appointments/{id}/cancel", cancelAppointmentHandler(cfg.Appointments))
	r.Post("/appointments/{id}/complete", completeAppointmentHandler(cfg.Appointments))
	r.Post("/appointments/{id}/no-show", noShowAppointmentHandler(cfg.Appointments))
	r.Post("/appointments/{id}/rate", rateAppointmentHandler(cfg.Appointments))
	r.Patch("/appointments/{id}/notes", updateNotesHandler(cfg.Appointments))

	// Admin endpoints
	r.Get("/admin/settings", getSettingsHandler(cfg.Settings))
	r.Put("/admin/settings", updateSettingsHandler(cfg.Settings))
	r.Get("/admin/stats", dashboardStatsHandler(cfg.Stats))
	r.Get("/admin/analytics", systemAnalyticsHandler(cfg.Stats))

	return r
}
