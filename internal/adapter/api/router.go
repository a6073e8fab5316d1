package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/V4T54L/vetclinic/internal/adapter/api/handler"
	"github.com/V4T54L/vetclinic/internal/adapter/api/middleware"
	"github.com/V4T54L/vetclinic/internal/adapter/metrics"
	"github.com/V4T54L/vetclinic/internal/pkg/auth"
	"github.com/V4T54L/vetclinic/internal/usecase"
)

// RouterDeps are the collaborators of the clinic-facing router.
type RouterDeps struct {
	Logger      *slog.Logger
	Metrics     *metrics.Metrics
	Resolver    middleware.Resolver
	Issuer      *auth.Issuer
	Clinic      *usecase.ClinicService
	Development bool
}

// NewRouter creates and configures the main HTTP router. Every route except
// /health runs behind tenant resolution.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.Logging(deps.Logger, deps.Metrics))
	r.Use(chimw.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	branding := handler.NewBrandingHandler(deps.Logger)
	authHandler := handler.NewAuthHandler(deps.Clinic, deps.Logger)
	clinic := handler.NewClinicHandler(deps.Clinic, deps.Logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Tenant(deps.Resolver, deps.Logger))
		r.Use(middleware.RequireTenant(deps.Development, deps.Logger))

		r.Get("/branding", branding.Get)
		r.Post("/auth/login", authHandler.Login)

		r.Group(func(r chi.Router) {
			r.Use(middleware.StaffAuth(deps.Issuer, deps.Logger))

			r.Get("/clients", clinic.ListClients)
			r.Post("/clients", clinic.CreateClient)
			r.Get("/clients/{id}", clinic.GetClient)
			r.Put("/clients/{id}", clinic.UpdateClient)
			r.Delete("/clients/{id}", clinic.DeleteClient)
			r.Get("/clients/{id}/pets", clinic.ListPets)
			r.Post("/clients/{id}/pets", clinic.CreatePet)

			r.Get("/pets/{id}", clinic.GetPet)
			r.Put("/pets/{id}", clinic.UpdatePet)
			r.Delete("/pets/{id}", clinic.DeletePet)

			r.Get("/appointments", clinic.ListAppointments)
			r.Post("/appointments", clinic.CreateAppointment)
			r.Patch("/appointments/{id}/status", clinic.UpdateAppointmentStatus)
		})
	})

	return r
}
