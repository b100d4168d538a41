package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SetupRoutes configures the router: public tracking endpoints at the
// root, organization-scoped management endpoints under /api.
func SetupRoutes(h *Handlers, allowedOrigins ...string) *chi.Mux {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"https://projectinsight.io", "http://localhost:5173", "http://localhost:8080"}
	}

	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", h.HealthCheck)

	// Public tracking endpoints hit by mail clients and the survey
	// frontend. Tokens are the only credential.
	r.Route("/track", func(r chi.Router) {
		r.Get("/open/{token}", h.TrackOpen)
		r.Get("/click/{token}", h.TrackClick)
		r.Post("/respond/{token}", h.RecordResponse)
	})

	r.Route("/api/orgs/{orgID}", func(r chi.Router) {
		r.Post("/invitations/send", h.SendBulkInvitations)
		r.Post("/surveys/{surveyID}/invitations/retry", h.RetryFailedInvitations)
		r.Post("/templates/defaults", h.ProvisionDefaultTemplates)

		r.Route("/campaigns", func(r chi.Router) {
			r.Get("/", h.ListCampaigns)
			r.Post("/", h.CreateCampaign)
			r.Get("/{campaignID}", h.GetCampaign)
			r.Get("/{campaignID}/analytics", h.GetCampaignAnalytics)
			r.Post("/{campaignID}/send", h.SendCampaign)
			r.Post("/{campaignID}/pause", h.PauseCampaign)
			r.Post("/{campaignID}/resume", h.ResumeCampaign)
			r.Post("/{campaignID}/schedule", h.ScheduleCampaign)
		})

		r.Route("/webhooks", func(r chi.Router) {
			r.Get("/", h.ListWebhooks)
			r.Post("/", h.CreateWebhook)
			r.Delete("/{webhookID}", h.DeleteWebhook)
			r.Post("/{webhookID}/reactivate", h.ReactivateWebhook)
		})
	})

	return r
}
