package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type RouterOptions struct {
	AllowedOrigins []string
	// Middleware runs after recovery and CORS, in order.
	Middleware []func(http.Handler) http.Handler
}

func Router(h *Handler, opts RouterOptions) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))
	for _, mw := range opts.Middleware {
		r.Use(mw)
	}

	r.Get("/v1/health", h.Health)

	r.Post("/v1/webhooks/twilio", h.TwilioWebhook)
	r.Post("/v1/campaigns/{stage}", h.RunCampaign)

	r.Route("/v1/leads", func(r chi.Router) {
		r.Get("/", h.ListLeads)
		r.Get("/stats", h.LeadStats)
		r.Post("/import", h.ImportLeads)
		r.Get("/import/template", h.ImportTemplate)
		r.Delete("/{id}", h.DeleteLead)
	})

	r.Get("/v1/templates", h.ListTemplates)
	r.Get("/v1/templates/{category}", h.CategoryTemplates)
	r.Post("/v1/classify", h.Classify)

	r.Get("/v1/scheduler/status", h.SchedulerStatus)
	r.Post("/v1/scheduler/{job}/start", h.SchedulerStart)
	r.Post("/v1/scheduler/{job}/stop", h.SchedulerStop)

	if h.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.Metrics)
	}

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("lead-outreach"))
	})

	return r
}
