package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"healthpass/internal/platform/middleware"
)

// NewRouter assembles the API surface. Everything under the authenticated
// group requires a bearer token; health and metrics stay open.
func NewRouter(h *Handler, validator *middleware.TokenValidator) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestMetadata)

	r.Get("/healthz", h.healthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(validator, h.log))

		r.Route("/authority/applications", func(r chi.Router) {
			r.Post("/", h.submitApplication)
			r.Get("/", h.listPendingApplications)
			r.Get("/{identity}", h.getApplication)
			r.Post("/{identity}/approve", h.approveApplication)
			r.Post("/{identity}/reject", h.rejectApplication)
		})

		r.Route("/authorities", func(r chi.Router) {
			r.Get("/", h.listAuthorities)
			r.Get("/stats", h.authorityStats)
			r.Get("/{identity}", h.getAuthority)
			r.Patch("/{identity}/status", h.updateStatus)
			r.Patch("/{identity}/contact", h.updateContactInfo)
			r.Patch("/{identity}/certificate", h.updateCertificate)
		})

		r.Route("/proofs", func(r chi.Router) {
			r.Post("/", h.submitProof)
			r.Get("/", h.listProofs)
			r.Get("/{proofHash}", h.getProof)
			r.Post("/{proofHash}/verify", h.verifyProof)
			r.Post("/{proofHash}/revoke", h.revokeProof)
			r.Get("/{proofHash}/verifications", h.verificationHistory)
		})

		r.Post("/records/{recordHash}/revoke", h.revokeHealthRecord)

		r.Get("/stats", h.systemStats)

		r.Route("/admin", func(r chi.Router) {
			r.Post("/pause", h.pause)
			r.Post("/unpause", h.unpause)
			r.Post("/roles/grant", h.grantRole)
			r.Post("/roles/revoke", h.revokeRole)
		})
	})

	return r
}
