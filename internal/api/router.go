/**
 * @description
 * This file sets up the HTTP router for the compliance-service. It defines the API
 * endpoints, associates them with their corresponding handlers, and applies any
 * necessary middleware, such as for authentication.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// ComplianceRoutes creates and returns a new router for the compliance service.
func ComplianceRoutes(h *ComplianceHandlers, jwtSecret string) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// Group routes that require tenant authentication.
	r.Group(func(r chi.Router) {
		r.Use(TenantAuthMiddleware(jwtSecret))

		r.Post("/eligibility/checks", h.CheckEligibilityHandler)

		r.Post("/transfers", h.CreateTransferHandler)
		r.Get("/transfers", h.ListTransfersHandler)
		r.Post("/transfers/{transferID}/complete", h.CompleteTransferHandler)
		r.Post("/transfers/{transferID}/cancel", h.CancelTransferHandler)

		r.Post("/clients", h.RegisterClientHandler)
		r.Get("/clients/{documentNumber}", h.GetClientHandler)
	})

	return r
}
