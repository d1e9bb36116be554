package router

import (
	"net/http"

	"github.com/gorilla/mux"

	"cpq-engine-api/internal/handler"
	"cpq-engine-api/internal/middleware"
)

// NewRouter creates and configures the HTTP router.
func NewRouter(healthHandler *handler.HealthHandler, authHandler *handler.AuthHandler, quoteHandler *handler.QuoteHandler, authMiddleware *middleware.AuthMiddleware) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", healthHandler.Health).Methods(http.MethodGet)
	r.HandleFunc("/auth/login", authHandler.Login).Methods(http.MethodPost)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(authMiddleware.RequireAuth)

	api.HandleFunc("/quotes", quoteHandler.Create).Methods(http.MethodPost)
	api.HandleFunc("/quotes/{id}/evaluate", quoteHandler.Evaluate).Methods(http.MethodPost)
	api.HandleFunc("/quotes/{id}/similar", quoteHandler.FindSimilar).Methods(http.MethodGet)
	api.HandleFunc("/quotes/{id}/versions/{version}/explain", quoteHandler.Explain).Methods(http.MethodGet)
	api.HandleFunc("/approvals/{id}/decide", quoteHandler.DecideApproval).Methods(http.MethodPost)

	return r
}
