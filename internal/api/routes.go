package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

// SetupRoutes builds the daemon's HTTP router. metricsHandler may be nil when
// the exposition endpoint is disabled.
func (h *Handler) SetupRoutes(metricsHandler http.Handler, metricsPath string) *mux.Router {
	r := mux.NewRouter()
	r.Use(loggingMiddleware(h.logger))
	r.Use(recoveryMiddleware(h.logger))

	if metricsHandler != nil {
		r.Handle(metricsPath, metricsHandler).Methods("GET")
	}

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/health", h.GetHealth).Methods("GET")
	api.HandleFunc("/privacy/budget", h.GetBudget).Methods("GET")
	api.HandleFunc("/privacy/mean", h.PrivateMean).Methods("POST")
	api.HandleFunc("/privacy/queries", h.GetQueryLog).Methods("GET")
	api.HandleFunc("/erasure-requests", h.SubmitErasureRequest).Methods("POST")
	api.HandleFunc("/erasure-requests/{id}", h.GetErasureRequest).Methods("GET")

	return r
}
