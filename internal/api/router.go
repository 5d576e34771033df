package api

import (
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires the ledger routes. The {id} pattern only matches
// digits, so a non-numeric customer id falls through to a plain 404
// before any handler runs.
func NewRouter(h *Handler) *mux.Router {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/health", h.HealthCheckHandler).Methods("GET")
	r.HandleFunc("/customers/{id:[0-9]+}/transaction", h.CreateTransactionHandler).Methods("POST")
	r.HandleFunc("/customers/{id:[0-9]+}/statement", h.GetStatementHandler).Methods("GET")
	return r
}
