// Package api exposes the ledger engine over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mstanton/ledgerd/internal/ledger"
	"github.com/mstanton/ledgerd/internal/models"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledgerd_http_requests_total",
		Help: "Total HTTP requests processed, labeled by status code",
	}, []string{"method", "endpoint", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledgerd_http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"method", "endpoint"})
)

type Handler struct {
	engine *ledger.Engine
}

func NewHandler(engine *ledger.Engine) *Handler {
	return &Handler{engine: engine}
}

func (h *Handler) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"}, "GET", "/health")
}

// CreateTransactionHandler applies one credit or debit to a customer.
func (h *Handler) CreateTransactionHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/customers/{id}/transaction"
	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues("POST", endpoint))
	defer timer.ObserveDuration()

	customerID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondWithError(w, http.StatusNotFound, "Customer not found", "POST", endpoint)
		return
	}

	// Non-integer values fail to decode and count as invalid input,
	// the same as out-of-range fields. Unknown fields are ignored.
	var req models.TransactionRequest
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&req); err != nil {
		respondWithError(w, http.StatusUnprocessableEntity, "Malformed transaction body", "POST", endpoint)
		return
	}

	state, err := h.engine.ApplyTransaction(r.Context(), customerID, req)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrInvalidInput):
			respondWithError(w, http.StatusUnprocessableEntity, err.Error(), "POST", endpoint)
		case errors.Is(err, ledger.ErrLimitExceeded):
			respondWithError(w, http.StatusUnprocessableEntity, "Overdraft limit exceeded", "POST", endpoint)
		case errors.Is(err, ledger.ErrCustomerNotFound):
			respondWithError(w, http.StatusNotFound, "Customer not found", "POST", endpoint)
		default:
			log.Printf("transaction failed: %v", err)
			respondWithError(w, http.StatusInternalServerError, "Ledger unavailable", "POST", endpoint)
		}
		return
	}

	respondWithJSON(w, http.StatusOK, state, "POST", endpoint)
}

// GetStatementHandler returns the balance and the 10 most recent
// transactions as one consistent snapshot.
func (h *Handler) GetStatementHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/customers/{id}/statement"
	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues("GET", endpoint))
	defer timer.ObserveDuration()

	customerID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondWithError(w, http.StatusNotFound, "Customer not found", "GET", endpoint)
		return
	}

	stmt, err := h.engine.GetStatement(r.Context(), customerID)
	if err != nil {
		if errors.Is(err, ledger.ErrCustomerNotFound) {
			respondWithError(w, http.StatusNotFound, "Customer not found", "GET", endpoint)
			return
		}
		log.Printf("statement failed: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Ledger unavailable", "GET", endpoint)
		return
	}

	respondWithJSON(w, http.StatusOK, stmt, "GET", endpoint)
}

func respondWithError(w http.ResponseWriter, code int, message, method, endpoint string) {
	respondWithJSON(w, code, map[string]string{"error": message}, method, endpoint)
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}, method, endpoint string) {
	httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(code)).Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}
