/*
handlers.go - HTTP API handlers for the loyalty points service

PURPOSE:
  Exposes the transaction saga and read-only views of accounts and
  transactions via REST API. Handles HTTP request/response, JSON
  serialization, and delegates to the saga and the store.

ENDPOINTS:
  Transactions:
    POST   /api/transactions                 Submit a purchase (runs the saga)
    GET    /api/transactions/{id}            Get one transaction

  Accounts:
    GET    /api/accounts/{id}                Current points balance
    GET    /api/accounts/{id}/transactions   History, newest first

  Health:
    GET    /health

ERROR HANDLING:
  Saga errors map to a status and a stable machine-readable code:
  - 400 invalid_request         malformed body, non-positive amount
  - 400 reference_not_found     unknown user or bar
  - 500 persistence_error       storage write failed
  - 502 external_service_error  code generation failed
  - 500 balance_credit_error    completed but not credited
  - 404 not_found               lookups

SECURITY NOTE:
  No authentication. Bearer token handling sits in front of this service.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - loyalty/saga.go: The transaction pipeline
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/warp/loyalty-engine/loyalty"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	Store  loyalty.Store
	Saga   *loyalty.Saga
	Logger *slog.Logger
}

// NewHandler creates a new handler.
func NewHandler(store loyalty.Store, saga *loyalty.Saga, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{Store: store, Saga: saga, Logger: logger.With("component", "api")}
}

// =============================================================================
// TRANSACTION ENDPOINTS
// =============================================================================

// CreateTransaction runs the saga synchronously for one purchase.
func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req CreateTransactionRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON", err)
		return
	}

	receipt, err := h.Saga.Submit(r.Context(), loyalty.Request{
		AccountID: loyalty.AccountID(req.UserID),
		VenueID:   loyalty.VenueID(req.BarID),
		Amount:    req.Amount,
	})
	if err != nil {
		h.writeSagaError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toReceiptDTO(receipt))
}

// GetTransaction returns a single transaction.
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	rec, err := h.Store.GetTransaction(r.Context(), loyalty.TransactionID(id))
	if errors.Is(err, loyalty.ErrTransactionNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "transaction not found", nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "persistence_error", "failed to get transaction", err)
		return
	}

	writeJSON(w, http.StatusOK, toTransactionDTO(rec))
}

// =============================================================================
// ACCOUNT ENDPOINTS
// =============================================================================

// GetAccount returns the current balance.
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	acct, err := h.Store.GetAccount(r.Context(), loyalty.AccountID(id))
	if errors.Is(err, loyalty.ErrAccountNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "account not found", nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "persistence_error", "failed to get account", err)
		return
	}

	writeJSON(w, http.StatusOK, AccountDTO{ID: int64(acct.ID), PointsBalance: acct.Balance})
}

// GetAccountTransactions returns the account's history, newest first.
func (h *Handler) GetAccountTransactions(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	if _, err := h.Store.GetAccount(ctx, loyalty.AccountID(id)); err != nil {
		if errors.Is(err, loyalty.ErrAccountNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "account not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "persistence_error", "failed to get account", err)
		return
	}

	recs, err := h.Store.ListTransactions(ctx, loyalty.AccountID(id))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "persistence_error", "failed to list transactions", err)
		return
	}

	writeJSON(w, http.StatusOK, toTransactionDTOs(recs))
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// =============================================================================
// HELPERS
// =============================================================================

// writeSagaError maps the saga's closed error set onto HTTP.
func (h *Handler) writeSagaError(w http.ResponseWriter, err error) {
	var (
		verr *loyalty.ValidationError
		rerr *loyalty.ReferenceNotFoundError
		perr *loyalty.PersistenceError
		xerr *loyalty.ExternalServiceError
		berr *loyalty.BalanceCreditError
	)

	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, "invalid_request", verr.Error(), nil)
	case errors.As(err, &rerr):
		writeError(w, http.StatusBadRequest, "reference_not_found", rerr.Error(), nil)
	case errors.As(err, &xerr):
		writeError(w, http.StatusBadGateway, "external_service_error", "code generation failed",
			map[string]any{"transactionId": xerr.TransactionID})
	case errors.As(err, &berr):
		writeError(w, http.StatusInternalServerError, "balance_credit_error", "points were not credited",
			map[string]any{"transactionId": berr.Transaction.ID})
	case errors.As(err, &perr):
		writeError(w, http.StatusInternalServerError, "persistence_error", "failed to record transaction", nil)
	default:
		h.Logger.Error("unexpected saga error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error", nil)
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", fmt.Sprintf("invalid id %q", raw), nil)
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes the error envelope. details may be an error, whose
// message is included, or any JSON-encodable value.
func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	resp := ErrorResponse{Error: message, Code: code}
	switch d := details.(type) {
	case nil:
	case error:
		resp.Details = d.Error()
	default:
		resp.Details = d
	}
	writeJSON(w, status, resp)
}
