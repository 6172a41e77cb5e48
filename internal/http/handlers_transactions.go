package http

import (
	"errors"
	"net/http"

	"tradejoy/internal/core"
	"tradejoy/internal/ledger"
	"tradejoy/internal/log"
)

const (
	defaultListLimit = 50
	maxListLimit     = 1000
)

// transactionRequest is the body of POST /api/transactions. Pointers tell a
// missing field apart from a zero one.
type transactionRequest struct {
	Type        *core.Kind     `json:"type"`
	Amount      *core.Money    `json:"amount"`
	Description *string        `json:"description"`
	Category    *core.Category `json:"category"`
}

func (req transactionRequest) missing() string {
	switch {
	case req.Type == nil:
		return "type"
	case req.Amount == nil:
		return "amount"
	case req.Description == nil:
		return "description"
	}
	return ""
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	limit, err := IntParam(r.URL.Query(), "limit", defaultListLimit, 1, maxListLimit)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	txs := s.ledger.List(limit)
	if txs == nil {
		txs = []core.Transaction{}
	}
	NewJSONResponse().
		Field("transactions", txs).
		Field("count", len(txs)).
		Write(w)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		if errors.Is(err, core.ErrInvalidAmount) {
			UnprocessableEntityError("Invalid transaction: " + core.ErrInvalidAmount.Error()).Write(w)
			return
		}
		bodyError(err).Write(w)
		return
	}
	if field := req.missing(); field != "" {
		BadRequestError("Missing required field: " + field).Write(w)
		return
	}

	entry := core.Entry{
		Kind:        *req.Type,
		Amount:      *req.Amount,
		Description: sanitizeInput(*req.Description),
	}
	if req.Category != nil && *req.Category != "" {
		entry.Category = *req.Category
	} else {
		entry.Category = entry.Kind.DefaultCategory()
	}
	if err := entry.Validate(); err != nil {
		UnprocessableEntityError("Invalid transaction: " + err.Error()).Write(w)
		return
	}

	logger := s.requestLogger(r)
	tx, err := s.ledger.Record(r.Context(), entry)
	if err != nil {
		logger.ErrorContext(r.Context(), "Failed to add transaction", log.FieldError, err, log.FieldOperation, log.OpCreate)
		InternalServerError("Failed to add transaction").Write(w)
		return
	}

	logger.TransactionRecorded(r.Context(), tx.ID, tx.Kind.String(), tx.Description, tx.Amount.Cents, string(tx.Category))
	NewJSONResponse().
		Status(http.StatusCreated).
		Field("transaction_id", tx.ID).
		Field("transaction", tx).
		Message("Transaction added successfully").
		Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r, "id")
	if err != nil {
		BadRequestError("Invalid transaction id").Write(w)
		return
	}

	removed, err := s.ledger.Delete(r.Context(), id)
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		NotFoundError("Transaction not found").Write(w)
		return
	case err != nil:
		s.requestLogger(r).ErrorContext(r.Context(), "Failed to delete transaction",
			log.FieldTxID, id, log.FieldError, err, log.FieldOperation, log.OpDelete)
		InternalServerError("Failed to delete transaction").Write(w)
		return
	}

	NewJSONResponse().
		Field("transaction", removed).
		Message("Transaction deleted successfully").
		Write(w)
}
