package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"bankcore/internal/account"
	"bankcore/internal/domain"
	"bankcore/internal/ledger"
	"bankcore/internal/service"
	"bankcore/pkg/crypto"
	"bankcore/pkg/metrics"
	"bankcore/pkg/validator"

	"github.com/shopspring/decimal"
)

// userIDHeader carries the authenticated caller installed by the outer auth
// layer. The ledger never sees ambient session state, only this explicit id.
const userIDHeader = "X-User-ID"

type APIHandler struct {
	ledger         *ledger.Service
	accounts       *account.Service
	notifications  *service.NotificationService
	metrics        *metrics.MetricsCollector
	signer         *crypto.Signer
	validator      *validator.MutationValidator
	logger         *slog.Logger
	requestTimeout time.Duration
}

func NewAPIHandler(
	ledgerService *ledger.Service,
	accountService *account.Service,
	notifications *service.NotificationService,
	metricsCollector *metrics.MetricsCollector,
	signer *crypto.Signer,
	logger *slog.Logger,
) *APIHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &APIHandler{
		ledger:         ledgerService,
		accounts:       accountService,
		notifications:  notifications,
		metrics:        metricsCollector,
		signer:         signer,
		validator:      validator.NewMutationValidator(),
		logger:         logger,
		requestTimeout: 30 * time.Second,
	}
}

type MutationRequest struct {
	AccountID string `json:"account_id"`
	Amount    string `json:"amount"`
}

type TransferRequest struct {
	FromAccountID   string `json:"from_account_id"`
	ToAccountID     string `json:"to_account_id,omitempty"`
	ToAccountNumber string `json:"to_account_number,omitempty"`
	Amount          string `json:"amount"`
}

type MutationResponse struct {
	TransactionID string `json:"transaction_id"`
	Balance       string `json:"balance"`
	Signature     string `json:"signature"`
}

type TransferResponse struct {
	TransactionID string `json:"transaction_id"`
	FromBalance   string `json:"from_balance"`
	ToBalance     string `json:"to_balance"`
	Signature     string `json:"signature"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func (h *APIHandler) DepositHandler(w http.ResponseWriter, r *http.Request) {
	h.handleMutation(w, r, domain.KindDeposit)
}

func (h *APIHandler) WithdrawHandler(w http.ResponseWriter, r *http.Request) {
	h.handleMutation(w, r, domain.KindWithdraw)
}

func (h *APIHandler) handleMutation(w http.ResponseWriter, r *http.Request, kind domain.TransactionKind) {
	startTime := time.Now()

	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	var req MutationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, "Invalid request body", http.StatusBadRequest, "INVALID_REQUEST")
		return
	}
	if req.AccountID == "" {
		h.sendError(w, "account_id is required", http.StatusBadRequest, "VALIDATION_ERROR")
		return
	}
	amount, err := h.validator.ParseAmount(req.Amount)
	if err != nil {
		h.sendError(w, err.Error(), http.StatusBadRequest, "VALIDATION_ERROR")
		return
	}

	var result ledger.MutationResult
	switch kind {
	case domain.KindDeposit:
		result, err = h.ledger.Deposit(ctx, req.AccountID, amount, userID)
	default:
		result, err = h.ledger.Withdraw(ctx, req.AccountID, amount, userID)
	}

	h.metrics.RecordMutation(string(kind), time.Since(startTime), err == nil)
	if err != nil {
		h.sendLedgerError(w, r, err)
		return
	}
	h.recordBalance(req.AccountID, result.Balance)
	h.notifyMutation(ctx, &domain.Transaction{ID: result.TransactionID, Kind: kind, Amount: amount, AccountID: req.AccountID}, userID)

	h.sendJSON(w, MutationResponse{
		TransactionID: result.TransactionID,
		Balance:       result.Balance.StringFixed(2),
		Signature:     h.signer.SignReceipt(result.TransactionID, amount, startTime.Unix()),
	}, http.StatusCreated)
}

func (h *APIHandler) TransferHandler(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()

	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	var req TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, "Invalid request body", http.StatusBadRequest, "INVALID_REQUEST")
		return
	}

	amount, err := h.validator.ParseAmount(req.Amount)
	if err != nil {
		h.sendError(w, err.Error(), http.StatusBadRequest, "VALIDATION_ERROR")
		return
	}

	// Destinations may be addressed by internal id or by the displayed
	// 10-digit number.
	toID := req.ToAccountID
	if toID == "" && req.ToAccountNumber != "" {
		if err := h.validator.ValidateAccountNumber(req.ToAccountNumber); err != nil {
			h.sendError(w, err.Error(), http.StatusBadRequest, "VALIDATION_ERROR")
			return
		}
		toAccount, err := h.accounts.GetByNumber(ctx, req.ToAccountNumber)
		if err != nil {
			h.sendAccountError(w, err)
			return
		}
		toID = toAccount.ID
	}

	if err := h.validator.ValidateTransfer(req.FromAccountID, toID); err != nil {
		h.sendError(w, err.Error(), http.StatusBadRequest, "VALIDATION_ERROR")
		return
	}

	result, err := h.ledger.Transfer(ctx, req.FromAccountID, toID, amount, userID)
	h.metrics.RecordMutation(string(domain.KindTransfer), time.Since(startTime), err == nil)
	if err != nil {
		h.sendLedgerError(w, r, err)
		return
	}
	h.recordBalance(req.FromAccountID, result.FromBalance)
	h.recordBalance(toID, result.ToBalance)
	h.notifyMutation(ctx, &domain.Transaction{ID: result.TransactionID, Kind: domain.KindTransfer, Amount: amount, AccountID: req.FromAccountID, ToAccountID: toID}, userID)

	h.sendJSON(w, TransferResponse{
		TransactionID: result.TransactionID,
		FromBalance:   result.FromBalance.StringFixed(2),
		ToBalance:     result.ToBalance.StringFixed(2),
		Signature:     h.signer.SignReceipt(result.TransactionID, amount, startTime.Unix()),
	}, http.StatusCreated)
}

func (h *APIHandler) OpenAccountHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	acc, err := h.accounts.Open(ctx, userID)
	if err != nil {
		h.sendError(w, "Failed to open account", http.StatusInternalServerError, "SERVER_ERROR")
		return
	}
	h.sendJSON(w, acc, http.StatusCreated)
}

func (h *APIHandler) GetAccountHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	acc, err := h.accounts.Get(ctx, r.PathValue("id"))
	if err != nil {
		h.sendAccountError(w, err)
		return
	}
	if !acc.OwnedBy(userID) {
		h.sendError(w, "Account belongs to another user", http.StatusForbidden, "UNAUTHORIZED")
		return
	}
	h.sendJSON(w, acc, http.StatusOK)
}

func (h *APIHandler) ListAccountsHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	accounts, err := h.accounts.ListByUser(ctx, userID)
	if err != nil {
		h.sendError(w, "Failed to list accounts", http.StatusInternalServerError, "SERVER_ERROR")
		return
	}
	h.sendJSON(w, accounts, http.StatusOK)
}

func (h *APIHandler) CloseAccountHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	err := h.accounts.Close(ctx, r.PathValue("id"), userID)
	if err != nil {
		switch {
		case errors.Is(err, account.ErrAccountNotFound):
			h.sendError(w, "Account not found", http.StatusNotFound, "NOT_FOUND")
		case errors.Is(err, account.ErrUnauthorized):
			h.sendError(w, "Account belongs to another user", http.StatusForbidden, "UNAUTHORIZED")
		case errors.Is(err, account.ErrBalanceNotZero):
			h.sendError(w, "Cannot close account with positive balance", http.StatusConflict, "BALANCE_NOT_ZERO")
		case errors.Is(err, account.ErrAlreadyClosed):
			h.sendError(w, "Account is already closed", http.StatusConflict, "ALREADY_CLOSED")
		default:
			h.sendError(w, "Failed to close account", http.StatusInternalServerError, "SERVER_ERROR")
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) StatementHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	transactions, err := h.accounts.Statement(ctx, r.PathValue("id"), userID, limit, offset)
	if err != nil {
		switch {
		case errors.Is(err, account.ErrAccountNotFound):
			h.sendError(w, "Account not found", http.StatusNotFound, "NOT_FOUND")
		case errors.Is(err, account.ErrUnauthorized):
			h.sendError(w, "Account belongs to another user", http.StatusForbidden, "UNAUTHORIZED")
		default:
			h.sendError(w, "Failed to load statement", http.StatusInternalServerError, "SERVER_ERROR")
		}
		return
	}
	if transactions == nil {
		transactions = []*domain.Transaction{}
	}
	h.sendJSON(w, transactions, http.StatusOK)
}

func (h *APIHandler) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"version":   "1.0.0",
	}
	h.sendJSON(w, response, http.StatusOK)
}

func (h *APIHandler) requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := r.Header.Get(userIDHeader)
	if userID == "" {
		h.sendError(w, "Missing "+userIDHeader+" header", http.StatusUnauthorized, "UNAUTHENTICATED")
		return "", false
	}
	return userID, true
}

func (h *APIHandler) sendLedgerError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ledger.ErrInvalidAmount), errors.Is(err, ledger.ErrSameAccount):
		h.sendError(w, err.Error(), http.StatusBadRequest, "VALIDATION_ERROR")
	case errors.Is(err, ledger.ErrUnauthorized):
		h.sendError(w, "Account belongs to another user", http.StatusForbidden, "UNAUTHORIZED")
	case errors.Is(err, ledger.ErrAccountNotFound):
		h.sendError(w, "Account not found", http.StatusNotFound, "NOT_FOUND")
	case errors.Is(err, ledger.ErrInsufficientFunds):
		h.sendError(w, "Insufficient funds", http.StatusConflict, "INSUFFICIENT_FUNDS")
	case errors.Is(err, ledger.ErrAccountClosed):
		h.sendError(w, "Account is closed", http.StatusConflict, "ACCOUNT_CLOSED")
	default:
		h.logger.Error("Mutation failed",
			slog.String("request_id", GetRequestID(r.Context())),
			slog.String("error", err.Error()))
		h.sendError(w, "Mutation could not be committed", http.StatusInternalServerError, "PERSISTENCE_FAILURE")
	}
}

func (h *APIHandler) sendAccountError(w http.ResponseWriter, err error) {
	if errors.Is(err, account.ErrAccountNotFound) {
		h.sendError(w, "Account not found", http.StatusNotFound, "NOT_FOUND")
		return
	}
	h.sendError(w, "Failed to load account", http.StatusInternalServerError, "SERVER_ERROR")
}

func (h *APIHandler) recordBalance(accountID string, balance decimal.Decimal) {
	value, _ := balance.Float64()
	h.metrics.UpdateAccountBalance(accountID, value)
}

func (h *APIHandler) notifyMutation(ctx context.Context, txn *domain.Transaction, userID string) {
	if h.notifications == nil {
		return
	}
	if err := h.notifications.SendTransactionNotification(ctx, txn, userID, service.NotificationEmail); err != nil {
		h.logger.Warn("Notification enqueue failed", slog.String("error", err.Error()))
	}
}

func (h *APIHandler) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode JSON response", slog.String("error", err.Error()))
	}
}

func (h *APIHandler) sendError(w http.ResponseWriter, message string, statusCode int, code string) {
	errorResponse := ErrorResponse{
		Error: message,
		Code:  code,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(errorResponse)

	h.logger.Warn("API error response",
		slog.String("message", message),
		slog.String("code", code),
		slog.Int("status", statusCode))
}

func (h *APIHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/deposits", h.DepositHandler)
	mux.HandleFunc("POST /api/v1/withdrawals", h.WithdrawHandler)
	mux.HandleFunc("POST /api/v1/transfers", h.TransferHandler)
	mux.HandleFunc("POST /api/v1/accounts", h.OpenAccountHandler)
	mux.HandleFunc("GET /api/v1/accounts", h.ListAccountsHandler)
	mux.HandleFunc("GET /api/v1/accounts/{id}", h.GetAccountHandler)
	mux.HandleFunc("DELETE /api/v1/accounts/{id}", h.CloseAccountHandler)
	mux.HandleFunc("GET /api/v1/accounts/{id}/transactions", h.StatementHandler)
	mux.HandleFunc("GET /api/health", h.HealthCheckHandler)
}
