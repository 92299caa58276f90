package httphandler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/rupeewave/bankcore/internal/application"
)

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	authSvc    *application.AuthService
	accountSvc *application.AccountService
	ledgerSvc  *application.LedgerService
	jwtSecret  []byte
	tokenTTL   time.Duration
	logger     *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(
	authSvc *application.AuthService,
	accountSvc *application.AccountService,
	ledgerSvc *application.LedgerService,
	jwtSecret []byte,
	tokenTTL time.Duration,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		authSvc:    authSvc,
		accountSvc: accountSvc,
		ledgerSvc:  ledgerSvc,
		jwtSecret:  jwtSecret,
		tokenTTL:   tokenTTL,
		logger:     logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/accounts", h.CreateAccount)
	mux.HandleFunc("POST /api/v1/session", h.OpenSession)
	mux.HandleFunc("POST /api/v1/accounts/{accountNo}/deposit", h.requireSession(h.Deposit))
	mux.HandleFunc("POST /api/v1/accounts/{accountNo}/withdraw", h.requireSession(h.Withdraw))
	mux.HandleFunc("POST /api/v1/accounts/{accountNo}/transfer", h.requireSession(h.Transfer))
	mux.HandleFunc("POST /api/v1/accounts/{accountNo}/enquiry", h.requireSession(h.Enquiry))
	mux.HandleFunc("GET /api/v1/accounts/{accountNo}/history", h.requireSession(h.History))
	mux.HandleFunc("PUT /api/v1/accounts/{accountNo}/pin", h.requireSession(h.ChangePIN))
	mux.HandleFunc("PUT /api/v1/accounts/{accountNo}/mobile", h.requireSession(h.UpdateMobile))
	mux.HandleFunc("PUT /api/v1/accounts/{accountNo}/email", h.requireSession(h.UpdateEmail))
	mux.HandleFunc("GET /api/v1/health", h.Health)

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// CreateAccount provisions a new account and returns its generated number.
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	accountNo, err := h.accountSvc.Create(r.Context(), req.HolderName, req.PIN, req.ConfirmPIN, req.Mobile, req.Email)
	if err != nil {
		if status := errorStatus(err); status != http.StatusInternalServerError {
			writeError(w, status, err.Error())
			return
		}
		h.logger.Error("failed to create account", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusCreated, CreateAccountResponse{AccountNo: accountNo})
}

// OpenSession verifies the PIN and issues a session token.
func (h *Handler) OpenSession(w http.ResponseWriter, r *http.Request) {
	var req SessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.authSvc.VerifyPIN(r.Context(), req.AccountNo, req.PIN); err != nil {
		if status := errorStatus(err); status != http.StatusInternalServerError {
			writeError(w, status, err.Error())
			return
		}
		h.logger.Error("failed to verify PIN", "account", req.AccountNo, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	token, err := issueToken(h.jwtSecret, req.AccountNo, h.tokenTTL)
	if err != nil {
		h.logger.Error("failed to issue session token", "account", req.AccountNo, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, SessionResponse{
		Token:     token,
		ExpiresIn: int64(h.tokenTTL.Seconds()),
	})
}

// Deposit credits the account and returns the new balance.
func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	accountNo := r.PathValue("accountNo")

	var req AmountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	balance, err := h.ledgerSvc.Deposit(r.Context(), accountNo, req.PIN, req.Amount)
	if err != nil {
		h.writeLedgerError(w, "deposit", accountNo, err)
		return
	}

	writeJSON(w, http.StatusOK, BalanceResponse{AccountNo: accountNo, Balance: balance})
}

// Withdraw debits the account and returns the new balance.
func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	accountNo := r.PathValue("accountNo")

	var req AmountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	balance, err := h.ledgerSvc.Withdraw(r.Context(), accountNo, req.PIN, req.Amount)
	if err != nil {
		h.writeLedgerError(w, "withdraw", accountNo, err)
		return
	}

	writeJSON(w, http.StatusOK, BalanceResponse{AccountNo: accountNo, Balance: balance})
}

// Transfer moves funds to the receiver account exactly once per idempotency
// key and returns the sender's balance after the transfer.
func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	accountNo := r.PathValue("accountNo")

	var req TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.IdempotencyKey == "" {
		writeError(w, http.StatusBadRequest, "idempotency_key is required")
		return
	}

	balance, err := h.ledgerSvc.Transfer(r.Context(), accountNo, req.ReceiverNo, req.PIN, req.Amount, req.IdempotencyKey)
	if err != nil {
		h.writeLedgerError(w, "transfer", accountNo, err)
		return
	}

	writeJSON(w, http.StatusOK, BalanceResponse{AccountNo: accountNo, Balance: balance})
}

// Enquiry verifies the PIN and returns the current balance.
func (h *Handler) Enquiry(w http.ResponseWriter, r *http.Request) {
	accountNo := r.PathValue("accountNo")

	var req struct {
		PIN string `json:"pin"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	balance, err := h.accountSvc.Balance(r.Context(), accountNo, req.PIN)
	if err != nil {
		h.writeLedgerError(w, "enquiry", accountNo, err)
		return
	}

	writeJSON(w, http.StatusOK, BalanceResponse{AccountNo: accountNo, Balance: balance})
}

// History returns the account's transfer records, most recent first. The PIN
// travels in the X-PIN header so it stays out of URLs and access logs.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	accountNo := r.PathValue("accountNo")
	pin := r.Header.Get("X-PIN")

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	recs, err := h.accountSvc.History(r.Context(), accountNo, pin, limit)
	if err != nil {
		h.writeLedgerError(w, "history", accountNo, err)
		return
	}

	resp := make([]TransferResponse, 0, len(recs))
	for _, rec := range recs {
		resp = append(resp, toTransferResponse(rec))
	}

	writeJSON(w, http.StatusOK, resp)
}

// ChangePIN verifies the current PIN and replaces it.
func (h *Handler) ChangePIN(w http.ResponseWriter, r *http.Request) {
	accountNo := r.PathValue("accountNo")

	var req PINRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.accountSvc.ChangePIN(r.Context(), accountNo, req.PIN, req.NewPIN, req.ConfirmNewPIN); err != nil {
		h.writeLedgerError(w, "change pin", accountNo, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// UpdateMobile verifies the PIN and current mobile number, then replaces it.
func (h *Handler) UpdateMobile(w http.ResponseWriter, r *http.Request) {
	accountNo := r.PathValue("accountNo")

	var req MobileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.accountSvc.UpdateMobile(r.Context(), accountNo, req.PIN, req.OldMobile, req.NewMobile); err != nil {
		h.writeLedgerError(w, "update mobile", accountNo, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// UpdateEmail verifies the PIN and current email, then replaces it.
func (h *Handler) UpdateEmail(w http.ResponseWriter, r *http.Request) {
	accountNo := r.PathValue("accountNo")

	var req EmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.accountSvc.UpdateEmail(r.Context(), accountNo, req.PIN, req.OldEmail, req.NewEmail); err != nil {
		h.writeLedgerError(w, "update email", accountNo, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Health returns a simple health check response.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// writeLedgerError writes a domain error to the client, logging only the
// unexpected ones.
func (h *Handler) writeLedgerError(w http.ResponseWriter, op, accountNo string, err error) {
	if status := errorStatus(err); status != http.StatusInternalServerError {
		writeError(w, status, err.Error())
		return
	}
	h.logger.Error("operation failed", "op", op, "account", accountNo, "error", err)
	writeError(w, http.StatusInternalServerError, "internal server error")
}
