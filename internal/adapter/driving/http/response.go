package httphandler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rupeewave/bankcore/internal/application"
	"github.com/rupeewave/bankcore/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorStatus maps domain and validation errors to HTTP status codes.
// Unknown errors map to 500.
func errorStatus(err error) int {
	if _, ok := model.IsWrongPIN(err); ok {
		return http.StatusUnauthorized
	}
	switch {
	case errors.Is(err, model.ErrAccountLocked):
		return http.StatusForbidden
	case errors.Is(err, model.ErrAccountNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrInvalidAmount),
		errors.Is(err, model.ErrSameAccount),
		errors.Is(err, application.ErrInvalidPIN),
		errors.Is(err, application.ErrPINMismatch),
		errors.Is(err, application.ErrInvalidMobile),
		errors.Is(err, application.ErrInvalidEmail),
		errors.Is(err, application.ErrMobileMismatch),
		errors.Is(err, application.ErrEmailMismatch):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrInsufficientFunds):
		return http.StatusConflict
	case errors.Is(err, model.ErrBusy):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// CreateAccountRequest is the JSON body for the account provisioning endpoint.
type CreateAccountRequest struct {
	HolderName string `json:"holder_name"`
	PIN        string `json:"pin"`
	ConfirmPIN string `json:"confirm_pin"`
	Mobile     string `json:"mobile"`
	Email      string `json:"email"`
}

// CreateAccountResponse returns the generated account number.
type CreateAccountResponse struct {
	AccountNo string `json:"account_no"`
}

// SessionRequest is the JSON body for opening a session.
type SessionRequest struct {
	AccountNo string `json:"account_no"`
	PIN       string `json:"pin"`
}

// SessionResponse carries the signed session token.
type SessionResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"`
}

// AmountRequest is the JSON body for deposit and withdraw.
type AmountRequest struct {
	PIN    string `json:"pin"`
	Amount int64  `json:"amount"`
}

// TransferRequest is the JSON body for the transfer endpoint.
type TransferRequest struct {
	PIN            string `json:"pin"`
	ReceiverNo     string `json:"receiver_no"`
	Amount         int64  `json:"amount"`
	IdempotencyKey string `json:"idempotency_key"`
}

// BalanceResponse reports the balance after an operation or enquiry.
type BalanceResponse struct {
	AccountNo string `json:"account_no"`
	Balance   int64  `json:"balance"`
}

// PINRequest is the JSON body for the change PIN endpoint.
type PINRequest struct {
	PIN           string `json:"pin"`
	NewPIN        string `json:"new_pin"`
	ConfirmNewPIN string `json:"confirm_new_pin"`
}

// MobileRequest is the JSON body for the update mobile endpoint.
type MobileRequest struct {
	PIN       string `json:"pin"`
	OldMobile string `json:"old_mobile"`
	NewMobile string `json:"new_mobile"`
}

// EmailRequest is the JSON body for the update email endpoint.
type EmailRequest struct {
	PIN      string `json:"pin"`
	OldEmail string `json:"old_email"`
	NewEmail string `json:"new_email"`
}

// TransferResponse is the JSON representation of a recorded transfer.
type TransferResponse struct {
	IdempotencyKey string `json:"idempotency_key"`
	SenderNo       string `json:"sender_no"`
	ReceiverNo     string `json:"receiver_no"`
	Amount         int64  `json:"amount"`
	Status         string `json:"status"`
	FailureCode    string `json:"failure_code,omitempty"`
	CreatedAt      string `json:"created_at"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// toTransferResponse converts a domain TransferRecord to its JSON representation.
func toTransferResponse(rec model.TransferRecord) TransferResponse {
	return TransferResponse{
		IdempotencyKey: rec.IdempotencyKey,
		SenderNo:       rec.SenderNo,
		ReceiverNo:     rec.ReceiverNo,
		Amount:         rec.Amount,
		Status:         string(rec.Status),
		FailureCode:    string(rec.FailureCode),
		CreatedAt:      rec.CreatedAt.UTC().Format(time.RFC3339),
	}
}
