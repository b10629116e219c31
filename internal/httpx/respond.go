package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/ariefcatur/go-lodge-escrow/internal/bookings"
	"github.com/ariefcatur/go-lodge-escrow/internal/listings"
	"github.com/ariefcatur/go-lodge-escrow/internal/paystack"
	"github.com/ariefcatur/go-lodge-escrow/internal/settlement"
	"github.com/ariefcatur/go-lodge-escrow/internal/users"
	"github.com/go-chi/chi/v5/middleware"
)

var errBadRequest = errors.New("bad request")

type envelope struct {
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type errorBody struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func ok(w http.ResponseWriter, code int, msg string, data any) {
	writeJSON(w, code, envelope{Message: msg, Data: data})
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid json", errBadRequest)
	}
	return nil
}

func badRequest(msg string) error { return fmt.Errorf("%w: %s", errBadRequest, msg) }

// statusFor maps domain errors to an HTTP status and a stable code clients can switch on.
func statusFor(err error) (int, string) {
	var apiErr *paystack.APIError
	switch {
	case errors.Is(err, bookings.ErrNotFound), errors.Is(err, listings.ErrNotFound),
		errors.Is(err, users.ErrNotFound), errors.Is(err, settlement.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, bookings.ErrForbidden), errors.Is(err, listings.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, users.ErrInvalidCredentials), errors.Is(err, users.ErrInvalidToken):
		return http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, bookings.ErrBankDetailsRequired), errors.Is(err, settlement.ErrNoPayoutAccount):
		return http.StatusUnprocessableEntity, "bank_details_required"
	case errors.Is(err, bookings.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, bookings.ErrListingUnavailable):
		return http.StatusConflict, "listing_unavailable"
	case errors.Is(err, listings.ErrHasBookings):
		return http.StatusConflict, "listing_has_bookings"
	case errors.Is(err, users.ErrEmailTaken):
		return http.StatusConflict, "email_taken"
	case errors.Is(err, settlement.ErrNotSettled):
		return http.StatusConflict, "not_settled"
	case errors.Is(err, bookings.ErrPaymentNotSettled):
		return http.StatusPaymentRequired, "payment_not_settled"
	case errors.Is(err, bookings.ErrPaymentMismatch):
		return http.StatusBadRequest, "payment_mismatch"
	case errors.Is(err, bookings.ErrInvalidDecision), errors.Is(err, listings.ErrInvalid),
		errors.Is(err, users.ErrInvalid), errors.Is(err, paystack.ErrInvalidAccountNumber),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, paystack.ErrNoSecretKey):
		return http.StatusServiceUnavailable, "gateway_unconfigured"
	case errors.As(err, &apiErr):
		return http.StatusBadGateway, "gateway_error"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func fail(w http.ResponseWriter, r *http.Request, err error) {
	code, slug := statusFor(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		log.Printf("[%s] %s %s: %v", middleware.GetReqID(r.Context()), r.Method, r.URL.Path, err)
		msg = "internal server error"
	}
	writeJSON(w, code, errorBody{Message: msg, Code: slug})
}
