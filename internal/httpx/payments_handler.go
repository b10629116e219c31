package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/ariefcatur/go-lodge-escrow/internal/payments"
	"github.com/ariefcatur/go-lodge-escrow/internal/settlement"
	"github.com/ariefcatur/go-lodge-escrow/internal/users"
	"github.com/go-chi/chi/v5"
)

// PayoutRetrier re-sends the payout a settled booking owes its caller.
type PayoutRetrier interface {
	RetryPayout(ctx context.Context, userID, bookingID string) (settlement.Payout, error)
}

type PaymentsHandler struct {
	Payments *payments.Service
	Users    *users.Service
	Payouts  PayoutRetrier
	Auth     *Auth
}

func (h *PaymentsHandler) Register(r chi.Router) {
	r.Route("/v2/payments", func(r chi.Router) {
		r.Get("/banks", h.banks)
		r.Group(func(r chi.Router) {
			r.Use(h.Auth.Require())
			r.Get("/verify/{reference}", h.verify)
			r.Post("/verify-account", h.verifyAccount)
			r.Post("/create-recipient", h.createRecipient)
			r.Post("/transfer", h.transfer)
		})
		r.With(h.Auth.Require(users.RoleStudent)).Post("/initialize", h.initialize)
		r.With(h.Auth.Require(users.RoleLandlord)).Get("/transfer/verify/{reference}", h.verifyTransfer)
	})
}

func (h *PaymentsHandler) initialize(w http.ResponseWriter, r *http.Request) {
	var req payments.InitRequest
	if err := decode(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	if req.ListingID == "" {
		fail(w, r, badRequest("listingId is required"))
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	u, err := h.Users.Profile(ctx, caller(r).UserID)
	if err != nil {
		fail(w, r, err)
		return
	}
	res, err := h.Payments.Initialize(ctx, u, req)
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "Payment initialized", res)
}

func (h *PaymentsHandler) verify(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	tx, err := h.Payments.Verify(ctx, caller(r).UserID, chi.URLParam(r, "reference"))
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "Payment verified", tx)
}

func (h *PaymentsHandler) banks(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	banks, src := h.Payments.Banks(ctx)
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Banks retrieved",
		"data":    banks,
		"source":  src,
	})
}

func (h *PaymentsHandler) verifyAccount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AccountNumber string `json:"account_number"`
		BankCode      string `json:"bank_code"`
	}
	if err := decode(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	if req.BankCode == "" {
		fail(w, r, badRequest("bank_code is required"))
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	acct, err := h.Payments.VerifyAccount(ctx, req.AccountNumber, req.BankCode)
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "Account verified", acct)
}

func (h *PaymentsHandler) createRecipient(w http.ResponseWriter, r *http.Request) {
	var req payments.RecipientRequest
	if err := decode(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	u, err := h.Users.Profile(ctx, caller(r).UserID)
	if err != nil {
		fail(w, r, err)
		return
	}
	rcp, err := h.Payments.CreateRecipient(ctx, u, req)
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, http.StatusCreated, "Recipient created", rcp)
}

func (h *PaymentsHandler) transfer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BookingID string `json:"bookingId"`
	}
	if err := decode(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	if req.BookingID == "" {
		fail(w, r, badRequest("bookingId is required"))
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	p, err := h.Payouts.RetryPayout(ctx, caller(r).UserID, req.BookingID)
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "Transfer initiated", p)
}

func (h *PaymentsHandler) verifyTransfer(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	tr, err := h.Payments.VerifyTransfer(ctx, chi.URLParam(r, "reference"))
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "Transfer verified", tr)
}
