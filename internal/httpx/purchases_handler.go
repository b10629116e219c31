package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/ariefcatur/go-lodge-escrow/internal/bookings"
	"github.com/ariefcatur/go-lodge-escrow/internal/users"
	"github.com/go-chi/chi/v5"
)

// PaymentSettler forgets an open charge once a booking has been recorded for it.
type PaymentSettler interface {
	Settled(ctx context.Context, studentID, listingID string)
}

type PurchasesHandler struct {
	Bookings *bookings.Service
	Payments PaymentSettler
	Auth     *Auth
}

func (h *PurchasesHandler) Register(r chi.Router) {
	r.Route("/v2/purchases", func(r chi.Router) {
		r.Use(h.Auth.Require())
		r.Get("/{id}", h.get)
		r.Get("/{id}/status", h.status)
		r.Group(func(r chi.Router) {
			r.Use(h.Auth.Require(users.RoleStudent))
			r.Post("/", h.create)
			r.Get("/student/my-purchases", h.mineAsStudent)
			r.Put("/{id}/inspection", h.inspection)
		})
		r.With(h.Auth.Require(users.RoleLandlord)).Get("/landlord/my-purchases", h.mineAsLandlord)
	})
}

func (h *PurchasesHandler) create(w http.ResponseWriter, r *http.Request) {
	var req bookings.PurchaseRequest
	if err := decode(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	if req.PaystackReference == "" {
		fail(w, r, badRequest("paystackReference is required"))
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	studentID := caller(r).UserID
	b, existed, err := h.Bookings.Purchase(ctx, studentID, req)
	if err != nil {
		fail(w, r, err)
		return
	}
	if existed {
		ok(w, http.StatusOK, "Purchase already recorded", b)
		return
	}
	if h.Payments != nil {
		h.Payments.Settled(ctx, studentID, b.ListingID)
	}
	ok(w, http.StatusCreated, "Purchase recorded", b)
}

func (h *PurchasesHandler) mineAsStudent(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	bs, err := h.Bookings.ListForStudent(ctx, caller(r).UserID)
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "Purchases retrieved", bs)
}

func (h *PurchasesHandler) mineAsLandlord(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	bs, err := h.Bookings.ListForLandlord(ctx, caller(r).UserID)
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "Purchases retrieved", bs)
}

func (h *PurchasesHandler) get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	b, err := h.Bookings.Get(ctx, caller(r).UserID, chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "Purchase retrieved", b)
}

func (h *PurchasesHandler) status(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	st, err := h.Bookings.Status(ctx, caller(r).UserID, chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "Status retrieved", st)
}

func (h *PurchasesHandler) inspection(w http.ResponseWriter, r *http.Request) {
	var req struct {
		InspectionStatus bookings.InspectionStatus `json:"inspectionStatus"`
		Action           string                    `json:"action"` // approve | reject
	}
	if err := decode(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	d := req.InspectionStatus
	if d == "" {
		switch req.Action {
		case "approve":
			d = bookings.InspectionApproved
		case "reject":
			d = bookings.InspectionRejected
		default:
			d = bookings.InspectionStatus(req.Action)
		}
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	b, err := h.Bookings.Decide(ctx, caller(r).UserID, chi.URLParam(r, "id"), d)
	if err != nil {
		fail(w, r, err)
		return
	}
	msg := "Inspection approved; payment released to landlord"
	if b.InspectionStatus == bookings.InspectionRejected {
		msg = "Inspection rejected; payment will be refunded"
	}
	ok(w, http.StatusOK, msg, b)
}
