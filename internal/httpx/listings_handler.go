package httpx

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ariefcatur/go-lodge-escrow/internal/listings"
	"github.com/ariefcatur/go-lodge-escrow/internal/users"
	"github.com/go-chi/chi/v5"
)

type ListingsHandler struct {
	Listings *listings.Service
	Auth     *Auth
}

func (h *ListingsHandler) Register(r chi.Router) {
	r.Route("/v2/listings", func(r chi.Router) {
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
		r.Group(func(r chi.Router) {
			r.Use(h.Auth.Require(users.RoleLandlord))
			r.Get("/landlord/my-listings", h.mine)
			r.Post("/", h.create)
			r.Put("/{id}", h.update)
			r.Patch("/{id}/status", h.setStatus)
			r.Delete("/{id}", h.delete)
		})
	})
}

func parseFilters(q url.Values) (listings.Filters, error) {
	f := listings.Filters{Area: q.Get("area"), Search: q.Get("searchQuery")}
	ints := map[string]*int64{"minPrice": &f.MinPrice, "maxPrice": &f.MaxPrice}
	for name, dst := range ints {
		if v := q.Get(name); v != "" {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil || n < 0 {
				return f, badRequest(name + " must be a non-negative number")
			}
			*dst = n
		}
	}
	if v := q.Get("maxDistance"); v != "" {
		d, err := strconv.ParseFloat(v, 64)
		if err != nil || d < 0 {
			return f, badRequest("maxDistance must be a non-negative number")
		}
		f.MaxDistance = d
	}
	for name, dst := range map[string]*int{"limit": &f.Limit, "offset": &f.Offset} {
		if v := q.Get(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return f, badRequest(name + " must be a non-negative integer")
			}
			*dst = n
		}
	}
	return f, nil
}

func (h *ListingsHandler) list(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilters(r.URL.Query())
	if err != nil {
		fail(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ls, err := h.Listings.List(ctx, f)
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "Listings retrieved", ls)
}

func (h *ListingsHandler) get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	l, err := h.Listings.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "Listing retrieved", l)
}

func (h *ListingsHandler) mine(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ls, err := h.Listings.ListMine(ctx, caller(r).UserID)
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "Listings retrieved", ls)
}

func (h *ListingsHandler) create(w http.ResponseWriter, r *http.Request) {
	var in listings.Input
	if err := decode(r, &in); err != nil {
		fail(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	l, err := h.Listings.Create(ctx, caller(r).UserID, in)
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, http.StatusCreated, "Listing created", l)
}

func (h *ListingsHandler) update(w http.ResponseWriter, r *http.Request) {
	var p listings.Patch
	if err := decode(r, &p); err != nil {
		fail(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	l, err := h.Listings.Update(ctx, caller(r).UserID, chi.URLParam(r, "id"), p)
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "Listing updated", l)
}

func (h *ListingsHandler) setStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status listings.Status `json:"status"`
	}
	if err := decode(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	l, err := h.Listings.SetStatus(ctx, caller(r).UserID, chi.URLParam(r, "id"), req.Status)
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "Listing status updated", l)
}

func (h *ListingsHandler) delete(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Listings.Delete(ctx, caller(r).UserID, chi.URLParam(r, "id")); err != nil {
		fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "Listing deleted", nil)
}
