package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/ariefcatur/go-lodge-escrow/internal/users"
	"github.com/go-chi/chi/v5"
)

type AuthHandler struct {
	Users *users.Service
	Auth  *Auth
}

type session struct {
	User  users.User `json:"user"`
	Token string     `json:"token"`
}

func (h *AuthHandler) Register(r chi.Router) {
	r.Route("/v2/auth", func(r chi.Router) {
		r.Post("/register/student", h.registerStudent)
		r.Post("/register/landlord", h.registerLandlord)
		r.Post("/login", h.login)
		r.Group(func(r chi.Router) {
			r.Use(h.Auth.Require())
			r.Get("/profile", h.profile)
			r.Put("/profile", h.updateProfile)
		})
	})
}

func (h *AuthHandler) registerStudent(w http.ResponseWriter, r *http.Request) {
	h.register(w, r, h.Users.RegisterStudent)
}

func (h *AuthHandler) registerLandlord(w http.ResponseWriter, r *http.Request) {
	h.register(w, r, h.Users.RegisterLandlord)
}

func (h *AuthHandler) register(w http.ResponseWriter, r *http.Request,
	fn func(context.Context, users.Registration) (users.User, string, error)) {
	var req users.Registration
	if err := decode(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	u, tok, err := fn(ctx, req)
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, http.StatusCreated, "Registration successful", session{User: u, Token: tok})
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decode(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	u, tok, err := h.Users.Login(ctx, req.Email, req.Password)
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "Login successful", session{User: u, Token: tok})
}

func (h *AuthHandler) profile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	u, err := h.Users.Profile(ctx, caller(r).UserID)
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "Profile retrieved", u)
}

func (h *AuthHandler) updateProfile(w http.ResponseWriter, r *http.Request) {
	var req users.ProfileUpdate
	if err := decode(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	u, err := h.Users.UpdateProfile(ctx, caller(r).UserID, req)
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "Profile updated", u)
}
