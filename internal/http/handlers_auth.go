package httpx

import (
	"context"
	"log/slog"
	"net/http"

	domainauth "github.com/target/tokenlab/internal/domain/auth"
)

// AccountServiceInterface is what the auth handlers need from the account service.
type AccountServiceInterface interface {
	Authenticator
	Register(ctx context.Context, in domainauth.Registration) (string, error)
	Login(ctx context.Context, in domainauth.Credentials) (string, error)
}

// AuthHandlers serves the auth and user endpoints of the stub.
type AuthHandlers struct {
	Svc    AccountServiceInterface
	Logger *slog.Logger
}

func (h *AuthHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

type tokenResponse struct {
	Token   string `json:"token"`
	Message string `json:"message"`
}

// Register handles POST /api/auth/register.
func (h *AuthHandlers) Register(w http.ResponseWriter, r *http.Request) {
	var in domainauth.Registration
	if !DecodeJSON(w, r, &in) {
		return
	}

	tok, err := h.Svc.Register(r.Context(), in)
	if err != nil {
		h.logger().InfoContext(r.Context(), "register rejected", "error", err)
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, tokenResponse{Token: tok, Message: "Registration successful"})
}

// Login handles POST /api/auth/login.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var in domainauth.Credentials
	if !DecodeJSON(w, r, &in) {
		return
	}

	tok, err := h.Svc.Login(r.Context(), in)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, tokenResponse{Token: tok, Message: "Login successful"})
}

// Profile handles GET /api/user/profile behind RequireBearer.
func (h *AuthHandlers) Profile(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFromContext(r.Context())
	WriteJSON(w, http.StatusOK, map[string]string{
		"email":   p.Email,
		"role":    string(p.Role),
		"message": "Profile retrieved successfully",
	})
}

// AdminDashboard handles GET /api/admin/dashboard behind RequireBearer and RequireAdmin.
func (h *AuthHandlers) AdminDashboard(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFromContext(r.Context())
	WriteJSON(w, http.StatusOK, map[string]string{
		"message":    "Welcome to the admin dashboard",
		"adminEmail": p.Email,
	})
}
