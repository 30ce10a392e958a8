package authapi

import (
	"errors"
	"fmt"
	"net/http"

	domainauth "github.com/target/tokenlab/internal/domain/auth"
)

// APIError is a non-2xx reply from the auth service, carrying the operator-facing message.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string { return e.Message }

// StatusOf returns the HTTP status of an *APIError in err's chain, or 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

type endpoint struct {
	name     string
	fallback string
	messages map[int]string
}

var (
	endpointRegister = endpoint{
		name:     "register",
		fallback: "Registration failed",
		messages: map[int]string{
			http.StatusBadRequest:          "Invalid fields: check email format and password (min 8 characters)",
			http.StatusForbidden:           "Registration not allowed: permission denied",
			http.StatusInternalServerError: "This email is already registered, try logging in instead",
		},
	}
	endpointLogin = endpoint{
		name:     "login",
		fallback: "Login failed",
		messages: map[int]string{
			http.StatusBadRequest:   "Invalid request: email and password are required",
			http.StatusUnauthorized: "Wrong email or password",
			http.StatusForbidden:    "Wrong email or password",
			http.StatusNotFound:     "Account not found, register first",
		},
	}
	endpointProfile = endpoint{
		name:     "profile",
		fallback: "Failed to fetch profile",
		messages: map[int]string{
			http.StatusUnauthorized: "Session expired, please login again",
			http.StatusForbidden:    "Not logged in or token expired, please login again",
		},
	}
	endpointAdmin = endpoint{
		name:     "admin dashboard",
		fallback: "Failed to load dashboard",
		messages: map[int]string{
			http.StatusUnauthorized: "Session expired, please login again",
			http.StatusForbidden:    "Access denied: you need an admin account to view this",
		},
	}
)

// message picks the server's own message, then the status table, then the raw body.
func (e endpoint) message(resp domainauth.Response) string {
	if msg := resp.Message(); msg != "" {
		return msg
	}
	if msg, ok := e.messages[resp.Status]; ok {
		return msg
	}
	if resp.Raw != "" {
		return resp.Raw
	}
	return fmt.Sprintf("%s (HTTP %d)", e.fallback, resp.Status)
}
