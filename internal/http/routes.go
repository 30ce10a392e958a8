// Package httpx is the HTTP surface of the local auth stub.
package httpx

import (
	"log/slog"
	"net/http"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Accounts AccountServiceInterface
	Logger   *slog.Logger
}

// NewRouter wires the four auth service endpoints plus /healthz.
func NewRouter(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}

	h := &AuthHandlers{Svc: services.Accounts, Logger: logger}
	bearer := RequireBearer(services.Accounts)

	mux := http.NewServeMux()
	mux.HandleFunc("POST "+registerPath, h.Register)
	mux.HandleFunc("POST "+loginPath, h.Login)
	mux.Handle("GET "+profilePath, bearer(http.HandlerFunc(h.Profile)))
	mux.Handle("GET "+adminPath, bearer(RequireAdmin(http.HandlerFunc(h.AdminDashboard))))
	mux.HandleFunc("GET "+healthPath, healthHandler)
	mux.HandleFunc("HEAD "+healthPath, healthHandler)

	return Recover(logger)(Logging(logger)(mux))
}
