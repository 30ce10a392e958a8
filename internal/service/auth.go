package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	domainauth "github.com/target/tokenlab/internal/domain/auth"
	apperrors "github.com/target/tokenlab/internal/errors"
	"github.com/target/tokenlab/internal/ports"
)

// MinPasswordLength is the shortest password the register form accepts.
const MinPasswordLength = 8

var emailPattern = regexp.MustCompile(`\S+@\S+\.\S+`)

// ErrNoSessionToken is returned when a protected call is attempted without a token.
var ErrNoSessionToken = errors.New("No token found. Please login first.") //nolint:staticcheck // operator-facing message

// AuthServiceOptions groups dependencies for AuthService.
type AuthServiceOptions struct {
	API     ports.AuthAPI
	Session *SessionStore
	Logger  *slog.Logger
}

// AuthService validates form input, calls the remote auth service and feeds
// issued tokens into the session.
type AuthService struct {
	api     ports.AuthAPI
	session *SessionStore
	logger  *slog.Logger
}

// NewAuthService constructs a new AuthService.
func NewAuthService(opts AuthServiceOptions) *AuthService {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		api:     opts.API,
		session: opts.Session,
		logger:  logger,
	}
}

// Login validates credentials, logs in and establishes the returned token.
func (s *AuthService) Login(ctx context.Context, in domainauth.Credentials) (domainauth.Response, error) {
	if err := ValidateCredentials(in); err != nil {
		return domainauth.Response{}, err
	}

	resp, err := s.api.Login(ctx, in)
	if err != nil {
		return resp, fmt.Errorf("login: %w", err)
	}
	s.establish(ctx, "login", resp)
	return resp, nil
}

// Register validates and normalizes the registration, registers and establishes the returned token.
func (s *AuthService) Register(ctx context.Context, in domainauth.Registration) (domainauth.Response, error) {
	in = NormalizeRegistration(in)
	if err := ValidateRegistration(in); err != nil {
		return domainauth.Response{}, err
	}

	resp, err := s.api.Register(ctx, in)
	if err != nil {
		return resp, fmt.Errorf("register: %w", err)
	}
	s.establish(ctx, "register", resp)
	return resp, nil
}

// Profile fetches the user profile with the active token, tampered or not.
func (s *AuthService) Profile(ctx context.Context) (domainauth.Response, error) {
	tok := s.session.Snapshot().Token
	if tok == "" {
		return domainauth.Response{}, ErrNoSessionToken
	}
	return s.api.Profile(ctx, tok)
}

// AdminDashboard fetches the admin dashboard with the active token, tampered or not.
func (s *AuthService) AdminDashboard(ctx context.Context) (domainauth.Response, error) {
	tok := s.session.Snapshot().Token
	if tok == "" {
		return domainauth.Response{}, ErrNoSessionToken
	}
	return s.api.AdminDashboard(ctx, tok)
}

// Logout drops the session token and its reference.
func (s *AuthService) Logout(ctx context.Context) Snapshot {
	snap := s.session.Logout()
	s.logger.InfoContext(ctx, "logged out")
	return snap
}

func (s *AuthService) establish(ctx context.Context, flow string, resp domainauth.Response) {
	tok := resp.Token()
	if tok == "" {
		s.logger.WarnContext(ctx, "auth response carried no token", "flow", flow, "status", resp.Status)
		return
	}
	snap, err := s.session.Establish(tok)
	if err != nil {
		s.logger.WarnContext(ctx, "establish session failed", "flow", flow, "error", err)
		return
	}
	s.logger.InfoContext(ctx, "session established",
		"flow", flow,
		"state", snap.State,
		"decodable", snap.Decodable(),
	)
}

// ValidateCredentials applies the login form rules.
func ValidateCredentials(in domainauth.Credentials) error {
	if strings.TrimSpace(in.Email) == "" {
		return apperrors.ValidationField("email", "Email is required")
	}
	if !emailPattern.MatchString(in.Email) {
		return apperrors.ValidationField("email", "Enter a valid email address")
	}
	if in.Password == "" {
		return apperrors.ValidationField("password", "Password is required")
	}
	return nil
}

// NormalizeRegistration trims the name, trims and lower-cases the email and defaults the role.
func NormalizeRegistration(in domainauth.Registration) domainauth.Registration {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Role == "" {
		in.Role = domainauth.RoleUser
	}
	return in
}

// ValidateRegistration applies the register form rules.
func ValidateRegistration(in domainauth.Registration) error {
	if strings.TrimSpace(in.Name) == "" {
		return apperrors.ValidationField("name", "Name is required")
	}
	if strings.TrimSpace(in.Email) == "" {
		return apperrors.ValidationField("email", "Email is required")
	}
	if !emailPattern.MatchString(in.Email) {
		return apperrors.ValidationField("email", "Enter a valid email address")
	}
	if in.Password == "" {
		return apperrors.ValidationField("password", "Password is required")
	}
	if len(in.Password) < MinPasswordLength {
		return apperrors.ValidationField("password", fmt.Sprintf("Password must be at least %d characters", MinPasswordLength))
	}
	if !in.Role.Valid() {
		return apperrors.ValidationField("role", fmt.Sprintf("Role must be %s or %s", domainauth.RoleUser, domainauth.RoleAdmin))
	}
	return nil
}
