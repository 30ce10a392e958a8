package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/target/tokenlab/internal/clock"
	domainauth "github.com/target/tokenlab/internal/domain/auth"
	apperrors "github.com/target/tokenlab/internal/errors"
	"github.com/target/tokenlab/internal/ports"
	"golang.org/x/crypto/bcrypt"
)

// Principal is the identity behind a verified bearer token.
type Principal struct {
	Email string
	Name  string
	Role  domainauth.Role
}

// IsAdmin reports whether the principal carries the admin role.
func (p Principal) IsAdmin() bool { return p.Role == domainauth.RoleAdmin }

// AccountServiceOptions groups dependencies for AccountService.
type AccountServiceOptions struct {
	Users      ports.UserRepository
	Issuer     *TokenIssuer
	Clock      ports.Clock
	Logger     *slog.Logger
	BcryptCost int
}

// AccountService is the auth stub's business logic: accounts, password checks and token issuing.
type AccountService struct {
	users  ports.UserRepository
	issuer *TokenIssuer
	clock  ports.Clock
	logger *slog.Logger
	cost   int
}

// NewAccountService constructs an AccountService.
func NewAccountService(opts AccountServiceOptions) *AccountService {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real{}
	}
	cost := opts.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &AccountService{
		users:  opts.Users,
		issuer: opts.Issuer,
		clock:  clk,
		logger: logger,
		cost:   cost,
	}
}

// Register creates an account and returns a token for it.
// A duplicate email is a Conflict, which the stub reports as 500 like the hosted service.
func (s *AccountService) Register(ctx context.Context, in domainauth.Registration) (string, error) {
	in = NormalizeRegistration(in)
	if err := ValidateRegistration(in); err != nil {
		return "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeInternal, "hash password")
	}

	user := domainauth.User{
		ID:           uuid.NewString(),
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: string(hash),
		Role:         in.Role,
		CreatedAt:    s.clock.Now().UTC(),
	}
	if err = s.users.Create(ctx, user); err != nil {
		if errors.Is(err, ports.ErrEmailTaken) {
			return "", apperrors.Wrap(err, apperrors.ErrCodeConflict, "Email already in use: "+in.Email)
		}
		return "", apperrors.Wrap(err, apperrors.ErrCodeInternal, "create user")
	}

	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID, "role", user.Role)
	return s.issue(user)
}

// Login checks credentials and returns a fresh token. Unknown email and wrong
// password are indistinguishable to the caller.
func (s *AccountService) Login(ctx context.Context, in domainauth.Credentials) (string, error) {
	if err := ValidateCredentials(in); err != nil {
		return "", err
	}

	user, err := s.users.FindByEmail(ctx, in.Email)
	switch {
	case errors.Is(err, ports.ErrUserNotFound):
		return "", apperrors.Unauthorized("Invalid email or password")
	case err != nil:
		return "", apperrors.Wrap(err, apperrors.ErrCodeInternal, "find user")
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)) != nil {
		s.logger.InfoContext(ctx, "login rejected", "user_id", user.ID)
		return "", apperrors.Unauthorized("Invalid email or password")
	}
	return s.issue(user)
}

// Authenticate verifies a bearer token. Any signature, shape or expiry failure is Forbidden.
func (s *AccountService) Authenticate(tok string) (Principal, error) {
	if tok == "" {
		return Principal{}, apperrors.Forbidden("Access denied")
	}
	claims, err := s.issuer.Verify(tok)
	if err != nil {
		return Principal{}, apperrors.Wrap(err, apperrors.ErrCodeForbidden, "Access denied")
	}
	return Principal{Email: claims.Subject, Name: claims.Name, Role: domainauth.Role(claims.Role)}, nil
}

func (s *AccountService) issue(u domainauth.User) (string, error) {
	tok, err := s.issuer.Issue(u)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeInternal, "issue token")
	}
	return tok, nil
}
