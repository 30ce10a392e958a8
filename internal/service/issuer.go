package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/target/tokenlab/internal/clock"
	domainauth "github.com/target/tokenlab/internal/domain/auth"
	"github.com/target/tokenlab/internal/ports"
)

// DefaultTokenTTL is the lifetime of tokens issued by the auth stub.
const DefaultTokenTTL = time.Hour

// IssuedClaims is the payload the auth stub signs.
type IssuedClaims struct {
	Role string `json:"role"`
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// TokenIssuerOptions groups dependencies for TokenIssuer.
type TokenIssuerOptions struct {
	Secret []byte
	TTL    time.Duration
	Clock  ports.Clock
}

// TokenIssuer signs and verifies HS256 tokens for the auth stub.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	clock  ports.Clock
	parser *jwt.Parser
}

// NewTokenIssuer constructs a TokenIssuer. The secret must be non-empty.
func NewTokenIssuer(opts TokenIssuerOptions) (*TokenIssuer, error) {
	if len(opts.Secret) == 0 {
		return nil, errors.New("token signing secret is required")
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real{}
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenIssuer{
		secret: opts.Secret,
		ttl:    ttl,
		clock:  clk,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithTimeFunc(clk.Now),
			jwt.WithExpirationRequired(),
		),
	}, nil
}

// Issue signs a token for u carrying sub, role, name, iat, exp and jti.
func (i *TokenIssuer) Issue(u domainauth.User) (string, error) {
	now := i.clock.Now().Truncate(time.Second)
	claims := IssuedClaims{
		Role: string(u.Role),
		Name: u.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.Email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature and expiry of tok and returns its claims.
func (i *TokenIssuer) Verify(tok string) (*IssuedClaims, error) {
	claims := &IssuedClaims{}
	if _, err := i.parser.ParseWithClaims(tok, claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	}); err != nil {
		return nil, fmt.Errorf("verify token: %w", err)
	}
	return claims, nil
}
