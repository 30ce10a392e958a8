package testutil

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TestSigningKey signs tokens produced by TokenBuilder unless overridden.
var TestSigningKey = []byte("tokenlab-test-secret")

// TokenBuilder provides a fluent interface for building signed HS256 tokens for testing.
type TokenBuilder struct {
	claims jwt.MapClaims
	key    []byte
}

// NewToken creates a TokenBuilder for a ROLE_USER token issued at TestTime and valid for one hour.
func NewToken() *TokenBuilder {
	iat := TestTime()
	return &TokenBuilder{
		claims: jwt.MapClaims{
			"sub":  "user@example.com",
			"role": "ROLE_USER",
			"iat":  iat.Unix(),
			"exp":  iat.Add(time.Hour).Unix(),
		},
		key: TestSigningKey,
	}
}

// WithSubject sets the sub claim.
func (b *TokenBuilder) WithSubject(sub string) *TokenBuilder {
	b.claims["sub"] = sub
	return b
}

// WithRole sets the role claim.
func (b *TokenBuilder) WithRole(role string) *TokenBuilder {
	b.claims["role"] = role
	return b
}

// WithLifetime sets iat to issuedAt and exp to issuedAt+ttl.
func (b *TokenBuilder) WithLifetime(issuedAt time.Time, ttl time.Duration) *TokenBuilder {
	b.claims["iat"] = issuedAt.Unix()
	b.claims["exp"] = issuedAt.Add(ttl).Unix()
	return b
}

// WithClaim sets an arbitrary claim.
func (b *TokenBuilder) WithClaim(name string, value any) *TokenBuilder {
	b.claims[name] = value
	return b
}

// Without removes a claim.
func (b *TokenBuilder) Without(name string) *TokenBuilder {
	delete(b.claims, name)
	return b
}

// WithKey sets the HMAC signing key.
func (b *TokenBuilder) WithKey(key []byte) *TokenBuilder {
	b.key = key
	return b
}

// Build signs the token and panics on failure; HS256 signing with a byte key cannot fail in practice.
func (b *TokenBuilder) Build() string {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, b.claims).SignedString(b.key)
	if err != nil {
		panic(err)
	}
	return signed
}
