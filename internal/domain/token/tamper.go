package token

import (
	"fmt"
	"strings"
)

// Role values recognised by SwapRole.
const (
	RoleAdmin = "ROLE_ADMIN"
	RoleUser  = "ROLE_USER"
)

// SignatureSentinel replaces the tail of a token in CorruptSignature.
const SignatureSentinel = "TAMPERED!!"

// CorruptSignature drops the last len(SignatureSentinel) bytes of tok and appends the sentinel.
// It ignores segment boundaries, so very short inputs yield a structurally invalid token.
func CorruptSignature(tok string) string {
	cut := max(0, len(tok)-len(SignatureSentinel))
	return tok[:cut] + SignatureSentinel
}

// SwapRole toggles the role claim between RoleAdmin and RoleUser and re-encodes
// only the payload segment. Header and signature are kept verbatim, which is what
// invalidates the signature.
func SwapRole(tok string, claims Claims) (string, error) {
	if tok == "" {
		return "", fmt.Errorf("swap role on empty token: %w", ErrNoOpTamper)
	}
	if claims == nil {
		return "", fmt.Errorf("swap role on undecodable token: %w", ErrNoOpTamper)
	}
	if !claims.HasRole() {
		return "", fmt.Errorf("swap role: token has no %s claim: %w", ClaimRole, ErrNoOpTamper)
	}

	parts := strings.Split(tok, ".")
	if len(parts) != segmentCount {
		return "", fmt.Errorf("swap role on malformed token: %w", ErrNoOpTamper)
	}

	modified := claims.Clone()
	modified[ClaimRole] = NextRole(claims)

	payload, err := EncodeClaims(modified)
	if err != nil {
		return "", fmt.Errorf("swap role: %w", err)
	}
	return parts[0] + "." + payload + "." + parts[2], nil
}

// NextRole returns the role SwapRole would write for claims.
func NextRole(claims Claims) string {
	if role, _ := claims.Role(); role == RoleAdmin {
		return RoleUser
	}
	return RoleAdmin
}

// Clear returns the absent token.
func Clear() string { return "" }

// Replace returns s unchanged. Hand-edited and malformed tokens are accepted on purpose.
func Replace(s string) string { return s }
