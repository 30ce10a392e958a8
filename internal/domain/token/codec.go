// Package token holds the pure JWT handling used by the inspector: payload
// decoding for display, countdown math and the tamper transforms. Nothing here
// verifies a signature or performs I/O.
package token

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// segmentCount is the number of dot-separated parts in a JWT (header.payload.signature).
const segmentCount = 3

var (
	// ErrUndecodableToken indicates the token shape, encoding or payload JSON is invalid.
	ErrUndecodableToken = errors.New("could not decode token")
	// ErrNoOpTamper indicates a tamper operation could not apply to the current token.
	ErrNoOpTamper = errors.New("tamper operation not applicable")
)

// Claims is the decoded JWT payload. Numbers keep their literal JSON text
// (json.Number) so unknown fields survive a decode/encode cycle untouched.
type Claims map[string]any

// Standard claim names read by the inspector.
const (
	ClaimIssuedAt  = "iat"
	ClaimExpiresAt = "exp"
	ClaimRole      = "role"
)

// IssuedAt returns the iat claim in epoch seconds.
func (c Claims) IssuedAt() (int64, bool) { return c.seconds(ClaimIssuedAt) }

// ExpiresAt returns the exp claim in epoch seconds.
func (c Claims) ExpiresAt() (int64, bool) { return c.seconds(ClaimExpiresAt) }

// Role returns the role claim when it is a string.
func (c Claims) Role() (string, bool) {
	v, ok := c[ClaimRole].(string)
	return v, ok
}

// HasRole reports whether a role field is present at all, whatever its type.
func (c Claims) HasRole() bool {
	_, ok := c[ClaimRole]
	return ok
}

func (c Claims) seconds(name string) (int64, bool) {
	switch v := c[name].(type) {
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n, true
		}
		if f, err := v.Float64(); err == nil {
			return int64(f), true
		}
	case float64:
		return int64(v), true
	case int64:
		return v, true
	case int:
		return int64(v), true
	}
	return 0, false
}

// Clone returns a shallow copy so callers can modify top-level fields safely.
func (c Claims) Clone() Claims {
	if c == nil {
		return nil
	}
	out := make(Claims, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Decode extracts the claims from the middle segment of a JWT without any
// signature check. A successful decode says nothing about authenticity.
func Decode(tok string) (Claims, error) {
	parts := strings.Split(tok, ".")
	if len(parts) != segmentCount {
		return nil, fmt.Errorf("token must have %d segments, got %d: %w", segmentCount, len(parts), ErrUndecodableToken)
	}

	raw, err := base64.StdEncoding.DecodeString(toStdBase64(parts[1]))
	if err != nil {
		return nil, fmt.Errorf("decode payload segment: %w", errors.Join(ErrUndecodableToken, err))
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var claims Claims
	if err := dec.Decode(&claims); err != nil {
		return nil, fmt.Errorf("parse payload json: %w", errors.Join(ErrUndecodableToken, err))
	}
	if dec.More() {
		return nil, fmt.Errorf("trailing data after payload json: %w", ErrUndecodableToken)
	}
	if claims == nil {
		return nil, fmt.Errorf("payload is not a json object: %w", ErrUndecodableToken)
	}
	return claims, nil
}

// EncodeClaims renders claims as an unpadded base64url segment.
func EncodeClaims(claims Claims) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(claims); err != nil {
		return "", fmt.Errorf("encode claims: %w", err)
	}
	payload := bytes.TrimSuffix(buf.Bytes(), []byte("\n"))
	return base64.RawURLEncoding.EncodeToString(payload), nil
}

// toStdBase64 maps the base64url alphabet back to standard base64 and pads to a multiple of 4.
func toStdBase64(seg string) string {
	s := strings.NewReplacer("-", "+", "_", "/").Replace(seg)
	if rem := len(s) % 4; rem != 0 {
		s += strings.Repeat("=", 4-rem)
	}
	return s
}
