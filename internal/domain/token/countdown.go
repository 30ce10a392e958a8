package token

import (
	"fmt"
	"time"
)

// Severity buckets the remaining-lifetime fraction for display.
type Severity string

const (
	SeverityNormal   Severity = "NORMAL"
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

// ExpiredLabel is rendered in place of a countdown once nothing remains.
const ExpiredLabel = "EXPIRED"

// Countdown is the remaining-validity view derived from claims and a clock reading.
type Countdown struct {
	Total     int64 // exp - iat in seconds, 1 when either bound is missing
	Remaining int64 // max(0, exp - now)
	Fraction  float64
	HasExpiry bool
}

// Expired reports whether the token carries an exp claim that has passed.
func (c Countdown) Expired() bool {
	return c.HasExpiry && c.Remaining <= 0
}

// Compute derives the countdown for claims at instant now.
func Compute(claims Claims, now time.Time) Countdown {
	cd := Countdown{Total: 1}

	exp, hasExp := claims.ExpiresAt()
	iat, hasIat := claims.IssuedAt()
	if hasExp && hasIat {
		cd.Total = exp - iat
	}

	if hasExp {
		cd.HasExpiry = true
		cd.Remaining = max(0, exp-now.Unix())
	}

	if cd.Total > 0 {
		cd.Fraction = float64(cd.Remaining) / float64(cd.Total)
	}
	return cd
}

// Format renders remaining seconds as "{h}h {m}m {s}s", or EXPIRED when none remain.
func Format(seconds int64) string {
	if seconds <= 0 {
		return ExpiredLabel
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	return fmt.Sprintf("%dh %dm %ds", h, m, s)
}

// SeverityOf maps a remaining fraction to a severity. Boundaries resolve to the more severe bucket.
func SeverityOf(fraction float64) Severity {
	switch {
	case fraction > 0.5:
		return SeverityNormal
	case fraction > 0.2:
		return SeverityWarning
	default:
		return SeverityCritical
	}
}
