package token

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCompute(t *testing.T) {
	now := time.Unix(1_700_001_800, 0)

	tests := []struct {
		name   string
		claims Claims
		want   Countdown
	}{
		{
			name:   "halfway",
			claims: Claims{"iat": json.Number("1700000000"), "exp": json.Number("1700003600")},
			want:   Countdown{Total: 3600, Remaining: 1800, Fraction: 0.5, HasExpiry: true},
		},
		{
			name:   "expired clamps to zero",
			claims: Claims{"iat": json.Number("1699990000"), "exp": json.Number("1700000000")},
			want:   Countdown{Total: 10000, Remaining: 0, Fraction: 0, HasExpiry: true},
		},
		{
			name:   "missing iat defaults total to one",
			claims: Claims{"exp": json.Number("1700001802")},
			want:   Countdown{Total: 1, Remaining: 2, Fraction: 2, HasExpiry: true},
		},
		{
			name:   "no exp",
			claims: Claims{"iat": json.Number("1700000000")},
			want:   Countdown{Total: 1, Remaining: 0, Fraction: 0},
		},
		{
			name:   "nil claims",
			claims: nil,
			want:   Countdown{Total: 1},
		},
		{
			name:   "inverted bounds yield zero fraction",
			claims: Claims{"iat": json.Number("1700009999"), "exp": json.Number("1700003600")},
			want:   Countdown{Total: -6399, Remaining: 1800, Fraction: 0, HasExpiry: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Compute(tt.claims, now))
		})
	}
}

func TestCompute_RemainingMonotonicAndClamped(t *testing.T) {
	claims := Claims{"iat": json.Number("1000"), "exp": json.Number("1005")}
	start := time.Unix(1000, 0)

	prev := Compute(claims, start).Remaining
	for i := 1; i <= 10; i++ {
		cd := Compute(claims, start.Add(time.Duration(i)*time.Second))
		assert.LessOrEqual(t, cd.Remaining, prev)
		assert.GreaterOrEqual(t, cd.Remaining, int64(0))
		prev = cd.Remaining
	}
	assert.Equal(t, int64(0), prev)
	assert.True(t, Compute(claims, start.Add(10*time.Second)).Expired())
	assert.False(t, Compute(claims, start).Expired())
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "EXPIRED", Format(0))
	assert.Equal(t, "EXPIRED", Format(-5))
	assert.Equal(t, "1h 1m 1s", Format(3661))
	assert.Equal(t, "0h 0m 59s", Format(59))
	assert.Equal(t, "0h 1m 0s", Format(60))
	assert.Equal(t, "25h 0m 0s", Format(90000))
}

func TestSeverityOf(t *testing.T) {
	assert.Equal(t, SeverityWarning, SeverityOf(0.5))
	assert.Equal(t, SeverityNormal, SeverityOf(0.6))
	assert.Equal(t, SeverityCritical, SeverityOf(0.1))
	assert.Equal(t, SeverityCritical, SeverityOf(0.2))
	assert.Equal(t, SeverityWarning, SeverityOf(0.21))
	assert.Equal(t, SeverityNormal, SeverityOf(1))
	assert.Equal(t, SeverityCritical, SeverityOf(0))
}
