package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// TokenValidator checks the claims of a token whose signature is already
// verified. Every token must carry an expiry and a subject.
type TokenValidator struct {
	Issuer    string
	Audience  string
	ClockSkew time.Duration
	Algorithm jwa.SignatureAlgorithm
}

// Validate returns an error wrapping ErrInvalidToken when tok is not
// acceptable at now.
func (v TokenValidator) Validate(tok jwt.Token, algorithm jwa.SignatureAlgorithm, now time.Time) error {
	if tok == nil {
		return fmt.Errorf("%w: nil token", ErrInvalidToken)
	}
	if v.Algorithm != "" && algorithm != v.Algorithm {
		return fmt.Errorf("%w: algorithm %q not accepted", ErrInvalidToken, algorithm)
	}
	if err := jwt.Validate(tok, v.options(now)...); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if strings.TrimSpace(tok.Subject()) == "" {
		return fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return nil
}

func (v TokenValidator) options(now time.Time) []jwt.ValidateOption {
	opts := []jwt.ValidateOption{
		jwt.WithClock(jwt.ClockFunc(func() time.Time { return now })),
		jwt.WithRequiredClaim(jwt.ExpirationKey),
	}
	if v.ClockSkew > 0 {
		opts = append(opts, jwt.WithAcceptableSkew(v.ClockSkew))
	}
	if v.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.Issuer))
	}
	if v.Audience != "" {
		opts = append(opts, jwt.WithAudience(v.Audience))
	}
	return opts
}
