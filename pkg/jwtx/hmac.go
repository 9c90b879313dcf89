package jwtx

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// HMAC signs and verifies tokens with a shared secret (HS256/HS384/HS512).
// The same value is both Signer and Verifier.
type HMAC struct {
	method *jwt.SigningMethodHMAC
	secret []byte
	issuer string
	now    func() time.Time
}

// NewHMAC validates alg and requires a secret at least as long as the digest.
func NewHMAC(alg string, secret []byte, issuer string) (*HMAC, error) {
	var method *jwt.SigningMethodHMAC
	switch alg {
	case "", jwt.SigningMethodHS256.Alg():
		method = jwt.SigningMethodHS256
	case jwt.SigningMethodHS384.Alg():
		method = jwt.SigningMethodHS384
	case jwt.SigningMethodHS512.Alg():
		method = jwt.SigningMethodHS512
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, alg)
	}

	if len(secret) < method.Hash.Size() {
		return nil, fmt.Errorf("%w: %s needs %d bytes, got %d",
			ErrWeakSecret, method.Alg(), method.Hash.Size(), len(secret))
	}

	return &HMAC{method: method, secret: secret, issuer: issuer, now: time.Now}, nil
}

// WithClock overrides the time source used during validation.
func (h *HMAC) WithClock(now func() time.Time) *HMAC {
	cp := *h
	cp.now = now
	return &cp
}

func (h *HMAC) Alg() string    { return h.method.Alg() }
func (h *HMAC) Issuer() string { return h.issuer }

func (h *HMAC) Sign(c Claims) (string, error) {
	s, err := jwt.NewWithClaims(h.method, c).SignedString(h.secret)
	if err != nil {
		return "", fmt.Errorf("jwtx: sign: %w", err)
	}
	return s, nil
}

// Verify checks signature, algorithm, issuer and expiry. Expiry equal to now
// is already expired.
func (h *HMAC) Verify(raw string) (Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{h.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(h.now),
	}
	if h.issuer != "" {
		opts = append(opts, jwt.WithIssuer(h.issuer))
	}

	var claims Claims
	_, err := jwt.NewParser(opts...).ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return h.secret, nil
	})
	if err != nil {
		return Claims{}, classify(err)
	}
	return claims, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenNotValidYet), errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
		return ErrNotYetValid
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return ErrIssuer
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrInvalidSig
	default:
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
}
