// Package auth issues and verifies the HS256 bearer tokens that identify
// the principal submitting and managing jobs.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "voicequeue"

var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrExpiredToken     = errors.New("token expired")
	ErrTokenNotYetValid = errors.New("token not yet valid")
	ErrMissingSubject   = errors.New("token has no subject")
)

// Tokens signs and verifies bearer tokens with a shared secret.
type Tokens struct {
	signingKey []byte
	timeFunc   func() time.Time
	clockSkew  time.Duration
}

func NewTokens(secret string) (*Tokens, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("jwt secret must be at least 32 characters")
	}
	return &Tokens{
		signingKey: []byte(secret),
		timeFunc:   time.Now,
		clockSkew:  2 * time.Minute,
	}, nil
}

// Issue returns a signed token whose subject is the principal.
func (t *Tokens) Issue(subject string, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", ErrMissingSubject
	}
	now := t.timeFunc()
	claims := jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        uuid.New().String(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.signingKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature and time claims and returns the subject.
func (t *Tokens) Verify(token string) (string, error) {
	now := t.timeFunc()
	claims := &jwt.RegisteredClaims{}

	_, err := jwt.ParseWithClaims(token, claims,
		func(tok *jwt.Token) (any, error) {
			if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
			}
			return t.signingKey, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(t.clockSkew),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return "", ErrExpiredToken
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return "", ErrTokenNotYetValid
	default:
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if claims.Subject == "" {
		return "", ErrMissingSubject
	}
	return claims.Subject, nil
}

type principalKey struct{}

// WithPrincipal stores the authenticated subject in ctx.
func WithPrincipal(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, principalKey{}, subject)
}

// Principal returns the subject stored by WithPrincipal.
func Principal(ctx context.Context) (string, bool) {
	s, ok := ctx.Value(principalKey{}).(string)
	return s, ok && s != ""
}
