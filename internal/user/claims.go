// Package user implements the bearer-token claims boundary
// (SPEC_FULL.md §4.11). Password hashing and SMS/OAuth login
// strategies are external collaborators out of scope (§1 Non-goals);
// this package parses and validates the claims a handler needs off a
// token, and signs tokens for a given user id.
package user

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"medschool-core/internal/errs"
)

// Claims is the minimal claim set handlers depend on.
type Claims struct {
	UserID string
	Expiry time.Time
}

// tokenClaims is the wire shape decoded off the JWT, kept separate
// from Claims so callers never depend on the jwt library's types.
type tokenClaims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
}

// Verifier parses and validates bearer tokens against a single HS256
// secret, per config.Config.JWT.
type Verifier struct {
	secret []byte
}

// NewVerifier builds a Verifier over secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// ParseHeader extracts and verifies the token from an
// "Authorization: Bearer <token>" header value.
func (v *Verifier) ParseHeader(header string) (Claims, error) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return Claims{}, errs.Unauthorized("missing bearer token")
	}
	return v.Parse(strings.TrimPrefix(header, prefix))
}

// Parse verifies raw and extracts its claims.
func (v *Verifier) Parse(raw string) (Claims, error) {
	var claims tokenClaims
	token, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errs.Unauthorized("unexpected signing method")
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return Claims{}, errs.Unauthorized("invalid or expired token")
	}
	if claims.UserID == "" {
		return Claims{}, errs.Unauthorized("token missing user_id claim")
	}

	var expiry time.Time
	if claims.ExpiresAt != nil {
		expiry = claims.ExpiresAt.Time
	}
	return Claims{UserID: claims.UserID, Expiry: expiry}, nil
}

// Issue mints a token for userID, used by the login and refresh
// handlers and by tests — it verifies no credentials itself; password/
// SMS/OAuth verification lives outside this core per §1 Non-goals.
func (v *Verifier) Issue(userID string, ttl time.Duration) (string, error) {
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		UserID: userID,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}
