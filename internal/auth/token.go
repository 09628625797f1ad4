// Package auth issues and checks the admin tokens that guard snapshot
// management. An operator exchanges the admin secret for a short-lived HS256
// JWT and presents it as a Bearer token.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// ErrBadSecret is returned when the presented admin secret does not match.
var ErrBadSecret = errors.New("invalid admin secret")

const (
	// TypeAdmin marks tokens issued in exchange for the admin secret.
	TypeAdmin = "admin"

	defaultTTL = 8 * time.Hour
)

// Claims are the JWT claims of an admin token.
type Claims struct {
	jwt.RegisteredClaims
	Type string `json:"type"`
}

// Issuer signs and verifies admin tokens with a shared HMAC key.
type Issuer struct {
	key        []byte
	issuer     string
	ttl        time.Duration
	secretHash []byte // bcrypt hash; nil = token exchange disabled
	now        func() time.Time
}

// NewIssuer creates an Issuer.
//
//	key        HMAC signing key.
//	issuer     the "iss" claim; usually the server's base URL.
//	ttl        token lifetime (default: 8 hours).
//	secretHash bcrypt hash of the admin secret; empty disables Exchange.
func NewIssuer(key []byte, issuer string, ttl time.Duration, secretHash string) *Issuer {
	if ttl == 0 {
		ttl = defaultTTL
	}
	iss := &Issuer{key: key, issuer: issuer, ttl: ttl, now: time.Now}
	if secretHash != "" {
		iss.secretHash = []byte(secretHash)
	}
	return iss
}

// Enabled reports whether an admin secret is configured.
func (i *Issuer) Enabled() bool {
	return i.secretHash != nil
}

// Exchange checks secret against the configured bcrypt hash and returns a
// signed admin token with its expiry.
func (i *Issuer) Exchange(secret string) (string, time.Time, error) {
	if i.secretHash == nil {
		return "", time.Time{}, fmt.Errorf("%w: admin access is not configured", ErrBadSecret)
	}
	if err := bcrypt.CompareHashAndPassword(i.secretHash, []byte(secret)); err != nil {
		return "", time.Time{}, ErrBadSecret
	}
	return i.Issue()
}

// Issue creates a signed admin token.
func (i *Issuer) Issue() (string, time.Time, error) {
	now := i.now().UTC()
	exp := now.Add(i.ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   "admin",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.New().String(),
		},
		Type: TypeAdmin,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign admin token: %w", err)
	}
	return signed, exp, nil
}

// Verify parses and validates an admin token, returning its claims.
func (i *Issuer) Verify(tokenStr string) (*Claims, error) {
	if len(i.key) == 0 {
		return nil, fmt.Errorf("verify admin token: no signing key configured")
	}
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&Claims{},
		func(tok *jwt.Token) (any, error) {
			if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
			}
			return i.key, nil
		},
		jwt.WithIssuer(i.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, fmt.Errorf("verify admin token: %w", err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid admin token claims")
	}
	if claims.Type != TypeAdmin {
		return nil, fmt.Errorf("not an admin token")
	}
	return claims, nil
}

// HashSecret returns the bcrypt hash to configure for secret.
func HashSecret(secret string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash admin secret: %w", err)
	}
	return string(h), nil
}
