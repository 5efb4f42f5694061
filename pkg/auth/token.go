package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

const (
	scopeAccess     = "access"
	scopeActivation = "activation"
)

var (
	// ErrTokenExpired is returned for structurally valid tokens past expiry.
	ErrTokenExpired = errors.New("Token has expired")

	// ErrInvalidToken is returned for tokens that fail signature or claim checks.
	ErrInvalidToken = errors.New("Invalid token")
)

type claims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// TokenManager issues and verifies the HS256 tokens used by the API:
// short-lived access tokens and longer-lived account activation tokens.
type TokenManager struct {
	secret        []byte
	accessTTL     time.Duration
	activationTTL time.Duration
}

// NewTokenManager builds a manager. TTLs fall back to 60 minutes for
// access and 48 hours for activation when unset.
func NewTokenManager(secret string, accessTTL, activationTTL time.Duration) (*TokenManager, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("jwt secret required")
	}
	if accessTTL <= 0 {
		accessTTL = 60 * time.Minute
	}
	if activationTTL <= 0 {
		activationTTL = 48 * time.Hour
	}
	return &TokenManager{
		secret:        []byte(secret),
		accessTTL:     accessTTL,
		activationTTL: activationTTL,
	}, nil
}

// NewAccessToken issues a signed bearer token carrying the user id,
// issued-at, and expiry.
func (m *TokenManager) NewAccessToken(userID string) (string, error) {
	return m.sign(userID, scopeAccess, m.accessTTL)
}

// VerifyAccessToken checks signature, expiry, and scope, and returns
// the subject user id.
func (m *TokenManager) VerifyAccessToken(token string) (string, error) {
	return m.verify(token, scopeAccess)
}

// NewActivationToken issues a signed token for the account activation
// link. Activation stays idempotent, so the token is effectively
// single-use: a second activation just reports "already active".
func (m *TokenManager) NewActivationToken(userID string) (string, error) {
	return m.sign(userID, scopeActivation, m.activationTTL)
}

// VerifyActivationToken checks an activation token and returns the
// subject user id.
func (m *TokenManager) VerifyActivationToken(token string) (string, error) {
	return m.verify(token, scopeActivation)
}

func (m *TokenManager) sign(userID, scope string, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Scope: scope,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	signed, err := tok.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (m *TokenManager) verify(token, scope string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", ErrInvalidToken
	}
	c, ok := parsed.Claims.(*claims)
	if !ok || !parsed.Valid || c.Scope != scope || c.Subject == "" {
		return "", ErrInvalidToken
	}
	return c.Subject, nil
}
