// Package token issues and validates the session JWTs used by the HTTP
// front end.
package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"altona/internal/platform/middleware"
	dErrors "altona/pkg/domain-errors"
)

// Claims is the JWT payload for a session token.
type Claims struct {
	jwt.RegisteredClaims
	IsAdmin bool `json:"is_admin"`
}

// Manager signs and verifies session tokens with a shared HMAC key.
type Manager struct {
	signingKey []byte
	ttl        time.Duration
	issuer     string
	now        func() time.Time
}

// NewManager creates a token manager.
func NewManager(signingKey string, ttl time.Duration, issuer string) *Manager {
	return &Manager{
		signingKey: []byte(signingKey),
		ttl:        ttl,
		issuer:     issuer,
		now:        time.Now,
	}
}

// Issue creates a signed session token for the given principal.
func (m *Manager) Issue(userID string, isAdmin bool) (string, time.Time, error) {
	now := m.now()
	expiresAt := now.Add(m.ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		IsAdmin: isAdmin,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.signingKey)
	if err != nil {
		return "", time.Time{}, dErrors.Wrap(err, dErrors.CodeInternal, "sign session token")
	}
	return signed, expiresAt, nil
}

// ValidateToken implements middleware.TokenValidator.
func (m *Manager) ValidateToken(tokenString string) (*middleware.SessionClaims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "unexpected signing method")
		}
		return m.signingKey, nil
	}, jwt.WithIssuer(m.issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnauthorized, "invalid session token")
	}
	return &middleware.SessionClaims{UserID: claims.Subject, IsAdmin: claims.IsAdmin}, nil
}
