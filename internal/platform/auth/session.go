package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const audience = "museum-tickets"

var ErrInvalidSession = errors.New("invalid session")

type SessionClaims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// Sessions issues and verifies visitor session cookies. The session id
// (the token subject) is what an order records as its owner.
type Sessions struct {
	secret []byte
	ttl    time.Duration
}

// NewSessions returns a session issuer. A zero ttl issues tokens without
// an expiry, so a session lasts as long as the browser keeps the cookie.
func NewSessions(secret string, ttl time.Duration) *Sessions {
	return &Sessions{secret: []byte(secret), ttl: ttl}
}

func (s *Sessions) TTL() time.Duration { return s.ttl }

// Issue creates a new session and returns its id and signed token.
func (s *Sessions) Issue() (sessionID, token string, err error) {
	now := time.Now()
	sessionID = uuid.NewString()

	claims := SessionClaims{
		Scope: "orders:read orders:write",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sessionID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Audience:  []string{audience},
		},
	}
	if s.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(s.ttl))
	}

	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", "", err
	}
	return sessionID, token, nil
}

// Parse verifies a token and returns the session id it carries.
func (s *Sessions) Parse(token string) (string, error) {
	tok, err := jwt.ParseWithClaims(token, &SessionClaims{}, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(audience),
	)
	if err != nil {
		return "", err
	}
	claims, ok := tok.Claims.(*SessionClaims)
	if !ok || !tok.Valid || claims.Subject == "" {
		return "", ErrInvalidSession
	}
	return claims.Subject, nil
}
