package rest

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const defaultTokenTTL = time.Hour

// TokenSigner mints the HS256 bearer tokens the backend expects.
type TokenSigner struct {
	secret  []byte
	subject string
	role    string
	ttl     time.Duration
	now     func() time.Time
}

func NewTokenSigner(secret, subject, role string, ttl time.Duration) *TokenSigner {
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &TokenSigner{secret: []byte(secret), subject: subject, role: role, ttl: ttl, now: time.Now}
}

// Sign returns a fresh token carrying sub, role, iat and exp.
func (s *TokenSigner) Sign() (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"sub":  s.subject,
		"role": s.role,
		"iat":  now.Unix(),
		"exp":  now.Add(s.ttl).Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(s.secret)
}
