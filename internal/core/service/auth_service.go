package service

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/ella-cms/scribble/internal/core/domain"
	"github.com/ella-cms/scribble/internal/core/ports"
)

// AuthService implements login against the user objects of a ResourceStore.
// Stored passwords are bcrypt hashes.
type AuthService struct {
	store     ports.ResourceStore
	userType  string
	jwtSecret string
	role      string
	tokenTTL  time.Duration
}

var _ ports.AuthService = (*AuthService)(nil)

// NewAuthService issues tokens carrying role for users stored under userType.
func NewAuthService(store ports.ResourceStore, userType, jwtSecret, role string, tokenTTL time.Duration) *AuthService {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &AuthService{store: store, userType: userType, jwtSecret: jwtSecret, role: role, tokenTTL: tokenTTL}
}

func (s *AuthService) Login(ctx context.Context, username, password string) (string, domain.Principal, error) {
	if username == "" || password == "" {
		return "", domain.Principal{}, domain.ErrInvalidCredentials
	}

	users, _, err := s.store.Find(ctx, s.userType, ports.ResourceQuery{
		Filters: []ports.Filter{{Field: "username", Mode: ports.MatchEqual, Values: []any{username}}},
	})
	if err != nil {
		return "", domain.Principal{}, fmt.Errorf("login: %w", err)
	}

	for _, u := range users {
		hash, _ := u["password"].(string)
		if hash == "" || bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
			continue
		}
		p := domain.Principal{Subject: username, Role: s.role}
		token, err := s.generateToken(p)
		if err != nil {
			return "", domain.Principal{}, err
		}
		return token, p, nil
	}
	return "", domain.Principal{}, domain.ErrInvalidCredentials
}

func (s *AuthService) generateToken(p domain.Principal) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  p.Subject,
		"role": p.Role,
		"iat":  now.Unix(),
		"exp":  now.Add(s.tokenTTL).Unix(),
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString([]byte(s.jwtSecret))
}
