package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/ella-cms/scribble/internal/core/domain"
)

type stubAuthService struct {
	loginFn func(ctx context.Context, username, password string) (string, domain.Principal, error)
}

func (s *stubAuthService) Login(ctx context.Context, username, password string) (string, domain.Principal, error) {
	return s.loginFn(ctx, username, password)
}

func TestAuthHandler_Token_Success(t *testing.T) {
	stub := &stubAuthService{
		loginFn: func(ctx context.Context, username, password string) (string, domain.Principal, error) {
			if username != "alice" || password != "secret" {
				t.Fatalf("unexpected args: %s %s", username, password)
			}
			return "tkn", domain.Principal{Subject: username, Role: domain.RoleEditor}, nil
		},
	}
	handler := NewAuthHandler(stub)

	c, rec := newContext(http.MethodPost, "/auth/token", `{"username":"alice","password":"secret"}`)
	if err := handler.Token(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp tokenResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.Token != "tkn" || resp.Sub != "alice" || resp.Role != domain.RoleEditor {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestAuthHandler_Token_MissingPassword(t *testing.T) {
	handler := NewAuthHandler(&stubAuthService{
		loginFn: func(context.Context, string, string) (string, domain.Principal, error) {
			t.Fatalf("service should not be called")
			return "", domain.Principal{}, nil
		},
	})

	c, _ := newContext(http.MethodPost, "/auth/token", `{"username":"alice"}`)
	var he *echo.HTTPError
	if err := handler.Token(c); !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestAuthHandler_Token_InvalidCredentials(t *testing.T) {
	handler := NewAuthHandler(&stubAuthService{
		loginFn: func(context.Context, string, string) (string, domain.Principal, error) {
			return "", domain.Principal{}, domain.ErrInvalidCredentials
		},
	})

	c, _ := newContext(http.MethodPost, "/auth/token", `{"username":"alice","password":"nope"}`)
	if err := handler.Token(c); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}
