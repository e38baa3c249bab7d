package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/ella-cms/scribble/internal/core/domain"
)

func TestRBAC_Allows(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("role", domain.RoleAdmin)

	called := false
	mw := RBAC(domain.RoleAdmin, domain.RoleEditor)
	handler := mw(func(c echo.Context) error {
		called = true
		return c.NoContent(http.StatusOK)
	})

	if err := handler(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !called {
		t.Fatalf("next handler not called")
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestRBAC_Forbids(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("role", domain.RoleReader)

	mw := RBAC(domain.RoleAdmin, domain.RoleEditor)
	handler := mw(func(c echo.Context) error {
		t.Fatalf("should not reach next handler")
		return nil
	})

	err := handler(c)
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestWriteAccess_ReaderMayRead(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/r1/site/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("role", domain.RoleReader)

	handler := WriteAccess()(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	if err := handler(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestWriteAccess_ReaderMayNotWrite(t *testing.T) {
	for _, method := range []string{http.MethodPost, http.MethodDelete} {
		e := echo.New()
		req := httptest.NewRequest(method, "/api/r1/site/", nil)
		c := e.NewContext(req, httptest.NewRecorder())
		c.Set("role", domain.RoleReader)

		handler := WriteAccess()(func(c echo.Context) error {
			t.Fatalf("%s should not reach next handler", method)
			return nil
		})

		if err := handler(c); !errors.Is(err, domain.ErrForbidden) {
			t.Fatalf("%s: expected ErrForbidden, got %v", method, err)
		}
	}
}

func TestWriteAccess_EditorMayWrite(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/r1/site/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("role", domain.RoleEditor)

	handler := WriteAccess()(func(c echo.Context) error {
		return c.NoContent(http.StatusCreated)
	})

	if err := handler(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
}
