package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/ella-cms/scribble/internal/api/middleware"
	"github.com/ella-cms/scribble/internal/core/domain"
)

// ctxSubject returns the subject of the caller injected by the Auth
// middleware, or "anonymous" when auth is disabled.
func ctxSubject(c echo.Context) string {
	p, ok := c.Get(middleware.PrincipalKey).(domain.Principal)
	if !ok || p.Subject == "" {
		return "anonymous"
	}
	return p.Subject
}
