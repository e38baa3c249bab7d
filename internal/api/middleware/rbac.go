package middleware

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ella-cms/scribble/internal/core/domain"
)

// RBAC enforces role-based access control. Rejections are domain.ErrForbidden.
func RBAC(allowedRoles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]struct{}, len(allowedRoles))
	for _, r := range allowedRoles {
		allowed[r] = struct{}{}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, _ := c.Get("role").(string)
			if _, ok := allowed[role]; !ok {
				return fmt.Errorf("role %q: %w", role, domain.ErrForbidden)
			}
			return next(c)
		}
	}
}

// WriteAccess guards requests that change state with RBAC for admins and
// editors. Reads pass through.
func WriteAccess() echo.MiddlewareFunc {
	guard := RBAC(domain.RoleAdmin, domain.RoleEditor)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		guarded := guard(next)
		return func(c echo.Context) error {
			switch c.Request().Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				return next(c)
			}
			return guarded(c)
		}
	}
}
