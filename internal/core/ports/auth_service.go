package ports

import (
	"context"

	"github.com/ella-cms/scribble/internal/core/domain"
)

// AuthService exchanges stored user credentials for bearer tokens.
type AuthService interface {
	Login(ctx context.Context, username, password string) (string, domain.Principal, error)
}
