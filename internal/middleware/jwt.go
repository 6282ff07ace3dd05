package middleware // middleware provides shared request processing for handlers

import (
	"context"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/farm-marketplace/internal/model"
)

// Authenticator turns a raw bearer token into a resolved principal.
// *service.AccountService satisfies it.
type Authenticator interface {
	Authenticate(ctx context.Context, raw string) (model.Principal, error)
}

// Authenticate returns an Echo middleware that resolves the bearer token,
// when one is sent, and stores the principal and the raw token in the
// request context.  A missing or non-Bearer Authorization header leaves
// the request anonymous; guards such as RequireAuthenticated decide
// whether that is acceptable.  A token that is present but fails to
// verify or resolve aborts the request with the resolver's error, which
// the HTTP error handler renders as 401.
func Authenticate(auth Authenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if !ok {
				return next(c)
			}
			p, err := auth.Authenticate(c.Request().Context(), raw)
			if err != nil {
				return err
			}
			setPrincipal(c, p, raw)
			return next(c)
		}
	}
}

// bearerToken extracts the token from an Authorization header value.  The
// scheme is matched case-insensitively; an empty token is rejected.
func bearerToken(header string) (string, bool) {
	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	raw := strings.TrimSpace(header[len(prefix):])
	return raw, raw != ""
}
