package middleware

// identity.go holds the request-context accessors for the authenticated
// principal.  Handlers read the principal through PrincipalFrom; the rate
// limiter keys buckets on it.

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/farm-marketplace/internal/model"
)

const (
	principalKey = "principal"
	tokenKey     = "access_token"
)

func setPrincipal(c echo.Context, p model.Principal, raw string) {
	c.Set(principalKey, p)
	c.Set(tokenKey, raw)
}

// PrincipalFrom returns the principal resolved for this request, if any.
func PrincipalFrom(c echo.Context) (model.Principal, bool) {
	p, ok := c.Get(principalKey).(model.Principal)
	if !ok || !model.IsAuthenticated(&p) {
		return model.Principal{}, false
	}
	return p, true
}

// TokenFrom returns the raw bearer token the principal was resolved from.
func TokenFrom(c echo.Context) (string, bool) {
	raw, ok := c.Get(tokenKey).(string)
	return raw, ok && raw != ""
}

// BearerFrom returns the bearer token from the Authorization header
// whether or not the Authenticate middleware ran.
func BearerFrom(c echo.Context) (string, bool) {
	if raw, ok := TokenFrom(c); ok {
		return raw, true
	}
	return bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
}

// userID identifies the caller for rate limiting: the principal id, or
// "anon" for anonymous requests.
func userID(c echo.Context) string {
	if p, ok := PrincipalFrom(c); ok {
		return p.ID.String()
	}
	return "anon"
}
