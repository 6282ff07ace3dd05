package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/farm-marketplace/internal/model"
)

// Require returns a middleware that admits the request only when allow
// reports true for the request's principal.  Anonymous requests get 401;
// authenticated principals that fail the predicate get 403.
func Require(allow func(*model.Principal) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, ok := PrincipalFrom(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{
					"error":   "unauthenticated",
					"message": "authentication credentials were not provided",
				})
			}
			if !allow(&p) {
				return c.JSON(http.StatusForbidden, echo.Map{
					"error":   "forbidden",
					"message": "you do not have permission to perform this action",
				})
			}
			return next(c)
		}
	}
}

// RequireAuthenticated admits any resolved principal.
func RequireAuthenticated() echo.MiddlewareFunc { return Require(model.IsAuthenticated) }

// RequireFarmer admits principals that hold the farmer role, directly or
// through a multi account.
func RequireFarmer() echo.MiddlewareFunc { return Require(model.HasFarmer) }

// RequireCustomer admits principals that hold the customer role.
func RequireCustomer() echo.MiddlewareFunc { return Require(model.HasCustomer) }
