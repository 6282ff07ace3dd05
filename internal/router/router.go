package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/farm-marketplace/internal/handler"
	"github.com/iliyamo/farm-marketplace/internal/middleware"
)

// Guards carries the shared middleware the route groups apply.  Nil
// RateLimit or Cache entries mean the feature is off.
type Guards struct {
	Auth      middleware.Authenticator
	RateLimit echo.MiddlewareFunc
	Cache     echo.MiddlewareFunc
}

func (g Guards) rateLimit() []echo.MiddlewareFunc {
	if g.RateLimit == nil {
		return nil
	}
	return []echo.MiddlewareFunc{g.RateLimit}
}

func (g Guards) cache() []echo.MiddlewareFunc {
	if g.Cache == nil {
		return nil
	}
	return []echo.MiddlewareFunc{g.Cache}
}

// RegisterRoutes registers the unauthenticated infrastructure routes.
func RegisterRoutes(e *echo.Echo, h *handler.HealthHandler) {
	e.GET("/healthz", h.Health)
}

// RegisterAuth registers the identity endpoints.  Credential exchange
// lives under /v1/auth and is rate limited; the other /v1 routes resolve
// the bearer token first so handlers can read the principal.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, g Guards) {
	pub := e.Group("/v1/auth")
	pub.POST("/register", a.Register, g.rateLimit()...)
	pub.POST("/login", a.Login, g.rateLimit()...)
	pub.POST("/logout", a.Logout)
	pub.GET("/available-districts", a.AvailableDistricts, g.cache()...)

	// switch-account decodes the presented token itself.
	e.POST("/v1/switch-account", a.SwitchAccount)

	// Guards are attached per route.  A group with middleware would also
	// register a /v1/* catch-all that answers 401 instead of 404.
	authed := []echo.MiddlewareFunc{middleware.Authenticate(g.Auth), middleware.RequireAuthenticated()}
	e.GET("/v1/user", a.Me, authed...)
	e.POST("/v1/auto-register", a.AutoRegister, authed...)
	e.PUT("/v1/update-address", a.UpdateAddress, authed...)
}

// RegisterFarmer registers farmer-scoped endpoints.  Multi principals
// holding the farmer role pass the guard too.
func RegisterFarmer(e *echo.Echo, a *handler.AuthHandler, g Guards) {
	farmer := []echo.MiddlewareFunc{middleware.Authenticate(g.Auth), middleware.RequireFarmer()}
	e.GET("/v1/farmer/profile", a.FarmerProfile, farmer...)
}
