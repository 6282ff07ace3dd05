package middleware_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/farm-marketplace/internal/config"
	"github.com/iliyamo/farm-marketplace/internal/middleware"
	"github.com/iliyamo/farm-marketplace/internal/model"
	"github.com/iliyamo/farm-marketplace/internal/testutil"
)

var errBadToken = errors.New("bad token")

// stubAuth resolves exactly one token.
type stubAuth struct {
	token string
	p     model.Principal
	calls int
}

func (s *stubAuth) Authenticate(_ context.Context, raw string) (model.Principal, error) {
	s.calls++
	if raw != s.token {
		return model.Principal{}, errBadToken
	}
	return s.p, nil
}

func farmerPrincipal() model.Principal {
	id := model.NewAccountID(model.KindFarmer, 7)
	return model.Principal{ID: id, Email: "a@x.in", Role: model.RoleFarmer, HasFarmer: true, FarmerID: id}
}

func customerPrincipal() model.Principal {
	id := model.NewAccountID(model.KindCustomer, 9)
	return model.Principal{ID: id, Email: "b@x.in", Role: model.RoleCustomer, HasCustomer: true, CustomerID: id}
}

// serve runs one request through e and returns the recorder.
func serve(e *echo.Echo, method, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if auth != "" {
		req.Header.Set(echo.HeaderAuthorization, auth)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func whoami(c echo.Context) error {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		return c.String(http.StatusOK, "anonymous")
	}
	return c.String(http.StatusOK, p.ID.String())
}

func TestAuthenticate(t *testing.T) {
	auth := &stubAuth{token: "good", p: farmerPrincipal()}
	e := echo.New()
	e.Use(middleware.Authenticate(auth))
	e.GET("/me", whoami)

	t.Run("no header is anonymous", func(t *testing.T) {
		rec := serve(e, http.MethodGet, "/me", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "anonymous", rec.Body.String())
	})

	t.Run("non bearer scheme is anonymous", func(t *testing.T) {
		rec := serve(e, http.MethodGet, "/me", "Basic Zm9vOmJhcg==")
		assert.Equal(t, "anonymous", rec.Body.String())
		rec = serve(e, http.MethodGet, "/me", "Bearer ")
		assert.Equal(t, "anonymous", rec.Body.String())
	})

	t.Run("valid token sets principal", func(t *testing.T) {
		rec := serve(e, http.MethodGet, "/me", "Bearer good")
		assert.Equal(t, "F7", rec.Body.String())
		rec = serve(e, http.MethodGet, "/me", "bearer good")
		assert.Equal(t, "F7", rec.Body.String())
	})

	t.Run("invalid token aborts", func(t *testing.T) {
		var seen error
		e2 := echo.New()
		e2.HTTPErrorHandler = func(err error, c echo.Context) {
			seen = err
			_ = c.NoContent(http.StatusUnauthorized)
		}
		e2.Use(middleware.Authenticate(auth))
		e2.GET("/me", whoami)
		rec := serve(e2, http.MethodGet, "/me", "Bearer forged")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.ErrorIs(t, seen, errBadToken)
	})
}

func TestTokenFrom(t *testing.T) {
	auth := &stubAuth{token: "good", p: farmerPrincipal()}
	e := echo.New()
	e.GET("/raw", func(c echo.Context) error {
		raw, ok := middleware.TokenFrom(c)
		if !ok {
			return c.String(http.StatusOK, "-")
		}
		return c.String(http.StatusOK, raw)
	}, middleware.Authenticate(auth))
	e.GET("/bearer", func(c echo.Context) error {
		raw, _ := middleware.BearerFrom(c)
		return c.String(http.StatusOK, raw)
	})

	assert.Equal(t, "good", serve(e, http.MethodGet, "/raw", "Bearer good").Body.String())
	assert.Equal(t, "-", serve(e, http.MethodGet, "/raw", "").Body.String())
	assert.Equal(t, "xyz", serve(e, http.MethodGet, "/bearer", "Bearer xyz").Body.String())
}

func TestRequireGuards(t *testing.T) {
	farmer := &stubAuth{token: "f", p: farmerPrincipal()}
	customer := &stubAuth{token: "c", p: customerPrincipal()}

	build := func(auth middleware.Authenticator) *echo.Echo {
		e := echo.New()
		e.Use(middleware.Authenticate(auth))
		e.GET("/any", whoami, middleware.RequireAuthenticated())
		e.GET("/farm", whoami, middleware.RequireFarmer())
		e.GET("/shop", whoami, middleware.RequireCustomer())
		return e
	}

	ef, ec := build(farmer), build(customer)

	rec := serve(ef, http.MethodGet, "/any", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "unauthenticated", body["error"])

	assert.Equal(t, http.StatusOK, serve(ef, http.MethodGet, "/any", "Bearer f").Code)
	assert.Equal(t, http.StatusOK, serve(ef, http.MethodGet, "/farm", "Bearer f").Code)
	assert.Equal(t, http.StatusForbidden, serve(ef, http.MethodGet, "/shop", "Bearer f").Code)

	assert.Equal(t, http.StatusForbidden, serve(ec, http.MethodGet, "/farm", "Bearer c").Code)
	assert.Equal(t, http.StatusOK, serve(ec, http.MethodGet, "/shop", "Bearer c").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(ec, http.MethodGet, "/farm", "").Code)
}

func TestRequireFarmerMulti(t *testing.T) {
	p := model.Principal{
		ID:          model.NewAccountID(model.KindMulti, 1),
		Email:       "m@x.in",
		Role:        model.RoleMulti,
		HasFarmer:   true,
		HasCustomer: true,
		FarmerID:    model.NewAccountID(model.KindFarmer, 1),
		CustomerID:  model.NewAccountID(model.KindCustomer, 1),
	}
	e := echo.New()
	e.Use(middleware.Authenticate(&stubAuth{token: "m", p: p}))
	e.GET("/farm", whoami, middleware.RequireFarmer())

	rec := serve(e, http.MethodGet, "/farm", "Bearer m")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "M1", rec.Body.String())
}

func TestMiddlewareDisabledWithoutRedis(t *testing.T) {
	e := echo.New()
	hits := 0
	e.GET("/x", func(c echo.Context) error {
		hits++
		return c.String(http.StatusOK, "ok")
	},
		middleware.NewTokenBucket(config.RateLimitConfig{Enabled: true, Capacity: 1}, nil, nil),
		middleware.NewRedisCache(config.CacheConfig{Enabled: true}, nil, nil),
	)
	for i := 0; i < 3; i++ {
		rec := serve(e, http.MethodGet, "/x", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get("X-Cache"))
	}
	assert.Equal(t, 3, hits)
}

func TestLocalTokenBucket(t *testing.T) {
	cfg := config.RateLimitConfig{
		Enabled:        true,
		Capacity:       2,
		RefillTokens:   1,
		RefillInterval: time.Minute,
		KeyStrategy:    "ip_route",
	}
	cfg.Sanitize()

	e := echo.New()
	mw := middleware.NewLocalTokenBucket(cfg, nil)
	e.POST("/v1/auth/login", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }, mw)
	e.POST("/v1/auth/register", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }, mw)

	first := serve(e, http.MethodPost, "/v1/auth/login", "")
	assert.Equal(t, http.StatusNoContent, first.Code)
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, http.StatusNoContent, serve(e, http.MethodPost, "/v1/auth/login", "").Code)

	blocked := serve(e, http.MethodPost, "/v1/auth/login", "")
	assert.Equal(t, http.StatusTooManyRequests, blocked.Code)
	assert.Equal(t, "60", blocked.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusNoContent, serve(e, http.MethodPost, "/v1/auth/register", "").Code)
}

func TestTokenBucket(t *testing.T) {
	rdb := testutil.SetupRedis(t)
	cfg := config.RateLimitConfig{
		Enabled:        true,
		Capacity:       2,
		RefillTokens:   1,
		RefillInterval: time.Minute,
		TTL:            10 * time.Minute,
		KeyStrategy:    "ip_route",
		Prefix:         "rltest",
	}
	cfg.Sanitize()

	e := echo.New()
	e.POST("/v1/auth/login", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) },
		middleware.NewTokenBucket(cfg, rdb, nil))
	e.POST("/v1/auth/register", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) },
		middleware.NewTokenBucket(cfg, rdb, nil))

	first := serve(e, http.MethodPost, "/v1/auth/login", "")
	assert.Equal(t, http.StatusNoContent, first.Code)
	assert.Equal(t, "2", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Remaining"))

	assert.Equal(t, http.StatusNoContent, serve(e, http.MethodPost, "/v1/auth/login", "").Code)

	blocked := serve(e, http.MethodPost, "/v1/auth/login", "")
	assert.Equal(t, http.StatusTooManyRequests, blocked.Code)
	retry, err := strconv.Atoi(blocked.Header().Get("Retry-After"))
	require.NoError(t, err)
	assert.Greater(t, retry, 0)
	assert.LessOrEqual(t, retry, 60)

	// Buckets are per route under ip_route.
	assert.Equal(t, http.StatusNoContent, serve(e, http.MethodPost, "/v1/auth/register", "").Code)
}

func TestRedisCache(t *testing.T) {
	rdb := testutil.SetupRedis(t)
	cfg := config.CacheConfig{Enabled: true, MethodList: []string{"get"}, TTL: time.Minute, Prefix: "ctest"}
	cfg.Sanitize()

	hits := 0
	e := echo.New()
	e.Use(middleware.Authenticate(&stubAuth{token: "f", p: farmerPrincipal()}))
	e.GET("/districts", func(c echo.Context) error {
		hits++
		c.Response().Header().Set("X-Origin", "handler")
		return c.JSON(http.StatusOK, echo.Map{"districts": []string{"Pune"}, "n": hits})
	}, middleware.NewRedisCache(cfg, rdb, nil))
	e.POST("/districts", func(c echo.Context) error {
		hits++
		return c.NoContent(http.StatusNoContent)
	}, middleware.NewRedisCache(cfg, rdb, nil))

	miss := serve(e, http.MethodGet, "/districts", "")
	assert.Equal(t, http.StatusOK, miss.Code)
	assert.Equal(t, "MISS", miss.Header().Get("X-Cache"))

	hit := serve(e, http.MethodGet, "/districts", "")
	assert.Equal(t, http.StatusOK, hit.Code)
	assert.Equal(t, "HIT", hit.Header().Get("X-Cache"))
	assert.Equal(t, "handler", hit.Header().Get("X-Origin"))
	assert.JSONEq(t, miss.Body.String(), hit.Body.String())
	assert.Equal(t, 1, hits)

	// A different query string or caller is a different entry.
	assert.Equal(t, "MISS", serve(e, http.MethodGet, "/districts?state=MH", "").Header().Get("X-Cache"))
	assert.Equal(t, "MISS", serve(e, http.MethodGet, "/districts", "Bearer f").Header().Get("X-Cache"))
	assert.Equal(t, 3, hits)

	// Methods outside the list pass through.
	serve(e, http.MethodPost, "/districts", "")
	serve(e, http.MethodPost, "/districts", "")
	assert.Equal(t, 5, hits)
}

func TestRedisCacheSkipsOversizedBodies(t *testing.T) {
	rdb := testutil.SetupRedis(t)
	cfg := config.CacheConfig{Enabled: true, MethodList: []string{"GET"}, TTL: time.Minute, Prefix: "ctest-big", MaxBodyBytes: 8}
	cfg.Sanitize()

	hits := 0
	e := echo.New()
	e.GET("/big", func(c echo.Context) error {
		hits++
		return c.String(http.StatusOK, "this body is longer than eight bytes")
	}, middleware.NewRedisCache(cfg, rdb, nil))

	serve(e, http.MethodGet, "/big", "")
	rec := serve(e, http.MethodGet, "/big", "")
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.Equal(t, "this body is longer than eight bytes", rec.Body.String())
	assert.Equal(t, 2, hits)
}
