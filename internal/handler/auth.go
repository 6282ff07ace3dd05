package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/farm-marketplace/internal/middleware"
	"github.com/iliyamo/farm-marketplace/internal/model"
	"github.com/iliyamo/farm-marketplace/internal/service"
)

// requestTimeout bounds the store work of a single request.
const requestTimeout = 5 * time.Second

// AuthHandler bundles dependencies for the identity endpoints.
type AuthHandler struct {
	Accounts *service.AccountService
	Logger   *slog.Logger
}

func NewAuthHandler(accounts *service.AccountService, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{Accounts: accounts, Logger: logger}
}

// ----- DTOs -----

type addressDTO struct {
	StreetAddress string `json:"street_address"`
	City          string `json:"city"`
	District      string `json:"district"`
	State         string `json:"state"`
	Country       string `json:"country"`
	Pincode       string `json:"pincode"`
}

func (a addressDTO) model() model.Address {
	return model.Address{
		StreetAddress: a.StreetAddress,
		City:          a.City,
		District:      a.District,
		State:         a.State,
		Country:       a.Country,
		Pincode:       a.Pincode,
	}
}

func addressFrom(a model.Address) addressDTO {
	return addressDTO{
		StreetAddress: a.StreetAddress,
		City:          a.City,
		District:      a.District,
		State:         a.State,
		Country:       a.Country,
		Pincode:       a.Pincode,
	}
}

type registerReq struct {
	Email    string     `json:"email"`
	Password string     `json:"password"`
	Name     string     `json:"name"`
	Role     string     `json:"role"` // farmer | customer
	Phone    string     `json:"phone"`
	Address  addressDTO `json:"address"`
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type switchReq struct {
	Role string `json:"role"`
}

type autoRegisterReq struct {
	Role     string `json:"role"`
	Password string `json:"password"`
}

type userPart struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	Role        model.Role `json:"role"`
	HasFarmer   bool       `json:"has_farmer"`
	HasCustomer bool       `json:"has_customer"`
	Name        string     `json:"name"`
	Phone       string     `json:"phone,omitempty"`
	Address     addressDTO `json:"address"`
	FarmerID    string     `json:"farmer_id,omitempty"`
	CustomerID  string     `json:"customer_id,omitempty"`
}

type authResp struct {
	Message string    `json:"message"`
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
	User    userPart  `json:"user"`
}

func userFrom(p model.Principal) userPart {
	u := userPart{
		ID:          p.ID.String(),
		Email:       p.Email,
		Role:        p.Role,
		HasFarmer:   p.HasFarmer,
		HasCustomer: p.HasCustomer,
		Name:        p.Name,
		Phone:       p.Phone,
		Address:     addressFrom(p.Address),
	}
	if !p.FarmerID.IsZero() {
		u.FarmerID = p.FarmerID.String()
	}
	if !p.CustomerID.IsZero() {
		u.CustomerID = p.CustomerID.String()
	}
	return u
}

func sessionResp(msg string, s service.Session) authResp {
	return authResp{Message: msg, Token: s.Token, Expires: s.Expires, User: userFrom(s.Principal)}
}

func parseRole(s string) model.Role {
	return model.Role(strings.ToLower(strings.TrimSpace(s)))
}

// Register creates a farmer or customer and returns a session.  When the
// email already held the other role the session is for the linked multi
// account.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	s, err := h.Accounts.Register(ctx, service.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Role:     parseRole(req.Role),
		Phone:    req.Phone,
		Address:  req.Address.model(),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, sessionResp("registration successful", s))
}

// Login verifies credentials and returns a session.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return badRequest(c, "email and password are required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	s, err := h.Accounts.Login(ctx, req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sessionResp("login successful", s))
}

// Logout acknowledges the request.  Tokens are stateless, so the client
// discards its copy.
func (h *AuthHandler) Logout(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"message": "logged out"})
}

// Me returns the authenticated principal.
func (h *AuthHandler) Me(c echo.Context) error {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		return service.ErrTokenInvalid
	}
	return c.JSON(http.StatusOK, echo.Map{"user": userFrom(p)})
}

// SwitchAccount reissues the caller's token for another role it holds.
// The new token keeps the expiry of the one presented.
func (h *AuthHandler) SwitchAccount(c echo.Context) error {
	raw, ok := middleware.BearerFrom(c)
	if !ok {
		return service.ErrTokenInvalid
	}
	var req switchReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	s, err := h.Accounts.SwitchRole(ctx, raw, parseRole(req.Role))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sessionResp("switched to "+string(s.Claims.Role), s))
}

// AutoRegister adds the missing role to the caller, reusing their profile
// details, and returns a multi session.
func (h *AuthHandler) AutoRegister(c echo.Context) error {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		return service.ErrTokenInvalid
	}
	var req autoRegisterReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	s, err := h.Accounts.AutoRegister(ctx, p, parseRole(req.Role), req.Password)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, sessionResp("account linked", s))
}

// UpdateAddress replaces the caller's postal address.
func (h *AuthHandler) UpdateAddress(c echo.Context) error {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		return service.ErrTokenInvalid
	}
	var req addressDTO
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	updated, err := h.Accounts.UpdateAddress(ctx, p, req.model())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "address updated", "user": userFrom(updated)})
}

// AvailableDistricts lists the districts the marketplace serves.
func (h *AuthHandler) AvailableDistricts(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	districts, err := h.Accounts.AvailableDistricts(ctx)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"districts": districts})
}

// FarmerProfile returns the farmer projection of the caller.  It is mounted
// behind RequireFarmer, so multi principals see their farmer member.
func (h *AuthHandler) FarmerProfile(c echo.Context) error {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		return service.ErrTokenInvalid
	}
	return c.JSON(http.StatusOK, echo.Map{
		"farmer_id": p.FarmerID.String(),
		"email":     p.Email,
		"name":      p.Name,
		"phone":     p.Phone,
		"address":   addressFrom(p.Address),
	})
}
