package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/farm-marketplace/internal/model"
	"github.com/iliyamo/farm-marketplace/internal/service"
	"github.com/iliyamo/farm-marketplace/internal/utils"
)

func TestAuthenticate_FarmerToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var last model.Profile
	for i := 0; i < 7; i++ {
		last = f.seedProfile(t, model.KindFarmer, "f"+string(rune('a'+i))+"@x.com", "password1")
	}
	require.Equal(t, "F7", last.ID.String())

	p, err := f.svc.Authenticate(ctx, f.token(t, last.ID, last.Email, model.RoleFarmer))
	require.NoError(t, err)
	assert.Equal(t, "F7", p.ID.String())
	assert.Equal(t, model.RoleFarmer, p.Role)
	assert.True(t, model.HasFarmer(&p))
	assert.False(t, p.HasCustomer)
}

func TestAuthenticate_Expired(t *testing.T) {
	f := newFixture(t)
	s := f.register(t, "exp@x.com", model.RoleFarmer)

	f.clock.Advance(testTTL + time.Second)
	_, err := f.svc.Authenticate(context.Background(), s.Token)
	requireCode(t, err, service.ErrTokenExpired)
}

func TestAuthenticate_Invalid(t *testing.T) {
	f := newFixture(t)
	s := f.register(t, "inv@x.com", model.RoleFarmer)

	other := utils.NewTokenCodec("another-secret")
	forged, err := other.Issue(s.Claims, time.Hour)
	require.NoError(t, err)

	_, err = f.svc.Authenticate(context.Background(), forged.Token)
	requireCode(t, err, service.ErrTokenInvalid)
	_, err = f.svc.Authenticate(context.Background(), "garbage")
	requireCode(t, err, service.ErrTokenInvalid)
}

func TestResolve_Outcomes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.register(t, "m@x.com", model.RoleFarmer)
	f.register(t, "m@x.com", model.RoleCustomer) // M1 = (F1, C1)
	solo := f.register(t, "solo@x.com", model.RoleCustomer)

	tests := []struct {
		name     string
		claims   utils.Claims
		wantID   string
		wantRole model.Role
		wantErr  *service.Error
	}{
		{name: "multi", claims: utils.Claims{ID: "M1", Email: "m@x.com", Role: model.RoleMulti}, wantID: "M1", wantRole: model.RoleMulti},
		{name: "farmer role via multi id", claims: utils.Claims{ID: "M1", Email: "m@x.com", Role: model.RoleFarmer}, wantID: "F1", wantRole: model.RoleFarmer},
		{name: "customer role via multi id", claims: utils.Claims{ID: "M1", Email: "m@x.com", Role: model.RoleCustomer}, wantID: "C1", wantRole: model.RoleCustomer},
		{name: "empty role uses id kind", claims: utils.Claims{ID: "C1", Email: "m@x.com"}, wantID: "C1", wantRole: model.RoleCustomer},
		{name: "unknown role uses id kind", claims: utils.Claims{ID: "M1", Email: "m@x.com", Role: "admin"}, wantID: "M1", wantRole: model.RoleMulti},
		{name: "email is case-insensitive", claims: utils.Claims{ID: "F1", Email: "M@X.com", Role: model.RoleFarmer}, wantID: "F1", wantRole: model.RoleFarmer},
		{name: "mismatched email", claims: utils.Claims{ID: "F1", Email: "solo@x.com", Role: model.RoleFarmer}, wantErr: service.ErrPrincipalMismatch},
		{name: "mismatched multi email", claims: utils.Claims{ID: "M1", Email: "solo@x.com", Role: model.RoleMulti}, wantErr: service.ErrPrincipalMismatch},
		{name: "unknown id", claims: utils.Claims{ID: "F99", Email: "m@x.com", Role: model.RoleFarmer}, wantErr: service.ErrPrincipalNotFound},
		{name: "role and id kind disagree", claims: utils.Claims{ID: solo.Claims.ID, Email: "solo@x.com", Role: model.RoleFarmer}, wantErr: service.ErrPrincipalNotFound},
		{name: "multi role with single id", claims: utils.Claims{ID: "F1", Email: "m@x.com", Role: model.RoleMulti}, wantErr: service.ErrPrincipalNotFound},
		{name: "unparseable id", claims: utils.Claims{ID: "F01", Email: "m@x.com", Role: model.RoleFarmer}, wantErr: service.ErrPrincipalNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := f.svc.Resolve(ctx, tt.claims)
			if tt.wantErr != nil {
				requireCode(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, p.ID.String())
			assert.Equal(t, tt.wantRole, p.Role)
			assert.True(t, p.HasFarmer)
			assert.True(t, p.HasCustomer)
		})
	}
}

func TestResolve_MultiUsesFarmerForDisplay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, service.RegisterInput{Email: "d@x.com", Password: "password1", Name: "Farm Name", Role: model.RoleFarmer})
	require.NoError(t, err)
	s, err := f.svc.Register(ctx, service.RegisterInput{Email: "d@x.com", Password: "password1", Name: "Shop Name", Role: model.RoleCustomer})
	require.NoError(t, err)

	assert.Equal(t, "Farm Name", s.Principal.Name)
	assert.Equal(t, "F1", s.Principal.FarmerID.String())
	assert.Equal(t, "C1", s.Principal.CustomerID.String())
}

func TestResolve_SiblingWithoutMulti(t *testing.T) {
	f := newFixture(t)
	farmer := f.seedProfile(t, model.KindFarmer, "h@x.com", "password1")
	customer := f.seedProfile(t, model.KindCustomer, "h@x.com", "password1")

	p, err := f.svc.Resolve(context.Background(), utils.Claims{ID: farmer.ID.String(), Email: "h@x.com", Role: model.RoleFarmer})
	require.NoError(t, err)
	assert.True(t, p.HasFarmer)
	assert.True(t, p.HasCustomer)
	assert.Equal(t, customer.ID, p.CustomerID)
}
