package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/farm-marketplace/internal/model"
	"github.com/iliyamo/farm-marketplace/internal/service"
)

// seedMulti builds M1 over F7 and C9 so member ids differ from the
// multi id and from each other.
func seedMulti(t *testing.T, f *fixture) (farmerID, customerID model.AccountID, token string) {
	t.Helper()
	for i := 0; i < 6; i++ {
		f.seedProfile(t, model.KindFarmer, "pad-f"+string(rune('a'+i))+"@x.com", "password1")
	}
	for i := 0; i < 8; i++ {
		f.seedProfile(t, model.KindCustomer, "pad-c"+string(rune('a'+i))+"@x.com", "password1")
	}
	farmer := f.seedProfile(t, model.KindFarmer, "mx@x.com", "password1")
	customer := f.seedProfile(t, model.KindCustomer, "mx@x.com", "password1")
	require.Equal(t, "F7", farmer.ID.String())
	require.Equal(t, "C9", customer.ID.String())

	s, err := f.svc.Login(context.Background(), "mx@x.com", "password1")
	require.NoError(t, err)
	require.Equal(t, model.RoleMulti, s.Claims.Role)
	return farmer.ID, customer.ID, s.Token
}

func TestSwitchRole_MultiToMembers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, _, tok := seedMulti(t, f)

	toCustomer, err := f.svc.SwitchRole(ctx, tok, model.RoleCustomer)
	require.NoError(t, err)
	assert.Equal(t, "C9", toCustomer.Claims.ID)
	assert.Equal(t, model.RoleCustomer, toCustomer.Claims.Role)
	assert.True(t, toCustomer.Claims.HasFarmer)
	assert.True(t, toCustomer.Claims.HasCustomer)

	toFarmer, err := f.svc.SwitchRole(ctx, toCustomer.Token, model.RoleFarmer)
	require.NoError(t, err)
	assert.Equal(t, "F7", toFarmer.Claims.ID)

	back, err := f.svc.SwitchRole(ctx, toFarmer.Token, model.RoleMulti)
	require.NoError(t, err)
	assert.Equal(t, "M1", back.Claims.ID)
	assert.Equal(t, model.RoleMulti, back.Claims.Role)
}

func TestSwitchRole_KeepsExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, _, tok := seedMulti(t, f)

	orig, err := f.codec.Decode(tok)
	require.NoError(t, err)

	f.clock.Advance(30 * time.Minute)
	s, err := f.svc.SwitchRole(ctx, tok, model.RoleFarmer)
	require.NoError(t, err)
	assert.Equal(t, orig.ExpiresAt.Unix(), s.Claims.ExpiresAt.Unix())
	assert.Equal(t, orig.IssuedAt.Unix(), s.Claims.IssuedAt.Unix())

	f.clock.Advance(31 * time.Minute)
	_, err = f.svc.SwitchRole(ctx, s.Token, model.RoleCustomer)
	requireCode(t, err, service.ErrTokenExpired)
}

func TestSwitchRole_Forbidden(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.register(t, "only@x.com", model.RoleFarmer)

	out, err := f.svc.SwitchRole(ctx, s.Token, model.RoleCustomer)
	requireCode(t, err, service.ErrForbidden)
	assert.Empty(t, out.Token)

	_, err = f.svc.SwitchRole(ctx, s.Token, model.RoleMulti)
	requireCode(t, err, service.ErrForbidden)

	same, err := f.svc.SwitchRole(ctx, s.Token, model.RoleFarmer)
	require.NoError(t, err)
	assert.Equal(t, "F1", same.Claims.ID)
}

func TestSwitchRole_InvalidInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.register(t, "x@x.com", model.RoleFarmer)

	_, err := f.svc.SwitchRole(ctx, s.Token, "admin")
	requireCode(t, err, service.ErrInvalidRole)

	_, err = f.svc.SwitchRole(ctx, "not-a-token", model.RoleFarmer)
	requireCode(t, err, service.ErrTokenInvalid)

	bad := f.token(t, model.NewAccountID(model.KindFarmer, 1), "someone@else.com", model.RoleFarmer)
	_, err = f.svc.SwitchRole(ctx, bad, model.RoleFarmer)
	requireCode(t, err, service.ErrPrincipalMismatch)

	gone := f.token(t, model.NewAccountID(model.KindMulti, 5), "x@x.com", model.RoleMulti)
	_, err = f.svc.SwitchRole(ctx, gone, model.RoleFarmer)
	requireCode(t, err, service.ErrPrincipalNotFound)
}

func TestSwitchRole_SingleToSiblingWithoutMulti(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	farmer := f.seedProfile(t, model.KindFarmer, "sib@x.com", "password1")
	customer := f.seedProfile(t, model.KindCustomer, "sib@x.com", "password1")
	tok := f.token(t, farmer.ID, "sib@x.com", model.RoleFarmer)

	s, err := f.svc.SwitchRole(ctx, tok, model.RoleCustomer)
	require.NoError(t, err)
	assert.Equal(t, customer.ID.String(), s.Claims.ID)

	_, err = f.svc.SwitchRole(ctx, tok, model.RoleMulti)
	requireCode(t, err, service.ErrForbidden)
}
