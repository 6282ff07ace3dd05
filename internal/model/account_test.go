package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAccountID(t *testing.T) {
	tests := []struct {
		in      string
		want    AccountID
		wantErr bool
	}{
		{in: "F1", want: AccountID{Kind: KindFarmer, N: 1}},
		{in: "C9", want: AccountID{Kind: KindCustomer, N: 9}},
		{in: "M120", want: AccountID{Kind: KindMulti, N: 120}},
		{in: "", wantErr: true},
		{in: "F", wantErr: true},
		{in: "F0", wantErr: true},
		{in: "F07", wantErr: true},
		{in: "F-1", wantErr: true},
		{in: "F+1", wantErr: true},
		{in: "f1", wantErr: true},
		{in: "X1", wantErr: true},
		{in: "F1 ", wantErr: true},
		{in: "F1a", wantErr: true},
		{in: "F99999999999999999999999", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAccountID(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidAccountID)
				assert.True(t, got.IsZero())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.in, got.String())
		})
	}
}

func TestAccountID_FormatParseRoundTrip(t *testing.T) {
	for _, kind := range []Kind{KindFarmer, KindCustomer, KindMulti} {
		for _, n := range []uint64{1, 7, 10, 18446744073709551615} {
			id := NewAccountID(kind, n)
			parsed, err := ParseAccountID(id.String())
			require.NoError(t, err)
			assert.Equal(t, id, parsed)
		}
	}
}

func TestAccountID_JSON(t *testing.T) {
	type wrapper struct {
		ID AccountID `json:"id"`
	}

	b, err := json.Marshal(wrapper{ID: NewAccountID(KindFarmer, 7)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"F7"}`, string(b))

	var w wrapper
	require.NoError(t, json.Unmarshal([]byte(`{"id":"C9"}`), &w))
	assert.Equal(t, NewAccountID(KindCustomer, 9), w.ID)

	require.Error(t, json.Unmarshal([]byte(`{"id":"Z9"}`), &w))
}

func TestKind_SiblingAndRole(t *testing.T) {
	assert.Equal(t, KindCustomer, KindFarmer.Sibling())
	assert.Equal(t, KindFarmer, KindCustomer.Sibling())
	assert.Equal(t, KindMulti, KindMulti.Sibling())

	assert.Equal(t, RoleFarmer, KindFarmer.Role())
	assert.Equal(t, RoleCustomer, KindCustomer.Role())
	assert.Equal(t, RoleMulti, KindMulti.Role())
}

func TestRole_ProfileKind(t *testing.T) {
	k, ok := RoleFarmer.ProfileKind()
	assert.True(t, ok)
	assert.Equal(t, KindFarmer, k)

	k, ok = RoleCustomer.ProfileKind()
	assert.True(t, ok)
	assert.Equal(t, KindCustomer, k)

	_, ok = RoleMulti.ProfileKind()
	assert.False(t, ok)
	_, ok = Role("admin").ProfileKind()
	assert.False(t, ok)
}

func TestMultiAccount_Member(t *testing.T) {
	m := MultiAccount{FarmerID: NewAccountID(KindFarmer, 7), CustomerID: NewAccountID(KindCustomer, 9)}

	id, ok := m.Member(RoleCustomer)
	assert.True(t, ok)
	assert.Equal(t, "C9", id.String())

	id, ok = m.Member(RoleFarmer)
	assert.True(t, ok)
	assert.Equal(t, "F7", id.String())

	_, ok = m.Member(RoleMulti)
	assert.False(t, ok)
}

func TestPermissionPredicates(t *testing.T) {
	assert.False(t, IsAuthenticated(nil))
	assert.False(t, IsAuthenticated(&Principal{}))
	assert.False(t, HasFarmer(nil))

	customer := &Principal{ID: NewAccountID(KindCustomer, 1), Role: RoleCustomer, HasCustomer: true}
	assert.True(t, IsAuthenticated(customer))
	assert.False(t, HasFarmer(customer))
	assert.True(t, HasCustomer(customer))

	customer.HasFarmer = true
	assert.True(t, HasFarmer(customer))
}

func TestAddress_Complete(t *testing.T) {
	a := Address{StreetAddress: "1 Main", City: "Pune", District: "Pune", State: "MH", Pincode: "411001"}
	assert.True(t, a.Complete())
	a.Pincode = ""
	assert.False(t, a.Complete())
}
