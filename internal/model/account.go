package model

import (
	"errors"
	"strconv"
	"time"
)

// Kind identifies which identity table an AccountID belongs to.  The
// byte value is the prefix letter used in the external string form.
type Kind byte

const (
	KindFarmer   Kind = 'F'
	KindCustomer Kind = 'C'
	KindMulti    Kind = 'M'
)

// Valid reports whether k is one of the three known kinds.
func (k Kind) Valid() bool {
	return k == KindFarmer || k == KindCustomer || k == KindMulti
}

// Sibling returns the opposite single-role kind: Farmer <-> Customer.
// Multi has no sibling and returns itself.
func (k Kind) Sibling() Kind {
	switch k {
	case KindFarmer:
		return KindCustomer
	case KindCustomer:
		return KindFarmer
	}
	return k
}

// Role returns the session role that corresponds to the kind.
func (k Kind) Role() Role {
	switch k {
	case KindFarmer:
		return RoleFarmer
	case KindCustomer:
		return RoleCustomer
	case KindMulti:
		return RoleMulti
	}
	return ""
}

func (k Kind) String() string { return string(k) }

// ErrInvalidAccountID is returned by ParseAccountID for any string that is
// not exactly a known prefix followed by a positive decimal number.
var ErrInvalidAccountID = errors.New("invalid account id")

// AccountID is the namespaced identifier of a Farmer (F7), Customer (C9) or
// MultiAccount (M2).  The zero value means "no account".
type AccountID struct {
	Kind Kind
	N    uint64
}

// NewAccountID builds an id for the given kind and sequence number.
func NewAccountID(kind Kind, n uint64) AccountID { return AccountID{Kind: kind, N: n} }

// ParseAccountID is the inverse of AccountID.String.  It rejects signs,
// leading zeros, zero, whitespace and unknown prefixes so that every
// accepted string maps to exactly one id and back.
func ParseAccountID(s string) (AccountID, error) {
	if len(s) < 2 {
		return AccountID{}, ErrInvalidAccountID
	}
	kind := Kind(s[0])
	if !kind.Valid() {
		return AccountID{}, ErrInvalidAccountID
	}
	digits := s[1:]
	if digits[0] < '1' || digits[0] > '9' {
		return AccountID{}, ErrInvalidAccountID
	}
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return AccountID{}, ErrInvalidAccountID
		}
	}
	n, err := strconv.ParseUint(digits, 10, 64)
	if err != nil {
		return AccountID{}, ErrInvalidAccountID
	}
	return AccountID{Kind: kind, N: n}, nil
}

// IsZero reports whether the id is unset.
func (id AccountID) IsZero() bool { return id.N == 0 }

func (id AccountID) String() string {
	if id.IsZero() {
		return ""
	}
	return string(id.Kind) + strconv.FormatUint(id.N, 10)
}

// MarshalText renders the prefixed form so ids travel as "F7" in JSON.
func (id AccountID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

// UnmarshalText accepts the prefixed form; an empty string yields the zero id.
func (id *AccountID) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*id = AccountID{}
		return nil
	}
	parsed, err := ParseAccountID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// Role is the session role carried in a token.  Keep the lower-case
// string form; clients store and echo it back verbatim.
type Role string

const (
	RoleFarmer   Role = "farmer"
	RoleCustomer Role = "customer"
	RoleMulti    Role = "multi"
)

// Valid reports whether r is one of the three session roles.
func (r Role) Valid() bool {
	return r == RoleFarmer || r == RoleCustomer || r == RoleMulti
}

// ProfileKind maps a single-role session role to the table that backs it.
// Multi and unknown roles report false.
func (r Role) ProfileKind() (Kind, bool) {
	switch r {
	case RoleFarmer:
		return KindFarmer, true
	case RoleCustomer:
		return KindCustomer, true
	}
	return 0, false
}

// DefaultCountry is stored when a profile is saved without a country.
const DefaultCountry = "India"

// Address groups the postal fields shared by farmers and customers.
type Address struct {
	StreetAddress string
	City          string
	District      string
	State         string
	Country       string
	Pincode       string
}

// Complete reports whether every field needed for delivery is filled in.
func (a Address) Complete() bool {
	return a.StreetAddress != "" && a.City != "" && a.District != "" && a.State != "" && a.Pincode != ""
}

// Profile represents a row in either the `farmers` or the `customers`
// table.  Both tables share one shape; ID.Kind tells them apart.
//
// Fields:
//
//	ID           – F<n> or C<n>.
//	Email        – unique within the table, lower-cased.
//	Name         – display name.
//	PasswordHash – bcrypt hash, never the plaintext.
//	Phone        – optional.
//	Address      – optional postal address.
//	CreatedAt    – timestamp of creation.
type Profile struct {
	ID           AccountID
	Email        string
	Name         string
	PasswordHash string
	Phone        string
	Address      Address
	CreatedAt    time.Time
}

// MultiAccount represents a row in the `multi_accounts` table.  It owns
// exactly one farmer and one customer row carrying the same email; the
// member rows stay in place so existing references to them keep working.
type MultiAccount struct {
	ID           AccountID
	Email        string
	PasswordHash string
	FarmerID     AccountID
	CustomerID   AccountID
	CreatedAt    time.Time
}

// Member returns the member id that serves the given single role.
func (m MultiAccount) Member(role Role) (AccountID, bool) {
	switch role {
	case RoleFarmer:
		return m.FarmerID, true
	case RoleCustomer:
		return m.CustomerID, true
	}
	return AccountID{}, false
}
