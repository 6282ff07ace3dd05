package model

// Principal is the request-scoped view of who is calling.  It is built once
// per request from a verified token and a store lookup, handed to handlers
// by value and never persisted.
//
// ID is the backing record: the MultiAccount id for role=multi, otherwise
// the farmer or customer row that served the request.  FarmerID and
// CustomerID are the role-scoped projections (zero when the role is absent)
// that farmer- or customer-only endpoints key their data on.
type Principal struct {
	ID          AccountID
	Email       string
	Role        Role
	HasFarmer   bool
	HasCustomer bool
	Name        string
	Phone       string
	Address     Address
	FarmerID    AccountID
	CustomerID  AccountID
}

// IsAuthenticated reports whether p is a resolved principal.
func IsAuthenticated(p *Principal) bool {
	return p != nil && !p.ID.IsZero()
}

// HasFarmer reports whether p may use farmer-scoped resources.
func HasFarmer(p *Principal) bool {
	return IsAuthenticated(p) && p.HasFarmer
}

// HasCustomer reports whether p may use customer-scoped resources.
func HasCustomer(p *Principal) bool {
	return IsAuthenticated(p) && p.HasCustomer
}
