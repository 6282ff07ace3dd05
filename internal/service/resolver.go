package service

import (
	"context"
	"errors"

	"github.com/iliyamo/farm-marketplace/internal/model"
	"github.com/iliyamo/farm-marketplace/internal/repository"
	"github.com/iliyamo/farm-marketplace/internal/utils"
)

// Authenticate decodes a raw bearer token and resolves its principal.
func (s *AccountService) Authenticate(ctx context.Context, raw string) (model.Principal, error) {
	claims, err := s.decode(raw)
	if err != nil {
		return model.Principal{}, err
	}
	return s.Resolve(ctx, claims)
}

func (s *AccountService) decode(raw string) (utils.Claims, error) {
	claims, err := s.codec.Decode(raw)
	switch {
	case err == nil:
		return claims, nil
	case errors.Is(err, utils.ErrTokenExpired):
		return utils.Claims{}, ErrTokenExpired
	default:
		return utils.Claims{}, ErrTokenInvalid
	}
}

// Resolve maps verified claims to exactly one backing record.
//
// The claimed role picks the table: multi reads multi_accounts, farmer
// and customer read their own table and fall back to the matching member
// of a multi account when the id is an M id.  An empty or unknown role
// uses the id's own kind.  Every row read on the way must carry the
// claimed email.  HasFarmer and HasCustomer always reflect what exists for
// the email now, not what the token says.
func (s *AccountService) Resolve(ctx context.Context, c utils.Claims) (model.Principal, error) {
	id, err := model.ParseAccountID(c.ID)
	if err != nil {
		return model.Principal{}, ErrPrincipalNotFound
	}
	email := repository.NormalizeEmail(c.Email)

	role := c.Role
	if !role.Valid() {
		role = id.Kind.Role()
	}

	var p model.Principal
	switch role {
	case model.RoleMulti:
		p, err = s.resolveMulti(ctx, id, email)
	default:
		p, err = s.resolveSingle(ctx, id, email, role)
	}
	if err != nil {
		return model.Principal{}, err
	}
	if err := s.fillCapabilities(ctx, &p); err != nil {
		return model.Principal{}, err
	}
	return p, nil
}

func (s *AccountService) resolveMulti(ctx context.Context, id model.AccountID, email string) (model.Principal, error) {
	m, err := s.multiByID(ctx, id, email)
	if err != nil {
		return model.Principal{}, err
	}
	farmer, err := s.profileByID(ctx, s.store.Farmers, m.FarmerID, email)
	if err != nil {
		return model.Principal{}, err
	}
	if _, err := s.profileByID(ctx, s.store.Customers, m.CustomerID, email); err != nil {
		return model.Principal{}, err
	}
	p := principalFromProfile(farmer, model.RoleMulti)
	p.ID = m.ID
	p.FarmerID = m.FarmerID
	p.CustomerID = m.CustomerID
	return p, nil
}

func (s *AccountService) resolveSingle(ctx context.Context, id model.AccountID, email string, role model.Role) (model.Principal, error) {
	kind, _ := role.ProfileKind()
	repo := s.store.Profiles(kind)

	var memberID model.AccountID
	switch id.Kind {
	case kind:
		memberID = id
	case model.KindMulti:
		m, err := s.multiByID(ctx, id, email)
		if err != nil {
			return model.Principal{}, err
		}
		memberID, _ = m.Member(role)
	default:
		return model.Principal{}, ErrPrincipalNotFound
	}

	prof, err := s.profileByID(ctx, repo, memberID, email)
	if err != nil {
		return model.Principal{}, err
	}
	p := principalFromProfile(prof, role)
	if kind == model.KindFarmer {
		p.FarmerID = prof.ID
	} else {
		p.CustomerID = prof.ID
	}
	return p, nil
}

// fillCapabilities derives HasFarmer/HasCustomer from the store and fills
// the sibling projection id when the sibling exists.
func (s *AccountService) fillCapabilities(ctx context.Context, p *model.Principal) error {
	if p.Role == model.RoleMulti {
		p.HasFarmer, p.HasCustomer = true, true
		return nil
	}
	m, err := s.store.Multi.GetByEmail(ctx, p.Email)
	switch {
	case err == nil:
		p.HasFarmer, p.HasCustomer = true, true
		p.FarmerID, p.CustomerID = m.FarmerID, m.CustomerID
		return nil
	case !errors.Is(err, repository.ErrNotFound):
		return internal(err, "load multi account")
	}

	p.HasFarmer = !p.FarmerID.IsZero()
	p.HasCustomer = !p.CustomerID.IsZero()
	sibling := s.store.Customers
	if p.HasCustomer {
		sibling = s.store.Farmers
	}
	other, err := sibling.GetByEmail(ctx, p.Email)
	switch {
	case err == nil:
		if sibling.Kind() == model.KindFarmer {
			p.HasFarmer, p.FarmerID = true, other.ID
		} else {
			p.HasCustomer, p.CustomerID = true, other.ID
		}
	case !errors.Is(err, repository.ErrNotFound):
		return internal(err, "load sibling account")
	}
	return nil
}

func (s *AccountService) multiByID(ctx context.Context, id model.AccountID, email string) (model.MultiAccount, error) {
	m, err := s.store.Multi.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.MultiAccount{}, ErrPrincipalNotFound
		}
		return model.MultiAccount{}, internal(err, "load multi account")
	}
	if m.Email != email {
		return model.MultiAccount{}, ErrPrincipalMismatch
	}
	return m, nil
}

func (s *AccountService) profileByID(ctx context.Context, repo *repository.ProfileRepo, id model.AccountID, email string) (model.Profile, error) {
	prof, err := repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Profile{}, ErrPrincipalNotFound
		}
		return model.Profile{}, internal(err, "load account")
	}
	if prof.Email != email {
		return model.Profile{}, ErrPrincipalMismatch
	}
	return prof, nil
}

func principalFromProfile(prof model.Profile, role model.Role) model.Principal {
	return model.Principal{
		ID:      prof.ID,
		Email:   prof.Email,
		Role:    role,
		Name:    prof.Name,
		Phone:   prof.Phone,
		Address: prof.Address,
	}
}
