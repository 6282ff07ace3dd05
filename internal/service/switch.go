package service

import (
	"context"
	"errors"

	"github.com/iliyamo/farm-marketplace/internal/model"
	"github.com/iliyamo/farm-marketplace/internal/repository"
)

// SwitchRole re-signs the caller's token for another role of the same
// email.  The subject id is re-derived from the store, never taken from
// the client, and the new token keeps the original iat and exp so a
// switch cannot extend a session.
func (s *AccountService) SwitchRole(ctx context.Context, raw string, target model.Role) (Session, error) {
	claims, err := s.decode(raw)
	if err != nil {
		return Session{}, err
	}
	id, err := model.ParseAccountID(claims.ID)
	if err != nil {
		return Session{}, ErrPrincipalNotFound
	}
	email := repository.NormalizeEmail(claims.Email)

	var (
		multi      *model.MultiAccount
		farmerID   model.AccountID
		customerID model.AccountID
	)
	switch id.Kind {
	case model.KindMulti:
		m, err := s.multiByID(ctx, id, email)
		if err != nil {
			return Session{}, err
		}
		multi = &m
		farmerID, customerID = m.FarmerID, m.CustomerID
	default:
		own := s.store.Profiles(id.Kind)
		if _, err := s.profileByID(ctx, own, id, email); err != nil {
			return Session{}, err
		}
		siblingRepo := s.store.Profiles(id.Kind.Sibling())
		sibling, err := siblingRepo.GetByEmail(ctx, email)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return Session{}, internal(err, "load sibling account")
		}
		if id.Kind == model.KindFarmer {
			farmerID, customerID = id, sibling.ID
		} else {
			farmerID, customerID = sibling.ID, id
		}
		m, err := s.store.Multi.GetByEmail(ctx, email)
		switch {
		case err == nil:
			multi = &m
		case !errors.Is(err, repository.ErrNotFound):
			return Session{}, internal(err, "load multi account")
		}
	}

	var subject model.AccountID
	switch target {
	case model.RoleFarmer:
		subject = farmerID
	case model.RoleCustomer:
		subject = customerID
	case model.RoleMulti:
		if multi != nil {
			subject = multi.ID
		}
	default:
		return Session{}, ErrInvalidRole
	}
	if subject.IsZero() {
		return Session{}, ErrForbidden
	}

	next := claims
	next.ID = subject.String()
	next.Role = target
	next.HasFarmer = !farmerID.IsZero()
	next.HasCustomer = !customerID.IsZero()
	tok, err := s.codec.Reissue(next)
	if err != nil {
		return Session{}, internal(err, "sign token")
	}
	return s.session(ctx, tok)
}
