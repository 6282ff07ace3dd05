package service

import (
	"context"
	"errors"

	"github.com/iliyamo/farm-marketplace/internal/model"
	"github.com/iliyamo/farm-marketplace/internal/queue"
	"github.com/iliyamo/farm-marketplace/internal/repository"
	"github.com/iliyamo/farm-marketplace/internal/utils"
)

// MergeInput names the email to link and the password the new multi
// account will carry.
type MergeInput struct {
	Email    string
	Password string
}

// Merge creates the multi account for an email that already has both a
// farmer and a customer row.  The multi account gets its own hash of
// in.Password; members keep theirs.
func (s *AccountService) Merge(ctx context.Context, in MergeInput) (model.MultiAccount, error) {
	email := repository.NormalizeEmail(in.Email)
	hash, err := s.hashPassword(in.Password)
	if err != nil {
		return model.MultiAccount{}, err
	}

	var m model.MultiAccount
	err = s.store.InTx(ctx, func(tx *repository.Store) error {
		exists, err := tx.Multi.ExistsByEmail(ctx, email)
		if err != nil {
			return internal(err, "check multi account")
		}
		if exists {
			return ErrDuplicateAccount
		}
		for _, repo := range []*repository.ProfileRepo{tx.Farmers, tx.Customers} {
			ok, err := repo.ExistsByEmail(ctx, email)
			if err != nil {
				return internal(err, "check member account")
			}
			if !ok {
				return newError(CodeValidation, "both a farmer and a customer account are required to link")
			}
		}
		var created bool
		m, created, err = s.ensureLinked(ctx, tx, email, hash)
		if err != nil {
			return err
		}
		if !created {
			return ErrDuplicateAccount
		}
		return nil
	})
	if err != nil {
		return model.MultiAccount{}, err
	}
	s.publish(ctx, queue.NewAccountEvent(queue.EventLinked, m.ID.String(), m.Email, string(model.RoleMulti)))
	return m, nil
}

// ensureLinked makes sure a multi account links the farmer and customer
// rows of email, creating one with passwordHash when none exists.  It runs
// inside the caller's transaction.  A concurrent link of the same members
// is treated as success.  The bool reports whether a row was created.
//
// Errors other than *Error mean the link could not be written after the
// member rows were; they come back as merge_incomplete so the caller's
// transaction rolls back and the client can retry.
func (s *AccountService) ensureLinked(ctx context.Context, tx *repository.Store, email, passwordHash string) (model.MultiAccount, bool, error) {
	farmer, err := tx.Farmers.GetByEmail(ctx, email)
	if err != nil {
		return model.MultiAccount{}, false, wrapError(err, CodeMergeIncomplete, ErrMergeIncomplete.Message)
	}
	customer, err := tx.Customers.GetByEmail(ctx, email)
	if err != nil {
		return model.MultiAccount{}, false, wrapError(err, CodeMergeIncomplete, ErrMergeIncomplete.Message)
	}

	sameMembers := func(m model.MultiAccount) bool {
		return m.FarmerID == farmer.ID && m.CustomerID == customer.ID
	}

	existing, err := tx.Multi.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if sameMembers(existing) {
			return existing, false, nil
		}
		return model.MultiAccount{}, false, newError(CodeMergeIncomplete, "email is linked to different accounts")
	case !errors.Is(err, repository.ErrNotFound):
		return model.MultiAccount{}, false, wrapError(err, CodeMergeIncomplete, ErrMergeIncomplete.Message)
	}

	m := model.MultiAccount{
		Email:        email,
		PasswordHash: passwordHash,
		FarmerID:     farmer.ID,
		CustomerID:   customer.ID,
	}
	if s.beforeLink != nil {
		if err := s.beforeLink(ctx, tx, email); err != nil {
			return model.MultiAccount{}, false, wrapError(err, CodeMergeIncomplete, ErrMergeIncomplete.Message)
		}
	}
	err = tx.CreateMultiAccount(ctx, &m)
	if err == nil {
		return m, true, nil
	}
	if errors.Is(err, repository.ErrEmailExists) || errors.Is(err, repository.ErrAlreadyLinked) {
		// Lost a race with another linker; accept its row if it matches.
		// The earlier plain read may be pinned to a snapshot that predates
		// that row.
		if raced, rerr := tx.Multi.GetByEmailForUpdate(ctx, email); rerr == nil && sameMembers(raced) {
			return raced, false, nil
		}
	}
	return model.MultiAccount{}, false, wrapError(err, CodeMergeIncomplete, ErrMergeIncomplete.Message)
}

// Repair completes a half-merged email: both member rows exist but no
// multi account does.  No plaintext is available offline, so the multi
// account copies the farmer member's hash.  It reports whether a multi
// account was created; an already linked email is a no-op.
func (s *AccountService) Repair(ctx context.Context, email string) (model.MultiAccount, bool, error) {
	email = repository.NormalizeEmail(email)
	var (
		m       model.MultiAccount
		created bool
	)
	err := s.store.InTx(ctx, func(tx *repository.Store) error {
		farmer, err := tx.Farmers.GetByEmail(ctx, email)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return newError(CodeValidation, "no farmer account for email")
			}
			return internal(err, "load farmer")
		}
		m, created, err = s.ensureLinked(ctx, tx, email, farmer.PasswordHash)
		return err
	})
	if err != nil {
		return model.MultiAccount{}, false, err
	}
	if created {
		s.log.Info("repaired half-merged account", "account_id", m.ID.String(), "farmer_id", m.FarmerID.String(), "customer_id", m.CustomerID.String())
		s.publish(ctx, queue.NewAccountEvent(queue.EventLinked, m.ID.String(), m.Email, string(model.RoleMulti)))
	}
	return m, created, nil
}

// RepairAll repairs every half-merged email.  It keeps going past
// individual failures and returns how many links it created along with
// the joined errors.
func (s *AccountService) RepairAll(ctx context.Context) (int, error) {
	emails, err := s.store.Multi.UnlinkedEmails(ctx, 0)
	if err != nil {
		return 0, internal(err, "list unlinked emails")
	}
	var (
		repaired int
		errs     []error
	)
	for _, email := range emails {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		_, created, err := s.Repair(ctx, email)
		if err != nil {
			s.log.Error("repair failed", "email", email, "error", err)
			errs = append(errs, err)
			continue
		}
		if created {
			repaired++
		}
	}
	return repaired, errors.Join(errs...)
}

func (s *AccountService) hashPassword(plain string) (string, error) {
	hash, err := utils.HashPassword(plain, s.cost)
	if err != nil {
		if errors.Is(err, utils.ErrPasswordTooLong) {
			return "", newError(CodeValidation, "password is too long")
		}
		return "", internal(err, "hash password")
	}
	return hash, nil
}
