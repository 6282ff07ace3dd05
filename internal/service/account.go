package service

import (
	"context"
	"errors"
	"net/mail"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/iliyamo/farm-marketplace/internal/model"
	"github.com/iliyamo/farm-marketplace/internal/queue"
	"github.com/iliyamo/farm-marketplace/internal/repository"
	"github.com/iliyamo/farm-marketplace/internal/utils"
)

// RegisterInput carries a new farmer or customer registration.
type RegisterInput struct {
	Email    string
	Password string
	Name     string
	Role     model.Role
	Phone    string
	Address  model.Address
}

// Register creates a farmer or customer row.  When the email already has
// the other role, the new row is linked to it in the same transaction and
// the returned session is for the multi account.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (Session, error) {
	email, err := s.validateCredentials(in.Email, in.Password)
	if err != nil {
		return Session{}, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return Session{}, newError(CodeValidation, "name is required")
	}
	kind, ok := in.Role.ProfileKind()
	if !ok {
		return Session{}, ErrInvalidRole
	}
	hash, err := s.hashPassword(in.Password)
	if err != nil {
		return Session{}, err
	}

	prof := model.Profile{
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		Phone:        strings.TrimSpace(in.Phone),
		Address:      trimAddress(in.Address),
	}
	var (
		multi  model.MultiAccount
		linked bool
	)
	err = s.store.InTx(ctx, func(tx *repository.Store) error {
		if err := s.ensureEmailFree(ctx, tx, kind, email); err != nil {
			return err
		}
		if err := tx.CreateProfile(ctx, kind, &prof); err != nil {
			if errors.Is(err, repository.ErrEmailExists) {
				return ErrDuplicateAccount
			}
			return internal(err, "create account")
		}
		hasSibling, err := tx.Profiles(kind.Sibling()).ExistsByEmail(ctx, email)
		if err != nil {
			return wrapError(err, CodeMergeIncomplete, ErrMergeIncomplete.Message)
		}
		if !hasSibling {
			return nil
		}
		multi, linked, err = s.ensureLinked(ctx, tx, email, hash)
		return err
	})
	if err != nil {
		return Session{}, err
	}

	s.log.Info("account registered", "account_id", prof.ID.String(), "role", in.Role, "linked", !multi.ID.IsZero())
	s.publish(ctx, queue.NewAccountEvent(queue.EventRegistered, prof.ID.String(), email, string(in.Role)))
	if linked {
		s.publish(ctx, queue.NewAccountEvent(queue.EventLinked, multi.ID.String(), email, string(model.RoleMulti)))
	}
	// A row adopted from a concurrent linker still makes this a multi login.
	if !multi.ID.IsZero() {
		return s.issue(ctx, multi.ID, email, model.RoleMulti, true, true)
	}
	return s.issue(ctx, prof.ID, email, in.Role, kind == model.KindFarmer, kind == model.KindCustomer)
}

// ensureEmailFree rejects a registration when the email already has a
// multi account or a row of the requested kind.
func (s *AccountService) ensureEmailFree(ctx context.Context, tx *repository.Store, kind model.Kind, email string) error {
	hasMulti, err := tx.Multi.ExistsByEmail(ctx, email)
	if err != nil {
		return internal(err, "check multi account")
	}
	if hasMulti {
		return ErrDuplicateAccount
	}
	exists, err := tx.Profiles(kind).ExistsByEmail(ctx, email)
	if err != nil {
		return internal(err, "check account")
	}
	if exists {
		return ErrDuplicateAccount
	}
	return nil
}

// Login checks credentials against the multi account first, then the
// farmer row, then the customer row; the first existing record decides.
// A verified login on an email with both rows but no multi account links
// them and returns a multi session.
func (s *AccountService) Login(ctx context.Context, email, password string) (Session, error) {
	email = repository.NormalizeEmail(email)
	if email == "" || password == "" {
		s.burnCompare(password)
		return Session{}, ErrInvalidCredentials
	}

	m, err := s.store.Multi.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if !utils.VerifyPassword(m.PasswordHash, password) {
			return Session{}, ErrInvalidCredentials
		}
		return s.issue(ctx, m.ID, email, model.RoleMulti, true, true)
	case !errors.Is(err, repository.ErrNotFound):
		return Session{}, internal(err, "load multi account")
	}

	for _, repo := range []*repository.ProfileRepo{s.store.Farmers, s.store.Customers} {
		prof, err := repo.GetByEmail(ctx, email)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return Session{}, internal(err, "load account")
		}
		if !utils.VerifyPassword(prof.PasswordHash, password) {
			return Session{}, ErrInvalidCredentials
		}
		return s.loginProfile(ctx, prof, password)
	}

	s.burnCompare(password)
	return Session{}, ErrInvalidCredentials
}

func (s *AccountService) loginProfile(ctx context.Context, prof model.Profile, password string) (Session, error) {
	kind := prof.ID.Kind
	hasSibling, err := s.store.Profiles(kind.Sibling()).ExistsByEmail(ctx, prof.Email)
	if err != nil {
		return Session{}, internal(err, "check sibling account")
	}
	if !hasSibling {
		return s.issue(ctx, prof.ID, prof.Email, kind.Role(), kind == model.KindFarmer, kind == model.KindCustomer)
	}

	hash, err := s.hashPassword(password)
	if err != nil {
		return Session{}, err
	}
	var (
		m       model.MultiAccount
		created bool
	)
	err = s.store.InTx(ctx, func(tx *repository.Store) error {
		m, created, err = s.ensureLinked(ctx, tx, prof.Email, hash)
		return err
	})
	if err != nil {
		return Session{}, err
	}
	if created {
		s.log.Info("linked accounts at login", "account_id", m.ID.String())
		s.publish(ctx, queue.NewAccountEvent(queue.EventLinked, m.ID.String(), m.Email, string(model.RoleMulti)))
	}
	return s.issue(ctx, m.ID, m.Email, model.RoleMulti, true, true)
}

// burnCompare spends one bcrypt comparison so that unknown emails take
// about as long as wrong passwords.
func (s *AccountService) burnCompare(password string) {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = utils.HashPassword("farm-marketplace-dummy", s.cost)
	})
	_ = utils.VerifyPassword(s.dummyHash, password)
}

// AutoRegister adds the missing role to an authenticated principal.  The
// password must match the principal's existing record.  The new row copies
// name, phone and address, is linked in the same transaction, and a multi
// session is returned.
func (s *AccountService) AutoRegister(ctx context.Context, p model.Principal, role model.Role, password string) (Session, error) {
	if !model.IsAuthenticated(&p) {
		return Session{}, ErrForbidden
	}
	kind, ok := role.ProfileKind()
	if !ok {
		return Session{}, ErrInvalidRole
	}
	if (kind == model.KindFarmer && p.HasFarmer) || (kind == model.KindCustomer && p.HasCustomer) {
		return Session{}, newError(CodeDuplicateAccount, "account already has the "+string(role)+" role")
	}

	srcKind := kind.Sibling()
	srcID := p.FarmerID
	if srcKind == model.KindCustomer {
		srcID = p.CustomerID
	}
	src, err := s.profileByID(ctx, s.store.Profiles(srcKind), srcID, p.Email)
	if err != nil {
		return Session{}, err
	}
	if !utils.VerifyPassword(src.PasswordHash, password) {
		return Session{}, ErrInvalidCredentials
	}
	hash, err := s.hashPassword(password)
	if err != nil {
		return Session{}, err
	}

	prof := model.Profile{
		Email:        src.Email,
		Name:         src.Name,
		PasswordHash: hash,
		Phone:        src.Phone,
		Address:      src.Address,
	}
	var multi model.MultiAccount
	err = s.store.InTx(ctx, func(tx *repository.Store) error {
		if err := s.ensureEmailFree(ctx, tx, kind, src.Email); err != nil {
			return err
		}
		if err := tx.CreateProfile(ctx, kind, &prof); err != nil {
			if errors.Is(err, repository.ErrEmailExists) {
				return ErrDuplicateAccount
			}
			return internal(err, "create account")
		}
		multi, _, err = s.ensureLinked(ctx, tx, src.Email, hash)
		return err
	})
	if err != nil {
		return Session{}, err
	}

	s.log.Info("role added", "account_id", prof.ID.String(), "multi_id", multi.ID.String())
	s.publish(ctx, queue.NewAccountEvent(queue.EventRegistered, prof.ID.String(), prof.Email, string(role)))
	s.publish(ctx, queue.NewAccountEvent(queue.EventLinked, multi.ID.String(), multi.Email, string(model.RoleMulti)))
	return s.issue(ctx, multi.ID, multi.Email, model.RoleMulti, true, true)
}

// UpdateAddress replaces the postal address of the principal's record.  A
// multi principal updates both member rows in one transaction.
func (s *AccountService) UpdateAddress(ctx context.Context, p model.Principal, a model.Address) (model.Principal, error) {
	if !model.IsAuthenticated(&p) {
		return model.Principal{}, ErrForbidden
	}
	a = trimAddress(a)
	if err := validateAddress(a); err != nil {
		return model.Principal{}, err
	}
	if a.Country == "" {
		a.Country = model.DefaultCountry
	}

	var targets []model.AccountID
	switch p.Role {
	case model.RoleMulti:
		targets = []model.AccountID{p.FarmerID, p.CustomerID}
	default:
		targets = []model.AccountID{p.ID}
	}

	err := s.store.InTx(ctx, func(tx *repository.Store) error {
		for _, id := range targets {
			repo := tx.Profiles(id.Kind)
			if repo == nil {
				return ErrPrincipalNotFound
			}
			if err := repo.UpdateAddress(ctx, id, a); err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return ErrPrincipalNotFound
				}
				return internal(err, "update address")
			}
		}
		return nil
	})
	if err != nil {
		return model.Principal{}, err
	}
	p.Address = a
	return p, nil
}

// AvailableDistricts returns the configured serviceable districts merged
// with every district a farmer has registered, sorted and de-duplicated
// case-insensitively.
func (s *AccountService) AvailableDistricts(ctx context.Context) ([]string, error) {
	fromFarmers, err := s.store.Farmers.Districts(ctx)
	if err != nil {
		return nil, internal(err, "list districts")
	}
	seen := map[string]bool{}
	out := make([]string, 0, len(s.districts)+len(fromFarmers))
	for _, list := range [][]string{s.districts, fromFarmers} {
		for _, d := range list {
			d = strings.TrimSpace(d)
			key := strings.ToLower(d)
			if d == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return strings.ToLower(out[i]) < strings.ToLower(out[j]) })
	return out, nil
}

// validateCredentials checks email syntax and password length and returns
// the normalised email.
func (s *AccountService) validateCredentials(email, password string) (string, error) {
	email = repository.NormalizeEmail(email)
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", newError(CodeValidation, "a valid email address is required")
	}
	if utf8.RuneCountInString(password) < s.minPw {
		return "", newError(CodeValidation, "password is too short")
	}
	return email, nil
}

func trimAddress(a model.Address) model.Address {
	return model.Address{
		StreetAddress: strings.TrimSpace(a.StreetAddress),
		City:          strings.TrimSpace(a.City),
		District:      strings.TrimSpace(a.District),
		State:         strings.TrimSpace(a.State),
		Country:       strings.TrimSpace(a.Country),
		Pincode:       strings.TrimSpace(a.Pincode),
	}
}

// validateAddress requires every delivery field and a numeric pincode.
func validateAddress(a model.Address) error {
	if !a.Complete() {
		return newError(CodeValidation, "street_address, city, district, state and pincode are required")
	}
	if len(a.Pincode) < 4 || len(a.Pincode) > 10 {
		return newError(CodeValidation, "pincode must be 4 to 10 digits")
	}
	for _, r := range a.Pincode {
		if r < '0' || r > '9' {
			return newError(CodeValidation, "pincode must be 4 to 10 digits")
		}
	}
	return nil
}
