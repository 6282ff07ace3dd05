// Package service implements the identity operations: registration, login,
// token resolution, account linking and role switching.  It owns every
// business rule; handlers only translate HTTP to these calls.
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/iliyamo/farm-marketplace/internal/model"
	"github.com/iliyamo/farm-marketplace/internal/queue"
	"github.com/iliyamo/farm-marketplace/internal/repository"
	"github.com/iliyamo/farm-marketplace/internal/utils"
)

// EventPublisher delivers account events after the change commits.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.AccountEvent) error
}

// NopPublisher drops every event.  It is used when events are disabled.
type NopPublisher struct{}

// Publish implements EventPublisher.
func (NopPublisher) Publish(context.Context, queue.AccountEvent) error { return nil }

// Options configures an AccountService.
type Options struct {
	Store  *repository.Store
	Codec  *utils.TokenCodec
	Events EventPublisher
	Logger *slog.Logger

	AccessTTL      time.Duration
	BcryptCost     int
	MinPasswordLen int
	// Districts seeds the serviceable district list; districts that
	// farmers have registered are added to it.
	Districts []string
}

// AccountService is the entry point for every identity operation.
type AccountService struct {
	store     *repository.Store
	codec     *utils.TokenCodec
	events    EventPublisher
	log       *slog.Logger
	ttl       time.Duration
	cost      int
	minPw     int
	districts []string

	dummyOnce sync.Once
	dummyHash string

	// beforeLink runs inside the linking transaction just before the
	// multi account insert.  Tests use it to interleave a second linker.
	beforeLink func(ctx context.Context, tx *repository.Store, email string) error
}

// NewAccountService builds the service, filling defaults for optional
// fields.
func NewAccountService(opts Options) *AccountService {
	s := &AccountService{
		store:     opts.Store,
		codec:     opts.Codec,
		events:    opts.Events,
		log:       opts.Logger,
		ttl:       opts.AccessTTL,
		cost:      opts.BcryptCost,
		minPw:     opts.MinPasswordLen,
		districts: opts.Districts,
	}
	if s.events == nil {
		s.events = NopPublisher{}
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.ttl <= 0 {
		s.ttl = time.Hour
	}
	if s.minPw <= 0 {
		s.minPw = 6
	}
	return s
}

// Session is what a successful credential or switch operation returns:
// the signed token, its claims and the resolved principal.
type Session struct {
	Token     string
	Expires   time.Time
	Claims    utils.Claims
	Principal model.Principal
}

// issue signs a fresh token for the given backing id and role, then
// resolves it so callers get the same principal a later request would.
func (s *AccountService) issue(ctx context.Context, id model.AccountID, email string, role model.Role, hasFarmer, hasCustomer bool) (Session, error) {
	tok, err := s.codec.Issue(utils.Claims{
		ID:          id.String(),
		Email:       repository.NormalizeEmail(email),
		Role:        role,
		HasFarmer:   hasFarmer,
		HasCustomer: hasCustomer,
	}, s.ttl)
	if err != nil {
		return Session{}, internal(err, "sign token")
	}
	return s.session(ctx, tok)
}

func (s *AccountService) session(ctx context.Context, tok utils.AccessToken) (Session, error) {
	p, err := s.Resolve(ctx, tok.Claims)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: tok.Token, Expires: tok.Exp, Claims: tok.Claims, Principal: p}, nil
}

// publish sends ev and logs, but never returns, a delivery failure.
func (s *AccountService) publish(ctx context.Context, ev queue.AccountEvent) {
	if err := s.events.Publish(ctx, ev); err != nil {
		s.log.Warn("account event not delivered", "type", ev.Type, "account_id", ev.AccountID, "error", err)
	}
}
