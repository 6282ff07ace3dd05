package service_test

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/farm-marketplace/internal/model"
	"github.com/iliyamo/farm-marketplace/internal/queue"
	"github.com/iliyamo/farm-marketplace/internal/repository"
	"github.com/iliyamo/farm-marketplace/internal/service"
	"github.com/iliyamo/farm-marketplace/internal/testutil"
	"github.com/iliyamo/farm-marketplace/internal/utils"
)

// clock is a settable time source shared by the codec under test.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recorder collects published events.
type recorder struct {
	mu     sync.Mutex
	events []queue.AccountEvent
}

func (r *recorder) Publish(_ context.Context, ev queue.AccountEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) Types() []queue.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]queue.EventType, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

// mockPublisher is a testify mock of service.EventPublisher.
type mockPublisher struct{ mock.Mock }

func (m *mockPublisher) Publish(ctx context.Context, ev queue.AccountEvent) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

type fixture struct {
	svc    *service.AccountService
	db     *sql.DB
	store  *repository.Store
	codec  *utils.TokenCodec
	clock  *clock
	events *recorder
}

const testTTL = time.Hour

func newFixture(t *testing.T, opts ...func(*service.Options)) *fixture {
	t.Helper()
	db := testutil.SetupTestDB(t)
	store := repository.NewStore(db)
	clk := &clock{now: time.Now().UTC()}
	codec := utils.NewTokenCodec("test-secret", utils.WithClock(clk.Now))
	rec := &recorder{}
	o := service.Options{
		Store:          store,
		Codec:          codec,
		Events:         rec,
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		AccessTTL:      testTTL,
		BcryptCost:     bcrypt.MinCost,
		MinPasswordLen: 6,
		Districts:      []string{"Pune", "Nashik"},
	}
	for _, fn := range opts {
		fn(&o)
	}
	return &fixture{
		svc:    service.NewAccountService(o),
		db:     db,
		store:  store,
		codec:  codec,
		clock:  clk,
		events: rec,
	}
}

func (f *fixture) register(t *testing.T, email string, role model.Role) service.Session {
	t.Helper()
	s, err := f.svc.Register(context.Background(), service.RegisterInput{
		Email:    email,
		Password: "password1",
		Name:     "Test User",
		Role:     role,
		Phone:    "9876543210",
	})
	require.NoError(t, err)
	return s
}

// seedProfile inserts a row directly, bypassing registration rules.
func (f *fixture) seedProfile(t *testing.T, kind model.Kind, email, password string) model.Profile {
	t.Helper()
	hash, err := utils.HashPassword(password, bcrypt.MinCost)
	require.NoError(t, err)
	p := model.Profile{Email: email, Name: "Seeded", PasswordHash: hash}
	require.NoError(t, f.store.CreateProfile(context.Background(), kind, &p))
	return p
}

func (f *fixture) token(t *testing.T, id model.AccountID, email string, role model.Role) string {
	t.Helper()
	tok, err := f.codec.Issue(utils.Claims{ID: id.String(), Email: email, Role: role}, testTTL)
	require.NoError(t, err)
	return tok.Token
}

func requireCode(t *testing.T, err error, want *service.Error) {
	t.Helper()
	require.Error(t, err)
	require.Truef(t, errors.Is(err, want), "want %s, got %v", want.Code, err)
}

// multiCount counts multi account rows for email straight from the table.
func (f *fixture) multiCount(t *testing.T, email string) int {
	t.Helper()
	var n int
	require.NoError(t, f.db.QueryRow("SELECT COUNT(*) FROM multi_accounts WHERE email = ?", email).Scan(&n))
	return n
}
