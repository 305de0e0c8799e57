package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/DukeRupert/waitlist/internal/domain"
	"github.com/DukeRupert/waitlist/internal/repository"
	"github.com/DukeRupert/waitlist/internal/repository/repotest"
	"github.com/DukeRupert/waitlist/internal/storage"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// fixture wires services over an in-memory store with a fixed clock.
type fixture struct {
	store *repotest.Store
	now   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store: repotest.New(),
		now:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	f.store.Now = func() time.Time { return f.now }
	return f
}

func (f *fixture) clock() time.Time { return f.now }

func (f *fixture) subscriptions() *subscriptionService {
	return &subscriptionService{store: f.store, logger: newTestLogger(), now: f.clock}
}

func (f *fixture) accounts() *accountService {
	return &accountService{store: f.store, logger: newTestLogger(), now: f.clock}
}

func (f *fixture) waitlist() WaitlistService {
	return NewWaitlistService(f.store, f.subscriptions(), WaitlistConfig{BaseURL: "https://wait.example.com/"}, newTestLogger())
}

func (f *fixture) localStorage(t *testing.T) storage.Storage {
	t.Helper()
	s, err := storage.NewLocalStorage(storage.LocalConfig{
		BasePath: t.TempDir(),
		BaseURL:  "http://localhost:8080/files",
	}, newTestLogger())
	require.NoError(t, err)
	return s
}

// account inserts an account with the given plan state, bypassing bcrypt.
func (f *fixture) account(t *testing.T, email string, tier domain.PlanTier, status domain.SubscriptionStatus, endDate *time.Time) *domain.Account {
	t.Helper()
	ctx := context.Background()

	row, err := f.store.CreateAccount(ctx, repository.CreateAccountParams{
		Email:        email,
		PasswordHash: "x",
		Name:         "Owner",
	})
	require.NoError(t, err)

	err = f.store.UpdateAccountSubscription(ctx, repository.UpdateAccountSubscriptionParams{
		ID:                  row.ID,
		PlanTier:            string(tier),
		SubscriptionStatus:  string(status),
		SubscriptionEndDate: domain.ToNullTime(endDate),
	})
	require.NoError(t, err)

	row, err = f.store.GetAccountByID(ctx, row.ID)
	require.NoError(t, err)
	return accountFromRepo(row)
}

func (f *fixture) project(t *testing.T, owner *domain.Account, slug string) repository.Project {
	t.Helper()
	p, err := f.store.CreateProject(context.Background(), repository.CreateProjectParams{
		AccountID:    owner.ID,
		Name:         slug,
		Slug:         slug,
		PrimaryColor: domain.DefaultPrimaryColor,
	})
	require.NoError(t, err)
	return p
}

func (f *fixture) enableABTesting(t *testing.T, p repository.Project) {
	t.Helper()
	_, err := f.store.UpdateProject(context.Background(), repository.UpdateProjectParams{
		ID:               p.ID,
		AccountID:        p.AccountID,
		Name:             p.Name,
		PrimaryColor:     p.PrimaryColor,
		AbTestingEnabled: true,
	})
	require.NoError(t, err)
}

func (f *fixture) variant(t *testing.T, p repository.Project, name string, traffic, position int32) repository.Variant {
	t.Helper()
	v, err := f.store.CreateVariant(context.Background(), repository.CreateVariantParams{
		ProjectID: p.ID,
		Name:      name,
		Traffic:   traffic,
		Position:  position,
	})
	require.NoError(t, err)
	return v
}

func timePtr(t time.Time) *time.Time { return &t }

func sessionParams(owner *domain.Account, token string, expiresAt time.Time) repository.CreateSessionParams {
	return repository.CreateSessionParams{
		AccountID: owner.ID,
		TokenHash: hashSessionToken(token),
		ExpiresAt: expiresAt,
	}
}
