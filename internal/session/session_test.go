package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hrdesign/internal/db"
	"hrdesign/internal/domain"
	"hrdesign/internal/migrate"
	"hrdesign/internal/repo"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestManager(t *testing.T) (Manager, *clock, domain.User) {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn))
	r := repo.Repo{DB: conn}
	user := domain.User{ID: "u1", Name: "Hana", Email: "hana@acme.test", PasswordHash: "x", Role: domain.RoleHRManager, Appearance: "dark", CreatedAt: "2024-01-01T00:00:00Z"}
	require.NoError(t, r.InsertUser(context.Background(), nil, user))
	c := &clock{t: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	return Manager{Repo: r, Secret: []byte("secret"), TTL: time.Hour, Now: c.now}, c, user
}

func TestStartResolveEnd(t *testing.T) {
	m, _, user := newTestManager(t)
	ctx := context.Background()

	token, started, err := m.Start(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, "dark", started.Appearance)

	s, err := m.Resolve(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, started.ID, s.ID)
	assert.Equal(t, "u1", s.UserID())
	assert.Equal(t, domain.RoleHRManager, s.Role())

	require.NoError(t, m.End(ctx, s.ID))
	_, err = m.Resolve(ctx, token)
	assert.ErrorIs(t, err, ErrRevoked)
}

func TestResolveRejectsExpiredAndForeignTokens(t *testing.T) {
	m, c, user := newTestManager(t)
	ctx := context.Background()
	token, _, err := m.Start(ctx, user)
	require.NoError(t, err)

	other := m
	other.Secret = []byte("other")
	_, err = other.Resolve(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	c.t = c.t.Add(2 * time.Hour)
	_, err = m.Resolve(ctx, token)
	assert.Error(t, err)
}

func TestContextRoundTrip(t *testing.T) {
	_, ok := From(context.Background())
	assert.False(t, ok)

	ctx := With(context.Background(), Session{User: domain.User{ID: "u1"}, Appearance: AppearanceLight})
	s, ok := From(ctx)
	require.True(t, ok)
	assert.Equal(t, AppearanceLight, s.Appearance)
}

func TestSetAppearance(t *testing.T) {
	m, _, user := newTestManager(t)
	ctx := context.Background()
	assert.Error(t, m.SetAppearance(ctx, user.ID, "neon"))
	require.NoError(t, m.SetAppearance(ctx, user.ID, AppearanceLight))
	u, err := m.Repo.GetUser(ctx, nil, user.ID)
	require.NoError(t, err)
	assert.Equal(t, AppearanceLight, u.Appearance)
}
