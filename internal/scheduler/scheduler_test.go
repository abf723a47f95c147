package scheduler_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hrdesign/internal/config"
	"hrdesign/internal/db"
	"hrdesign/internal/domain"
	"hrdesign/internal/migrate"
	"hrdesign/internal/repo"
	"hrdesign/internal/scheduler"
)

var fixedNow = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

func newScheduler(t *testing.T) (*scheduler.Scheduler, repo.Repo) {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn))
	r := repo.Repo{DB: conn}
	s := scheduler.New(r, config.Default(""), nil)
	s.Now = func() time.Time { return fixedNow }
	return s, r
}

func stamp(d time.Duration) string {
	return fixedNow.Add(d).Format(time.RFC3339)
}

func seedCompany(t *testing.T, r repo.Repo) domain.Company {
	t.Helper()
	c := domain.Company{ID: "c1", Name: "Acme", CreatedAt: stamp(-48 * time.Hour)}
	require.NoError(t, r.InsertCompany(context.Background(), nil, c))
	return c
}

func TestSweepInvitationsCountsExpiredPending(t *testing.T) {
	s, r := newScheduler(t)
	ctx := context.Background()
	c := seedCompany(t, r)
	for i, inv := range []domain.Invitation{
		{ID: "old", Token: "t-old", Status: domain.InvitationPending, ExpiresAt: stamp(-time.Hour)},
		{ID: "fresh", Token: "t-fresh", Status: domain.InvitationPending, ExpiresAt: stamp(time.Hour)},
		{ID: "answered", Token: "t-answered", Status: domain.InvitationAccepted, ExpiresAt: stamp(-time.Hour)},
	} {
		inv.CompanyID = c.ID
		inv.Email = "ceo@acme.test"
		inv.Role = domain.RoleCEO
		inv.InvitedBy = "hr"
		inv.CreatedAt = stamp(-time.Duration(i+1) * 24 * time.Hour)
		require.NoError(t, r.InsertInvitation(ctx, nil, inv))
	}

	n, err := s.SweepInvitations(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	still, err := r.GetInvitationByToken(ctx, nil, "t-old")
	require.NoError(t, err)
	assert.Equal(t, domain.InvitationPending, still.Status)
}

func TestPurgeOutboxKeepsRecentAndUnsent(t *testing.T) {
	s, r := newScheduler(t)
	ctx := context.Background()
	for _, id := range []string{"old", "recent", "pending"} {
		require.NoError(t, r.InsertOutbox(ctx, nil, domain.OutboxMessage{
			ID: id, Event: "system_locked", Recipient: "a@b.test", PayloadJSON: "{}",
			Status: domain.OutboxPending, CreatedAt: stamp(-30 * 24 * time.Hour),
		}))
	}
	require.NoError(t, r.MarkOutboxSent(ctx, "old", stamp(-8*24*time.Hour)))
	require.NoError(t, r.MarkOutboxSent(ctx, "recent", stamp(-time.Hour)))

	n, err := s.PurgeOutbox(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = r.GetOutbox(ctx, "old")
	assert.ErrorIs(t, err, repo.ErrNotFound)
	_, err = r.GetOutbox(ctx, "recent")
	assert.NoError(t, err)
	_, err = r.GetOutbox(ctx, "pending")
	assert.NoError(t, err)
}

func TestPurgeCredentials(t *testing.T) {
	s, r := newScheduler(t)
	ctx := context.Background()
	c := seedCompany(t, r)
	require.NoError(t, r.InsertUser(ctx, nil, domain.User{ID: "u1", CompanyID: &c.ID, Name: "U", Email: "u@acme.test", PasswordHash: "x", Role: domain.RoleHRManager, Appearance: "system", CreatedAt: stamp(0)}))

	used := stamp(-time.Minute)
	require.NoError(t, r.InsertOTP(ctx, nil, domain.PasswordResetOTP{ID: "o1", Email: "u@acme.test", CodeHash: "h", ExpiresAt: stamp(-time.Hour)}))
	require.NoError(t, r.InsertOTP(ctx, nil, domain.PasswordResetOTP{ID: "o2", Email: "u@acme.test", CodeHash: "h", ExpiresAt: stamp(time.Hour)}))
	require.NoError(t, r.InsertOTP(ctx, nil, domain.PasswordResetOTP{ID: "o3", Email: "u@acme.test", CodeHash: "h", ExpiresAt: stamp(time.Hour)}))
	require.NoError(t, r.UseOTP(ctx, nil, "o3", used))

	require.NoError(t, r.InsertSession(ctx, domain.Session{ID: "s1", UserID: "u1", CreatedAt: stamp(-48 * time.Hour), ExpiresAt: stamp(-time.Hour)}))
	require.NoError(t, r.InsertSession(ctx, domain.Session{ID: "s2", UserID: "u1", CreatedAt: stamp(0), ExpiresAt: stamp(time.Hour)}))

	n, err := s.PurgeCredentials(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	active, err := r.ActiveOTPs(ctx, nil, "u@acme.test", stamp(0))
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "o2", active[0].ID)
	_, err = r.GetSession(ctx, "s2")
	assert.NoError(t, err)
}

func TestSweepKPITokens(t *testing.T) {
	s, r := newScheduler(t)
	ctx := context.Background()
	c := seedCompany(t, r)
	p := domain.Project{
		ID: "p1", CompanyID: c.ID, Status: domain.ProjectActive,
		DiagnosisStatus: "not_started", OrganizationStatus: "not_started", PerformanceStatus: "not_started", CompensationStatus: "not_started",
		CEOPhilosophyStatus: "not_started", CreatedBy: "hr", CreatedAt: stamp(0), UpdatedAt: stamp(0),
	}
	require.NoError(t, r.InsertProject(ctx, nil, p))
	for id, day := range map[string]string{"k1": "2024-05-09", "k2": "2024-05-10", "k3": "2024-06-01"} {
		require.NoError(t, r.InsertKPIToken(ctx, nil, domain.KPIReviewToken{
			ID: id, Token: "tok-" + id, ProjectID: p.ID, ReviewerName: "R", ReviewerEmail: "r@x.test",
			ExpiresOn: day, MaxUses: 3, CreatedBy: "hr", CreatedAt: stamp(0),
		}))
	}

	n, err := s.SweepKPITokens(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestStartRejectsBadSpec(t *testing.T) {
	s, _ := newScheduler(t)
	s.Config.Scheduler.OutboxPurge = "every tuesday"
	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outbox_purge")
}

func TestStartStopsWithContext(t *testing.T) {
	s, _ := newScheduler(t)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx))
	require.NoError(t, s.Start(ctx))
	cancel()
	s.Stop()
	s.Stop()
}

func TestStopWithoutCancelReleasesWatcher(t *testing.T) {
	s, _ := newScheduler(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	for i := 0; i < 3; i++ {
		require.NoError(t, s.Start(ctx))
		stopped := make(chan struct{})
		go func() {
			s.Stop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-time.After(5 * time.Second):
			t.Fatal("Stop did not return while the context was still live")
		}
	}
}
