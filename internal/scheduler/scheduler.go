// Package scheduler runs periodic housekeeping on cron specs from hrdesign.yml.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"hrdesign/internal/config"
	"hrdesign/internal/domain"
	"hrdesign/internal/repo"
)

// SentRetention is how long delivered outbox rows are kept.
const SentRetention = 7 * 24 * time.Hour

type Scheduler struct {
	Repo   repo.Repo
	Config *config.Config
	Now    func() time.Time
	Logger *slog.Logger

	mu    sync.Mutex
	cron  *cron.Cron
	stop  chan struct{}
	watch sync.WaitGroup
}

func New(r repo.Repo, cfg *config.Config, logger *slog.Logger) *Scheduler {
	return &Scheduler{Repo: r, Config: cfg, Now: time.Now, Logger: logger}
}

func (s *Scheduler) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

func (s *Scheduler) log() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

type job struct {
	name string
	spec string
	run  func(ctx context.Context) (int64, error)
}

func (s *Scheduler) jobs() []job {
	c := s.Config.Scheduler
	return []job{
		{"invitation_sweep", c.InvitationSweep, s.SweepInvitations},
		{"outbox_purge", c.OutboxPurge, s.PurgeOutbox},
		{"otp_purge", c.OTPPurge, s.PurgeCredentials},
		{"kpi_token_sweep", c.KPITokenSweep, s.SweepKPITokens},
	}
}

// Start registers every configured job and starts the cron loop.
// Jobs with an empty spec are skipped. The loop stops when ctx is done or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return nil
	}
	c := cron.New(cron.WithLocation(time.UTC))
	for _, j := range s.jobs() {
		if j.spec == "" {
			continue
		}
		j := j
		if _, err := c.AddFunc(j.spec, func() { s.runJob(ctx, j) }); err != nil {
			return fmt.Errorf("scheduler job %s: %w", j.name, err)
		}
		s.log().Debug("scheduler job registered", "job", j.name, "spec", j.spec)
	}
	c.Start()
	stop := make(chan struct{})
	s.cron, s.stop = c, stop
	s.watch.Add(1)
	go func() {
		defer s.watch.Done()
		select {
		case <-ctx.Done():
			s.halt()
		case <-stop:
		}
	}()
	return nil
}

// Stop halts the loop and waits for running jobs and the context watcher.
func (s *Scheduler) Stop() {
	s.halt()
	s.watch.Wait()
}

func (s *Scheduler) halt() {
	s.mu.Lock()
	c, stop := s.cron, s.stop
	s.cron, s.stop = nil, nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	close(stop)
	<-c.Stop().Done()
}

func (s *Scheduler) runJob(ctx context.Context, j job) {
	start := time.Now()
	n, err := j.run(ctx)
	if err != nil {
		s.log().ErrorContext(ctx, "scheduler job failed", "job", j.name, "error", err)
		return
	}
	s.log().InfoContext(ctx, "scheduler job done", "job", j.name, "affected", n, "took", time.Since(start))
}

// SweepInvitations reports pending invitations past their expiry.
// They stay pending; accept and reject refuse them.
func (s *Scheduler) SweepInvitations(ctx context.Context) (int64, error) {
	expired, err := s.Repo.ListInvitations(ctx, repo.InvitationFilters{
		Status:        domain.InvitationPending,
		ExpiredBefore: s.now().Format(time.RFC3339),
	})
	if err != nil {
		return 0, err
	}
	for _, inv := range expired {
		s.log().InfoContext(ctx, "invitation expired", "invitation", inv.ID, "company", inv.CompanyID, "email", inv.Email, "expires_at", inv.ExpiresAt)
	}
	return int64(len(expired)), nil
}

// PurgeOutbox deletes sent outbox rows older than SentRetention.
func (s *Scheduler) PurgeOutbox(ctx context.Context) (int64, error) {
	return s.Repo.PurgeSentOutbox(ctx, s.now().Add(-SentRetention).Format(time.RFC3339))
}

// PurgeCredentials drops spent or expired reset codes and dead sessions.
func (s *Scheduler) PurgeCredentials(ctx context.Context) (int64, error) {
	now := s.now().Format(time.RFC3339)
	otps, err := s.Repo.PurgeOTPs(ctx, now)
	if err != nil {
		return 0, err
	}
	sessions, err := s.Repo.PurgeSessions(ctx, now)
	if err != nil {
		return otps, err
	}
	return otps + sessions, nil
}

// SweepKPITokens logs review links whose last valid day has passed.
func (s *Scheduler) SweepKPITokens(ctx context.Context) (int64, error) {
	expired, err := s.Repo.ListExpiredKPITokens(ctx, s.now().Format("2006-01-02"))
	if err != nil {
		return 0, err
	}
	for _, t := range expired {
		s.log().InfoContext(ctx, "kpi review link expired", "token", t.ID, "project", t.ProjectID, "uses", t.Uses, "expires_on", t.ExpiresOn)
	}
	return int64(len(expired)), nil
}
