package engine

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"hrdesign/internal/config"
	"hrdesign/internal/domain"
	"hrdesign/internal/engine/auth"
	"hrdesign/internal/events"
	"hrdesign/internal/notify"
	"hrdesign/internal/repo"
	"hrdesign/internal/routes"
	"hrdesign/internal/workflow"
)

// Notifier delivers a notification to one recipient. *notify.Dispatcher satisfies it.
type Notifier interface {
	Send(ctx context.Context, to notify.Recipient, n notify.Notification) error
}

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Config *config.Config
	Auth   auth.Service
	Notify Notifier
	Links  routes.Resolver
	Now    func() time.Time
	Logger *slog.Logger
}

func New(db *sql.DB, cfg *config.Config) Engine {
	e := Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Config: cfg,
		Auth:   auth.Service{Config: cfg},
		Now:    time.Now,
	}
	if cfg != nil {
		e.Links = routes.Resolver{BaseURL: cfg.App.BaseURL}
	}
	return e
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) stamp() string {
	return e.now().UTC().Format(time.RFC3339)
}

func (e Engine) log() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

// append writes an event stamped with the engine clock.
func (e Engine) append(ctx context.Context, tx *sql.Tx, evtType, projectID, kind, entityID, actorID string, payload events.EventPayload) error {
	w := e.Events
	if w.Now == nil {
		w.Now = e.now
	}
	return w.Append(ctx, tx, evtType, projectID, kind, entityID, actorID, payload)
}

// send delivers n to every recipient after the state change has committed.
func (e Engine) send(ctx context.Context, to []domain.User, n notify.Notification) error {
	if e.Notify == nil || len(to) == 0 {
		return nil
	}
	var errs []error
	for _, u := range to {
		if err := e.Notify.Send(ctx, notify.Recipient{Email: u.Email, Name: u.Name}, n); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return &NotificationError{Event: n.Event(), Err: err}
	}
	return nil
}

// sendQueued is send for notifications the worker retries; failures are logged only.
func (e Engine) sendQueued(ctx context.Context, to []domain.User, n notify.Notification) {
	if err := e.send(ctx, to, n); err != nil {
		e.log().WarnContext(ctx, "notification enqueue failed", "event", n.Event(), "error", err)
	}
}

func (e Engine) companyUsers(ctx context.Context, companyID, role string) []domain.User {
	users, err := e.Repo.ListCompanyUsers(ctx, nil, companyID, role)
	if err != nil {
		e.log().WarnContext(ctx, "list recipients failed", "company", companyID, "role", role, "error", err)
		return nil
	}
	return users
}

func (e Engine) companyName(ctx context.Context, companyID string) string {
	c, err := e.Repo.GetCompany(ctx, nil, companyID)
	if err != nil {
		return ""
	}
	return c.Name
}

func (e Engine) userName(ctx context.Context, userID string) string {
	u, err := e.Repo.GetUser(ctx, nil, userID)
	if err != nil {
		return userID
	}
	return u.Name
}

// loadActive returns a project that may still change.
func (e Engine) loadActive(ctx context.Context, tx *sql.Tx, projectID string) (domain.Project, error) {
	p, err := e.Repo.GetProject(ctx, tx, projectID)
	if err != nil {
		return p, err
	}
	if p.Status == domain.ProjectLocked {
		return p, ErrProjectLocked
	}
	return p, nil
}

func rawSteps(p domain.Project) map[workflow.StepKey]string {
	out := make(map[workflow.StepKey]string, len(workflow.Steps))
	for k, v := range p.StepStatuses() {
		out[workflow.StepKey(k)] = v
	}
	return out
}

// Derive classifies the steps of p.
func Derive(p domain.Project) []workflow.DerivedStep {
	return workflow.DeriveAll(rawSteps(p), p.CEOPhilosophyStatus)
}

func parseStep(raw string) (workflow.StepKey, error) {
	k, ok := workflow.ParseStep(strings.TrimSpace(raw))
	if !ok {
		return "", FieldError{Field: "step", Message: fmt.Sprintf("unknown step %q", raw)}
	}
	return k, nil
}

// stale maps a lost conditional update to ErrStaleStatus.
func stale(err error) error {
	if errors.Is(err, repo.ErrConflict) {
		return ErrStaleStatus
	}
	return err
}

func randomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func validEmail(s string) bool {
	s = strings.TrimSpace(s)
	at := strings.LastIndex(s, "@")
	return at > 0 && at < len(s)-1 && !strings.ContainsAny(s, " \t\r\n")
}
