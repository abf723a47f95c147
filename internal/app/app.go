// Package app assembles a workspace into a ready engine for the CLI and the server.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"hrdesign/internal/config"
	"hrdesign/internal/db"
	"hrdesign/internal/engine"
	"hrdesign/internal/migrate"
	"hrdesign/internal/notify"
	"hrdesign/internal/scheduler"
	"hrdesign/internal/session"
)

// Options carries what does not live in hrdesign.yml.
type Options struct {
	Workspace    string
	JWTSecret    string
	SMTPPassword string
	Logger       *slog.Logger
	// Mailer replaces the configured mail driver.
	Mailer notify.Mailer
}

// Runtime is one opened workspace.
type Runtime struct {
	Workspace  string
	DB         *sql.DB
	Config     *config.Config
	Engine     engine.Engine
	Sessions   session.Manager
	Queue      notify.Queue
	Dispatcher *notify.Dispatcher
	Logger     *slog.Logger

	closers []func() error
}

// Open loads the config, migrates the database and wires mail delivery.
func Open(ctx context.Context, opts Options) (*Runtime, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := db.EnsureWorkspace(opts.Workspace); err != nil {
		return nil, err
	}
	cfg, err := config.Load(opts.Workspace)
	if err != nil {
		return nil, err
	}
	conn, err := db.Open(db.Config{Workspace: opts.Workspace})
	if err != nil {
		return nil, err
	}
	rt := &Runtime{Workspace: opts.Workspace, DB: conn, Config: cfg, Logger: logger}
	rt.closers = append(rt.closers, conn.Close)
	if err := migrate.MigrateContext(ctx, conn); err != nil {
		rt.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	e := engine.New(conn, cfg)
	e.Logger = logger
	queue, err := rt.newQueue(e)
	if err != nil {
		rt.Close()
		return nil, err
	}
	mailer := opts.Mailer
	if mailer == nil {
		mailer, err = newMailer(cfg, opts.SMTPPassword, logger)
		if err != nil {
			rt.Close()
			return nil, err
		}
	}
	renderer, err := notify.NewRenderer(cfg.App.Name, cfg.App.CompanyLogo)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.Queue = queue
	rt.Dispatcher = &notify.Dispatcher{
		Queue:    queue,
		Mailer:   mailer,
		Renderer: renderer,
		Links:    e.Links,
		From:     cfg.Mail.From,
		FromName: cfg.Mail.FromName,
		Logger:   logger.With("component", "notify"),
	}
	e.Notify = rt.Dispatcher
	rt.Engine = e
	rt.Sessions = session.Manager{Repo: e.Repo, Secret: []byte(opts.JWTSecret), TTL: cfg.TokenTTL()}
	return rt, nil
}

func (rt *Runtime) newQueue(e engine.Engine) (notify.Queue, error) {
	switch strings.ToLower(rt.Config.Notify.Queue) {
	case "", "sqlite":
		return notify.SQLQueue{Repo: e.Repo, Now: e.Now}, nil
	case "redis":
		q, err := notify.NewRedisQueue(rt.Config.Notify.RedisAddr, rt.Config.Notify.RedisKey)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, q.Close)
		return q, nil
	default:
		return nil, fmt.Errorf("unknown notify.queue %q", rt.Config.Notify.Queue)
	}
}

func newMailer(cfg *config.Config, password string, logger *slog.Logger) (notify.Mailer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch strings.ToLower(cfg.Mail.Driver) {
	case "", "log":
		return notify.LogMailer{Logger: logger.With("component", "mail")}, nil
	case "memory":
		return &notify.MemoryMailer{}, nil
	case "smtp":
		if cfg.Mail.Username != "" && password == "" {
			return nil, errors.New("HRD_SMTP_PASSWORD is required when mail.username is set")
		}
		return &notify.SMTPMailer{Host: cfg.Mail.Host, Port: cfg.Mail.Port, Username: cfg.Mail.Username, Password: password}, nil
	default:
		return nil, fmt.Errorf("unknown mail.driver %q", cfg.Mail.Driver)
	}
}

// Worker returns an outbox worker bound to the runtime queue.
func (rt *Runtime) Worker() *notify.Worker {
	w := notify.NewWorker(rt.Queue, rt.Dispatcher, rt.Config.PollInterval(), rt.Config.Notify.MaxAttempts)
	w.Batch = rt.Config.Notify.Batch
	return w
}

// Scheduler returns the housekeeping scheduler for this workspace.
func (rt *Runtime) Scheduler() *scheduler.Scheduler {
	return scheduler.New(rt.Engine.Repo, rt.Config, rt.Logger.With("component", "scheduler"))
}

// Close releases the queue connection and the database.
func (rt *Runtime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
