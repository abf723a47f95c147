package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/list"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"hrdesign/internal/app"
	"hrdesign/internal/config"
	"hrdesign/internal/db"
	"hrdesign/internal/domain"
	"hrdesign/internal/engine"
	"hrdesign/internal/migrate"
	"hrdesign/internal/repo"
	"hrdesign/internal/routes"
	"hrdesign/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "hrd",
	Short: "HR Design CLI",
	Long: `HR Design walks a company through designing its HR system.
Core concepts:
- Workspace: a directory holding hrdesign.yml, an optional .env and the .hrdesign database.
- Project: one HR system design for a company, made of four steps (diagnosis, organization, performance, compensation).
- Steps move not_started -> in_progress -> submitted -> approved and unlock one after the other.
- CEO philosophy survey: the CEO answers it after diagnosis is submitted; it gates the later steps.
- Invitations and KPI review links are single-purpose tokens mailed to people without an account.
- Outbox: queued mails, drained by the worker that runs inside 'hrd serve'.
- Event log: every change, view with 'hrd log tail'.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if err := godotenv.Load(envPath(workspace)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load .env: %w", err)
		}
		slog.SetDefault(newLogger(viper.GetString("log-format"), viper.GetString("log-level")))
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("HRD")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "cli", "actor recorded on events")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text or json)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
	_ = viper.BindPFlag("log-format", rootCmd.PersistentFlags().Lookup("log-format"))
	_ = viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func registerCommands() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(inviteCmd())
	rootCmd.AddCommand(kpiCmd())
	rootCmd.AddCommand(outboxCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(logCmd())
}

func newLogger(format, level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API with the mail worker and the scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := viper.GetString("jwt_secret")
			if secret == "" {
				return fmt.Errorf("HRD_JWT_SECRET is required for bearer auth")
			}
			ctx := cmd.Context()
			rt, err := openRuntime(ctx, secret)
			if err != nil {
				return err
			}
			defer rt.Close()
			logger := slog.Default()

			worker := rt.Worker()
			worker.Start(ctx)
			defer worker.Stop()
			if rt.Config.Scheduler.Enabled {
				sched := rt.Scheduler()
				if err := sched.Start(ctx); err != nil {
					return err
				}
				defer sched.Stop()
			}
			server.StartWebhooks(ctx, rt.Engine, logger)

			if addr == "" {
				addr = rt.Config.Server.Addr
			}
			handler, err := server.New(server.Config{
				Engine:   rt.Engine,
				Sessions: rt.Sessions,
				BasePath: basePath,
				Logger:   logger,
			})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(shutdownCtx)
			}()
			if basePath == "" {
				basePath = rt.Config.Server.BasePath
			}
			logger.Info("serving HR Design API", "addr", "http://"+addr+basePath, "docs", "/docs")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to server.addr)")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path (defaults to server.base_path)")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.MigrateContext(cmd.Context(), conn); err != nil {
				return err
			}
			version, err := migrate.Version(cmd.Context(), conn)
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(map[string]any{"version": version, "path": db.Path(workspace)})
			}
			fmt.Printf("database %s at version %d\n", db.Path(workspace), version)
			return nil
		},
	}
}

func seedCmd() *cobra.Command {
	var name, email, password string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the first admin and report the default catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				if password == "" {
					password = viper.GetString("admin_password")
				}
				admin, err := rt.Engine.CreateUser(ctx, engine.UserOptions{
					Name:     name,
					Email:    email,
					Password: password,
					Role:     domain.RoleAdmin,
					ActorID:  viper.GetString("actor-id"),
				})
				if err != nil && !errors.Is(err, engine.ErrEmailTaken) {
					return err
				}
				industries, err := rt.Engine.Repo.ListIndustries(ctx)
				if err != nil {
					return err
				}
				questions, err := rt.Engine.Repo.ListCEOQuestions(ctx, "")
				if err != nil {
					return err
				}
				issues, err := rt.Engine.Repo.ListOrganizationalIssues(ctx)
				if err != nil {
					return err
				}
				out := map[string]any{
					"admin":         admin.Email,
					"industries":    len(industries),
					"ceo_questions": len(questions),
					"issues":        len(issues),
				}
				if admin.ID == "" {
					out["admin"] = email + " (exists)"
				}
				return printJSONOrTable(out)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "Administrator", "admin display name")
	cmd.Flags().StringVar(&email, "email", "", "admin email")
	cmd.Flags().StringVar(&password, "password", "", "admin password (or HRD_ADMIN_PASSWORD)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func userCmd() *cobra.Command {
	usr := &cobra.Command{Use: "user", Short: "Manage users"}
	usr.AddCommand(userCreateCmd())
	return usr
}

func userCreateCmd() *cobra.Command {
	var opts engine.UserOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				opts.ActorID = viper.GetString("actor-id")
				u, err := rt.Engine.CreateUser(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(u)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Name, "name", "", "display name")
	cmd.Flags().StringVar(&opts.Email, "email", "", "email")
	cmd.Flags().StringVar(&opts.Password, "password", "", "password")
	cmd.Flags().StringVar(&opts.Role, "role", domain.RoleHRManager, "role ("+strings.Join(domain.Roles, ", ")+")")
	cmd.Flags().StringVar(&opts.CompanyID, "company", "", "company id")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func projectCmd() *cobra.Command {
	prj := &cobra.Command{Use: "project", Short: "Inspect projects"}
	prj.AddCommand(projectListCmd())
	prj.AddCommand(projectCreateCmd())
	prj.AddCommand(projectShowCmd())
	prj.AddCommand(projectOverviewCmd())
	return prj
}

func projectListCmd() *cobra.Command {
	var f repo.ProjectFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				items, err := rt.Engine.ListProjects(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Company", "Status", "Diagnosis", "Organization", "Performance", "Compensation", "Philosophy"})
				for _, p := range items {
					tw.AppendRow(table.Row{p.ID, p.CompanyID, p.Status, p.DiagnosisStatus, p.OrganizationStatus, p.PerformanceStatus, p.CompensationStatus, p.CEOPhilosophyStatus})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.CompanyID, "company", "", "company filter")
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter (active, locked)")
	cmd.Flags().StringVar(&f.StepStatus, "step-status", "", "projects with any step in this status")
	cmd.Flags().IntVar(&f.Limit, "limit", 0, "max rows")
	return cmd
}

func projectCreateCmd() *cobra.Command {
	var companyID string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a project for a company",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				p, err := rt.Engine.CreateProject(ctx, companyID, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&companyID, "company", "", "company id")
	_ = cmd.MarkFlagRequired("company")
	return cmd
}

func projectShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <project-id>",
		Short: "Show a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				p, err := rt.Engine.GetProject(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
}

func projectOverviewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "overview <project-id>",
		Short: "Show the step tree with display states",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				ov, err := rt.Engine.Overview(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(ov)
				}
				fmt.Println(renderOverview(ov))
				return nil
			})
		},
	}
}

func renderOverview(ov engine.Overview) string {
	lw := list.NewWriter()
	lw.SetStyle(list.StyleConnectedRounded)
	lw.AppendItem(fmt.Sprintf("Project %s (%s) %d%%", ov.Project.ID, ov.Project.Status, ov.Progress))
	lw.Indent()
	for _, s := range ov.Steps {
		marker := ""
		if ov.Current != nil && ov.Current.Key == s.Key {
			marker = " <- current"
		}
		lw.AppendItem(fmt.Sprintf("%d. %s [%s] %s%s", s.Number, s.Title, s.State, s.Label, marker))
	}
	philosophy := "CEO philosophy: " + ov.PhilosophyStatus
	if ov.AlignmentScore != nil {
		philosophy += fmt.Sprintf(" (alignment %d)", *ov.AlignmentScore)
	}
	lw.AppendItem(philosophy)
	if ov.CTAURL != "" {
		lw.AppendItem("Next: " + ov.CTAURL)
	}
	return lw.Render()
}

func inviteCmd() *cobra.Command {
	var opts engine.InviteOptions
	cmd := &cobra.Command{
		Use:   "invite",
		Short: "Invite a CEO to a company",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				opts.ActorID = viper.GetString("actor-id")
				inv, err := rt.Engine.InviteCEO(ctx, opts)
				if err != nil {
					return err
				}
				accept, err := rt.Engine.Links.URL(routes.InvitationsAccept, "token", inv.Token)
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{"invitation": inv, "accept_url": accept})
			})
		},
	}
	cmd.Flags().StringVar(&opts.CompanyID, "company", "", "company id")
	cmd.Flags().StringVar(&opts.Email, "email", "", "invitee email")
	cmd.Flags().StringVar(&opts.ProjectID, "project", "", "project id")
	_ = cmd.MarkFlagRequired("company")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func kpiCmd() *cobra.Command {
	kpi := &cobra.Command{Use: "kpi", Short: "KPI review links"}
	tok := &cobra.Command{Use: "token", Short: "Manage review tokens"}
	tok.AddCommand(kpiTokenCreateCmd())
	kpi.AddCommand(tok)
	return kpi
}

func kpiTokenCreateCmd() *cobra.Command {
	var opts engine.KPITokenOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a KPI review link",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				opts.ActorID = viper.GetString("actor-id")
				tok, err := rt.Engine.CreateKPIReviewToken(ctx, opts)
				if err != nil {
					return err
				}
				link, err := rt.Engine.Links.URL(routes.KPIReviewToken, "token", tok.Token)
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{"token": tok, "url": link})
			})
		},
	}
	cmd.Flags().StringVar(&opts.ProjectID, "project", "", "project id")
	cmd.Flags().StringVar(&opts.ReviewerName, "name", "", "reviewer name")
	cmd.Flags().StringVar(&opts.ReviewerEmail, "email", "", "reviewer email")
	cmd.Flags().StringVar(&opts.ExpiresOn, "expires-on", "", "last valid day (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func outboxCmd() *cobra.Command {
	out := &cobra.Command{Use: "outbox", Short: "Inspect and drain queued mail"}
	out.AddCommand(outboxListCmd())
	out.AddCommand(outboxFlushCmd())
	return out
}

func outboxListCmd() *cobra.Command {
	var status string
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List outbox rows",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				rows, err := rt.Engine.Repo.ListOutbox(ctx, status, limit)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(rows)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Event", "Recipient", "Status", "Attempts", "Last error", "Created"})
				for _, r := range rows {
					tw.AppendRow(table.Row{r.ID, r.Event, r.Recipient, r.Status, r.Attempts, r.LastError, r.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "status filter (pending, processing, sent, failed)")
	cmd.Flags().IntVar(&limit, "limit", 50, "max rows")
	return cmd
}

func outboxFlushCmd() *cobra.Command {
	var retryFailed bool
	cmd := &cobra.Command{
		Use:   "flush",
		Short: "Deliver pending mail now",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				var requeued int64
				if retryFailed {
					n, err := rt.Engine.Repo.RetryFailedOutbox(ctx)
					if err != nil {
						return err
					}
					requeued = n
				}
				worker := rt.Worker()
				total := map[string]int{"sent": 0, "retried": 0, "failed": 0}
				for {
					res, err := worker.RunOnce(ctx)
					if err != nil {
						return err
					}
					total["sent"] += res.Sent
					total["retried"] += res.Retried
					total["failed"] += res.Failed
					// Retried rows come back on the next pass; stop once a pass only retries.
					if res.Sent == 0 && res.Failed == 0 {
						break
					}
				}
				return printJSONOrTable(map[string]any{"requeued": requeued, "result": total})
			})
		},
	}
	cmd.Flags().BoolVar(&retryFailed, "retry-failed", false, "requeue failed rows first")
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Manage hrdesign.yml",
		Long:  "hrdesign.yml holds the public base URL, mail and queue settings, cron specs, rate limits, RBAC roles and webhooks. Secrets stay in the environment or the workspace .env.",
	}
	cfg.AddCommand(configInitCmd())
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configValidateCmd())
	cfg.AddCommand(configSetEnvCmd())
	return cfg
}

func configInitCmd() *cobra.Command {
	var baseURL string
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default hrdesign.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			if _, err := db.EnsureWorkspace(workspace); err != nil {
				return err
			}
			path := config.Path(workspace)
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists; use --force to overwrite", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault(baseURL)), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&baseURL, "base-url", "http://localhost:8080", "public base URL used in links and mails")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the loaded config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(cfg)
			}
			out, err := cfg.ToYAML()
			if err != nil {
				return err
			}
			fmt.Print(string(out))
			return nil
		},
	}
}

func configValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate hrdesign.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := config.Load(viper.GetString("workspace"))
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": fmt.Sprint(err)})
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	}
}

func configSetEnvCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-env KEY=VALUE...",
		Short: "Store values in the workspace .env",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := envPath(viper.GetString("workspace"))
			return setEnvValues(path, args)
		},
	}
}

func logCmd() *cobra.Command {
	lg := &cobra.Command{Use: "log", Short: "Event log"}
	lg.AddCommand(logTailCmd())
	return lg
}

func logTailCmd() *cobra.Command {
	var f repo.EventFilters
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Show the latest events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				events, err := rt.Engine.Repo.LatestEvents(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(events)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "TS", "Type", "Project", "Entity", "Actor"})
				for _, e := range events {
					tw.AppendRow(table.Row{e.ID, e.TS, e.Type, e.ProjectID, e.EntityKind + ":" + e.EntityID, e.ActorID})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&f.Limit, "n", 20, "number of events")
	cmd.Flags().StringVar(&f.ProjectID, "project", "", "project filter")
	cmd.Flags().StringVar(&f.Type, "type", "", "event type filter")
	cmd.Flags().StringVar(&f.EntityKind, "entity-kind", "", "entity kind")
	cmd.Flags().StringVar(&f.EntityID, "entity-id", "", "entity id")
	return cmd
}

// --- helpers ---

func openRuntime(ctx context.Context, secret string) (*app.Runtime, error) {
	return app.Open(ctx, app.Options{
		Workspace:    viper.GetString("workspace"),
		JWTSecret:    secret,
		SMTPPassword: viper.GetString("smtp_password"),
		Logger:       slog.Default(),
	})
}

func withRuntime(ctx context.Context, fn func(context.Context, *app.Runtime) error) error {
	rt, err := openRuntime(ctx, viper.GetString("jwt_secret"))
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(ctx, rt)
}

func envPath(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, ".env")
}

// setEnvValues merges KEY=VALUE pairs into the .env file at path.
func setEnvValues(path string, pairs []string) error {
	env, err := godotenv.Read(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		env = map[string]string{}
	}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return fmt.Errorf("expected KEY=VALUE, got %q", pair)
		}
		env[key] = value
	}
	return godotenv.Write(env, path)
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
