package config

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Config models hrdesign.yml.
type Config struct {
	App struct {
		Name        string `yaml:"name"`
		BaseURL     string `yaml:"base_url"`
		CompanyLogo string `yaml:"company_logo"`
	} `yaml:"app"`
	Server struct {
		Addr        string   `yaml:"addr"`
		BasePath    string   `yaml:"base_path"`
		CORSOrigins []string `yaml:"cors_origins"`
	} `yaml:"server"`
	Auth struct {
		TokenTTL   string `yaml:"token_ttl"`
		SessionTTL string `yaml:"session_ttl"`
		OTPTTL     string `yaml:"otp_ttl"`
	} `yaml:"auth"`
	Mail struct {
		Driver   string `yaml:"driver"`
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Username string `yaml:"username"`
		From     string `yaml:"from"`
		FromName string `yaml:"from_name"`
	} `yaml:"mail"`
	Notify struct {
		Queue        string `yaml:"queue"`
		RedisAddr    string `yaml:"redis_addr"`
		RedisKey     string `yaml:"redis_key"`
		PollInterval string `yaml:"poll_interval"`
		MaxAttempts  int    `yaml:"max_attempts"`
		Batch        int    `yaml:"batch"`
	} `yaml:"notify"`
	Invitations struct {
		TTLDays int `yaml:"ttl_days"`
	} `yaml:"invitations"`
	KPI struct {
		MaxSubmissions   int `yaml:"max_submissions"`
		DefaultValidDays int `yaml:"default_valid_days"`
	} `yaml:"kpi"`
	Scheduler struct {
		Enabled         bool   `yaml:"enabled"`
		InvitationSweep string `yaml:"invitation_sweep"`
		OutboxPurge     string `yaml:"outbox_purge"`
		OTPPurge        string `yaml:"otp_purge"`
		KPITokenSweep   string `yaml:"kpi_token_sweep"`
	} `yaml:"scheduler"`
	RateLimit struct {
		RPS   float64 `yaml:"rps"`
		Burst int     `yaml:"burst"`
	} `yaml:"ratelimit"`
	RBAC struct {
		Roles map[string]RBACRole `yaml:"roles"`
	} `yaml:"rbac"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

type RBACRole struct {
	Description string   `yaml:"description"`
	Permissions []string `yaml:"permissions"`
}

type WebhookConfig struct {
	URL            string   `yaml:"url"`
	Events         []string `yaml:"events"`
	Secret         string   `yaml:"secret"`
	Enabled        *bool    `yaml:"enabled"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with hrd config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.App.BaseURL == "" {
		return fmt.Errorf("config.app.base_url is required")
	}
	if u, err := url.Parse(c.App.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("config.app.base_url must be an absolute URL")
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("config.server.addr is required")
	}
	if c.Server.BasePath != "" && !strings.HasPrefix(c.Server.BasePath, "/") {
		return fmt.Errorf("config.server.base_path must start with /")
	}
	for name, raw := range map[string]string{
		"auth.token_ttl":       c.Auth.TokenTTL,
		"auth.session_ttl":     c.Auth.SessionTTL,
		"auth.otp_ttl":         c.Auth.OTPTTL,
		"notify.poll_interval": c.Notify.PollInterval,
	} {
		if raw == "" {
			return fmt.Errorf("config.%s is required", name)
		}
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			return fmt.Errorf("config.%s must be a positive duration", name)
		}
	}
	switch c.Mail.Driver {
	case "log", "memory":
	case "smtp":
		if c.Mail.Host == "" || c.Mail.Port == 0 {
			return fmt.Errorf("config.mail.host and config.mail.port are required for smtp")
		}
	default:
		return fmt.Errorf("config.mail.driver must be one of smtp, log, memory")
	}
	if c.Mail.From == "" {
		return fmt.Errorf("config.mail.from is required")
	}
	switch c.Notify.Queue {
	case "sqlite":
	case "redis":
		if c.Notify.RedisAddr == "" {
			return fmt.Errorf("config.notify.redis_addr is required for the redis queue")
		}
	default:
		return fmt.Errorf("config.notify.queue must be sqlite or redis")
	}
	if c.Notify.MaxAttempts <= 0 {
		return fmt.Errorf("config.notify.max_attempts must be positive")
	}
	if c.Invitations.TTLDays <= 0 {
		return fmt.Errorf("config.invitations.ttl_days must be positive")
	}
	if c.KPI.MaxSubmissions <= 0 {
		return fmt.Errorf("config.kpi.max_submissions must be positive")
	}
	if c.Scheduler.Enabled {
		for name, spec := range map[string]string{
			"invitation_sweep": c.Scheduler.InvitationSweep,
			"outbox_purge":     c.Scheduler.OutboxPurge,
			"otp_purge":        c.Scheduler.OTPPurge,
			"kpi_token_sweep":  c.Scheduler.KPITokenSweep,
		} {
			if spec == "" {
				continue
			}
			if _, err := cron.ParseStandard(spec); err != nil {
				return fmt.Errorf("config.scheduler.%s: %w", name, err)
			}
		}
	}
	if c.RateLimit.RPS < 0 || c.RateLimit.Burst < 0 {
		return fmt.Errorf("config.ratelimit values must not be negative")
	}
	if len(c.RBAC.Roles) == 0 {
		return fmt.Errorf("config.rbac.roles is required")
	}
	if _, ok := c.RBAC.Roles["admin"]; !ok {
		return fmt.Errorf("config.rbac.roles must include admin")
	}
	for roleID, role := range c.RBAC.Roles {
		if roleID == "" {
			return fmt.Errorf("config.rbac.roles contains empty role id")
		}
		for _, perm := range role.Permissions {
			if perm == "" {
				return fmt.Errorf("role %s has empty permission id", roleID)
			}
		}
	}
	for i, hook := range c.Webhooks {
		if strings.TrimSpace(hook.URL) == "" {
			return fmt.Errorf("config.webhooks[%d].url is required", i)
		}
	}
	return nil
}

func (c *Config) TokenTTL() time.Duration     { return mustDuration(c.Auth.TokenTTL, 24*time.Hour) }
func (c *Config) SessionTTL() time.Duration   { return mustDuration(c.Auth.SessionTTL, 7*24*time.Hour) }
func (c *Config) OTPTTL() time.Duration       { return mustDuration(c.Auth.OTPTTL, 15*time.Minute) }
func (c *Config) PollInterval() time.Duration { return mustDuration(c.Notify.PollInterval, 2*time.Second) }

// InvitationTTL is how long an invitation token stays usable.
func (c *Config) InvitationTTL() time.Duration {
	return time.Duration(c.Invitations.TTLDays) * 24 * time.Hour
}

// Permissions returns the permissions granted to a role.
func (c *Config) Permissions(role string) []string {
	if c == nil {
		return nil
	}
	return c.RBAC.Roles[role].Permissions
}

func mustDuration(raw string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "hrdesign.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault(baseURL string) string {
	return fmt.Sprintf(defaultTemplate, baseURL)
}

// LoadOptional returns the default config if the file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(""), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config struct.
func Default(baseURL string) *Config {
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(GenerateDefault(baseURL))).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

// ToYAML renders the config back to YAML.
func (c *Config) ToYAML() ([]byte, error) {
	return yaml.Marshal(c)
}

const defaultTemplate = `app:
  name: HR Design
  base_url: %s
  company_logo: ""

server:
  addr: 127.0.0.1:8080
  base_path: /v1
  cors_origins: ["*"]

auth:
  token_ttl: 24h
  session_ttl: 168h
  otp_ttl: 15m

mail:
  driver: log
  host: ""
  port: 0
  username: ""
  from: no-reply@hrdesign.local
  from_name: HR Design

notify:
  queue: sqlite
  redis_addr: ""
  redis_key: hrdesign:mail
  poll_interval: 2s
  max_attempts: 5
  batch: 50

invitations:
  ttl_days: 7

kpi:
  max_submissions: 3
  default_valid_days: 14

scheduler:
  enabled: true
  invitation_sweep: "0 * * * *"
  outbox_purge: "30 3 * * *"
  otp_purge: "*/15 * * * *"
  kpi_token_sweep: "0 4 * * *"

ratelimit:
  rps: 2
  burst: 5

rbac:
  roles:
    hr_manager:
      description: "Runs the project and submits steps"
      permissions:
        - project.create
        - project.read
        - project.step.edit
        - project.events.read
        - invitation.create
        - kpi.token.create
        - role_request.create
        - dashboard.hr_manager
    ceo:
      description: "Answers the philosophy survey and approves steps"
      permissions:
        - project.read
        - project.step.approve
        - project.lock
        - project.events.read
        - survey.respond
        - dashboard.ceo
    consultant:
      description: "Reviews submitted steps"
      permissions:
        - project.read
        - project.step.approve
        - project.events.read
        - dashboard.consultant
    admin:
      description: "Manages catalogs, role requests and keys"
      permissions:
        - project.read
        - project.step.approve
        - project.lock
        - project.events.read
        - invitation.create
        - catalog.manage
        - role_request.decide
        - dashboard.admin
        - apikey.manage

webhooks: []
`
