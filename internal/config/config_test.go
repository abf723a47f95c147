package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default("https://hr.example.com")
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "https://hr.example.com", cfg.App.BaseURL)
	assert.Equal(t, 7, cfg.Invitations.TTLDays)
	assert.Equal(t, 3, cfg.KPI.MaxSubmissions)
	assert.Equal(t, 7*24*time.Hour, cfg.InvitationTTL())
	assert.Equal(t, 15*time.Minute, cfg.OTPTTL())
	assert.Equal(t, "/v1", cfg.Server.BasePath)
	assert.Contains(t, cfg.Permissions("ceo"), "survey.respond")
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(c *Config){
		"base_url":         func(c *Config) { c.App.BaseURL = "not a url" },
		"mail.driver":      func(c *Config) { c.Mail.Driver = "pigeon" },
		"smtp host":        func(c *Config) { c.Mail.Driver = "smtp" },
		"redis_addr":       func(c *Config) { c.Notify.Queue = "redis" },
		"ttl_days":         func(c *Config) { c.Invitations.TTLDays = 0 },
		"max_submissions":  func(c *Config) { c.KPI.MaxSubmissions = 0 },
		"token_ttl":        func(c *Config) { c.Auth.TokenTTL = "soon" },
		"scheduler":        func(c *Config) { c.Scheduler.OutboxPurge = "every day" },
		"missing admin":    func(c *Config) { delete(c.RBAC.Roles, "admin") },
		"webhook url":      func(c *Config) { c.Webhooks = []WebhookConfig{{URL: " "}} },
		"negative limiter": func(c *Config) { c.RateLimit.Burst = -1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default("")
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadOptionalFallsBackToDefault(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadOptional(dir)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", cfg.App.BaseURL)

	_, err = Load(dir)
	assert.ErrorContains(t, err, "not found")
}

func TestLoadFromWorkspace(t *testing.T) {
	dir := t.TempDir()
	raw := strings.Replace(GenerateDefault("https://acme.test"), "max_submissions: 3", "max_submissions: 5", 1)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hrdesign.yml"), []byte(raw), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.KPI.MaxSubmissions)

	out, err := cfg.ToYAML()
	require.NoError(t, err)
	again, err := FromYAML(out)
	require.NoError(t, err)
	assert.Equal(t, cfg.KPI, again.KPI)
}
