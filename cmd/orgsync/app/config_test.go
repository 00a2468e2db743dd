package app

import (
	stderrors "errors"
	"reflect"
	"testing"
	"time"

	"github.com/agentstation/orgsync/pkg/constants"
	"github.com/agentstation/orgsync/pkg/errors"
)

// TestLoadConfig verifies defaults.
func TestLoadConfig(t *testing.T) {
	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}

	if config.LogFormat == "" {
		t.Error("LogFormat not set to default")
	}
	if config.LMSBaseURL == "" {
		t.Error("LMSBaseURL not set to default")
	}
	if config.Timeout != constants.SyncTimeout {
		t.Errorf("Timeout = %v, want %v", config.Timeout, constants.SyncTimeout)
	}
}

// TestConfig_EnvironmentVariables verifies environment variable loading.
func TestConfig_EnvironmentVariables(t *testing.T) {
	t.Setenv("LMS_CLIENT_ID", "client")
	t.Setenv("REPORTING_BASE_URL", "https://reporting.example.com/api/")
	t.Setenv("HR_DRIVER", "sqlite")
	t.Setenv("HR_DSN", "file:hr.db")
	t.Setenv("SYNC_COURSES", "COURSE00042, 57")
	t.Setenv("SYNC_SCHEDULE", "@daily")
	t.Setenv("RATELIMIT_LOW_WATER", "50")
	t.Setenv("RATELIMIT_COOLDOWN", "10s")
	t.Setenv("RATELIMIT_RPS", "2.5")

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}

	if config.LMSClientID != "client" {
		t.Errorf("LMSClientID = %q, want client", config.LMSClientID)
	}
	if config.ReportingBaseURL != "https://reporting.example.com/api/" {
		t.Errorf("ReportingBaseURL = %q", config.ReportingBaseURL)
	}
	if config.HRDriver != "sqlite" || config.HRDSN != "file:hr.db" {
		t.Errorf("HR = %q %q", config.HRDriver, config.HRDSN)
	}
	if !reflect.DeepEqual(config.Courses, []string{"COURSE00042", "57"}) {
		t.Errorf("Courses = %v", config.Courses)
	}
	if config.Schedule != "@daily" {
		t.Errorf("Schedule = %q, want @daily", config.Schedule)
	}
	if config.RateLimitLowWater != 50 {
		t.Errorf("RateLimitLowWater = %d, want 50", config.RateLimitLowWater)
	}
	if config.RateLimitCooldown != 10*time.Second {
		t.Errorf("RateLimitCooldown = %v, want 10s", config.RateLimitCooldown)
	}
	if config.RateLimitPerSec != 2.5 {
		t.Errorf("RateLimitPerSec = %v, want 2.5", config.RateLimitPerSec)
	}
}

// TestConfig_InvalidValues verifies malformed numbers are rejected.
func TestConfig_InvalidValues(t *testing.T) {
	tests := []struct {
		envVar string
		value  string
	}{
		{"RATELIMIT_LOW_WATER", "many"},
		{"RATELIMIT_COOLDOWN", "a while"},
		{"RATELIMIT_RPS", "-1"},
		{"SYNC_TIMEOUT", "forever"},
	}

	for _, tt := range tests {
		t.Run(tt.envVar, func(t *testing.T) {
			t.Setenv(tt.envVar, tt.value)
			_, err := LoadConfig()
			var cfgErr *errors.ConfigError
			if !stderrors.As(err, &cfgErr) {
				t.Errorf("LoadConfig() error = %v, want ConfigError", err)
			}
		})
	}
}

// TestConfig_Validate verifies required settings.
func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			LMSBaseURL:        "https://api.example.com/",
			LMSClientID:       "id",
			LMSClientSecret:   "secret",
			ReportingBaseURL:  "https://reporting.example.com/",
			ReportingUsername: "user",
			ReportingPassword: "pass",
			HRDriver:          "postgres",
			HRDSN:             "host=localhost",
		}
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing client id", func(c *Config) { c.LMSClientID = "" }},
		{"missing client secret", func(c *Config) { c.LMSClientSecret = "" }},
		{"missing reporting url", func(c *Config) { c.ReportingBaseURL = "" }},
		{"missing reporting password", func(c *Config) { c.ReportingPassword = "" }},
		{"unknown driver", func(c *Config) { c.HRDriver = "oracle" }},
		{"missing dsn", func(c *Config) { c.HRDSN = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			var cfgErr *errors.ConfigError
			if err := c.Validate(); !stderrors.As(err, &cfgErr) {
				t.Errorf("Validate() = %v, want ConfigError", err)
			}
		})
	}
}

// TestConfig_UpdateFromFlags verifies flag precedence.
func TestConfig_UpdateFromFlags(t *testing.T) {
	c := &Config{Format: "text", LogLevel: "info"}
	c.UpdateFromFlags(true, false, true, "json", "")

	if !c.Verbose || c.Quiet || !c.NoColor {
		t.Errorf("flags not applied: %+v", c)
	}
	if c.Format != "json" {
		t.Errorf("Format = %q, want json", c.Format)
	}
	if c.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", c.LogLevel)
	}
}
