package app

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/agentstation/orgsync/internal/config"
	"github.com/agentstation/orgsync/internal/hrdb"
	"github.com/agentstation/orgsync/pkg/constants"
	"github.com/agentstation/orgsync/pkg/errors"
)

// Config holds the application configuration loaded from various sources
// including config files, environment variables, and .env files.
type Config struct {
	// Global flags
	Verbose bool
	Quiet   bool
	NoColor bool
	Format  string

	// Config file
	ConfigFile string

	// LMS
	LMSBaseURL      string
	LMSClientID     string
	LMSClientSecret string

	// Reporting
	ReportingBaseURL  string
	ReportingUsername string
	ReportingPassword string

	// HR database
	HRDriver      string
	HRDSN         string
	HRUsersTable  string
	HRRunLogTable string

	// Sync behavior
	Courses  []string
	Schedule string
	Timeout  time.Duration

	// Request pacing
	RateLimitLowWater int
	RateLimitCooldown time.Duration
	RateLimitPerSec   float64
	RateLimitBurst    int

	// Logging configuration
	LogLevel  string
	LogFormat string
	LogOutput string
}

// LoadConfig loads configuration from all sources in order of precedence:
// 1. Command-line flags (handled by cobra)
// 2. Environment variables
// 3. .env files
// 4. Config file (~/.orgsync.yaml)
// 5. Defaults
func LoadConfig() (*Config, error) {
	// Load .env files first (before Viper env binding)
	loadEnvFiles()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	configFile := viper.GetString("config")
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".orgsync")
	}

	// Read config file (ignore error if not found)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Verbose:    viper.GetBool("verbose"),
		Quiet:      viper.GetBool("quiet"),
		NoColor:    viper.GetBool("no_color") || os.Getenv("NO_COLOR") != "",
		Format:     viper.GetString("output"),
		ConfigFile: viper.ConfigFileUsed(),

		LMSBaseURL:      config.GetStringDefault("LMS_BASE_URL", constants.DefaultLMSBaseURL),
		LMSClientID:     config.GetString("LMS_CLIENT_ID"),
		LMSClientSecret: config.GetString("LMS_CLIENT_SECRET"),

		ReportingBaseURL:  config.GetString("REPORTING_BASE_URL"),
		ReportingUsername: config.GetString("REPORTING_USERNAME"),
		ReportingPassword: config.GetString("REPORTING_PASSWORD"),

		HRDriver:      config.GetStringDefault("HR_DRIVER", hrdb.DriverPostgres),
		HRDSN:         config.GetString("HR_DSN"),
		HRUsersTable:  config.GetStringDefault("HR_USERS_TABLE", hrdb.DefaultUsersTable),
		HRRunLogTable: config.GetString("HR_RUN_LOG_TABLE"),

		Courses:  config.GetList("SYNC_COURSES"),
		Schedule: config.GetString("SYNC_SCHEDULE"),

		LogLevel:  config.GetString("LOG_LEVEL"),
		LogFormat: config.GetStringDefault("LOG_FORMAT", "auto"),
		LogOutput: config.GetStringDefault("LOG_OUTPUT", "stderr"),
	}

	var err error
	if cfg.Timeout, err = config.GetDuration("SYNC_TIMEOUT", constants.SyncTimeout); err != nil {
		return nil, err
	}
	if cfg.RateLimitLowWater, err = config.GetInt("RATELIMIT_LOW_WATER", constants.RateLimitLowWater); err != nil {
		return nil, err
	}
	if cfg.RateLimitCooldown, err = config.GetDuration("RATELIMIT_COOLDOWN", constants.RateLimitCooldown); err != nil {
		return nil, err
	}
	if cfg.RateLimitBurst, err = config.GetInt("RATELIMIT_BURST", 1); err != nil {
		return nil, err
	}
	if v := config.GetString("RATELIMIT_RPS"); v != "" {
		rps, perr := strconv.ParseFloat(v, 64)
		if perr != nil || rps <= 0 {
			return nil, errors.NewConfigError("config", "RATELIMIT_RPS must be a positive number", perr)
		}
		cfg.RateLimitPerSec = rps
	}

	return cfg, nil
}

// UpdateFromFlags updates config values from parsed command flags.
// This should be called after cobra parses flags to ensure flag
// values take precedence over config file and env vars.
func (c *Config) UpdateFromFlags(verbose, quiet, noColor bool, format, logLevel string) {
	c.Verbose = verbose
	c.Quiet = quiet
	c.NoColor = c.NoColor || noColor
	if format != "" {
		c.Format = format
	}
	if logLevel != "" {
		c.LogLevel = logLevel
	}
}

// ValidateLMS checks the settings needed to reach the LMS.
func (c *Config) ValidateLMS() error {
	switch {
	case c.LMSBaseURL == "":
		return errors.NewConfigError("lms", "LMS_BASE_URL is not set", nil)
	case c.LMSClientID == "":
		return errors.NewConfigError("lms", "LMS_CLIENT_ID is not set", nil)
	case c.LMSClientSecret == "":
		return errors.NewConfigError("lms", "LMS_CLIENT_SECRET is not set", nil)
	}
	return nil
}

// ValidateReporting checks the settings needed to reach Reporting.
func (c *Config) ValidateReporting() error {
	switch {
	case c.ReportingBaseURL == "":
		return errors.NewConfigError("reporting", "REPORTING_BASE_URL is not set", nil)
	case c.ReportingUsername == "":
		return errors.NewConfigError("reporting", "REPORTING_USERNAME is not set", nil)
	case c.ReportingPassword == "":
		return errors.NewConfigError("reporting", "REPORTING_PASSWORD is not set", nil)
	}
	return nil
}

// ValidateHR checks the settings needed to open the HR database.
func (c *Config) ValidateHR() error {
	switch {
	case c.HRDriver != hrdb.DriverPostgres && c.HRDriver != hrdb.DriverSQLite:
		return errors.NewConfigError("hr", "HR_DRIVER must be postgres or sqlite", nil)
	case c.HRDSN == "":
		return errors.NewConfigError("hr", "HR_DSN is not set", nil)
	}
	return nil
}

// Validate checks everything a sync run needs.
func (c *Config) Validate() error {
	if err := c.ValidateHR(); err != nil {
		return err
	}
	if err := c.ValidateLMS(); err != nil {
		return err
	}
	return c.ValidateReporting()
}

// loadEnvFiles loads environment variables from .env files.
func loadEnvFiles() {
	// .env.local overrides .env
	for _, envFile := range []string{".env.local", ".env"} {
		_ = godotenv.Load(envFile)
	}
}
