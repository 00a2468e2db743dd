// Package app wires the orgsync CLI: configuration, logging, the HR
// database and the two platform clients.
package app

import (
	"context"
	"net/http"
	"sync"

	"github.com/rs/zerolog"

	"github.com/agentstation/orgsync"
	"github.com/agentstation/orgsync/internal/hrdb"
	"github.com/agentstation/orgsync/internal/sources/lms"
	"github.com/agentstation/orgsync/internal/sources/reporting"
	"github.com/agentstation/orgsync/internal/transport"
	"github.com/agentstation/orgsync/pkg/constants"
	"github.com/agentstation/orgsync/pkg/errors"
	"github.com/agentstation/orgsync/pkg/logging"
)

// App represents the orgsync application with all its dependencies.
type App struct {
	// Version information
	version string
	commit  string
	date    string
	builtBy string

	config *Config
	logger *zerolog.Logger

	// Lazily opened collaborators
	mu         sync.Mutex
	db         *hrdb.DB
	lms        orgsync.LMS
	reporting  orgsync.Reporting
	httpClient *http.Client
}

// New creates a new App instance with the given version information.
func New(version, commit, date, builtBy string, opts ...Option) (*App, error) {
	app := &App{
		version: version,
		commit:  commit,
		date:    date,
		builtBy: builtBy,
	}

	config, err := LoadConfig()
	if err != nil {
		return nil, errors.WrapResource("load", "config", "", err)
	}
	app.config = config

	logger := NewLogger(config)
	app.logger = &logger

	for _, opt := range opts {
		if err := opt(app); err != nil {
			return nil, err
		}
	}

	return app, nil
}

// Version returns the version information.
func (a *App) Version() string {
	return a.version
}

// Commit returns the git commit hash.
func (a *App) Commit() string {
	return a.commit
}

// Date returns the build date.
func (a *App) Date() string {
	return a.date
}

// BuiltBy returns the build system identifier.
func (a *App) BuiltBy() string {
	return a.builtBy
}

// Config returns the application configuration.
func (a *App) Config() *Config {
	return a.config
}

// Logger returns the application logger.
func (a *App) Logger() *zerolog.Logger {
	return a.logger
}

// Context attaches the application logger to ctx.
func (a *App) Context(ctx context.Context) context.Context {
	return logging.WithLogger(ctx, a.logger)
}

// DB opens the HR database on first use.
func (a *App) DB() (*hrdb.DB, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.db != nil {
		return a.db, nil
	}
	if err := a.config.ValidateHR(); err != nil {
		return nil, err
	}
	db, err := hrdb.Open(hrdb.Config{Driver: a.config.HRDriver, DSN: a.config.HRDSN, Logger: a.logger})
	if err != nil {
		return nil, err
	}
	a.db = db
	return db, nil
}

// LMS authenticates with the LMS on first use.
func (a *App) LMS(ctx context.Context) (orgsync.LMS, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.lms != nil {
		return a.lms, nil
	}
	client, err := a.newLMSClient(ctx)
	if err != nil {
		return nil, err
	}
	a.lms = client
	return client, nil
}

func (a *App) newLMSClient(ctx context.Context) (*lms.Client, error) {
	if err := a.config.ValidateLMS(); err != nil {
		return nil, err
	}
	return lms.New(ctx, lms.Config{
		BaseURL:      a.config.LMSBaseURL,
		ClientID:     a.config.LMSClientID,
		ClientSecret: a.config.LMSClientSecret,
		HTTPClient:   a.http(),
	}, a.transportOptions()...)
}

// Reporting authenticates with Reporting on first use.
func (a *App) Reporting(ctx context.Context) (orgsync.Reporting, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.reporting != nil {
		return a.reporting, nil
	}
	client, err := a.newReportingClient(ctx)
	if err != nil {
		return nil, err
	}
	a.reporting = client
	return client, nil
}

func (a *App) newReportingClient(ctx context.Context) (*reporting.Client, error) {
	if err := a.config.ValidateReporting(); err != nil {
		return nil, err
	}
	return reporting.New(ctx, reporting.Config{
		BaseURL:    a.config.ReportingBaseURL,
		Username:   a.config.ReportingUsername,
		Password:   a.config.ReportingPassword,
		HTTPClient: a.http(),
	}, a.transportOptions()...)
}

// ReportingClient returns the concrete Reporting client for commands that
// use endpoints outside the sync interface.
func (a *App) ReportingClient(ctx context.Context) (*reporting.Client, error) {
	r, err := a.Reporting(ctx)
	if err != nil {
		return nil, err
	}
	client, ok := r.(*reporting.Client)
	if !ok {
		return nil, errors.NewConfigError("reporting", "command needs the HTTP client", nil)
	}
	return client, nil
}

// LMSClient returns the concrete LMS client.
func (a *App) LMSClient(ctx context.Context) (*lms.Client, error) {
	l, err := a.LMS(ctx)
	if err != nil {
		return nil, err
	}
	client, ok := l.(*lms.Client)
	if !ok {
		return nil, errors.NewConfigError("lms", "command needs the HTTP client", nil)
	}
	return client, nil
}

func (a *App) http() *http.Client {
	if a.httpClient == nil {
		a.httpClient = &http.Client{Timeout: constants.DefaultHTTPTimeout}
	}
	return a.httpClient
}

func (a *App) transportOptions() []transport.Option {
	opts := []transport.Option{
		transport.WithLowWater(a.config.RateLimitLowWater),
		transport.WithCooldown(a.config.RateLimitCooldown),
	}
	if a.config.RateLimitPerSec > 0 {
		opts = append(opts, transport.WithRateLimit(a.config.RateLimitPerSec, a.config.RateLimitBurst))
	}
	return opts
}

// Syncer builds a Syncer from the configuration. extra options are
// applied after the configured ones.
func (a *App) Syncer(ctx context.Context, extra ...orgsync.Option) (*orgsync.Syncer, error) {
	db, err := a.DB()
	if err != nil {
		return nil, err
	}
	lmsClient, err := a.LMS(ctx)
	if err != nil {
		return nil, err
	}
	reportingClient, err := a.Reporting(ctx)
	if err != nil {
		return nil, err
	}

	opts := []orgsync.Option{
		orgsync.WithCourses(a.config.Courses...),
		orgsync.WithTimeout(a.config.Timeout),
	}
	if a.config.HRRunLogTable != "" {
		runLog := hrdb.NewRunLog(db, a.config.HRRunLogTable)
		if err := runLog.Migrate(ctx); err != nil {
			return nil, err
		}
		opts = append(opts, orgsync.WithRunLog(runLog))
	}
	opts = append(opts, extra...)

	return orgsync.New(hrdb.NewUserSource(db, a.config.HRUsersTable), lmsClient, reportingClient, opts...)
}

// Shutdown releases the HR database connection.
func (a *App) Shutdown(_ context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db = nil
	return err
}

// Option is a functional option for configuring the App.
type Option func(*App) error

// WithConfig sets a custom configuration.
func WithConfig(config *Config) Option {
	return func(a *App) error {
		a.config = config
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(a *App) error {
		a.logger = logger
		return nil
	}
}

// WithClients sets the platform clients (useful for testing).
func WithClients(lmsClient orgsync.LMS, reportingClient orgsync.Reporting) Option {
	return func(a *App) error {
		a.lms = lmsClient
		a.reporting = reportingClient
		return nil
	}
}
