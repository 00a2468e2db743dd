package reconciler

import (
	"context"
	"strings"

	"github.com/agentstation/orgsync/pkg/errors"
)

// Observer is called after each applied (or, in dry-run mode, planned)
// user action.
type Observer func(ctx context.Context, outcome Outcome)

// options configures a reconciler.
type options struct {
	dryRun         bool
	disableOrphans bool
	retained       map[string]bool
	observers      []Observer
}

func defaultOptions() *options {
	return &options{
		disableOrphans: true,
	}
}

// Option is a function that configures a Reconciler.
type Option func(*options) error

func (options *options) apply(opts ...Option) (*options, error) {
	for _, opt := range opts {
		if err := opt(options); err != nil {
			return nil, err
		}
	}
	return options, nil
}

// newOptions returns reconciler options with default values.
func newOptions(opts ...Option) (*options, error) {
	return defaultOptions().apply(opts...)
}

// WithDryRun plans every decision without calling the directory.
func WithDryRun(enabled bool) Option {
	return func(o *options) error {
		o.dryRun = enabled
		return nil
	}
}

// WithDisableOrphans controls whether active remote users whose employee
// id no longer appears in HR are disabled. Enabled by default.
func WithDisableOrphans(enabled bool) Option {
	return func(o *options) error {
		o.disableOrphans = enabled
		return nil
	}
}

// WithRetained marks employee ids that are still listed in HR even though
// their records could not be loaded. Their remote users are never disabled
// as orphans.
func WithRetained(employeeIDs ...string) Option {
	return func(o *options) error {
		if o.retained == nil {
			o.retained = make(map[string]bool, len(employeeIDs))
		}
		for _, id := range employeeIDs {
			if id = strings.TrimSpace(id); id != "" {
				o.retained[id] = true
			}
		}
		return nil
	}
}

// WithObserver registers a callback for every user action.
func WithObserver(fn Observer) Option {
	return func(o *options) error {
		if fn == nil {
			return &errors.ValidationError{
				Field:   "observer",
				Message: "cannot be nil",
			}
		}
		o.observers = append(o.observers, fn)
		return nil
	}
}
