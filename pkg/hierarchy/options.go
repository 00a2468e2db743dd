package hierarchy

import (
	"context"
	"time"

	"github.com/agentstation/orgsync/pkg/errors"
)

// ValueEvent describes a measurement value appended (or planned, in
// dry-run mode) by the builder.
type ValueEvent struct {
	Course        string `json:"course" yaml:"course"`
	Code          string `json:"code" yaml:"code"`
	MeasurementID int    `json:"measurement_id" yaml:"measurement_id"`
	Date          string `json:"date" yaml:"date"`
	Metric        Metric `json:"metric" yaml:"metric"`
	Created       bool   `json:"created,omitempty" yaml:"created,omitempty"`
	DryRun        bool   `json:"dry_run,omitempty" yaml:"dry_run,omitempty"`
}

// Observer is called for every measurement value.
type Observer func(ctx context.Context, event ValueEvent)

type options struct {
	dryRun    bool
	now       func() time.Time
	observers []Observer
}

func defaultOptions() *options {
	return &options{
		now: time.Now,
	}
}

// Option is a function that configures a Builder.
type Option func(*options) error

func (options *options) apply(opts ...Option) (*options, error) {
	for _, opt := range opts {
		if err := opt(options); err != nil {
			return nil, err
		}
	}
	return options, nil
}

func newOptions(opts ...Option) (*options, error) {
	return defaultOptions().apply(opts...)
}

// WithDryRun plans every node and value without calling Reporting.
func WithDryRun(enabled bool) Option {
	return func(o *options) error {
		o.dryRun = enabled
		return nil
	}
}

// WithClock sets the clock used to date measurement values.
func WithClock(now func() time.Time) Option {
	return func(o *options) error {
		if now == nil {
			return &errors.ValidationError{Field: "clock", Message: "cannot be nil"}
		}
		o.now = now
		return nil
	}
}

// WithObserver registers a callback for every measurement value.
func WithObserver(fn Observer) Option {
	return func(o *options) error {
		if fn == nil {
			return &errors.ValidationError{Field: "observer", Message: "cannot be nil"}
		}
		o.observers = append(o.observers, fn)
		return nil
	}
}
