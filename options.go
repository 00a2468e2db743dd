package orgsync

import (
	"strconv"
	"strings"
	"time"

	"github.com/agentstation/orgsync/pkg/errors"
	"github.com/agentstation/orgsync/pkg/org"
)

// options holds the configuration of a Syncer.
type options struct {
	dryRun         bool
	courses        map[string]bool
	disableOrphans bool
	runLog         RunRecorder
	timeout        time.Duration
	now            func() time.Time
}

func defaultOptions() *options {
	return &options{
		disableOrphans: true,
		now:            time.Now,
	}
}

// Option is a function that configures a Syncer.
type Option func(*options) error

func (o *options) apply(opts ...Option) (*options, error) {
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	return o, nil
}

func newOptions(opts ...Option) (*options, error) {
	return defaultOptions().apply(opts...)
}

// includesCourse reports whether course is selected. No selection means
// every course.
func (o *options) includesCourse(course org.Course) bool {
	if len(o.courses) == 0 {
		return true
	}
	return o.courses[course.Key()] || o.courses[strconv.Itoa(course.ID)]
}

// WithDryRun plans every change without writing to either platform.
func WithDryRun(enabled bool) Option {
	return func(o *options) error {
		o.dryRun = enabled
		return nil
	}
}

// WithCourses limits the metric phase to the given courses, named by key
// (COURSE00042) or LMS id (42).
func WithCourses(courses ...string) Option {
	return func(o *options) error {
		for _, c := range courses {
			c = strings.TrimSpace(c)
			if c == "" {
				continue
			}
			if o.courses == nil {
				o.courses = make(map[string]bool)
			}
			o.courses[strings.ToUpper(c)] = true
		}
		return nil
	}
}

// WithDisableOrphans controls whether active LMS users missing from HR are
// disabled. Enabled by default.
func WithDisableOrphans(enabled bool) Option {
	return func(o *options) error {
		o.disableOrphans = enabled
		return nil
	}
}

// WithRunLog records every run with recorder.
func WithRunLog(recorder RunRecorder) Option {
	return func(o *options) error {
		if recorder == nil {
			return &errors.ValidationError{Field: "runLog", Message: "cannot be nil"}
		}
		o.runLog = recorder
		return nil
	}
}

// WithTimeout bounds the duration of each run.
func WithTimeout(timeout time.Duration) Option {
	return func(o *options) error {
		if timeout < 0 {
			return &errors.ValidationError{Field: "timeout", Value: timeout, Message: "cannot be negative"}
		}
		o.timeout = timeout
		return nil
	}
}

// WithClock sets the clock used for run timestamps and measurement dates.
func WithClock(now func() time.Time) Option {
	return func(o *options) error {
		if now == nil {
			return &errors.ValidationError{Field: "clock", Message: "cannot be nil"}
		}
		o.now = now
		return nil
	}
}
