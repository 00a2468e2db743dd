// Package orgsync keeps an LMS user directory and a Reporting metric tree in
// step with the HR system.
//
// A run loads the authoritative users from HR, fetches the LMS and
// Reporting snapshots, makes sure every department exists as an LMS unit,
// reconciles the LMS users and finally records the completion rate of each
// course per company and department in Reporting.
//
// Example usage:
//
//	lmsClient, err := lms.New(ctx, lms.Config{BaseURL: url, ClientID: id, ClientSecret: secret})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	reportingClient, err := reporting.New(ctx, reporting.Config{BaseURL: rurl, Username: user, Password: pass})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	syncer, err := orgsync.New(hrdb.NewUserSource(db, "employees"), lmsClient, reportingClient,
//	    orgsync.WithCourses("COURSE00042"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	syncer.OnValueRecorded(func(e hierarchy.ValueEvent) {
//	    log.Printf("%s: %.1f", e.Code, e.Metric.Value)
//	})
//
//	summary, err := syncer.Sync(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(summary.Summary())
package orgsync

import (
	"context"
	"time"

	"github.com/agentstation/orgsync/internal/hrdb"
	"github.com/agentstation/orgsync/internal/sources/lms"
	"github.com/agentstation/orgsync/internal/sources/reporting"
	"github.com/agentstation/orgsync/pkg/departments"
	"github.com/agentstation/orgsync/pkg/errors"
	"github.com/agentstation/orgsync/pkg/hierarchy"
	"github.com/agentstation/orgsync/pkg/org"
	"github.com/agentstation/orgsync/pkg/reconciler"
)

// Source supplies the authoritative users. Records that exist in HR but
// fail validation are returned as rejected, never silently dropped.
type Source interface {
	Users(ctx context.Context) ([]*org.User, []org.Rejected, error)
}

// LMS is the learning platform API a run uses.
type LMS interface {
	departments.Creator
	reconciler.Directory

	ListUnits(ctx context.Context) ([]lms.Unit, error)
	ListUsers(ctx context.Context) ([]lms.User, error)
	ListCourses(ctx context.Context) ([]lms.Course, error)
	ListParticipants(ctx context.Context, courseID int) ([]lms.Participant, error)
}

// Reporting is the analytics platform API a run uses.
type Reporting interface {
	hierarchy.Store

	ListIndices(ctx context.Context) ([]reporting.Index, error)
	ListMeasurements(ctx context.Context) ([]reporting.Measurement, error)
	ListDepartments(ctx context.Context) ([]reporting.Department, error)
}

// RunRecorder records the start and end of each run.
type RunRecorder interface {
	Start(ctx context.Context, runID string, startedAt time.Time, dryRun bool) error
	Finish(ctx context.Context, runID string, stats hrdb.RunStats) error
}

// Compile-time checks that the concrete clients satisfy the interfaces.
var (
	_ LMS         = (*lms.Client)(nil)
	_ Reporting   = (*reporting.Client)(nil)
	_ Source      = (*hrdb.UserSource)(nil)
	_ RunRecorder = (*hrdb.RunLog)(nil)
)

// Syncer runs synchronizations.
type Syncer struct {
	source    Source
	lms       LMS
	reporting Reporting
	options   *options
	hooks     *hooks
}

// New creates a Syncer. All three collaborators are required.
func New(source Source, lmsClient LMS, reportingClient Reporting, opts ...Option) (*Syncer, error) {
	options, err := newOptions(opts...)
	if err != nil {
		return nil, errors.WrapResource("apply", "options", "", err)
	}

	switch {
	case source == nil:
		return nil, &errors.ValidationError{Field: "source", Message: "cannot be nil"}
	case lmsClient == nil:
		return nil, &errors.ValidationError{Field: "lms", Message: "cannot be nil"}
	case reportingClient == nil:
		return nil, &errors.ValidationError{Field: "reporting", Message: "cannot be nil"}
	}

	return &Syncer{
		source:    source,
		lms:       lmsClient,
		reporting: reportingClient,
		options:   options,
		hooks:     newHooks(),
	}, nil
}
