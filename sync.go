package orgsync

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/agentstation/orgsync/internal/sources/lms"
	"github.com/agentstation/orgsync/internal/sources/reporting"
	"github.com/agentstation/orgsync/pkg/departments"
	"github.com/agentstation/orgsync/pkg/errors"
	"github.com/agentstation/orgsync/pkg/hierarchy"
	"github.com/agentstation/orgsync/pkg/logging"
	"github.com/agentstation/orgsync/pkg/org"
	"github.com/agentstation/orgsync/pkg/reconciler"
)

// snapshot is the remote state fetched at the start of a run.
type snapshot struct {
	units        []lms.Unit
	users        []lms.User
	courses      []lms.Course
	indices      []reporting.Index
	measurements []reporting.Measurement
	departments  []reporting.Department
}

// Sync runs one synchronization. Authentication, HR and snapshot failures
// are fatal and returned as *errors.SyncError; every other failure is
// scoped to its entity and collected in the summary. The summary is
// returned even when err is set.
func (s *Syncer) Sync(ctx context.Context) (*Summary, error) {
	// Step 0: Set context
	if ctx == nil {
		ctx = context.Background()
	}
	if s.options.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.options.timeout)
		defer cancel()
	}

	runID := uuid.NewString()
	ctx = logging.WithRunID(ctx, runID)
	logger := logging.FromContext(ctx)

	summary := NewSummary(runID, s.options.dryRun, s.options.now())
	s.startRunLog(ctx, summary)
	defer func() {
		summary.Finalize(s.options.now())
		s.finishRunLog(ctx, summary)
		s.hooks.triggerRunCompleted(summary)
		logger.Info().
			Bool("success", summary.IsSuccess()).
			Int("failures", len(summary.Failures)).
			Dur("duration", summary.Duration).
			Msg(summary.Summary())
	}()

	// Step 1: Load the authoritative users
	users, rejected, err := s.source.Users(logging.WithPhase(ctx, PhaseHR))
	if err != nil {
		summary.fail(PhaseHR, "users", err)
		return summary, errors.NewSyncError(PhaseHR, nil, err)
	}
	summary.HRUsers = len(users)
	retained := make([]string, 0, len(rejected))
	for _, r := range rejected {
		summary.fail(PhaseHR, r.Entity(), r.Err)
		retained = append(retained, r.EmployeeID)
	}

	// Step 2: Fetch both remote snapshots
	snap, err := s.fetchSnapshots(logging.WithPhase(ctx, PhaseSnapshot))
	if err != nil {
		summary.fail(PhaseSnapshot, "remote", err)
		return summary, errors.NewSyncError(PhaseSnapshot, nil, err)
	}

	// Step 3: Make sure every department exists
	index := departments.NewIndex(snap.units)
	s.ensureDepartments(logging.WithPhase(ctx, PhaseDepartments), users, index, summary)

	// Step 4: Reconcile users
	rec, err := reconciler.New(s.lms,
		reconciler.WithDryRun(s.options.dryRun),
		reconciler.WithDisableOrphans(s.options.disableOrphans),
		reconciler.WithRetained(retained...),
		reconciler.WithObserver(s.hooks.userObserver),
	)
	if err != nil {
		return summary, err
	}
	result, err := rec.Reconcile(logging.WithPhase(ctx, PhaseUsers), users, snap.users, index)
	if result != nil {
		summary.absorbUsers(result)
	}
	if err != nil {
		return summary, errors.NewSyncError(PhaseUsers, nil, err)
	}

	// Step 5: Record course completion
	if err := s.syncCourses(logging.WithPhase(ctx, PhaseCourses), users, snap, summary); err != nil {
		return summary, errors.NewSyncError(PhaseCourses, nil, err)
	}

	return summary, nil
}

// fetchSnapshots reads the LMS and Reporting state concurrently. Calls to
// the same platform stay sequential.
func (s *Syncer) fetchSnapshots(ctx context.Context) (*snapshot, error) {
	snap := &snapshot{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		ctx := logging.WithSystem(gctx, lms.SystemName)
		var err error
		if snap.units, err = s.lms.ListUnits(ctx); err != nil {
			return err
		}
		if snap.users, err = s.lms.ListUsers(ctx); err != nil {
			return err
		}
		snap.courses, err = s.lms.ListCourses(ctx)
		return err
	})

	g.Go(func() error {
		ctx := logging.WithSystem(gctx, reporting.SystemName)
		var err error
		if snap.indices, err = s.reporting.ListIndices(ctx); err != nil {
			return err
		}
		if snap.measurements, err = s.reporting.ListMeasurements(ctx); err != nil {
			return err
		}
		snap.departments, err = s.reporting.ListDepartments(ctx)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	logging.FromContext(ctx).Info().
		Int("units", len(snap.units)).
		Int("users", len(snap.users)).
		Int("courses", len(snap.courses)).
		Int("indices", len(snap.indices)).
		Int("measurements", len(snap.measurements)).
		Msg("Fetched remote snapshots")
	return snap, nil
}

// ensureDepartments resolves or creates the unit of every department an
// active user belongs to.
func (s *Syncer) ensureDepartments(ctx context.Context, users []*org.User, index *departments.Index, summary *Summary) {
	resolver := departments.NewResolver(s.lms, departments.WithDryRun(s.options.dryRun))

	seen := make(map[string]bool)
	for _, u := range users {
		if !u.Active || u.Department == "" {
			continue
		}
		key := u.DepartmentKey()
		if seen[key] {
			continue
		}
		seen[key] = true

		if ctx.Err() != nil {
			return
		}
		if _, err := resolver.Ensure(ctx, u, index); err != nil {
			logging.FromContext(ctx).Error().Err(err).Str("department", key).Msg("Department could not be resolved")
			summary.fail(PhaseDepartments, key, err)
			continue
		}
		summary.Departments.Resolved++
	}

	for _, unit := range resolver.Created() {
		summary.Departments.Created = append(summary.Departments.Created, unit.Code)
	}
	summary.Warnings = append(summary.Warnings, resolver.Warnings()...)
}

// syncCourses builds the metric tree of every selected course. It only
// returns an error when ctx ends.
func (s *Syncer) syncCourses(ctx context.Context, users []*org.User, snap *snapshot, summary *Summary) error {
	builder, err := hierarchy.New(s.reporting, hierarchy.NewSnapshot(snap.indices, snap.measurements),
		hierarchy.WithDryRun(s.options.dryRun),
		hierarchy.WithClock(s.options.now),
		hierarchy.WithObserver(s.hooks.valueObserver),
	)
	if err != nil {
		return err
	}

	people := newPeople(users, snap.users)
	deptIDs := newReportingDepartments(snap.departments)
	selected := make(map[string]bool)

	courses := append([]lms.Course(nil), snap.courses...)
	sort.SliceStable(courses, func(i, j int) bool { return courses[i].ID < courses[j].ID })

	for _, c := range courses {
		course := org.Course{ID: c.ID, Title: c.Name}
		if !s.options.includesCourse(course) {
			continue
		}
		selected[course.Key()] = true
		selected[strconv.Itoa(course.ID)] = true

		if err := ctx.Err(); err != nil {
			return err
		}
		cctx := logging.WithCourse(ctx, course.Key())
		logger := logging.FromContext(cctx)

		participants, err := s.lms.ListParticipants(cctx, c.ID)
		if err != nil {
			logger.Error().Err(err).Msg("Fetching participants failed; skipping course")
			summary.fail(PhaseCourses, course.Key(), err)
			continue
		}

		plan, skipped := people.plan(course, c.Description, participants, deptIDs)
		if skipped > 0 {
			summary.Warnings = append(summary.Warnings,
				fmt.Sprintf("%s: %d participants not matched to an active HR user with a department", course.Key(), skipped))
		}
		if len(plan.Companies) == 0 {
			logger.Info().Int("participants", len(participants)).Msg("No participants to record")
			continue
		}

		result, err := builder.Build(cctx, plan)
		summary.absorbCourse(result)
		if err != nil && ctx.Err() != nil {
			return ctx.Err()
		}
	}

	var missing []string
	for course := range s.options.courses {
		if !selected[course] {
			missing = append(missing, course)
		}
	}
	sort.Strings(missing)
	for _, course := range missing {
		summary.Warnings = append(summary.Warnings, fmt.Sprintf("course %s not found in the LMS", course))
	}
	return nil
}

func (s *Syncer) startRunLog(ctx context.Context, summary *Summary) {
	if s.options.runLog == nil {
		return
	}
	if err := s.options.runLog.Start(ctx, summary.RunID, summary.StartTime, summary.DryRun); err != nil {
		logging.FromContext(ctx).Warn().Err(err).Msg("Recording run start failed")
	}
}

func (s *Syncer) finishRunLog(ctx context.Context, summary *Summary) {
	if s.options.runLog == nil {
		return
	}
	// The run may have been canceled; the record is written regardless.
	if err := s.options.runLog.Finish(context.WithoutCancel(ctx), summary.RunID, summary.RunStats()); err != nil {
		logging.FromContext(ctx).Warn().Err(err).Msg("Recording run result failed")
	}
}
