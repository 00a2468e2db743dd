package orgsync_test

import (
	"context"
	stderrors "errors"
	"fmt"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/orgsync"
	"github.com/agentstation/orgsync/internal/hrdb"
	"github.com/agentstation/orgsync/internal/sources/lms"
	"github.com/agentstation/orgsync/internal/sources/reporting"
	"github.com/agentstation/orgsync/pkg/errors"
	"github.com/agentstation/orgsync/pkg/hierarchy"
	"github.com/agentstation/orgsync/pkg/org"
	"github.com/agentstation/orgsync/pkg/reconciler"
)

// staticSource serves a fixed set of HR users.
type staticSource struct {
	users    []*org.User
	rejected []org.Rejected
	err      error
}

func (s *staticSource) Users(context.Context) ([]*org.User, []org.Rejected, error) {
	return s.users, s.rejected, s.err
}

// fakeLMS is an in-memory LMS that keeps whatever a run writes, so a second
// run sees the first run's changes.
type fakeLMS struct {
	mu           sync.Mutex
	nextID       int
	units        []lms.Unit
	users        []lms.User
	courses      []lms.Course
	participants map[int][]lms.Participant
	writes       int

	listErr        error
	participantErr map[int]error
}

func (f *fakeLMS) id() int {
	f.nextID++
	return 1000 + f.nextID
}

func (f *fakeLMS) ListUnits(context.Context) ([]lms.Unit, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]lms.Unit(nil), f.units...), nil
}

func (f *fakeLMS) ListUsers(context.Context) ([]lms.User, error) {
	return append([]lms.User(nil), f.users...), nil
}

func (f *fakeLMS) ListCourses(context.Context) ([]lms.Course, error) {
	return append([]lms.Course(nil), f.courses...), nil
}

func (f *fakeLMS) ListParticipants(_ context.Context, courseID int) ([]lms.Participant, error) {
	if err := f.participantErr[courseID]; err != nil {
		return nil, err
	}
	return f.participants[courseID], nil
}

func (f *fakeLMS) CreateUnit(_ context.Context, req lms.CreateUnitRequest) (*lms.Unit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes++
	unit := lms.Unit{ID: f.id(), Name: req.Name, Code: req.Code, ParentID: req.ParentID}
	f.units = append(f.units, unit)
	return &unit, nil
}

func (f *fakeLMS) CreateUser(_ context.Context, req lms.CreateUserRequest) (*lms.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes++
	active := true
	u := lms.User{
		ID:            f.id(),
		EmployeeID:    req.EmployeeID,
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		Email:         req.Email,
		Username:      req.Username,
		Title:         req.Title,
		DepartmentIDs: parseIDs(req.DepartmentID),
		Active:        &active,
	}
	f.users = append(f.users, u)
	return &u, nil
}

func (f *fakeLMS) UpdateUser(_ context.Context, employeeID string, req lms.UpdateUserRequest) (*lms.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes++
	for i := range f.users {
		if f.users[i].EmployeeID == employeeID {
			u := &f.users[i]
			u.FirstName, u.LastName, u.Username, u.Title, u.Email = req.FirstName, req.LastName, req.Username, req.Title, req.Email
			u.DepartmentIDs = parseIDs(req.DepartmentID)
			return u, nil
		}
	}
	return nil, errors.NewNotFoundError("user", employeeID)
}

func (f *fakeLMS) EnableUser(_ context.Context, email string) error {
	return f.setActive(email, true)
}

func (f *fakeLMS) DisableUser(_ context.Context, email string) error {
	return f.setActive(email, false)
}

func (f *fakeLMS) setActive(email string, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes++
	for i := range f.users {
		if f.users[i].Email == email {
			f.users[i].Active = &active
			return nil
		}
	}
	return errors.NewNotFoundError("user", email)
}

func parseIDs(ids []string) lms.IDList {
	var out lms.IDList
	for _, s := range ids {
		if id, err := strconv.Atoi(s); err == nil {
			out = append(out, id)
		}
	}
	return out
}

// fakeReporting is an in-memory Reporting platform.
type fakeReporting struct {
	mu           sync.Mutex
	nextID       int
	indices      []reporting.Index
	measurements []reporting.Measurement
	values       []reporting.MeasurementValue
	departments  []reporting.Department
	writes       int
}

func (f *fakeReporting) id() int {
	f.nextID++
	return f.nextID
}

func (f *fakeReporting) ListIndices(context.Context) ([]reporting.Index, error) {
	return append([]reporting.Index(nil), f.indices...), nil
}

func (f *fakeReporting) ListMeasurements(context.Context) ([]reporting.Measurement, error) {
	return append([]reporting.Measurement(nil), f.measurements...), nil
}

func (f *fakeReporting) ListDepartments(context.Context) ([]reporting.Department, error) {
	return f.departments, nil
}

func (f *fakeReporting) CreateIndex(_ context.Context, req reporting.IndexRequest) (*reporting.Index, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes++
	index := reporting.Index{ID: f.id(), Code: req.Code, Name: req.Name, Description: req.Description, ParentIndexConnections: req.ParentIndexConnections}
	f.indices = append(f.indices, index)
	return &index, nil
}

func (f *fakeReporting) CreateMeasurement(_ context.Context, req reporting.MeasurementRequest) (*reporting.Measurement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes++
	m := reporting.Measurement{
		ID:               f.id(),
		Code:             req.Code,
		Name:             req.Name,
		MinValue:         req.MinValue,
		MaxValue:         req.MaxValue,
		DepartmentID:     req.DepartmentID,
		IndexConnections: req.IndexConnections,
	}
	f.measurements = append(f.measurements, m)
	for _, v := range req.MeasurementValues {
		v.MeasurementID = m.ID
		f.values = append(f.values, v)
	}
	return &m, nil
}

func (f *fakeReporting) CreateMeasurementValue(_ context.Context, value reporting.MeasurementValue) (*reporting.MeasurementValue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes++
	value.ID = f.id()
	f.values = append(f.values, value)
	return &value, nil
}

func (f *fakeReporting) ConnectMeasurement(context.Context, int, int, *float64) error {
	f.writes++
	return nil
}

func (f *fakeReporting) ConnectIndex(context.Context, int, int, *float64) error {
	f.writes++
	return nil
}

func (f *fakeReporting) valuesOf(code string) []float64 {
	var id int
	for _, m := range f.measurements {
		if m.Code == code {
			id = m.ID
		}
	}
	var out []float64
	for _, v := range f.values {
		if v.MeasurementID == id {
			out = append(out, v.Value)
		}
	}
	return out
}

func (f *fakeReporting) measurement(code string) *reporting.Measurement {
	for i := range f.measurements {
		if f.measurements[i].Code == code {
			return &f.measurements[i]
		}
	}
	return nil
}

func fixedClock() time.Time {
	return time.Date(2026, time.March, 4, 5, 6, 7, 0, time.UTC)
}

// fixture is five Sales employees (four finished course 42) and two
// Support employees (both finished), all in company 100 of division
// Retail.
type fixture struct {
	source    *staticSource
	lms       *fakeLMS
	reporting *fakeReporting
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	var users []*org.User
	var participants []lms.Participant
	add := func(id, dept string, finished bool) {
		u, err := org.NewUser(org.User{
			EmployeeID:  id,
			FullName:    "Test " + id,
			Email:       id + "@example.com",
			Division:    "Retail",
			Department:  dept,
			Mfld:        "100",
			CompanyName: "Acme",
			Active:      true,
		})
		require.NoError(t, err)
		users = append(users, u)

		p := lms.Participant{EmployeeID: id, Status: "in_progress"}
		if finished {
			p.Status = "completed"
		}
		participants = append(participants, p)
	}
	for i := 1; i <= 5; i++ {
		add(fmt.Sprintf("S%d", i), "Sales", i <= 4)
	}
	add("P1", "Support", true)
	add("P2", "Support", true)

	return &fixture{
		source: &staticSource{users: users},
		lms: &fakeLMS{
			units:        []lms.Unit{{ID: 10, Name: "Retail", Code: "DIV-Retail"}},
			courses:      []lms.Course{{ID: 42, Name: "Fire Safety", Description: "Annual fire safety"}},
			participants: map[int][]lms.Participant{42: participants},
		},
		reporting: &fakeReporting{
			departments: []reporting.Department{{ID: 7, Name: "support"}},
		},
	}
}

func (f *fixture) syncer(t *testing.T, opts ...orgsync.Option) *orgsync.Syncer {
	t.Helper()
	opts = append([]orgsync.Option{orgsync.WithClock(fixedClock)}, opts...)
	s, err := orgsync.New(f.source, f.lms, f.reporting, opts...)
	require.NoError(t, err)
	return s
}

func TestSync(t *testing.T) {
	f := newFixture(t)

	summary, err := f.syncer(t).Sync(context.Background())
	require.NoError(t, err)
	require.NotNil(t, summary)

	assert.True(t, summary.IsSuccess(), summary.Failures)
	assert.NotEmpty(t, summary.RunID)
	assert.Equal(t, 7, summary.HRUsers)
	assert.Equal(t, []string{"100-Sales", "100-Support"}, summary.Departments.Created)
	require.NotNil(t, summary.Users)
	assert.Equal(t, 7, summary.Users.Created)
	assert.Equal(t, 2, summary.ValuesRecorded())
	assert.Equal(t, "succeeded", summary.Status())

	// Every created user is placed in the unit of their department.
	units := map[string]int{}
	for _, u := range f.lms.units {
		units[u.Code] = u.ID
	}
	for _, u := range f.lms.users {
		want := units["100-Sales"]
		if u.EmployeeID[0] == 'P' {
			want = units["100-Support"]
		}
		assert.Equal(t, lms.IDList{want}, u.DepartmentIDs, u.EmployeeID)
	}

	codes := make([]string, 0, len(f.reporting.indices))
	for _, i := range f.reporting.indices {
		codes = append(codes, i.Code)
	}
	assert.Equal(t, []string{"COURSE00042", "COURSE00042-100"}, codes)
	assert.Equal(t, []float64{80.0}, f.reporting.valuesOf("COURSE00042-100-Sales"))
	assert.Equal(t, []float64{100.0}, f.reporting.valuesOf("COURSE00042-100-Support"))
	assert.Equal(t, "2026-03-04T05:06:07", f.reporting.values[0].Date)

	support := f.reporting.measurement("COURSE00042-100-Support")
	require.NotNil(t, support)
	require.NotNil(t, support.DepartmentID)
	assert.Equal(t, 7, *support.DepartmentID)
	assert.Nil(t, f.reporting.measurement("COURSE00042-100-Sales").DepartmentID)
}

func TestSyncIsIdempotent(t *testing.T) {
	f := newFixture(t)

	_, err := f.syncer(t).Sync(context.Background())
	require.NoError(t, err)
	lmsWrites := f.lms.writes

	summary, err := f.syncer(t).Sync(context.Background())
	require.NoError(t, err)
	assert.True(t, summary.IsSuccess(), summary.Failures)

	// Nothing changes in the LMS the second time.
	assert.Equal(t, lmsWrites, f.lms.writes)
	assert.Empty(t, summary.Departments.Created)
	assert.Equal(t, 7, summary.Users.Unchanged)

	// Only one new value per measurement is appended.
	require.Len(t, summary.Courses, 1)
	assert.Equal(t, hierarchy.Stats{ValuesAppended: 2}, summary.Courses[0].Stats)
	assert.Len(t, f.reporting.indices, 2)
	assert.Len(t, f.reporting.measurements, 2)
	assert.Len(t, f.reporting.values, 4)
	assert.Equal(t, []float64{80.0, 80.0}, f.reporting.valuesOf("COURSE00042-100-Sales"))
}

func TestSyncDryRun(t *testing.T) {
	f := newFixture(t)

	summary, err := f.syncer(t, orgsync.WithDryRun(true)).Sync(context.Background())
	require.NoError(t, err)

	assert.Zero(t, f.lms.writes)
	assert.Zero(t, f.reporting.writes)
	assert.True(t, summary.DryRun)
	assert.Equal(t, "dry_run", summary.Status())
	assert.Len(t, summary.Departments.Created, 2)
	assert.Equal(t, 7, summary.Users.Created)
	require.Len(t, summary.Courses, 1)
	assert.Len(t, summary.Courses[0].Values, 2)
	for _, v := range summary.Courses[0].Values {
		assert.True(t, v.DryRun)
	}
}

func TestSyncHooks(t *testing.T) {
	f := newFixture(t)
	s := f.syncer(t)

	var actions []reconciler.Outcome
	var values []hierarchy.ValueEvent
	var completed []*orgsync.Summary
	s.OnUserAction(func(o reconciler.Outcome) { actions = append(actions, o) })
	s.OnValueRecorded(func(e hierarchy.ValueEvent) { values = append(values, e) })
	s.OnRunCompleted(func(summary *orgsync.Summary) { completed = append(completed, summary) })

	summary, err := s.Sync(context.Background())
	require.NoError(t, err)

	assert.Len(t, actions, 7)
	for _, a := range actions {
		assert.Equal(t, reconciler.ActionCreate, a.Action)
	}
	require.Len(t, values, 2)
	assert.Equal(t, "COURSE00042-100-Sales", values[0].Code)
	assert.InDelta(t, 80.0, values[0].Metric.Value, 0.001)
	require.Len(t, completed, 1)
	assert.Same(t, summary, completed[0])
	assert.False(t, summary.EndTime.IsZero())
}

func TestSyncFatalErrors(t *testing.T) {
	t.Run("hr", func(t *testing.T) {
		f := newFixture(t)
		f.source.err = stderrors.New("connection refused")

		summary, err := f.syncer(t).Sync(context.Background())
		require.Error(t, err)

		var syncErr *errors.SyncError
		require.ErrorAs(t, err, &syncErr)
		assert.Equal(t, orgsync.PhaseHR, syncErr.Phase)
		require.NotNil(t, summary)
		assert.False(t, summary.IsSuccess())
		assert.Zero(t, f.lms.writes)
	})

	t.Run("snapshot", func(t *testing.T) {
		f := newFixture(t)
		f.lms.listErr = errors.NewAPIError("lms", 401, "invalid token")

		var completed int
		s := f.syncer(t)
		s.OnRunCompleted(func(*orgsync.Summary) { completed++ })

		summary, err := s.Sync(context.Background())
		require.Error(t, err)

		var syncErr *errors.SyncError
		require.ErrorAs(t, err, &syncErr)
		assert.Equal(t, orgsync.PhaseSnapshot, syncErr.Phase)
		assert.True(t, errors.IsAuthError(err))
		assert.Len(t, summary.Failures, 1)
		assert.Equal(t, 1, completed)
		assert.Zero(t, f.lms.writes)
		assert.Zero(t, f.reporting.writes)
	})
}

func TestSyncIsolatesCourseFailures(t *testing.T) {
	f := newFixture(t)
	f.lms.courses = append(f.lms.courses, lms.Course{ID: 7, Name: "Broken"})
	f.lms.participantErr = map[int]error{7: errors.NewAPIError("lms", 500, "boom")}

	summary, err := f.syncer(t).Sync(context.Background())
	require.NoError(t, err)

	require.Len(t, summary.Failures, 1)
	assert.Equal(t, orgsync.PhaseCourses, summary.Failures[0].Phase)
	assert.Equal(t, "COURSE00007", summary.Failures[0].Entity)
	assert.Equal(t, orgsync.KindUnavailable, summary.Failures[0].Kind)
	assert.True(t, summary.Failures[0].Retryable)
	assert.Equal(t, 2, summary.ValuesRecorded())
	assert.Equal(t, "completed_with_failures", summary.Status())
}

func TestSyncCourseSelection(t *testing.T) {
	f := newFixture(t)

	summary, err := f.syncer(t, orgsync.WithCourses("course00099")).Sync(context.Background())
	require.NoError(t, err)

	assert.Empty(t, summary.Courses)
	assert.Empty(t, f.reporting.values)
	assert.Contains(t, summary.Warnings, "course COURSE00099 not found in the LMS")

	summary, err = f.syncer(t, orgsync.WithCourses("42")).Sync(context.Background())
	require.NoError(t, err)
	assert.Len(t, summary.Courses, 1)
	assert.NotContains(t, summary.Warnings, "course 42 not found in the LMS")
}

func TestSyncSkipsUnmatchedParticipants(t *testing.T) {
	f := newFixture(t)
	f.lms.participants[42] = append(f.lms.participants[42],
		lms.Participant{EmployeeID: "X9", Status: "completed"},
	)
	f.source.users[6].Active = false // P2

	summary, err := f.syncer(t).Sync(context.Background())
	require.NoError(t, err)

	assert.Contains(t, summary.Warnings, "COURSE00042: 2 participants not matched to an active HR user with a department")
	assert.Equal(t, []float64{100.0}, f.reporting.valuesOf("COURSE00042-100-Support"))
}

func TestSyncKeepsRejectedHRUsers(t *testing.T) {
	f := newFixture(t)
	_, err := f.syncer(t).Sync(context.Background())
	require.NoError(t, err)

	// S5 is still in HR but its row no longer validates.
	f.source.users = append(f.source.users[:4:4], f.source.users[5:]...)
	f.source.rejected = []org.Rejected{{
		Row:        5,
		EmployeeID: "S5",
		Err:        errors.NewValidationError("email", "s5@@example.com", "no angle-addr"),
	}}

	summary, err := f.syncer(t).Sync(context.Background())
	require.NoError(t, err)

	assert.Zero(t, summary.Users.Disabled)
	for _, u := range f.lms.users {
		if u.EmployeeID == "S5" {
			assert.True(t, u.IsActive(), "S5 must stay active")
		}
	}
	assert.Contains(t, summary.Warnings, "employee S5 kept active: HR record rejected")

	require.Len(t, summary.Failures, 1)
	failure := summary.Failures[0]
	assert.Equal(t, orgsync.PhaseHR, failure.Phase)
	assert.Equal(t, "S5", failure.Entity)
	assert.Equal(t, orgsync.KindValidation, failure.Kind)
	assert.False(t, failure.Retryable)
	assert.Equal(t, "completed_with_failures", summary.Status())
}

func TestSyncRunLog(t *testing.T) {
	f := newFixture(t)

	db, err := hrdb.Open(hrdb.Config{Driver: hrdb.DriverSQLite, DSN: filepath.Join(t.TempDir(), "hr.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	runLog := hrdb.NewRunLog(db, "sync_runs")
	require.NoError(t, runLog.Migrate(context.Background()))

	summary, err := f.syncer(t, orgsync.WithRunLog(runLog)).Sync(context.Background())
	require.NoError(t, err)

	rows, err := db.Select(context.Background(), "sync_runs", "run_id", "status", "users_created", "values_recorded")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, summary.RunID, rows[0]["run_id"])
	assert.Equal(t, "succeeded", rows[0]["status"])
	assert.EqualValues(t, 7, rows[0]["users_created"])
	assert.EqualValues(t, 2, rows[0]["values_recorded"])
}

func TestNewValidation(t *testing.T) {
	f := newFixture(t)

	_, err := orgsync.New(nil, f.lms, f.reporting)
	assert.True(t, errors.IsValidationError(err))

	_, err = orgsync.New(f.source, nil, f.reporting)
	assert.True(t, errors.IsValidationError(err))

	_, err = orgsync.New(f.source, f.lms, nil)
	assert.True(t, errors.IsValidationError(err))

	_, err = orgsync.New(f.source, f.lms, f.reporting, orgsync.WithTimeout(-time.Second))
	assert.Error(t, err)

	_, err = orgsync.New(f.source, f.lms, f.reporting, orgsync.WithRunLog(nil))
	assert.Error(t, err)
}

func TestParseSchedule(t *testing.T) {
	_, err := orgsync.ParseSchedule("0 2 * * *")
	assert.NoError(t, err)

	_, err = orgsync.ParseSchedule("@every 1h")
	assert.NoError(t, err)

	_, err = orgsync.ParseSchedule("not a schedule")
	require.Error(t, err)
	var cfgErr *errors.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestScheduleStopsWithContext(t *testing.T) {
	f := newFixture(t)
	s := f.syncer(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Schedule(ctx, "@every 1h") }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.Zero(t, f.lms.writes)
}
