package reconciler_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/orgsync/internal/sources/lms"
	"github.com/agentstation/orgsync/pkg/departments"
	"github.com/agentstation/orgsync/pkg/errors"
	"github.com/agentstation/orgsync/pkg/org"
	"github.com/agentstation/orgsync/pkg/reconciler"
)

type call struct {
	op  string
	key string
	req any
}

type fakeDirectory struct {
	calls  []call
	nextID int
	fail   map[string]error // keyed by op+":"+key
}

func (f *fakeDirectory) err(op, key string) error {
	return f.fail[op+":"+key]
}

func (f *fakeDirectory) CreateUser(_ context.Context, req lms.CreateUserRequest) (*lms.User, error) {
	f.calls = append(f.calls, call{"create", req.EmployeeID, req})
	if err := f.err("create", req.EmployeeID); err != nil {
		return nil, err
	}
	f.nextID++
	return &lms.User{ID: f.nextID, Email: req.Email}, nil
}

func (f *fakeDirectory) UpdateUser(_ context.Context, employeeID string, req lms.UpdateUserRequest) (*lms.User, error) {
	f.calls = append(f.calls, call{"update", employeeID, req})
	if err := f.err("update", employeeID); err != nil {
		return nil, err
	}
	return &lms.User{EmployeeID: employeeID}, nil
}

func (f *fakeDirectory) EnableUser(_ context.Context, email string) error {
	f.calls = append(f.calls, call{"enable", email, nil})
	return f.err("enable", email)
}

func (f *fakeDirectory) DisableUser(_ context.Context, email string) error {
	f.calls = append(f.calls, call{"disable", email, nil})
	return f.err("disable", email)
}

func (f *fakeDirectory) ops() []string {
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.op + ":" + c.key
	}
	return out
}

func boolPtr(b bool) *bool { return &b }

func hrUser(t *testing.T, id, name, email string, active bool) *org.User {
	t.Helper()
	u, err := org.NewUser(org.User{
		EmployeeID: id,
		FullName:   name,
		Email:      email,
		Title:      "Clerk",
		Mfld:       "100",
		Division:   "Retail",
		Department: "Sales",
		Active:     active,
	})
	require.NoError(t, err)
	return u
}

func remoteUser(id int, employeeID, first, last, email string, active bool) lms.User {
	return lms.User{
		ID:            id,
		EmployeeID:    employeeID,
		FirstName:     first,
		LastName:      last,
		Email:         email,
		Username:      email,
		Title:         "Clerk",
		DepartmentIDs: lms.IDList{12},
		Active:        boolPtr(active),
	}
}

func testIndex() *departments.Index {
	return departments.NewIndex([]lms.Unit{
		{ID: 10, Name: "Retail", Code: "DIV-Retail"},
		{ID: 12, Name: "Sales", Code: "100-Sales"},
	})
}

func TestDecide(t *testing.T) {
	active := hrUser(t, "1", "Anna Jensen", "anna@example.com", true)
	inactive := hrUser(t, "1", "Anna Jensen", "anna@example.com", false)
	matched := remoteUser(5, "1", "Anna", "Jensen", "anna@example.com", true)
	drifted := remoteUser(5, "1", "Anna", "Hansen", "anna@example.com", true)
	disabled := remoteUser(5, "1", "Anna", "Jensen", "anna@example.com", false)
	disabledDrifted := remoteUser(5, "1", "Anna", "Hansen", "anna@example.com", false)

	tests := []struct {
		name    string
		user    *org.User
		remote  *lms.User
		action  reconciler.Action
		drifted bool
		fields  []string
	}{
		{"unseen active creates", active, nil, reconciler.ActionCreate, false, nil},
		{"unseen inactive is ignored", inactive, nil, reconciler.ActionNone, false, nil},
		{"active drifted updates", active, &drifted, reconciler.ActionUpdate, true, []string{"last_name"}},
		{"active matched is a no-op", active, &matched, reconciler.ActionNone, false, nil},
		{"inactive remote is enabled", active, &disabled, reconciler.ActionEnable, false, nil},
		{"inactive drifted remote is enabled and updated", active, &disabledDrifted, reconciler.ActionEnable, true, []string{"last_name"}},
		{"source inactive disables", inactive, &matched, reconciler.ActionDisable, false, nil},
		{"both inactive is a no-op", inactive, &disabled, reconciler.ActionNone, false, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := reconciler.Decide(reconciler.Desired{User: tt.user, DepartmentID: 12}, tt.remote)
			assert.Equal(t, tt.action, d.Action)
			assert.Equal(t, tt.drifted, d.Drifted)
			assert.Equal(t, tt.fields, d.Fields)
		})
	}
}

func TestDrift(t *testing.T) {
	user := hrUser(t, "1", "Anna Maria Jensen", "Anna@Example.com", true)
	remote := remoteUser(5, "1", "Anna Maria", "Jensen", "anna@example.com", true)
	remote.DirectManagerIDs = lms.IDList{7}

	assert.Empty(t, reconciler.Drift(reconciler.Desired{User: user, DepartmentID: 12, ManagerID: 7}, &remote),
		"email and username compare case-insensitively")

	fields := reconciler.Drift(reconciler.Desired{User: user, DepartmentID: 14, ManagerID: 8}, &remote)
	assert.Equal(t, []string{"department_id", "direct_manager_ids"}, fields)

	assert.Empty(t, reconciler.Drift(reconciler.Desired{User: user, DepartmentID: departments.NotFound}, &remote),
		"unknown department and manager are not drift")
}

func TestUpdateRequest(t *testing.T) {
	user := hrUser(t, "1", "Anna Maria Jensen", "anna@example.com", true)
	req := reconciler.UpdateRequest(reconciler.Desired{User: user, DepartmentID: 12, ManagerID: 7})

	assert.Equal(t, "Anna Maria", req.FirstName)
	assert.Equal(t, "Jensen", req.LastName)
	assert.Equal(t, []string{"12"}, req.DepartmentID)
	assert.Equal(t, []string{"7"}, req.DirectManagerIDs)

	bare := reconciler.UpdateRequest(reconciler.Desired{User: user, DepartmentID: departments.NotFound})
	assert.Nil(t, bare.DepartmentID)
	assert.Nil(t, bare.DirectManagerIDs)
}

func TestReconcile(t *testing.T) {
	users := []*org.User{
		hrUser(t, "1", "Anna Jensen", "anna@example.com", true),   // unchanged
		hrUser(t, "2", "Bo Nielsen", "bo@example.com", true),      // new
		hrUser(t, "3", "Carl Berg", "carl.new@example.com", true), // email changed, matched by employee id
		hrUser(t, "4", "Dina Holm", "dina@example.com", true),     // disabled remotely
		hrUser(t, "5", "Erik Lund", "erik@example.com", false),    // left the company
	}
	remote := []lms.User{
		remoteUser(101, "1", "Anna", "Jensen", "anna@example.com", true),
		remoteUser(103, "3", "Carl", "Berg", "carl@example.com", true),
		remoteUser(104, "4", "Dina", "Holm", "dina@example.com", false),
		remoteUser(105, "5", "Erik", "Lund", "erik@example.com", true),
		remoteUser(106, "6", "Finn", "Dahl", "finn@example.com", true),     // not in HR
		remoteUser(107, "", "Service", "Account", "svc@example.com", true), // no employee id
		remoteUser(108, "8", "Gry", "Moe", "gry@example.com", false),       // not in HR, already disabled
	}

	dir := &fakeDirectory{nextID: 200}
	var observed []reconciler.Outcome
	r, err := reconciler.New(dir, reconciler.WithObserver(func(_ context.Context, o reconciler.Outcome) {
		observed = append(observed, o)
	}))
	require.NoError(t, err)

	result, err := r.Reconcile(context.Background(), users, remote, testIndex())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"create:2",
		"update:3",
		"enable:dina@example.com",
		"disable:erik@example.com",
		"disable:finn@example.com",
	}, dir.ops())

	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 1, result.Enabled)
	assert.Equal(t, 2, result.Disabled)
	assert.Equal(t, 1, result.Unchanged)
	assert.True(t, result.IsSuccess())
	assert.Len(t, observed, 5)
	assert.True(t, observed[4].Orphan)

	create := dir.calls[0].req.(lms.CreateUserRequest)
	assert.Equal(t, []string{"12"}, create.DepartmentID)
	assert.Equal(t, lms.ActivateInstant, create.Activate)

	update := dir.calls[1].req.(lms.UpdateUserRequest)
	assert.Equal(t, "carl.new@example.com", update.Email)
}

func TestReconcileEnableWithDrift(t *testing.T) {
	users := []*org.User{hrUser(t, "4", "Dina Holm-Berg", "dina.hb@example.com", true)}
	remote := []lms.User{remoteUser(104, "4", "Dina", "Holm", "dina@example.com", false)}

	dir := &fakeDirectory{}
	r, err := reconciler.New(dir)
	require.NoError(t, err)

	result, err := r.Reconcile(context.Background(), users, remote, testIndex())
	require.NoError(t, err)

	assert.Equal(t, []string{"enable:dina@example.com", "update:4"}, dir.ops(),
		"enable uses the registered address before the update changes it")
	assert.Equal(t, 1, result.Enabled)
	assert.Equal(t, []string{"last_name", "username", "email"}, result.Outcomes[0].Fields)
}

func TestReconcileIsolatesFailures(t *testing.T) {
	users := []*org.User{
		hrUser(t, "1", "Anna Jensen", "anna@example.com", true),
		hrUser(t, "2", "Bo Nielsen", "bo@example.com", true),
	}
	dir := &fakeDirectory{fail: map[string]error{
		"create:1": errors.NewAPIError("lms", 422, "email already taken"),
	}}
	r, err := reconciler.New(dir)
	require.NoError(t, err)

	result, err := r.Reconcile(context.Background(), users, nil, testIndex())
	require.NoError(t, err)

	assert.Equal(t, []string{"create:1", "create:2"}, dir.ops())
	assert.Equal(t, 1, result.Created)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, "1", result.Failures[0].EmployeeID)
	assert.Equal(t, reconciler.ActionCreate, result.Failures[0].Action)
	assert.Contains(t, result.Summary(), "1 failures")
}

func TestReconcileSkipsUnresolvedDepartment(t *testing.T) {
	user := hrUser(t, "1", "Anna Jensen", "anna@example.com", true)
	user.Department = "Marketing"

	dir := &fakeDirectory{}
	r, err := reconciler.New(dir)
	require.NoError(t, err)

	result, err := r.Reconcile(context.Background(), []*org.User{user}, nil, testIndex())
	require.NoError(t, err)

	assert.Empty(t, dir.calls)
	require.Len(t, result.Failures, 1)
	assert.True(t, errors.IsNotFound(result.Failures[0].Err))
}

func TestReconcileDryRun(t *testing.T) {
	users := []*org.User{hrUser(t, "2", "Bo Nielsen", "bo@example.com", true)}
	remote := []lms.User{remoteUser(106, "6", "Finn", "Dahl", "finn@example.com", true)}

	r, err := reconciler.New(nil, reconciler.WithDryRun(true))
	require.NoError(t, err)

	result, err := r.Reconcile(context.Background(), users, remote, testIndex())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 1, result.Disabled)
	assert.True(t, result.Outcomes[0].DryRun)
	assert.Contains(t, result.Summary(), "Dry run")
}

func TestReconcileKeepsOrphansWhenDisabled(t *testing.T) {
	remote := []lms.User{remoteUser(106, "6", "Finn", "Dahl", "finn@example.com", true)}
	dir := &fakeDirectory{}
	r, err := reconciler.New(dir, reconciler.WithDisableOrphans(false))
	require.NoError(t, err)

	_, err = r.Reconcile(context.Background(), nil, remote, testIndex())
	require.NoError(t, err)
	assert.Empty(t, dir.calls)
}

func TestReconcileCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r, err := reconciler.New(&fakeDirectory{})
	require.NoError(t, err)

	_, err = r.Reconcile(ctx, []*org.User{hrUser(t, "1", "Anna Jensen", "anna@example.com", true)}, nil, testIndex())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewValidation(t *testing.T) {
	_, err := reconciler.New(nil)
	assert.True(t, errors.IsValidationError(err))

	_, err = reconciler.New(&fakeDirectory{}, reconciler.WithObserver(nil))
	assert.True(t, errors.IsValidationError(err))
}

func TestReconcileKeepsRetainedUsers(t *testing.T) {
	remote := []lms.User{
		remoteUser(142, "42", "Jon", "Doe", "jon.doe@example.com", true),
		remoteUser(106, "6", "Finn", "Dahl", "finn@example.com", true),
	}
	dir := &fakeDirectory{}
	r, err := reconciler.New(dir, reconciler.WithRetained("42", " "))
	require.NoError(t, err)

	result, err := r.Reconcile(context.Background(), []*org.User{}, remote, testIndex())
	require.NoError(t, err)

	assert.Equal(t, []string{"disable:finn@example.com"}, dir.ops())
	assert.Equal(t, 1, result.Disabled)
	assert.Contains(t, result.Warnings, "employee 42 kept active: HR record rejected")
}
