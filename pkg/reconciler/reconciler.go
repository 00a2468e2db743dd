// Package reconciler decides and applies the create, update, enable and
// disable operations that make the LMS user directory match HR.
package reconciler

import (
	"context"
	"strings"

	"github.com/agentstation/orgsync/internal/sources/lms"
	"github.com/agentstation/orgsync/pkg/departments"
	"github.com/agentstation/orgsync/pkg/errors"
	"github.com/agentstation/orgsync/pkg/logging"
	"github.com/agentstation/orgsync/pkg/org"
)

// Directory is the LMS user directory.
type Directory interface {
	CreateUser(ctx context.Context, req lms.CreateUserRequest) (*lms.User, error)
	UpdateUser(ctx context.Context, employeeID string, req lms.UpdateUserRequest) (*lms.User, error)
	EnableUser(ctx context.Context, email string) error
	DisableUser(ctx context.Context, email string) error
}

// Reconciler applies user decisions against a directory.
type Reconciler struct {
	directory Directory
	options   *options
}

// New creates a new Reconciler with options.
func New(directory Directory, opts ...Option) (*Reconciler, error) {
	options, err := newOptions(opts...)
	if err != nil {
		return nil, err
	}
	if directory == nil && !options.dryRun {
		return nil, &errors.ValidationError{Field: "directory", Message: "cannot be nil"}
	}
	return &Reconciler{directory: directory, options: options}, nil
}

// snapshot indexes the remote users of one run.
type snapshot struct {
	users      []lms.User
	byEmail    map[string]int
	byEmployee map[string]int
	matched    map[int]bool
}

func newSnapshot(users []lms.User) *snapshot {
	s := &snapshot{
		users:      users,
		byEmail:    make(map[string]int, len(users)),
		byEmployee: make(map[string]int, len(users)),
		matched:    make(map[int]bool),
	}
	for i, u := range users {
		if email := normalizeEmail(u.Email); email != "" {
			if _, exists := s.byEmail[email]; !exists {
				s.byEmail[email] = i
			}
		}
		if id := strings.TrimSpace(u.EmployeeID); id != "" {
			if _, exists := s.byEmployee[id]; !exists {
				s.byEmployee[id] = i
			}
		}
	}
	return s
}

// match finds the remote record of user by email, falling back to
// employee id so a changed address is still recognized.
func (s *snapshot) match(user *org.User) (int, bool) {
	if i, ok := s.byEmail[normalizeEmail(user.Email)]; ok {
		return i, true
	}
	if i, ok := s.byEmployee[user.EmployeeID]; ok {
		return i, true
	}
	return 0, false
}

func (s *snapshot) managerID(user *org.User) int {
	if user.ManagerID == "" {
		return 0
	}
	if i, ok := s.byEmployee[user.ManagerID]; ok {
		return s.users[i].ID
	}
	return 0
}

func (s *snapshot) add(u lms.User) {
	s.users = append(s.users, u)
	i := len(s.users) - 1
	s.matched[i] = true
	if id := strings.TrimSpace(u.EmployeeID); id != "" {
		if _, exists := s.byEmployee[id]; !exists {
			s.byEmployee[id] = i
		}
	}
}

// Reconcile makes the directory match users. remote is the directory
// snapshot fetched at the start of the run and index the resolved
// department units. Failures are isolated per user and collected in the
// result; the returned error is only set when ctx is canceled.
func (r *Reconciler) Reconcile(ctx context.Context, users []*org.User, remote []lms.User, index *departments.Index) (*Result, error) {
	logger := logging.FromContext(ctx)
	result := NewResult(r.options.dryRun)
	defer result.Finalize()

	snap := newSnapshot(remote)
	seen := make(map[string]bool, len(users))

	logger.Info().
		Int("hr_users", len(users)).
		Int("remote_users", len(remote)).
		Bool("dry_run", r.options.dryRun).
		Msg("Reconciling users")

	for _, user := range users {
		if err := ctx.Err(); err != nil {
			return result, errors.WrapResource("reconcile", "users", "", err)
		}
		if user == nil {
			continue
		}
		if seen[user.EmployeeID] {
			result.Warnings = append(result.Warnings, "duplicate HR record for employee "+user.EmployeeID+" ignored")
			continue
		}
		seen[user.EmployeeID] = true

		var remoteUser *lms.User
		if i, ok := snap.match(user); ok && !snap.matched[i] {
			snap.matched[i] = true
			remoteUser = &snap.users[i]
		}

		r.reconcileUser(logging.WithEmployee(ctx, user.EmployeeID), user, remoteUser, snap, index, result)
	}

	if r.options.disableOrphans {
		for i := range snap.users {
			if err := ctx.Err(); err != nil {
				return result, errors.WrapResource("reconcile", "users", "", err)
			}
			remoteUser := snap.users[i]
			id := strings.TrimSpace(remoteUser.EmployeeID)
			if snap.matched[i] || id == "" || seen[id] || !remoteUser.IsActive() {
				continue
			}
			if r.options.retained[id] {
				logging.FromContext(ctx).Warn().Str("employee_id", id).Msg("Keeping user whose HR record was rejected")
				result.Warnings = append(result.Warnings, "employee "+id+" kept active: HR record rejected")
				continue
			}
			r.disableOrphan(logging.WithEmployee(ctx, id), remoteUser, result)
		}
	}

	logger.Info().
		Int("created", result.Created).
		Int("updated", result.Updated).
		Int("enabled", result.Enabled).
		Int("disabled", result.Disabled).
		Int("failed", len(result.Failures)).
		Msg("Reconciled users")

	return result, nil
}

func (r *Reconciler) reconcileUser(ctx context.Context, user *org.User, remote *lms.User, snap *snapshot, index *departments.Index, result *Result) {
	logger := logging.FromContext(ctx)

	want := Desired{User: user, DepartmentID: departments.NotFound, ManagerID: snap.managerID(user)}
	if user.Active && user.Department != "" {
		want.DepartmentID = departments.Resolve(user, index)
		if !want.DepartmentID.Found() {
			err := errors.NewNotFoundError("department", user.DepartmentKey())
			logger.Error().Err(err).Msg("Skipping user with unresolved department")
			result.fail(user.EmployeeID, user.Email, ActionNone, err)
			return
		}
	}

	decision := Decide(want, remote)
	outcome := Outcome{
		EmployeeID: user.EmployeeID,
		Email:      user.Email,
		Action:     decision.Action,
		Fields:     decision.Fields,
		DryRun:     r.options.dryRun,
	}

	if decision.Action == ActionNone {
		result.count(ActionNone)
		return
	}

	if !r.options.dryRun {
		if err := r.apply(ctx, want, remote, decision, snap); err != nil {
			logger.Error().Err(err).Str("action", decision.Action.String()).Msg("Reconciling user failed")
			result.fail(user.EmployeeID, user.Email, decision.Action, err)
			return
		}
	}

	logger.Info().
		Str("action", decision.Action.String()).
		Strs("fields", decision.Fields).
		Bool("dry_run", r.options.dryRun).
		Msg("Reconciled user")
	r.record(ctx, result, outcome)
}

func (r *Reconciler) apply(ctx context.Context, want Desired, remote *lms.User, decision Decision, snap *snapshot) error {
	user := want.User
	switch decision.Action {
	case ActionCreate:
		created, err := r.directory.CreateUser(ctx, CreateRequest(want))
		if err != nil {
			return err
		}
		if created.EmployeeID == "" {
			created.EmployeeID = user.EmployeeID
		}
		snap.add(*created)
		return nil

	case ActionDisable:
		return r.directory.DisableUser(ctx, remoteEmail(remote, user))

	case ActionEnable:
		// Enable by the address the LMS knows; an update may change it.
		if err := r.directory.EnableUser(ctx, remoteEmail(remote, user)); err != nil {
			return err
		}
		if !decision.Drifted {
			return nil
		}
		fallthrough

	case ActionUpdate:
		_, err := r.directory.UpdateUser(ctx, remoteEmployeeID(remote, user), UpdateRequest(want))
		return err
	}
	return nil
}

func (r *Reconciler) disableOrphan(ctx context.Context, remote lms.User, result *Result) {
	outcome := Outcome{
		EmployeeID: remote.EmployeeID,
		Email:      remote.Email,
		Action:     ActionDisable,
		Orphan:     true,
		DryRun:     r.options.dryRun,
	}
	if !r.options.dryRun {
		if err := r.directory.DisableUser(ctx, remote.Email); err != nil {
			logging.FromContext(ctx).Error().Err(err).Msg("Disabling user missing from HR failed")
			result.fail(remote.EmployeeID, remote.Email, ActionDisable, err)
			return
		}
	}
	logging.FromContext(ctx).Info().Bool("dry_run", r.options.dryRun).Msg("Disabled user missing from HR")
	r.record(ctx, result, outcome)
}

func (r *Reconciler) record(ctx context.Context, result *Result, outcome Outcome) {
	result.count(outcome.Action)
	result.Outcomes = append(result.Outcomes, outcome)
	for _, observe := range r.options.observers {
		observe(ctx, outcome)
	}
}

func remoteEmail(remote *lms.User, user *org.User) string {
	if remote != nil && strings.TrimSpace(remote.Email) != "" {
		return strings.TrimSpace(remote.Email)
	}
	return user.Email
}

func remoteEmployeeID(remote *lms.User, user *org.User) string {
	if remote != nil && strings.TrimSpace(remote.EmployeeID) != "" {
		return strings.TrimSpace(remote.EmployeeID)
	}
	return user.EmployeeID
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
