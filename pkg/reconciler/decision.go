package reconciler

import (
	"slices"
	"strings"

	"github.com/agentstation/orgsync/internal/sources/lms"
	"github.com/agentstation/orgsync/pkg/departments"
	"github.com/agentstation/orgsync/pkg/org"
)

// Action is the operation a decision applies to a remote user.
type Action string

// Actions.
const (
	ActionNone    Action = "none"
	ActionCreate  Action = "create"
	ActionUpdate  Action = "update"
	ActionEnable  Action = "enable"
	ActionDisable Action = "disable"
)

// String returns the action name.
func (a Action) String() string {
	return string(a)
}

// Desired is the remote state an HR user should have.
type Desired struct {
	User *org.User

	// DepartmentID is the user's resolved unit. NotFound means the user
	// has no department and the remote department is left alone.
	DepartmentID departments.ID

	// ManagerID is the LMS id of the user's manager, or 0 when unknown.
	ManagerID int
}

// Decision is the outcome of comparing a desired state with the remote
// directory.
type Decision struct {
	Action Action

	// Drifted is set when modeled fields differ. An Enable decision with
	// Drifted also needs an update.
	Drifted bool

	// Fields names the drifted fields.
	Fields []string
}

// NeedsUpdate reports whether the decision includes a field update.
func (d Decision) NeedsUpdate() bool {
	return d.Action == ActionUpdate || (d.Action == ActionEnable && d.Drifted)
}

// Decide applies the user state machine:
//
//	unseen, source active             -> create
//	seen active, drifted              -> update
//	seen active, matched              -> none
//	seen inactive, source active      -> enable (plus update when drifted)
//	source inactive, remote active    -> disable
//	source inactive, remote inactive  -> none
//	unseen, source inactive           -> none
func Decide(want Desired, remote *lms.User) Decision {
	user := want.User
	if remote == nil {
		if user.Active {
			return Decision{Action: ActionCreate}
		}
		return Decision{Action: ActionNone}
	}

	if !user.Active {
		if remote.IsActive() {
			return Decision{Action: ActionDisable}
		}
		return Decision{Action: ActionNone}
	}

	fields := Drift(want, remote)
	drifted := len(fields) > 0

	if !remote.IsActive() {
		return Decision{Action: ActionEnable, Drifted: drifted, Fields: fields}
	}
	if drifted {
		return Decision{Action: ActionUpdate, Drifted: true, Fields: fields}
	}
	return Decision{Action: ActionNone}
}

// Drift lists the modeled fields whose remote value differs from want.
// Email and username compare case-insensitively.
func Drift(want Desired, remote *lms.User) []string {
	user := want.User
	var fields []string

	if strings.TrimSpace(remote.FirstName) != user.FirstName() {
		fields = append(fields, "first_name")
	}
	if strings.TrimSpace(remote.LastName) != user.LastName() {
		fields = append(fields, "last_name")
	}
	if !strings.EqualFold(strings.TrimSpace(remote.Username), user.Username) {
		fields = append(fields, "username")
	}
	if strings.TrimSpace(remote.Title) != user.Title {
		fields = append(fields, "title")
	}
	if !strings.EqualFold(strings.TrimSpace(remote.Email), user.Email) {
		fields = append(fields, "email")
	}
	if want.DepartmentID.Found() && !slices.Equal([]int(remote.DepartmentIDs), []int{int(want.DepartmentID)}) {
		fields = append(fields, "department_id")
	}
	if want.ManagerID > 0 && !slices.Equal([]int(remote.DirectManagerIDs), []int{want.ManagerID}) {
		fields = append(fields, "direct_manager_ids")
	}
	return fields
}

// UpdateRequest builds the PATCH body for want.
func UpdateRequest(want Desired) lms.UpdateUserRequest {
	user := want.User
	req := lms.UpdateUserRequest{
		FirstName: user.FirstName(),
		LastName:  user.LastName(),
		Username:  user.Username,
		Title:     user.Title,
		Email:     user.Email,
	}
	if want.DepartmentID.Found() {
		req.DepartmentID = lms.IDList{int(want.DepartmentID)}.Strings()
	}
	if want.ManagerID > 0 {
		req.DirectManagerIDs = lms.IDList{want.ManagerID}.Strings()
	}
	return req
}

// CreateRequest builds the POST body for want.
func CreateRequest(want Desired) lms.CreateUserRequest {
	user := want.User
	req := lms.CreateUserRequest{
		FirstName:  user.FirstName(),
		LastName:   user.LastName(),
		EmployeeID: user.EmployeeID,
		Email:      user.Email,
		Username:   user.Username,
		Title:      user.Title,
		Activate:   lms.ActivateInstant,
	}
	if want.DepartmentID.Found() {
		req.DepartmentID = lms.IDList{int(want.DepartmentID)}.Strings()
	}
	return req
}
