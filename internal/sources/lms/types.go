package lms

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Activation values for the activate field.
const (
	ActivateInstant    = "instant"
	ActivateDeactivate = "deactivate"
)

// IDList decodes an id field the LMS may send as a number, a numeric
// string, a list of either, or null.
type IDList []int

// UnmarshalJSON implements json.Unmarshaler.
func (l *IDList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*l = nil
		return nil
	}
	if data[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		out := make(IDList, 0, len(items))
		for _, item := range items {
			id, ok, err := decodeID(item)
			if err != nil {
				return err
			}
			if ok {
				out = append(out, id)
			}
		}
		*l = out
		return nil
	}
	id, ok, err := decodeID(data)
	if err != nil {
		return err
	}
	if ok {
		*l = IDList{id}
	} else {
		*l = nil
	}
	return nil
}

// Contains reports whether id is in the list.
func (l IDList) Contains(id int) bool {
	for _, v := range l {
		if v == id {
			return true
		}
	}
	return false
}

// Strings formats the ids the way the update endpoint expects them.
func (l IDList) Strings() []string {
	out := make([]string, len(l))
	for i, id := range l {
		out[i] = strconv.Itoa(id)
	}
	return out
}

func decodeID(data json.RawMessage) (int, bool, error) {
	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return 0, false, err
	}
	switch t := v.(type) {
	case nil:
		return 0, false, nil
	case json.Number:
		n = t
	case string:
		if strings.TrimSpace(t) == "" {
			return 0, false, nil
		}
		n = json.Number(strings.TrimSpace(t))
	default:
		return 0, false, fmt.Errorf("unsupported id value %s", data)
	}
	id, err := n.Int64()
	if err != nil {
		return 0, false, err
	}
	return int(id), true, nil
}

// User is a user record in the LMS directory.
type User struct {
	ID               int    `json:"id"`
	EmployeeID       string `json:"employee_id"`
	FirstName        string `json:"first_name"`
	LastName         string `json:"last_name"`
	Email            string `json:"email"`
	Username         string `json:"username"`
	Title            string `json:"title"`
	DepartmentIDs    IDList `json:"department_id"`
	DirectManagerIDs IDList `json:"direct_manager_ids"`
	Status           string `json:"status,omitempty"`
	Active           *bool  `json:"active,omitempty"`
}

// IsActive reports whether the user can sign in. An explicit active flag
// wins; otherwise any status other than a deactivated one counts as
// active.
func (u User) IsActive() bool {
	if u.Active != nil {
		return *u.Active
	}
	switch strings.ToLower(strings.TrimSpace(u.Status)) {
	case "deactivated", "deactivate", "inactive", "disabled":
		return false
	}
	return true
}

// CreateUserRequest is the body of POST v3/users.
type CreateUserRequest struct {
	FirstName      string   `json:"first_name"`
	LastName       string   `json:"last_name"`
	EmployeeID     string   `json:"employee_id"`
	Email          string   `json:"email"`
	Username       string   `json:"username"`
	Title          string   `json:"title"`
	DepartmentID   []string `json:"department_id,omitempty"`
	Activate       string   `json:"activate"`
	UserPermission string   `json:"user_permission"`
}

// UpdateUserRequest is the body of PATCH v3/users-employee_id/{id}. Only
// these fields are modeled; anything else on the remote record is left
// untouched.
type UpdateUserRequest struct {
	FirstName        string   `json:"first_name"`
	LastName         string   `json:"last_name"`
	Username         string   `json:"username"`
	Title            string   `json:"title"`
	Email            string   `json:"email"`
	DepartmentID     []string `json:"department_id,omitempty"`
	DirectManagerIDs []string `json:"direct_manager_ids,omitempty"`
	UserPermission   string   `json:"user_permission"`
}

// Unit is an organizational unit (department or division).
type Unit struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Code     string `json:"code"`
	ParentID *int   `json:"parent_id,omitempty"`
}

// CreateUnitRequest is the body of POST v3/units.
type CreateUnitRequest struct {
	Name     string `json:"name"`
	ParentID *int   `json:"parent_id,omitempty"`
	Code     string `json:"code"`
}

// Course is an LMS course.
type Course struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Participant is a user enrolled in a course.
type Participant struct {
	UserID      int     `json:"user_id"`
	EmployeeID  string  `json:"employee_id"`
	Email       string  `json:"email"`
	Status      string  `json:"status"`
	Progress    float64 `json:"progress"`
	CompletedAt string  `json:"completed_at,omitempty"`
}

// Finished reports whether the participant completed the course.
func (p Participant) Finished() bool {
	if strings.TrimSpace(p.CompletedAt) != "" {
		return true
	}
	switch strings.ToLower(strings.TrimSpace(p.Status)) {
	case "completed", "finished", "passed":
		return true
	}
	return p.Progress >= 100
}
