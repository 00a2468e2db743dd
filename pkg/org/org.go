// Package org defines the authoritative records read from the HR database
// and the keys derived from them that identify departments, companies and
// courses on the remote platforms.
package org

import (
	"fmt"
	"net/mail"
	"strings"

	"github.com/agentstation/orgsync/pkg/constants"
	"github.com/agentstation/orgsync/pkg/errors"
	"github.com/agentstation/orgsync/pkg/names"
)

// User is an employee as recorded by the HR database. HR is always the
// source of truth; remote records are made to match it.
type User struct {
	EmployeeID  string `json:"employee_id" yaml:"employee_id"`
	FullName    string `json:"full_name" yaml:"full_name"`
	Username    string `json:"username,omitempty" yaml:"username,omitempty"`
	Title       string `json:"title,omitempty" yaml:"title,omitempty"`
	Email       string `json:"email" yaml:"email"`
	Division    string `json:"division,omitempty" yaml:"division,omitempty"`
	Department  string `json:"department,omitempty" yaml:"department,omitempty"`
	ManagerID   string `json:"manager_id,omitempty" yaml:"manager_id,omitempty"`
	Mfld        string `json:"mfld,omitempty" yaml:"mfld,omitempty"`
	CompanyName string `json:"company,omitempty" yaml:"company,omitempty"`
	Active      bool   `json:"active" yaml:"active"`
}

// Rejected is an HR record that failed validation. The employee is still
// listed in HR, so the record is reported and never read as a removal.
type Rejected struct {
	Row        int    `json:"row" yaml:"row"`
	EmployeeID string `json:"employee_id,omitempty" yaml:"employee_id,omitempty"`
	Err        error  `json:"-" yaml:"-"`
}

// Entity names the record for failure reports.
func (r Rejected) Entity() string {
	if r.EmployeeID != "" {
		return r.EmployeeID
	}
	return fmt.Sprintf("row %d", r.Row)
}

// NewUser validates u and returns it with surrounding whitespace trimmed
// from every text field. Employee id, full name and a parseable email are
// required.
func NewUser(u User) (*User, error) {
	u.EmployeeID = strings.TrimSpace(u.EmployeeID)
	u.FullName = strings.TrimSpace(u.FullName)
	u.Username = strings.TrimSpace(u.Username)
	u.Title = strings.TrimSpace(u.Title)
	u.Email = strings.TrimSpace(u.Email)
	u.Division = strings.TrimSpace(u.Division)
	u.Department = strings.TrimSpace(u.Department)
	u.ManagerID = strings.TrimSpace(u.ManagerID)
	u.Mfld = strings.TrimSpace(u.Mfld)
	u.CompanyName = strings.TrimSpace(u.CompanyName)

	if u.EmployeeID == "" {
		return nil, errors.NewValidationError("employee_id", u.EmployeeID, "is required")
	}
	if u.FullName == "" {
		return nil, errors.NewValidationError("full_name", u.FullName, "is required")
	}
	if u.Email == "" {
		return nil, errors.NewValidationError("email", u.Email, "is required")
	}
	if _, err := mail.ParseAddress(u.Email); err != nil {
		return nil, errors.NewValidationError("email", u.Email, err.Error())
	}
	if u.Username == "" {
		u.Username = u.Email
	}

	return &u, nil
}

// FirstName returns everything but the last token of the full name.
func (u *User) FirstName() string {
	first, _ := names.SplitName(u.FullName)
	return first
}

// LastName returns the last token of the full name.
func (u *User) LastName() string {
	_, last := names.SplitName(u.FullName)
	return last
}

// DepartmentKey returns the LMS unit code of the user's department, or ""
// when the user has no department.
func (u *User) DepartmentKey() string {
	if u.Department == "" {
		return ""
	}
	return DepartmentKey(u.Mfld, u.Department)
}

// Company returns the company the user belongs to.
func (u *User) Company() Company {
	return Company{Mfld: u.Mfld, Name: u.CompanyName}
}

// String returns a short identifier for logs.
func (u *User) String() string {
	return fmt.Sprintf("%s <%s>", u.EmployeeID, u.Email)
}

// DepartmentKey composes the LMS unit code "{mfld}-{department}".
func DepartmentKey(mfld, department string) string {
	return strings.TrimSpace(mfld) + "-" + strings.TrimSpace(department)
}

// CourseKey formats an LMS course id as the course index code, e.g.
// CourseKey(42) == "COURSE00042".
func CourseKey(courseID int) string {
	return fmt.Sprintf(constants.CourseKeyFormat, courseID)
}

// Company groups participants by their mfld ledger code.
type Company struct {
	Mfld string `json:"mfld" yaml:"mfld"`
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
}

// DisplayName returns the company name, falling back to the mfld code.
func (c Company) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.Mfld
}

// Course is an LMS course as seen by the hierarchy builder.
type Course struct {
	ID    int    `json:"id" yaml:"id"`
	Title string `json:"title" yaml:"title"`
}

// Key returns the course index code.
func (c Course) Key() string {
	return CourseKey(c.ID)
}

// CompletionStats counts how many participants of a group were assigned a
// course and how many finished it.
type CompletionStats struct {
	Assigned int `json:"assigned" yaml:"assigned"`
	Finished int `json:"finished" yaml:"finished"`
}

// Add records one participant.
func (s *CompletionStats) Add(finished bool) {
	s.Assigned++
	if finished {
		s.Finished++
	}
}
