package reconciler

import (
	"fmt"
	"time"
)

// Outcome records one user action.
type Outcome struct {
	EmployeeID string   `json:"employee_id" yaml:"employee_id"`
	Email      string   `json:"email" yaml:"email"`
	Action     Action   `json:"action" yaml:"action"`
	Fields     []string `json:"fields,omitempty" yaml:"fields,omitempty"`
	Orphan     bool     `json:"orphan,omitempty" yaml:"orphan,omitempty"`
	DryRun     bool     `json:"dry_run,omitempty" yaml:"dry_run,omitempty"`
}

// Failure records a user that could not be reconciled.
type Failure struct {
	EmployeeID string `json:"employee_id" yaml:"employee_id"`
	Email      string `json:"email" yaml:"email"`
	Action     Action `json:"action" yaml:"action"`
	Err        error  `json:"-" yaml:"-"`
	Message    string `json:"error" yaml:"error"`
}

// Result represents the outcome of a reconciliation pass.
type Result struct {
	Created   int `json:"created" yaml:"created"`
	Updated   int `json:"updated" yaml:"updated"`
	Enabled   int `json:"enabled" yaml:"enabled"`
	Disabled  int `json:"disabled" yaml:"disabled"`
	Unchanged int `json:"unchanged" yaml:"unchanged"`

	Outcomes []Outcome `json:"outcomes,omitempty" yaml:"outcomes,omitempty"`
	Failures []Failure `json:"failures,omitempty" yaml:"failures,omitempty"`
	Warnings []string  `json:"warnings,omitempty" yaml:"warnings,omitempty"`

	// Metadata
	StartTime time.Time     `json:"start_time" yaml:"start_time"`
	EndTime   time.Time     `json:"end_time" yaml:"end_time"`
	Duration  time.Duration `json:"duration" yaml:"duration"`
	DryRun    bool          `json:"dry_run" yaml:"dry_run"`
}

// NewResult creates a new result with defaults.
func NewResult(dryRun bool) *Result {
	return &Result{
		StartTime: time.Now(),
		DryRun:    dryRun,
	}
}

// IsSuccess returns true if every user was reconciled.
func (r *Result) IsSuccess() bool {
	return len(r.Failures) == 0
}

// HasChanges returns true if any action was applied or planned.
func (r *Result) HasChanges() bool {
	return r.Created+r.Updated+r.Enabled+r.Disabled > 0
}

// Summary returns a human-readable summary of the result.
func (r *Result) Summary() string {
	counts := fmt.Sprintf("%d created, %d updated, %d enabled, %d disabled, %d unchanged",
		r.Created, r.Updated, r.Enabled, r.Disabled, r.Unchanged)

	if r.DryRun {
		return "Dry run: " + counts
	}
	if !r.IsSuccess() {
		return fmt.Sprintf("Users reconciled with %d failures: %s", len(r.Failures), counts)
	}
	return "Users reconciled: " + counts
}

// Finalize calculates duration and marks completion.
func (r *Result) Finalize() {
	r.EndTime = time.Now()
	r.Duration = r.EndTime.Sub(r.StartTime)
}

func (r *Result) count(action Action) {
	switch action {
	case ActionCreate:
		r.Created++
	case ActionUpdate:
		r.Updated++
	case ActionEnable:
		r.Enabled++
	case ActionDisable:
		r.Disabled++
	case ActionNone:
		r.Unchanged++
	}
}

func (r *Result) fail(employeeID, email string, action Action, err error) {
	r.Failures = append(r.Failures, Failure{
		EmployeeID: employeeID,
		Email:      email,
		Action:     action,
		Err:        err,
		Message:    err.Error(),
	})
}
