package orgsync

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/agentstation/orgsync/internal/hrdb"
	"github.com/agentstation/orgsync/pkg/errors"
	"github.com/agentstation/orgsync/pkg/hierarchy"
	"github.com/agentstation/orgsync/pkg/reconciler"
)

// Phases of a run.
const (
	PhaseHR          = "hr"
	PhaseSnapshot    = "snapshot"
	PhaseDepartments = "departments"
	PhaseUsers       = "users"
	PhaseCourses     = "courses"
)

// Failure kinds.
const (
	KindAuth           = "auth"
	KindRateLimited    = "rate_limited"
	KindUnavailable    = "unavailable"
	KindInvalidMetric  = "invalid_metric"
	KindParentNotFound = "parent_not_found"
	KindNotFound       = "not_found"
	KindValidation     = "validation"
)

// Failure records an entity that could not be synchronized. Retryable
// failures are expected to clear on a later run without any data change.
type Failure struct {
	Phase     string `json:"phase" yaml:"phase"`
	Entity    string `json:"entity" yaml:"entity"`
	Kind      string `json:"kind,omitempty" yaml:"kind,omitempty"`
	Retryable bool   `json:"retryable,omitempty" yaml:"retryable,omitempty"`
	Err       error  `json:"-" yaml:"-"`
	Message   string `json:"error" yaml:"error"`
}

// NewFailure classifies err for entity in phase.
func NewFailure(phase, entity string, err error) Failure {
	f := Failure{Phase: phase, Entity: entity, Err: err, Kind: failureKind(err)}
	if err != nil {
		f.Message = err.Error()
	}
	f.Retryable = f.Kind == KindRateLimited || f.Kind == KindUnavailable
	return f
}

// failureKind orders the checks so the most specific sentinel wins:
// a ParentNotFoundError is not also reported as a plain lookup miss.
func failureKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.IsAuthError(err):
		return KindAuth
	case errors.IsRateLimited(err):
		return KindRateLimited
	case errors.IsSystemUnavailable(err):
		return KindUnavailable
	case errors.IsInvalidMetric(err):
		return KindInvalidMetric
	case errors.IsParentNotFound(err):
		return KindParentNotFound
	case errors.IsNotFound(err):
		return KindNotFound
	case errors.IsValidationError(err):
		return KindValidation
	}
	return ""
}

// DepartmentSummary counts the department phase.
type DepartmentSummary struct {
	Resolved int      `json:"resolved" yaml:"resolved"`
	Created  []string `json:"created,omitempty" yaml:"created,omitempty"`
}

// Summary is the outcome of one run.
type Summary struct {
	RunID  string `json:"run_id" yaml:"run_id"`
	DryRun bool   `json:"dry_run" yaml:"dry_run"`

	HRUsers     int                      `json:"hr_users" yaml:"hr_users"`
	Departments DepartmentSummary        `json:"departments" yaml:"departments"`
	Users       *reconciler.Result       `json:"users,omitempty" yaml:"users,omitempty"`
	Courses     []*hierarchy.BuildResult `json:"courses,omitempty" yaml:"courses,omitempty"`

	Failures []Failure `json:"failures,omitempty" yaml:"failures,omitempty"`
	Warnings []string  `json:"warnings,omitempty" yaml:"warnings,omitempty"`

	// Metadata
	StartTime time.Time     `json:"start_time" yaml:"start_time"`
	EndTime   time.Time     `json:"end_time" yaml:"end_time"`
	Duration  time.Duration `json:"duration" yaml:"duration"`
}

// NewSummary creates an empty summary for a run.
func NewSummary(runID string, dryRun bool, start time.Time) *Summary {
	return &Summary{RunID: runID, DryRun: dryRun, StartTime: start}
}

// Finalize calculates duration and marks completion.
func (s *Summary) Finalize(end time.Time) {
	s.EndTime = end
	s.Duration = end.Sub(s.StartTime)
}

// IsSuccess returns true if nothing failed.
func (s *Summary) IsSuccess() bool {
	return len(s.Failures) == 0
}

// ValuesRecorded returns the number of measurement values written.
func (s *Summary) ValuesRecorded() int {
	total := 0
	for _, c := range s.Courses {
		total += c.ValuesAppended
	}
	return total
}

// Summary returns a human-readable summary of the run.
func (s *Summary) Summary() string {
	var b strings.Builder
	if s.DryRun {
		b.WriteString("Dry run ")
	} else {
		b.WriteString("Run ")
	}
	fmt.Fprintf(&b, "%s: %d HR users", s.RunID, s.HRUsers)
	if s.Users != nil {
		fmt.Fprintf(&b, "; users %d created, %d updated, %d enabled, %d disabled",
			s.Users.Created, s.Users.Updated, s.Users.Enabled, s.Users.Disabled)
	}
	fmt.Fprintf(&b, "; %d departments created; %d courses, %d values recorded",
		len(s.Departments.Created), len(s.Courses), s.ValuesRecorded())
	if !s.IsSuccess() {
		fmt.Fprintf(&b, "; %d failures", len(s.Failures))
	}
	return b.String()
}

// Status is the run outcome written to the run log.
func (s *Summary) Status() string {
	switch {
	case s.DryRun:
		return "dry_run"
	case s.IsSuccess():
		return "succeeded"
	default:
		return "completed_with_failures"
	}
}

// RunStats converts the summary to a run log record.
func (s *Summary) RunStats() hrdb.RunStats {
	stats := hrdb.RunStats{
		Status:     s.Status(),
		FinishedAt: s.EndTime,
		Values:     s.ValuesRecorded(),
		Failures:   len(s.Failures),
	}
	if s.Users != nil {
		stats.UsersCreated = s.Users.Created
		stats.UsersUpdated = s.Users.Updated
		stats.UsersEnabled = s.Users.Enabled
		stats.UsersDisabled = s.Users.Disabled
	}
	return stats
}

// Write renders the summary as text, json or yaml.
func (s *Summary) Write(w io.Writer, format string) error {
	switch strings.ToLower(format) {
	case "", "text", "table":
		_, err := fmt.Fprintln(w, s.Summary())
		if err != nil {
			return err
		}
		for _, f := range s.Failures {
			if _, err := fmt.Fprintf(w, "  FAIL %s %s: %s\n", f.Phase, f.Entity, f.Message); err != nil {
				return err
			}
		}
		for _, warning := range s.Warnings {
			if _, err := fmt.Fprintf(w, "  WARN %s\n", warning); err != nil {
				return err
			}
		}
		return nil
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	case "yaml", "yml":
		data, err := yaml.Marshal(s)
		if err != nil {
			return errors.WrapParse("yaml", "summary", err)
		}
		_, err = w.Write(data)
		return err
	}
	return &errors.ValidationError{Field: "format", Value: format, Message: "must be text, json or yaml"}
}

func (s *Summary) fail(phase, entity string, err error) {
	s.Failures = append(s.Failures, NewFailure(phase, entity, err))
}

// absorbUsers folds the reconciler result into the summary.
func (s *Summary) absorbUsers(result *reconciler.Result) {
	s.Users = result
	for _, f := range result.Failures {
		failure := NewFailure(PhaseUsers, f.EmployeeID, f.Err)
		failure.Message = f.Message
		s.Failures = append(s.Failures, failure)
	}
	s.Warnings = append(s.Warnings, result.Warnings...)
}

// absorbCourse folds a hierarchy build into the summary.
func (s *Summary) absorbCourse(result *hierarchy.BuildResult) {
	s.Courses = append(s.Courses, result)
	for _, f := range result.Failures {
		failure := NewFailure(PhaseCourses, f.Code, f.Err)
		failure.Message = f.Message
		s.Failures = append(s.Failures, failure)
	}
	s.Warnings = append(s.Warnings, result.Warnings...)
}
