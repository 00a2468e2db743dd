package hierarchy

import (
	"context"
	"fmt"
	"time"

	"github.com/agentstation/orgsync/internal/sources/reporting"
	"github.com/agentstation/orgsync/pkg/errors"
	"github.com/agentstation/orgsync/pkg/logging"
	"github.com/agentstation/orgsync/pkg/org"
)

// DepartmentPlan is the completion of one department for a course.
type DepartmentPlan struct {
	Name  string              `json:"name" yaml:"name"`
	Stats org.CompletionStats `json:"stats" yaml:"stats"`

	// ReportingID is the matching Reporting department, when there is one.
	ReportingID *int `json:"reporting_id,omitempty" yaml:"reporting_id,omitempty"`
}

// CompanyPlan groups the departments of one company.
type CompanyPlan struct {
	Company     org.Company      `json:"company" yaml:"company"`
	Departments []DepartmentPlan `json:"departments" yaml:"departments"`
}

// CoursePlan is everything Build needs to record one course.
type CoursePlan struct {
	Course      org.Course    `json:"course" yaml:"course"`
	Description string        `json:"description,omitempty" yaml:"description,omitempty"`
	Companies   []CompanyPlan `json:"companies" yaml:"companies"`
}

// Level names the node a failure happened at.
type Level string

// Levels.
const (
	LevelCourse     Level = "course"
	LevelCompany    Level = "company"
	LevelDepartment Level = "department"
)

// Failure records a node that could not be built.
type Failure struct {
	Level   Level  `json:"level" yaml:"level"`
	Code    string `json:"code" yaml:"code"`
	Err     error  `json:"-" yaml:"-"`
	Message string `json:"error" yaml:"error"`
}

// BuildResult is the outcome of building one course.
type BuildResult struct {
	Course string `json:"course" yaml:"course"`
	Stats  `yaml:",inline"`

	Values   []ValueEvent `json:"values,omitempty" yaml:"values,omitempty"`
	Failures []Failure    `json:"failures,omitempty" yaml:"failures,omitempty"`
	Warnings []string     `json:"warnings,omitempty" yaml:"warnings,omitempty"`

	Duration time.Duration `json:"duration" yaml:"duration"`
}

// IsSuccess returns true if every node was built.
func (r *BuildResult) IsSuccess() bool {
	return len(r.Failures) == 0
}

// Summary returns a human-readable summary of the result.
func (r *BuildResult) Summary() string {
	return fmt.Sprintf("%s: %d indices created, %d measurements created, %d values recorded, %d links repaired, %d failures",
		r.Course, r.IndicesCreated, r.MeasurementsCreated, r.ValuesAppended, r.LinksRepaired, len(r.Failures))
}

func (r *BuildResult) fail(level Level, code string, err error) {
	r.Failures = append(r.Failures, Failure{Level: level, Code: code, Err: err, Message: err.Error()})
}

// Build records plan: the course index, one index per company and one
// measurement value per department. A course index failure aborts the
// course and is returned as the error. A company failure skips that
// company's departments, and department failures only skip themselves;
// both are collected in the result.
func (b *Builder) Build(ctx context.Context, plan CoursePlan) (*BuildResult, error) {
	start := time.Now()
	before := b.stats
	code := plan.Course.Key()
	result := &BuildResult{Course: code}
	defer func() {
		result.Stats = b.stats.sub(before)
		result.Duration = time.Since(start)
	}()

	ctx = logging.WithCourse(ctx, code)
	logger := logging.FromContext(ctx)

	if err := ctx.Err(); err != nil {
		return result, errors.WrapResource("build", "course", code, err)
	}

	course, err := b.EnsureIndex(ctx, reporting.IndexRequest{
		Code:        code,
		Name:        plan.Course.Title,
		Description: plan.Description,
	})
	if err != nil {
		logger.Error().Err(err).Msg("Course index failed; skipping course")
		result.fail(LevelCourse, code, err)
		return result, errors.NewSyncError(string(LevelCourse), []string{code}, err)
	}

	for _, company := range plan.Companies {
		if err := ctx.Err(); err != nil {
			return result, errors.WrapResource("build", "course", code, err)
		}
		b.buildCompany(ctx, plan, course, company, result)
	}

	logger.Info().
		Int("companies", len(plan.Companies)).
		Int("failures", len(result.Failures)).
		Msg("Built course hierarchy")
	return result, nil
}

func (b *Builder) buildCompany(ctx context.Context, plan CoursePlan, course *reporting.Index, company CompanyPlan, result *BuildResult) {
	logger := logging.FromContext(ctx)

	companyIndex, err := b.EnsureCompanyIndex(ctx, course, company.Company)
	if err != nil {
		code := CompanyCode(plan.Course, company.Company)
		logger.Error().Err(err).Str("index_code", code).Msg("Company index failed; skipping its departments")
		result.fail(LevelCompany, code, err)
		return
	}

	for _, dept := range company.Departments {
		code := DepartmentCode(plan.Course, company.Company, dept.Name)

		metric, err := StatsValue(dept.Stats)
		if err != nil {
			logger.Warn().Err(err).Str("measurement_code", code).Msg("Skipping department without a valid metric")
			result.fail(LevelDepartment, code, err)
			continue
		}
		if metric.Clamped {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("%s: %d finished of %d assigned; value clamped to %.0f", code, metric.Finished, metric.Assigned, metric.Value))
		}

		m, err := b.EnsureMeasurement(ctx, MeasurementSpec{
			Code:         code,
			Name:         dept.Name,
			Description:  fmt.Sprintf("%s, %s", plan.Course.Title, company.Company.DisplayName()),
			Parent:       companyIndex,
			DepartmentID: dept.ReportingID,
			Metric:       metric,
			Course:       result.Course,
		})
		if err != nil {
			logger.Error().Err(err).Str("measurement_code", code).Msg("Department measurement failed")
			result.fail(LevelDepartment, code, err)
			continue
		}
		result.Values = append(result.Values, m.Value)
	}
}
