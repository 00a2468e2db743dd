// Package hierarchy builds the Reporting metric tree of course completion:
// a course index, one child index per company and one measurement per
// department, with a new measurement value appended on every run.
package hierarchy

import (
	"strings"

	"github.com/agentstation/orgsync/pkg/org"
)

// Codes are the stable Reporting codes of one department's branch of a
// course tree.
type Codes struct {
	Course     string `json:"course" yaml:"course"`
	Company    string `json:"company" yaml:"company"`
	Department string `json:"department" yaml:"department"`
}

// NewCodes derives the codes for a course, company and department, e.g.
// COURSE00042, COURSE00042-100 and COURSE00042-100-Sales. The department
// code is empty when department is blank.
func NewCodes(course org.Course, company org.Company, department string) Codes {
	codes := Codes{
		Course:  course.Key(),
		Company: CompanyCode(course, company),
	}
	if strings.TrimSpace(department) != "" {
		codes.Department = DepartmentCode(course, company, department)
	}
	return codes
}

// CompanyCode returns the index code of a company under a course.
func CompanyCode(course org.Course, company org.Company) string {
	return companyCode(course.Key(), company.Mfld)
}

func companyCode(courseCode, mfld string) string {
	return courseCode + "-" + strings.TrimSpace(mfld)
}

// DepartmentCode returns the measurement code of a department under a
// company and course.
func DepartmentCode(course org.Course, company org.Company, department string) string {
	return course.Key() + "-" + org.DepartmentKey(company.Mfld, department)
}
