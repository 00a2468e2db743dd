package orgsync

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"

	"github.com/agentstation/orgsync/internal/sources/lms"
	"github.com/agentstation/orgsync/internal/sources/reporting"
	"github.com/agentstation/orgsync/internal/utils/ptr"
	"github.com/agentstation/orgsync/pkg/hierarchy"
	"github.com/agentstation/orgsync/pkg/org"
)

// people joins course participants to HR users.
type people struct {
	byEmployee map[string]*org.User
	byEmail    map[string]*org.User
	remote     map[int]lms.User
}

func newPeople(users []*org.User, remote []lms.User) *people {
	p := &people{
		byEmployee: make(map[string]*org.User, len(users)),
		byEmail:    make(map[string]*org.User, len(users)),
		remote:     make(map[int]lms.User, len(remote)),
	}
	for _, u := range users {
		if _, exists := p.byEmployee[u.EmployeeID]; !exists {
			p.byEmployee[u.EmployeeID] = u
		}
		if email := strings.ToLower(u.Email); email != "" {
			if _, exists := p.byEmail[email]; !exists {
				p.byEmail[email] = u
			}
		}
	}
	for _, r := range remote {
		p.remote[r.ID] = r
	}
	return p
}

// find matches a participant by employee id, then email, then through the
// LMS user it refers to.
func (p *people) find(part lms.Participant) *org.User {
	if u := p.lookup(part.EmployeeID, part.Email); u != nil {
		return u
	}
	if r, ok := p.remote[part.UserID]; ok {
		return p.lookup(r.EmployeeID, r.Email)
	}
	return nil
}

func (p *people) lookup(employeeID, email string) *org.User {
	if id := strings.TrimSpace(employeeID); id != "" {
		if u, ok := p.byEmployee[id]; ok {
			return u
		}
	}
	if e := strings.ToLower(strings.TrimSpace(email)); e != "" {
		if u, ok := p.byEmail[e]; ok {
			return u
		}
	}
	return nil
}

// plan groups the participants of a course by company and department.
// Participants that match no active HR user with a department are counted
// in skipped. Companies are ordered by mfld and departments by name.
func (p *people) plan(course org.Course, description string, participants []lms.Participant, deptIDs *reportingDepartments) (hierarchy.CoursePlan, int) {
	type group struct {
		company     org.Company
		departments map[string]*org.CompletionStats
	}

	groups := make(map[string]*group)
	counted := make(map[string]bool)
	skipped := 0

	for _, part := range participants {
		u := p.find(part)
		if u == nil || !u.Active || u.Department == "" || u.Mfld == "" {
			skipped++
			continue
		}
		if counted[u.EmployeeID] {
			continue
		}
		counted[u.EmployeeID] = true

		g, ok := groups[u.Mfld]
		if !ok {
			g = &group{company: u.Company(), departments: make(map[string]*org.CompletionStats)}
			groups[u.Mfld] = g
		}
		if g.company.Name == "" {
			g.company.Name = u.CompanyName
		}
		stats, ok := g.departments[u.Department]
		if !ok {
			stats = &org.CompletionStats{}
			g.departments[u.Department] = stats
		}
		stats.Add(part.Finished())
	}

	plan := hierarchy.CoursePlan{Course: course, Description: description}
	mflds := make([]string, 0, len(groups))
	for mfld := range groups {
		mflds = append(mflds, mfld)
	}
	sort.Strings(mflds)

	for _, mfld := range mflds {
		g := groups[mfld]
		names := make([]string, 0, len(g.departments))
		for name := range g.departments {
			names = append(names, name)
		}
		sort.Strings(names)

		company := hierarchy.CompanyPlan{Company: g.company}
		for _, name := range names {
			company.Departments = append(company.Departments, hierarchy.DepartmentPlan{
				Name:        name,
				Stats:       *g.departments[name],
				ReportingID: deptIDs.lookup(name),
			})
		}
		plan.Companies = append(plan.Companies, company)
	}
	return plan, skipped
}

// reportingDepartments finds Reporting departments by case-folded name.
type reportingDepartments struct {
	fold   cases.Caser
	byName map[string]int
}

func newReportingDepartments(depts []reporting.Department) *reportingDepartments {
	r := &reportingDepartments{fold: cases.Fold(), byName: make(map[string]int, len(depts))}
	sorted := append([]reporting.Department(nil), depts...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	for _, d := range sorted {
		key := r.key(d.Name)
		if _, exists := r.byName[key]; !exists && key != "" {
			r.byName[key] = d.ID
		}
	}
	return r
}

func (r *reportingDepartments) key(name string) string {
	return r.fold.String(strings.TrimSpace(name))
}

func (r *reportingDepartments) lookup(name string) *int {
	if id, ok := r.byName[r.key(name)]; ok {
		return ptr.To(id)
	}
	return nil
}
