package output

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/agentstation/orgsync/internal/sources/lms"
	"github.com/agentstation/orgsync/internal/sources/reporting"
	"github.com/agentstation/orgsync/internal/utils/ptr"
)

// IndicesTable lists Reporting indices with their parents.
func IndicesTable(indices []reporting.Index) Data {
	data := Data{
		Headers:         []string{"ID", "Code", "Name", "Parents"},
		ColumnAlignment: []Align{AlignRight, AlignLeft, AlignLeft, AlignLeft},
	}
	for _, i := range indices {
		parents := make([]string, 0, len(i.ParentIndexConnections))
		for _, p := range i.ParentIndexConnections {
			parents = append(parents, strconv.Itoa(p.ParentIndexID))
		}
		data.Rows = append(data.Rows, []string{strconv.Itoa(i.ID), i.Code, i.Name, strings.Join(parents, ",")})
	}
	return data
}

// MeasurementsTable lists Reporting measurements.
func MeasurementsTable(measurements []reporting.Measurement) Data {
	data := Data{
		Headers:         []string{"ID", "Code", "Name", "Range", "Department", "Indices"},
		ColumnAlignment: []Align{AlignRight, AlignLeft, AlignLeft, AlignLeft, AlignRight, AlignLeft},
	}
	for _, m := range measurements {
		indices := make([]string, 0, len(m.IndexConnections))
		for _, c := range m.IndexConnections {
			indices = append(indices, strconv.Itoa(c.IndexID))
		}
		data.Rows = append(data.Rows, []string{
			strconv.Itoa(m.ID),
			m.Code,
			m.Name,
			fmt.Sprintf("%g-%g", m.MinValue, m.MaxValue),
			ptr.IDString(m.DepartmentID),
			strings.Join(indices, ","),
		})
	}
	return data
}

// AccountsTable lists Reporting accounts.
func AccountsTable(accounts []reporting.Account) Data {
	data := Data{
		Headers:         []string{"ID", "Email", "Name", "Active"},
		ColumnAlignment: []Align{AlignRight, AlignLeft, AlignLeft, AlignLeft},
	}
	for _, a := range accounts {
		name := strings.TrimSpace(a.FirstName + " " + a.LastName)
		data.Rows = append(data.Rows, []string{strconv.Itoa(a.ID), a.Email, name, strconv.FormatBool(a.IsActive)})
	}
	return data
}

// UnitsTable lists LMS units.
func UnitsTable(units []lms.Unit) Data {
	data := Data{
		Headers:         []string{"ID", "Code", "Name", "Parent"},
		ColumnAlignment: []Align{AlignRight, AlignLeft, AlignLeft, AlignRight},
	}
	for _, u := range units {
		data.Rows = append(data.Rows, []string{strconv.Itoa(u.ID), u.Code, u.Name, ptr.IDString(u.ParentID)})
	}
	return data
}
