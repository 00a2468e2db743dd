package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/orgsync/internal/sources/lms"
	"github.com/agentstation/orgsync/internal/sources/reporting"
	"github.com/agentstation/orgsync/internal/utils/ptr"
)

func TestParseFormat(t *testing.T) {
	for _, s := range []string{"table", "JSON", "yaml", "text", ""} {
		_, err := ParseFormat(s)
		assert.NoError(t, err, s)
	}
	_, err := ParseFormat("csv")
	assert.Error(t, err)
}

func TestDetectFormatExplicit(t *testing.T) {
	assert.Equal(t, FormatYAML, DetectFormat("YAML"))
}

func TestTables(t *testing.T) {
	indices := IndicesTable([]reporting.Index{
		{ID: 1, Code: "COURSE00042", Name: "Fire Safety"},
		{ID: 2, Code: "COURSE00042-100", Name: "Acme", ParentIndexConnections: []reporting.ParentIndexConnection{{ParentIndexID: 1}}},
	})
	require.Len(t, indices.Rows, 2)
	assert.Equal(t, []string{"2", "COURSE00042-100", "Acme", "1"}, indices.Rows[1])

	measurements := MeasurementsTable([]reporting.Measurement{{
		ID: 3, Code: "COURSE00042-100-Sales", Name: "Sales", MaxValue: 100, DepartmentID: ptr.To(7),
		IndexConnections: []reporting.IndexConnection{{IndexID: 2}},
	}})
	assert.Equal(t, []string{"3", "COURSE00042-100-Sales", "Sales", "0-100", "7", "2"}, measurements.Rows[0])

	accounts := AccountsTable([]reporting.Account{{ID: 4, Email: "a@example.com", FirstName: "Ann", LastName: "Berg", IsActive: true}})
	assert.Equal(t, []string{"4", "a@example.com", "Ann Berg", "true"}, accounts.Rows[0])

	units := UnitsTable([]lms.Unit{{ID: 10, Name: "Retail", Code: "DIV-Retail"}, {ID: 11, Name: "Sales", Code: "100-Sales", ParentID: ptr.To(10)}})
	assert.Equal(t, []string{"11", "100-Sales", "Sales", "10"}, units.Rows[1])
}

func TestFormatters(t *testing.T) {
	data := UnitsTable([]lms.Unit{{ID: 10, Name: "Retail", Code: "DIV-Retail"}})

	var buf bytes.Buffer
	require.NoError(t, NewFormatter(FormatTable).Format(&buf, data))
	assert.Contains(t, buf.String(), "DIV-Retail")

	buf.Reset()
	require.NoError(t, NewFormatter(FormatJSON).Format(&buf, map[string]int{"id": 10}))
	assert.JSONEq(t, `{"id": 10}`, buf.String())

	buf.Reset()
	require.NoError(t, NewFormatter(FormatYAML).Format(&buf, map[string]int{"id": 10}))
	assert.Equal(t, "id: 10\n", buf.String())

	buf.Reset()
	require.NoError(t, NewFormatter(FormatTable).Format(&buf, []int{1}))
	assert.JSONEq(t, `[1]`, buf.String())
}
