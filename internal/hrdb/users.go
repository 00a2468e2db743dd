package hrdb

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/agentstation/orgsync/pkg/errors"
	"github.com/agentstation/orgsync/pkg/logging"
	"github.com/agentstation/orgsync/pkg/names"
	"github.com/agentstation/orgsync/pkg/org"
)

// DefaultUsersTable is read when no users table is configured.
const DefaultUsersTable = "employees"

// UserSource loads the authoritative users from an HR table. Column names
// are normalized to snake_case, so EmployeeId and employee_id both map to
// the employee id.
type UserSource struct {
	db    *DB
	table string
}

// NewUserSource reads users from table, or DefaultUsersTable when empty.
func NewUserSource(db *DB, table string) *UserSource {
	if strings.TrimSpace(table) == "" {
		table = DefaultUsersTable
	}
	return &UserSource{db: db, table: table}
}

// Users returns every valid user and the rows that failed validation.
// Rejected rows are logged; callers must not treat them as departures.
func (s *UserSource) Users(ctx context.Context) ([]*org.User, []org.Rejected, error) {
	rows, err := s.db.Select(ctx, s.table)
	if err != nil {
		return nil, nil, err
	}

	logger := logging.FromContext(ctx)
	users := make([]*org.User, 0, len(rows))
	var rejected []org.Rejected
	for i, row := range rows {
		u, err := UserFromRow(row)
		if err != nil {
			r := org.Rejected{Row: i + 1, EmployeeID: u.EmployeeID, Err: err}
			logger.Warn().Err(err).Int("row", r.Row).Str("employee_id", r.EmployeeID).Msg("Rejected invalid HR row")
			rejected = append(rejected, r)
			continue
		}
		users = append(users, u)
	}

	logger.Info().
		Str("table", s.table).
		Int("users", len(users)).
		Int("rejected", len(rejected)).
		Msg("Loaded HR users")
	return users, rejected, nil
}

// UserFromRow maps an HR row to a validated user. On error the returned
// user still carries the employee id for reporting.
func UserFromRow(row Row) (*org.User, error) {
	fields := names.CamelToSnakeMap(row)

	u := org.User{
		EmployeeID:  text(fields, "employee_id", "employee_number"),
		FullName:    text(fields, "full_name", "name"),
		Username:    text(fields, "username", "user_name"),
		Title:       text(fields, "title", "job_title"),
		Email:       text(fields, "email", "email_address"),
		Division:    text(fields, "division"),
		Department:  text(fields, "department"),
		ManagerID:   text(fields, "manager_id", "manager"),
		Mfld:        text(fields, "mfld"),
		CompanyName: text(fields, "company", "company_name"),
		Active:      true,
	}

	if v, ok := lookup(fields, "active", "is_active"); ok {
		active, err := parseBool(v)
		if err != nil {
			return &u, errors.NewValidationError("active", v, err.Error())
		}
		u.Active = active
	}

	user, err := org.NewUser(u)
	if err != nil {
		return &u, err
	}
	return user, nil
}

func lookup(fields map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := fields[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func text(fields map[string]any, keys ...string) string {
	v, ok := lookup(fields, keys...)
	if !ok {
		return ""
	}
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case []byte:
		return strings.TrimSpace(string(x))
	case time.Time:
		return x.Format(time.RFC3339)
	default:
		return strings.TrimSpace(fmt.Sprint(x))
	}
}

func parseBool(v any) (bool, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case int64:
		return x != 0, nil
	case int:
		return x != 0, nil
	case []byte:
		return parseBool(string(x))
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "", "0", "false", "no", "n", "inactive":
			return false, nil
		case "1", "true", "yes", "y", "active":
			return true, nil
		}
		return strconv.ParseBool(x)
	}
	return false, fmt.Errorf("unsupported type %T", v)
}
