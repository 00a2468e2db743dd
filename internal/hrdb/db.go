// Package hrdb reads employees from the HR database and records sync runs
// in it.
package hrdb

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormLogger "gorm.io/gorm/logger"

	"github.com/agentstation/orgsync/pkg/errors"
	"github.com/agentstation/orgsync/pkg/logging"
)

// Supported drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config selects and configures the HR database.
type Config struct {
	Driver string
	DSN    string

	// Logger receives gorm's slow query and error output. Defaults to the
	// package default logger.
	Logger *zerolog.Logger
}

// DB is a thin table-oriented layer over gorm.
type DB struct {
	db *gorm.DB
}

// Row is one selected record keyed by column name.
type Row map[string]any

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// Open connects to the HR database.
func Open(cfg Config) (*DB, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case DriverPostgres, "postgresql":
		dialector = postgres.Open(cfg.DSN)
	case DriverSQLite, "sqlite3":
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, errors.NewConfigError("hrdb", "unsupported driver "+cfg.Driver, nil)
	}
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, errors.NewConfigError("hrdb", "dsn is required", nil)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormLogger.New(gormWriter{logger: logger}, gormLogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		}),
	})
	if err != nil {
		return nil, errors.NewConfigError("hrdb", "failed to connect to "+cfg.Driver, err)
	}
	return &DB{db: db}, nil
}

// New wraps an existing gorm connection.
func New(db *gorm.DB) *DB {
	return &DB{db: db}
}

// Gorm returns the underlying connection.
func (d *DB) Gorm() *gorm.DB {
	return d.db
}

// Close closes the connection pool.
func (d *DB) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Select returns every row of table. With no columns all are selected.
func (d *DB) Select(ctx context.Context, table string, columns ...string) ([]Row, error) {
	if err := checkIdentifiers(table, columns...); err != nil {
		return nil, err
	}

	query := d.db.WithContext(ctx).Table(table)
	if len(columns) > 0 {
		query = query.Select(columns)
	}

	var records []map[string]any
	if err := query.Find(&records).Error; err != nil {
		return nil, errors.WrapResource("select", "table", table, err)
	}

	rows := make([]Row, len(records))
	for i, r := range records {
		rows[i] = Row(r)
	}
	return rows, nil
}

// Insert adds one row. columns and values pair up by position.
func (d *DB) Insert(ctx context.Context, table string, columns []string, values []any) error {
	if err := checkIdentifiers(table, columns...); err != nil {
		return err
	}
	if len(columns) == 0 || len(columns) != len(values) {
		return errors.NewValidationError("values", len(values), "must match the number of columns")
	}

	row := make(map[string]any, len(columns))
	for i, col := range columns {
		row[col] = values[i]
	}
	if err := d.db.WithContext(ctx).Table(table).Create(row).Error; err != nil {
		return errors.WrapResource("insert", "table", table, err)
	}
	return nil
}

// Update sets setColumns on the rows matching every whereColumns equality.
// values holds the new values followed by the condition values. It
// returns the number of rows changed.
func (d *DB) Update(ctx context.Context, table string, setColumns, whereColumns []string, values []any) (int64, error) {
	if err := checkIdentifiers(table, append(append([]string{}, setColumns...), whereColumns...)...); err != nil {
		return 0, err
	}
	if len(setColumns) == 0 || len(whereColumns) == 0 {
		return 0, errors.NewValidationError("columns", nil, "update needs set and where columns")
	}
	if len(values) != len(setColumns)+len(whereColumns) {
		return 0, errors.NewValidationError("values", len(values), "must match set and where columns")
	}

	updates := make(map[string]any, len(setColumns))
	for i, col := range setColumns {
		updates[col] = values[i]
	}

	query := d.db.WithContext(ctx).Table(table)
	for i, col := range whereColumns {
		query = query.Where(clause.Eq{Column: clause.Column{Name: col}, Value: values[len(setColumns)+i]})
	}

	res := query.Updates(updates)
	if res.Error != nil {
		return 0, errors.WrapResource("update", "table", table, res.Error)
	}
	return res.RowsAffected, nil
}

func checkIdentifiers(table string, columns ...string) error {
	if !identifierPattern.MatchString(table) {
		return errors.NewValidationError("table", table, "is not a valid identifier")
	}
	for _, col := range columns {
		if !identifierPattern.MatchString(col) {
			return errors.NewValidationError("column", col, "is not a valid identifier")
		}
	}
	return nil
}

// gormWriter sends gorm's log output to zerolog.
type gormWriter struct {
	logger *zerolog.Logger
}

func (w gormWriter) Printf(format string, args ...any) {
	w.logger.Warn().Str("component", "hrdb").Msgf(format, args...)
}
