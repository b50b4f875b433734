package query

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Dialect renders the engine-specific parts of a count query.
type Dialect interface {
	Name() string
	// Placeholder returns the bind marker for the n-th argument, starting at 1.
	Placeholder(n int) string
	// DateExpr formats a timestamp column as a UTC YYYY-MM-DD string.
	DateExpr(col string) string
	// PrefixExpr is true when col starts with the bound value.
	PrefixExpr(col, placeholder string) string
	Quote(ident string) string
	// TimeArg converts a timestamp into the value bound for the dt column.
	TimeArg(t time.Time) any
}

const (
	DriverClickHouse = "clickhouse"
	DriverPostgres   = "postgres"
	DriverSQLite     = "sqlite"
)

var ErrUnknownDriver = errors.New("unknown warehouse driver")

// DialectFor returns the dialect of a configured driver.
func DialectFor(driver string) (Dialect, error) {
	switch strings.ToLower(driver) {
	case DriverClickHouse:
		return clickhouse{}, nil
	case DriverPostgres, "postgresql", "pgx":
		return postgres{}, nil
	case DriverSQLite, "sqlite3":
		return sqlite{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
}

type clickhouse struct{}

func (clickhouse) Name() string            { return DriverClickHouse }
func (clickhouse) Placeholder(int) string  { return "?" }
func (clickhouse) TimeArg(t time.Time) any { return t.UTC() }

func (clickhouse) DateExpr(col string) string {
	return fmt.Sprintf("formatDateTime(%s, '%%Y-%%m-%%d', 'UTC')", col)
}

func (clickhouse) PrefixExpr(col, ph string) string {
	return fmt.Sprintf("startsWith(%s, %s)", col, ph)
}

func (clickhouse) Quote(ident string) string {
	return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
}

type postgres struct{}

func (postgres) Name() string             { return DriverPostgres }
func (postgres) Placeholder(n int) string { return "$" + strconv.Itoa(n) }
func (postgres) TimeArg(t time.Time) any  { return t.UTC() }

func (postgres) DateExpr(col string) string {
	return fmt.Sprintf("to_char(%s AT TIME ZONE 'UTC', 'YYYY-MM-DD')", col)
}

func (postgres) PrefixExpr(col, ph string) string {
	return fmt.Sprintf("strpos(%s, %s) = 1", col, ph)
}

func (postgres) Quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

// sqliteTimeLayout sorts lexicographically and is understood by strftime.
const sqliteTimeLayout = "2006-01-02 15:04:05"

type sqlite struct{}

func (sqlite) Name() string           { return DriverSQLite }
func (sqlite) Placeholder(int) string { return "?" }

func (sqlite) TimeArg(t time.Time) any {
	return t.UTC().Format(sqliteTimeLayout)
}

func (sqlite) DateExpr(col string) string {
	return fmt.Sprintf("strftime('%%Y-%%m-%%d', %s)", col)
}

func (sqlite) PrefixExpr(col, ph string) string {
	return fmt.Sprintf("instr(%s, %s) = 1", col, ph)
}

func (sqlite) Quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

// QuoteTable quotes a possibly database-qualified table name part by part.
func QuoteTable(d Dialect, table string) string {
	parts := strings.Split(table, ".")
	for i, p := range parts {
		parts[i] = d.Quote(p)
	}
	return strings.Join(parts, ".")
}
