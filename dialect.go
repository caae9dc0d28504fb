package main

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Dialect abstracts the target database so dbfill can populate several
// engines (MySQL, PostgreSQL, SQLite). It is both the catalog collaborator
// and the source of every engine-specific SQL statement.
type Dialect interface {
	// Name returns a human-readable name for the engine ("MySQL", "SQLite").
	Name() string

	// OpenDB opens a connection pool with driver-specific options.
	OpenDB(dsn string) (*sql.DB, error)

	// ExtractDBName extracts the logical database name from the DSN.
	ExtractDBName(dsn string) (string, error)

	// IntrospectSchema reads base tables, columns, foreign keys and unique constraints.
	IntrospectSchema(ctx context.Context, db *sql.DB, dbName string) (*Schema, error)

	// IntrospectObjects discovers views and triggers that affect population.
	IntrospectObjects(ctx context.Context, db *sql.DB, dbName string) (*SourceObjects, error)

	// PrepareSession applies per-session settings (disabled FK/unique checks)
	// on a worker's dedicated connection.
	PrepareSession(ctx context.Context, conn sqlExecutor) error

	// QuoteIdentifier quotes a table or column name.
	QuoteIdentifier(name string) string

	// Placeholder returns the bind marker for the n-th (1-based) argument.
	Placeholder(n int) string

	// MaxPlaceholders is the largest number of bind arguments per statement.
	MaxPlaceholders() int

	// InsertClauses returns the text before "<table> (cols) VALUES ..." and
	// the text after it, for plain or ignore-duplicates inserts.
	InsertClauses(ignore bool) (prefix, suffix string)

	// RandomOrder returns the engine's random ordering function call.
	RandomOrder() string

	// RandomUpdateSQL updates column on up to limit randomly chosen rows; the
	// new value is bound as the first argument.
	RandomUpdateSQL(table, column string, limit int64) string

	// TruncateSQL empties a table.
	TruncateSQL(table string) string

	// IsDuplicateKey reports whether err is a unique/primary key violation.
	IsDuplicateKey(err error) bool

	// IsPermissionDenied reports whether err is the engine refusing a
	// statement for lack of privileges.
	IsPermissionDenied(err error) bool

	// MaxWorkers returns the maximum number of parallel workers.
	// 0 means use the config value; >0 caps workers to this value.
	MaxWorkers() int
}

// sqlExecutor is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type sqlExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// newDialect returns a Dialect implementation for the given database type.
func newDialect(dbType string) (Dialect, error) {
	switch dbType {
	case "mysql":
		return &mysqlDialect{}, nil
	case "postgres", "postgresql":
		return &postgresDialect{}, nil
	case "sqlite":
		return &sqliteDialect{}, nil
	default:
		return nil, fmt.Errorf("unsupported database type %q (must be mysql, postgres or sqlite)", dbType)
	}
}

// buildInsertSQL produces a multi-row INSERT for rows rows of len(cols) values.
func buildInsertSQL(d Dialect, table string, cols []string, rows int, ignore bool) string {
	prefix, suffix := d.InsertClauses(ignore)

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s (%s) VALUES ", prefix, d.QuoteIdentifier(table), quotedColumnList(d, cols))

	n := 1
	for r := 0; r < rows; r++ {
		if r > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for c := range cols {
			if c > 0 {
				b.WriteByte(',')
			}
			b.WriteString(d.Placeholder(n))
			n++
		}
		b.WriteByte(')')
	}
	b.WriteString(suffix)
	return b.String()
}

// maxValueSQL selects the largest value of column, used to seed integer foreign keys.
func maxValueSQL(d Dialect, table, column string) string {
	c := d.QuoteIdentifier(column)
	return fmt.Sprintf("SELECT %s FROM %s ORDER BY %s DESC LIMIT 1", c, d.QuoteIdentifier(table), c)
}

// pointLookupSQL checks whether a key value already exists in table.
func pointLookupSQL(d Dialect, table, column string) string {
	c := d.QuoteIdentifier(column)
	return fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s LIMIT 1", c, d.QuoteIdentifier(table), c, d.Placeholder(1))
}

// randomSampleSQL picks up to limit random values of column.
func randomSampleSQL(d Dialect, table, column string, limit int64) string {
	return fmt.Sprintf("SELECT %s FROM %s ORDER BY %s LIMIT %d",
		d.QuoteIdentifier(column), d.QuoteIdentifier(table), d.RandomOrder(), limit)
}

// quotedColumnList joins column names with proper quoting.
func quotedColumnList(d Dialect, cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = d.QuoteIdentifier(c)
	}
	return strings.Join(quoted, ",")
}
