package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// maxAllowedPacket is the packet size requested by max_packet (256 MiB).
const maxAllowedPacket = 268435456

type mysqlDialect struct{}

func (m *mysqlDialect) Name() string { return "MySQL" }

func (m *mysqlDialect) OpenDB(dsn string) (*sql.DB, error) {
	fillDSN, err := mysqlDSNWithFillOptions(dsn)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("mysql", fillDSN)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	return db, nil
}

func (m *mysqlDialect) ExtractDBName(dsn string) (string, error) {
	return extractMySQLDBName(dsn)
}

func (m *mysqlDialect) IntrospectSchema(ctx context.Context, db *sql.DB, dbName string) (*Schema, error) {
	return introspectMySQLSchema(ctx, db, dbName)
}

func (m *mysqlDialect) IntrospectObjects(ctx context.Context, db *sql.DB, dbName string) (*SourceObjects, error) {
	return introspectMySQLObjects(ctx, db, dbName)
}

func (m *mysqlDialect) PrepareSession(ctx context.Context, conn sqlExecutor) error {
	for _, q := range []string{
		"SET SESSION foreign_key_checks = OFF",
		"SET SESSION unique_checks = OFF",
	} {
		if _, err := conn.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("%s: %w", q, err)
		}
	}
	return nil
}

func (m *mysqlDialect) QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (m *mysqlDialect) Placeholder(int) string { return "?" }
func (m *mysqlDialect) MaxPlaceholders() int  { return 65535 }

func (m *mysqlDialect) InsertClauses(ignore bool) (string, string) {
	if ignore {
		return "INSERT IGNORE INTO", ""
	}
	return "INSERT INTO", ""
}

func (m *mysqlDialect) RandomOrder() string { return "RAND()" }

func (m *mysqlDialect) RandomUpdateSQL(table, column string, limit int64) string {
	return fmt.Sprintf("UPDATE %s SET %s = ? ORDER BY RAND() LIMIT %d",
		m.QuoteIdentifier(table), m.QuoteIdentifier(column), limit)
}

func (m *mysqlDialect) TruncateSQL(table string) string {
	return "TRUNCATE TABLE " + m.QuoteIdentifier(table)
}

func (m *mysqlDialect) IsDuplicateKey(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == 1062
}

// IsPermissionDenied matches ER_TABLEACCESS_DENIED_ERROR and
// ER_COLUMNACCESS_DENIED_ERROR.
func (m *mysqlDialect) IsPermissionDenied(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && (myErr.Number == 1142 || myErr.Number == 1143)
}

func (m *mysqlDialect) MaxWorkers() int { return 0 }

// mysqlMaximizePacket raises the server's max_allowed_packet for the large
// batched INSERTs. Only attempted for the root user; failures are logged.
func mysqlMaximizePacket(ctx context.Context, db *sql.DB, user string) {
	if user != "root" {
		log.Printf("  max_packet ignored: requires the root user (connected as %q)", user)
		return
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf("SET GLOBAL max_allowed_packet = %d", maxAllowedPacket)); err != nil {
		log.Printf("  WARN: could not raise max_allowed_packet: %v", err)
		return
	}
	log.Printf("  max_allowed_packet set to %d", maxAllowedPacket)
}

// --- Schema introspection ---

func introspectMySQLSchema(ctx context.Context, db *sql.DB, dbName string) (*Schema, error) {
	var names []string
	if err := collectStringRows(ctx, db, `
		SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_SCHEMA = ? AND TABLE_TYPE = 'BASE TABLE'
		ORDER BY TABLE_NAME
	`, &names, dbName); err != nil {
		return nil, fmt.Errorf("introspect tables: %w", err)
	}

	schema := &Schema{}
	for _, name := range names {
		cols, err := introspectMySQLColumns(ctx, db, dbName, name)
		if err != nil {
			return nil, fmt.Errorf("introspect columns for %s: %w", name, err)
		}
		schema.Tables = append(schema.Tables, Table{Name: name, Columns: cols})
	}

	fks, err := introspectMySQLForeignKeys(ctx, db, dbName)
	if err != nil {
		return nil, fmt.Errorf("introspect foreign keys: %w", err)
	}
	schema.ForeignKeys = fks

	uniques, err := introspectMySQLUniques(ctx, db, dbName)
	if err != nil {
		return nil, fmt.Errorf("introspect unique constraints: %w", err)
	}
	schema.Uniques = uniques

	return schema, nil
}

func introspectMySQLColumns(ctx context.Context, db *sql.DB, dbName, tableName string) ([]Column, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT TABLE_NAME, COLUMN_NAME, DATA_TYPE, COLUMN_TYPE,
		        CHARACTER_MAXIMUM_LENGTH,
		        COALESCE(NUMERIC_PRECISION, 0),
		        NUMERIC_SCALE,
		        COALESCE(DATETIME_PRECISION, 0),
		        COLUMN_KEY, EXTRA, IS_NULLABLE, ORDINAL_POSITION
		 FROM INFORMATION_SCHEMA.COLUMNS
		 WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?
		 ORDER BY ORDINAL_POSITION`,
		dbName, tableName,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var c Column
		var key, nullable string
		var charLen, scale sql.NullInt64
		if err := rows.Scan(
			&c.Table, &c.Name, &c.DataType, &c.ColumnType,
			&charLen, &c.Precision, &scale, &c.DatetimePrecision,
			&key, &c.Extra, &nullable, &c.OrdinalPos,
		); err != nil {
			return nil, err
		}
		c.DataType = strings.ToLower(c.DataType)
		c.ColumnType = strings.ToLower(c.ColumnType)
		c.Key = ColumnKey(key)
		c.Nullable = nullable == "YES"
		c.CharMaxLen, c.HasCharLen = charLen.Int64, charLen.Valid
		c.Scale, c.HasScale = scale.Int64, scale.Valid
		cols = append(cols, c)
	}
	return cols, rows.Err()
}

func introspectMySQLForeignKeys(ctx context.Context, db *sql.DB, dbName string) ([]ForeignKey, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT CONSTRAINT_NAME, TABLE_NAME, COLUMN_NAME,
		        REFERENCED_TABLE_NAME, REFERENCED_COLUMN_NAME
		 FROM INFORMATION_SCHEMA.KEY_COLUMN_USAGE
		 WHERE REFERENCED_TABLE_SCHEMA = ?
		   AND REFERENCED_TABLE_NAME IS NOT NULL
		 ORDER BY TABLE_NAME, CONSTRAINT_NAME, ORDINAL_POSITION`,
		dbName,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fks []ForeignKey
	for rows.Next() {
		var fk ForeignKey
		if err := rows.Scan(&fk.Constraint, &fk.Table, &fk.Column, &fk.RefTable, &fk.RefColumn); err != nil {
			return nil, err
		}
		fks = append(fks, fk)
	}
	return fks, rows.Err()
}

func introspectMySQLUniques(ctx context.Context, db *sql.DB, dbName string) ([]UniqueConstraint, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT tc.TABLE_NAME, tc.CONSTRAINT_NAME, kcu.COLUMN_NAME
		 FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
		 JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu
		   ON kcu.CONSTRAINT_SCHEMA = tc.CONSTRAINT_SCHEMA
		   AND kcu.TABLE_NAME = tc.TABLE_NAME
		   AND kcu.CONSTRAINT_NAME = tc.CONSTRAINT_NAME
		 WHERE tc.CONSTRAINT_SCHEMA = ? AND tc.CONSTRAINT_TYPE = 'UNIQUE'
		 ORDER BY tc.TABLE_NAME, tc.CONSTRAINT_NAME, kcu.ORDINAL_POSITION`,
		dbName,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectUniqueRows(rows)
}

// collectUniqueRows folds (table, constraint, column) rows into constraints.
func collectUniqueRows(rows *sql.Rows) ([]UniqueConstraint, error) {
	var out []UniqueConstraint
	for rows.Next() {
		var table, name, column string
		if err := rows.Scan(&table, &name, &column); err != nil {
			return nil, err
		}
		if n := len(out); n > 0 && out[n-1].Table == table && out[n-1].Name == name {
			out[n-1].Columns = append(out[n-1].Columns, column)
			continue
		}
		out = append(out, UniqueConstraint{Table: table, Name: name, Columns: []string{column}})
	}
	return out, rows.Err()
}

func introspectMySQLObjects(ctx context.Context, db *sql.DB, dbName string) (*SourceObjects, error) {
	objs := &SourceObjects{}

	if err := collectStringRows(ctx, db, `
		SELECT TABLE_NAME
		FROM INFORMATION_SCHEMA.VIEWS
		WHERE TABLE_SCHEMA = ?
		ORDER BY TABLE_NAME
	`, &objs.Views, dbName); err != nil {
		return nil, fmt.Errorf("introspect views: %w", err)
	}

	rows, err := db.QueryContext(ctx, `
		SELECT TRIGGER_NAME, EVENT_OBJECT_TABLE, EVENT_MANIPULATION
		FROM INFORMATION_SCHEMA.TRIGGERS
		WHERE TRIGGER_SCHEMA = ?
		ORDER BY TRIGGER_NAME
	`, dbName)
	if err != nil {
		return nil, fmt.Errorf("introspect triggers: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var name, table, event string
		if err := rows.Scan(&name, &table, &event); err != nil {
			return nil, fmt.Errorf("scan triggers: %w", err)
		}
		objs.Triggers = append(objs.Triggers, fmt.Sprintf("%s (%s on %s)", name, strings.ToUpper(event), table))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate triggers: %w", err)
	}

	return objs, nil
}
