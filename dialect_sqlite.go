package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"modernc.org/sqlite" // pure-Go SQLite driver
	sqlite3 "modernc.org/sqlite/lib"
)

type sqliteDialect struct{}

func (s *sqliteDialect) Name() string { return "SQLite" }

func (s *sqliteDialect) OpenDB(dsn string) (*sql.DB, error) {
	uri, err := sqliteFillURI(dsn)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", uri)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return db, nil
}

func (s *sqliteDialect) ExtractDBName(dsn string) (string, error) {
	path := dsn
	// Strip file: URI prefix
	if strings.HasPrefix(dsn, "file:") {
		u, err := url.Parse(dsn)
		if err == nil {
			path = u.Path
			if path == "" {
				path = u.Opaque
			}
		} else {
			path = strings.TrimPrefix(dsn, "file:")
			if idx := strings.IndexByte(path, '?'); idx >= 0 {
				path = path[:idx]
			}
		}
	}
	base := filepath.Base(path)
	if ext := filepath.Ext(base); ext != "" {
		base = base[:len(base)-len(ext)]
	}
	if base == "" || base == "." {
		return "sqlite", nil
	}
	return base, nil
}

func (s *sqliteDialect) IntrospectSchema(ctx context.Context, db *sql.DB, _ string) (*Schema, error) {
	var names []string
	if err := collectStringRows(ctx, db,
		"SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%' ORDER BY name",
		&names); err != nil {
		return nil, fmt.Errorf("introspect tables: %w", err)
	}

	schema := &Schema{}
	for _, name := range names {
		cols, err := introspectSQLiteColumns(ctx, db, name)
		if err != nil {
			return nil, fmt.Errorf("introspect columns for %s: %w", name, err)
		}

		uniques, err := introspectSQLiteUniques(ctx, db, name, cols)
		if err != nil {
			return nil, fmt.Errorf("introspect indexes for %s: %w", name, err)
		}
		schema.Uniques = append(schema.Uniques, uniques...)
		schema.Tables = append(schema.Tables, Table{Name: name, Columns: cols})
	}

	for _, t := range schema.Tables {
		fks, err := introspectSQLiteForeignKeys(ctx, db, t.Name)
		if err != nil {
			return nil, fmt.Errorf("introspect foreign keys for %s: %w", t.Name, err)
		}
		for _, fk := range fks {
			// REFERENCES parent without a column list targets the parent's primary key.
			if fk.RefColumn == "" {
				fk.RefColumn = schema.primaryKeyColumn(fk.RefTable)
			}
			schema.ForeignKeys = append(schema.ForeignKeys, fk)
		}
	}

	return schema, nil
}

func (s *sqliteDialect) IntrospectObjects(ctx context.Context, db *sql.DB, _ string) (*SourceObjects, error) {
	objs := &SourceObjects{}

	if err := collectStringRows(ctx, db,
		"SELECT name FROM sqlite_master WHERE type='view' ORDER BY name",
		&objs.Views); err != nil {
		return nil, fmt.Errorf("introspect views: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT name, tbl_name FROM sqlite_master WHERE type='trigger' ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("introspect triggers: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var name, table string
		if err := rows.Scan(&name, &table); err != nil {
			return nil, err
		}
		objs.Triggers = append(objs.Triggers, fmt.Sprintf("%s (on %s)", name, table))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return objs, nil
}

func (s *sqliteDialect) PrepareSession(ctx context.Context, conn sqlExecutor) error {
	if _, err := conn.ExecContext(ctx, "PRAGMA foreign_keys = OFF"); err != nil {
		return fmt.Errorf("PRAGMA foreign_keys: %w", err)
	}
	return nil
}

func (s *sqliteDialect) QuoteIdentifier(name string) string { return sqliteIdent(name) }

func (s *sqliteDialect) Placeholder(int) string { return "?" }

// MaxPlaceholders matches SQLITE_MAX_VARIABLE_NUMBER of modern builds.
func (s *sqliteDialect) MaxPlaceholders() int { return 32766 }

func (s *sqliteDialect) InsertClauses(ignore bool) (string, string) {
	if ignore {
		return "INSERT OR IGNORE INTO", ""
	}
	return "INSERT INTO", ""
}

func (s *sqliteDialect) RandomOrder() string { return "RANDOM()" }

func (s *sqliteDialect) RandomUpdateSQL(table, column string, limit int64) string {
	t := s.QuoteIdentifier(table)
	return fmt.Sprintf("UPDATE %s SET %s = ? WHERE rowid IN (SELECT rowid FROM %s ORDER BY RANDOM() LIMIT %d)",
		t, s.QuoteIdentifier(column), t, limit)
}

// TruncateSQL uses DELETE FROM, SQLite's truncate optimisation.
func (s *sqliteDialect) TruncateSQL(table string) string {
	return "DELETE FROM " + s.QuoteIdentifier(table)
}

func (s *sqliteDialect) IsDuplicateKey(err error) bool {
	var sqErr *sqlite.Error
	if !errors.As(err, &sqErr) {
		return false
	}
	switch code := sqErr.Code(); code {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	default:
		// connections without extended result codes only report SQLITE_CONSTRAINT
		return code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(sqErr.Error(), "UNIQUE constraint failed")
	}
}

// IsPermissionDenied covers read-only files and authorizer refusals.
func (s *sqliteDialect) IsPermissionDenied(err error) bool {
	var sqErr *sqlite.Error
	if !errors.As(err, &sqErr) {
		return false
	}
	code := sqErr.Code() & 0xff
	return code == sqlite3.SQLITE_READONLY || code == sqlite3.SQLITE_AUTH
}

// MaxWorkers is 1: SQLite serialises writers on the database file.
func (s *sqliteDialect) MaxWorkers() int { return 1 }

// --- DSN handling ---

func sqliteFillURI(dsn string) (string, error) {
	// Reject in-memory databases
	if dsn == ":memory:" || dsn == "file::memory:" ||
		strings.Contains(dsn, "mode=memory") {
		return "", fmt.Errorf("in-memory SQLite databases are not supported (each sql.Open gets a separate DB)")
	}

	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("parse sqlite URI: %w", err)
	}
	q := u.Query()
	q.Add("_pragma", "busy_timeout(5000)")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// --- Schema introspection ---

func introspectSQLiteColumns(ctx context.Context, db *sql.DB, tableName string) ([]Column, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_xinfo(%s)", sqliteIdent(tableName)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []Column
	var pkCols []int
	for rows.Next() {
		var cid, pk, notnull, hidden int
		var name, colType string
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &colType, &notnull, &dflt, &pk, &hidden); err != nil {
			return nil, err
		}

		col := Column{
			Table:      tableName,
			Name:       name,
			DataType:   sqliteDataType(colType),
			ColumnType: strings.ToLower(strings.TrimSpace(colType)),
			Nullable:   notnull == 0,
			OrdinalPos: cid + 1,
		}

		// hidden: 0=normal, 1=hidden, 2=generated stored, 3=generated virtual
		switch hidden {
		case 1:
			continue
		case 2:
			col.Extra = "STORED GENERATED"
		case 3:
			col.Extra = "VIRTUAL GENERATED"
		}
		if pk > 0 {
			col.Key = KeyPrimary
			pkCols = append(pkCols, len(cols))
		}

		parseSQLiteTypeParams(&col, colType)
		cols = append(cols, col)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// A lone INTEGER PRIMARY KEY aliases the rowid and is assigned by SQLite.
	if len(pkCols) == 1 {
		c := &cols[pkCols[0]]
		if c.ColumnType == "integer" {
			c.Extra = "auto_increment"
		}
	}

	return cols, nil
}

// sqliteDataType maps a declared SQLite type onto the type vocabulary the
// resolver understands.
func sqliteDataType(declaredType string) string {
	dt := strings.ToLower(strings.TrimSpace(declaredType))
	if dt == "" {
		return "blob" // no declared type = BLOB affinity
	}
	if idx := strings.IndexByte(dt, '('); idx >= 0 {
		dt = strings.TrimSpace(dt[:idx])
	}
	dt = strings.TrimSuffix(dt, " unsigned")

	switch dt {
	case "integer":
		return "bigint"
	case "real", "double precision":
		return "double"
	case "numeric":
		return "decimal"
	case "bool":
		return "boolean"
	case "clob", "string":
		return "text"
	case "character", "nchar", "native character":
		return "char"
	case "varying character", "nvarchar":
		return "varchar"
	}
	return dt
}

func parseSQLiteTypeParams(col *Column, declaredType string) {
	open := strings.IndexByte(declaredType, '(')
	close := strings.LastIndexByte(declaredType, ')')
	if open < 0 || close <= open {
		return
	}
	parts := strings.Split(declaredType[open+1:close], ",")
	if n, err := fmt.Sscanf(strings.TrimSpace(parts[0]), "%d", &col.Precision); n == 1 && err == nil {
		col.CharMaxLen, col.HasCharLen = col.Precision, true
	}
	if len(parts) >= 2 {
		if n, err := fmt.Sscanf(strings.TrimSpace(parts[1]), "%d", &col.Scale); n == 1 && err == nil {
			col.HasScale = true
		}
	}
}

// introspectSQLiteUniques reads unique indexes of tableName and marks
// single-column unique keys on cols.
func introspectSQLiteUniques(ctx context.Context, db *sql.DB, tableName string, cols []Column) ([]UniqueConstraint, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA index_list(%s)", sqliteIdent(tableName)))
	if err != nil {
		return nil, err
	}

	type indexInfo struct {
		name   string
		unique bool
	}
	var indexes []indexInfo
	for rows.Next() {
		var seq int
		var name, origin string
		var unique, partial int
		if err := rows.Scan(&seq, &name, &unique, &origin, &partial); err != nil {
			rows.Close()
			return nil, err
		}
		// PK indexes are covered by table_xinfo
		if origin == "pk" {
			continue
		}
		indexes = append(indexes, indexInfo{name: name, unique: unique == 1})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var uniques []UniqueConstraint
	for _, idx := range indexes {
		var idxCols []string
		if err := collectStringRows(ctx, db,
			fmt.Sprintf("SELECT name FROM pragma_index_info(%s) WHERE name IS NOT NULL ORDER BY seqno", sqliteQuoteLiteral(idx.name)),
			&idxCols); err != nil {
			return nil, err
		}
		if len(idxCols) == 0 {
			continue
		}

		for i := range cols {
			if cols[i].Name != idxCols[0] || cols[i].Key != KeyNone {
				continue
			}
			if idx.unique && len(idxCols) == 1 {
				cols[i].Key = KeyUnique
			} else {
				cols[i].Key = KeyMultiple
			}
		}
		if idx.unique {
			uniques = append(uniques, UniqueConstraint{Table: tableName, Name: idx.name, Columns: idxCols})
		}
	}
	return uniques, nil
}

func introspectSQLiteForeignKeys(ctx context.Context, db *sql.DB, tableName string) ([]ForeignKey, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA foreign_key_list(%s)", sqliteIdent(tableName)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fks []ForeignKey
	for rows.Next() {
		var id, seq int
		var refTable, from, onUpdate, onDelete, match string
		var to sql.NullString
		if err := rows.Scan(&id, &seq, &refTable, &from, &to, &onUpdate, &onDelete, &match); err != nil {
			return nil, err
		}
		fks = append(fks, ForeignKey{
			Constraint: fmt.Sprintf("fk_%s_%d", tableName, id),
			Table:      tableName,
			Column:     from,
			RefTable:   refTable,
			RefColumn:  to.String,
		})
	}
	return fks, rows.Err()
}

// sqliteQuoteLiteral single-quotes a string literal for table-valued pragma arguments.
func sqliteQuoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
