package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver "pgx"
)

// pgUniqueViolation is SQLSTATE unique_violation.
const pgUniqueViolation = "23505"

const pgInsufficientPrivilege = "42501"

type postgresDialect struct{}

func (p *postgresDialect) Name() string { return "PostgreSQL" }

func (p *postgresDialect) OpenDB(dsn string) (*sql.DB, error) {
	if _, err := pgx.ParseConfig(dsn); err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return db, nil
}

func (p *postgresDialect) ExtractDBName(dsn string) (string, error) {
	cfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return "", fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.Database == "" {
		return "", fmt.Errorf("cannot extract database name from DSN: empty name")
	}
	return cfg.Database, nil
}

// IntrospectSchema reads the connection's current schema (search_path).
func (p *postgresDialect) IntrospectSchema(ctx context.Context, db *sql.DB, _ string) (*Schema, error) {
	var names []string
	if err := collectStringRows(ctx, db, `
		SELECT table_name FROM information_schema.tables
		WHERE table_schema = current_schema() AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`, &names); err != nil {
		return nil, fmt.Errorf("introspect tables: %w", err)
	}

	keys, err := introspectPGKeyColumns(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("introspect key columns: %w", err)
	}

	schema := &Schema{}
	for _, name := range names {
		cols, err := introspectPGColumns(ctx, db, name, keys[name])
		if err != nil {
			return nil, fmt.Errorf("introspect columns for %s: %w", name, err)
		}
		schema.Tables = append(schema.Tables, Table{Name: name, Columns: cols})
	}

	fks, err := introspectPGForeignKeys(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("introspect foreign keys: %w", err)
	}
	schema.ForeignKeys = fks

	uniques, err := introspectPGUniques(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("introspect unique constraints: %w", err)
	}
	schema.Uniques = uniques

	return schema, nil
}

func (p *postgresDialect) IntrospectObjects(ctx context.Context, db *sql.DB, _ string) (*SourceObjects, error) {
	objs := &SourceObjects{}

	if err := collectStringRows(ctx, db, `
		SELECT table_name FROM information_schema.views
		WHERE table_schema = current_schema()
		ORDER BY table_name
	`, &objs.Views); err != nil {
		return nil, fmt.Errorf("introspect views: %w", err)
	}

	if err := collectStringRows(ctx, db, `
		SELECT DISTINCT trigger_name || ' (' || event_manipulation || ' on ' || event_object_table || ')'
		FROM information_schema.triggers
		WHERE trigger_schema = current_schema()
		ORDER BY 1
	`, &objs.Triggers); err != nil {
		return nil, fmt.Errorf("introspect triggers: %w", err)
	}

	return objs, nil
}

// PrepareSession disables FK triggers through session_replication_role.
// This needs superuser; without it inserts still run with FK checks on.
func (p *postgresDialect) PrepareSession(ctx context.Context, conn sqlExecutor) error {
	if _, err := conn.ExecContext(ctx, "SET session_replication_role = replica"); err != nil {
		log.Printf("    WARN: could not disable foreign key checks (session_replication_role): %v", err)
	}
	return nil
}

func (p *postgresDialect) QuoteIdentifier(name string) string { return pgIdent(name) }

func (p *postgresDialect) Placeholder(n int) string { return fmt.Sprintf("$%d", n) }
func (p *postgresDialect) MaxPlaceholders() int    { return 65535 }

func (p *postgresDialect) InsertClauses(ignore bool) (string, string) {
	if ignore {
		return "INSERT INTO", " ON CONFLICT DO NOTHING"
	}
	return "INSERT INTO", ""
}

func (p *postgresDialect) RandomOrder() string { return "random()" }

func (p *postgresDialect) RandomUpdateSQL(table, column string, limit int64) string {
	t := p.QuoteIdentifier(table)
	return fmt.Sprintf("UPDATE %s SET %s = $1 WHERE ctid IN (SELECT ctid FROM %s ORDER BY random() LIMIT %d)",
		t, p.QuoteIdentifier(column), t, limit)
}

// TruncateSQL cascades because PostgreSQL refuses to truncate referenced tables.
func (p *postgresDialect) TruncateSQL(table string) string {
	return "TRUNCATE TABLE " + p.QuoteIdentifier(table) + " CASCADE"
}

func (p *postgresDialect) IsDuplicateKey(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

func (p *postgresDialect) IsPermissionDenied(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgInsufficientPrivilege
}

func (p *postgresDialect) MaxWorkers() int { return 0 }

// --- Schema introspection ---

// introspectPGKeyColumns returns table -> column -> key classification from
// primary key, unique and foreign key constraints.
func introspectPGKeyColumns(ctx context.Context, db *sql.DB) (map[string]map[string]ColumnKey, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT tc.table_name, kcu.column_name, tc.constraint_type,
		       (SELECT count(*) FROM information_schema.key_column_usage k2
		        WHERE k2.constraint_schema = tc.constraint_schema
		          AND k2.constraint_name = tc.constraint_name)
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON kcu.constraint_schema = tc.constraint_schema
		  AND kcu.constraint_name = tc.constraint_name
		  AND kcu.table_name = tc.table_name
		WHERE tc.table_schema = current_schema()
		  AND tc.constraint_type IN ('PRIMARY KEY', 'UNIQUE', 'FOREIGN KEY')
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := make(map[string]map[string]ColumnKey)
	for rows.Next() {
		var table, column, kind string
		var width int
		if err := rows.Scan(&table, &column, &kind, &width); err != nil {
			return nil, err
		}
		if keys[table] == nil {
			keys[table] = make(map[string]ColumnKey)
		}
		keys[table][column] = strongerKey(keys[table][column], pgKeyKind(kind, width))
	}
	return keys, rows.Err()
}

func pgKeyKind(constraintType string, width int) ColumnKey {
	switch {
	case constraintType == "PRIMARY KEY":
		return KeyPrimary
	case constraintType == "UNIQUE" && width == 1:
		return KeyUnique
	default:
		return KeyMultiple
	}
}

// strongerKey keeps the most specific classification (PRI > UNI > MUL).
func strongerKey(a, b ColumnKey) ColumnKey {
	rank := map[ColumnKey]int{KeyNone: 0, KeyMultiple: 1, KeyUnique: 2, KeyPrimary: 3}
	if rank[b] > rank[a] {
		return b
	}
	return a
}

func introspectPGColumns(ctx context.Context, db *sql.DB, tableName string, keys map[string]ColumnKey) ([]Column, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT column_name, data_type, udt_name,
		       character_maximum_length,
		       COALESCE(numeric_precision, 0),
		       numeric_scale,
		       COALESCE(datetime_precision, 0),
		       is_nullable, ordinal_position,
		       COALESCE(column_default, ''), is_identity, is_generated
		FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = $1
		ORDER BY ordinal_position
	`, tableName)
	if err != nil {
		return nil, err
	}

	var cols []Column
	var enumCols []int
	for rows.Next() {
		var c Column
		var dataType, udtName, nullable, dflt, identity, generated string
		var charLen, scale sql.NullInt64
		if err := rows.Scan(&c.Name, &dataType, &udtName, &charLen, &c.Precision, &scale,
			&c.DatetimePrecision, &nullable, &c.OrdinalPos, &dflt, &identity, &generated); err != nil {
			rows.Close()
			return nil, err
		}
		c.Table = tableName
		c.Nullable = nullable == "YES"
		c.CharMaxLen, c.HasCharLen = charLen.Int64, charLen.Valid
		c.Scale, c.HasScale = scale.Int64, scale.Valid
		c.Key = keys[c.Name]
		c.DataType = pgDataType(dataType)
		c.ColumnType = udtName
		switch {
		case generated == "ALWAYS":
			c.Extra = "STORED GENERATED"
		case identity == "YES" || strings.HasPrefix(dflt, "nextval("):
			c.Extra = "auto_increment"
		}
		// float4/float8 report binary precision; let the float defaults apply
		if c.DataType == "float" || c.DataType == "double" {
			c.Precision = 0
		}
		if dataType == "USER-DEFINED" {
			enumCols = append(enumCols, len(cols))
		}
		cols = append(cols, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, i := range enumCols {
		var labels []string
		if err := collectStringRows(ctx, db, `
			SELECT e.enumlabel
			FROM pg_type t
			JOIN pg_enum e ON e.enumtypid = t.oid
			WHERE t.typname = $1
			ORDER BY e.enumsortorder
		`, &labels, cols[i].ColumnType); err != nil {
			return nil, fmt.Errorf("enum labels for %s: %w", cols[i].Name, err)
		}
		if len(labels) == 0 {
			continue // not an enum: stays unsupported
		}
		cols[i].DataType = "enum"
		cols[i].ColumnType = enumColumnType(labels)
	}
	return cols, nil
}

// pgDataType maps information_schema.columns.data_type onto the resolver's vocabulary.
func pgDataType(dataType string) string {
	switch dataType {
	case "integer":
		return "int"
	case "smallint", "bigint", "date", "text", "uuid", "json", "boolean":
		return dataType
	case "jsonb":
		return "json"
	case "real":
		return "float"
	case "double precision":
		return "double"
	case "numeric":
		return "decimal"
	case "character varying":
		return "varchar"
	case "character":
		return "char"
	case "timestamp without time zone", "timestamp with time zone":
		return "datetime"
	case "time without time zone", "time with time zone":
		return "time"
	case "bytea":
		return "blob"
	case "bit":
		return "bit varying" // MySQL BIT semantics do not carry over
	}
	return dataType
}

// enumColumnType renders labels as an enum(...) column type.
func enumColumnType(labels []string) string {
	quoted := make([]string, len(labels))
	for i, l := range labels {
		quoted[i] = "'" + strings.ReplaceAll(l, "'", "''") + "'"
	}
	return "enum(" + strings.Join(quoted, ",") + ")"
}

func introspectPGForeignKeys(ctx context.Context, db *sql.DB) ([]ForeignKey, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT kcu.constraint_name, kcu.table_name, kcu.column_name, rk.table_name, rk.column_name
		FROM information_schema.referential_constraints rc
		JOIN information_schema.key_column_usage kcu
		  ON kcu.constraint_schema = rc.constraint_schema
		  AND kcu.constraint_name = rc.constraint_name
		JOIN information_schema.key_column_usage rk
		  ON rk.constraint_schema = rc.unique_constraint_schema
		  AND rk.constraint_name = rc.unique_constraint_name
		  AND rk.ordinal_position = kcu.position_in_unique_constraint
		WHERE kcu.table_schema = current_schema()
		ORDER BY kcu.table_name, kcu.constraint_name, kcu.ordinal_position
	`)
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

func introspectPGUniques(ctx context.Context, db *sql.DB) ([]UniqueConstraint, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT tc.table_name, tc.constraint_name, kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON kcu.constraint_schema = tc.constraint_schema
		  AND kcu.constraint_name = tc.constraint_name
		  AND kcu.table_name = tc.table_name
		WHERE tc.table_schema = current_schema() AND tc.constraint_type = 'UNIQUE'
		ORDER BY tc.table_name, tc.constraint_name, kcu.ordinal_position
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectUniqueRows(rows)
}
