package main

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

const shopSchema = `
CREATE TABLE customers (
	id INTEGER PRIMARY KEY,
	name VARCHAR(40) NOT NULL,
	email VARCHAR(60) UNIQUE,
	joined DATE
);
CREATE TABLE orders (
	id INTEGER PRIMARY KEY,
	customer_id INTEGER NOT NULL REFERENCES customers(id),
	total DECIMAL(8,2),
	placed_at DATETIME,
	note TEXT
);
CREATE TABLE order_log (
	order_id INTEGER NOT NULL REFERENCES orders,
	happened_at TIMESTAMP
);
INSERT INTO customers (id, name, email) VALUES (1, 'Ann', 'ann@example.com'), (2, 'Bo', 'bo@example.com'), (3, 'Cy', 'cy@example.com');
`

// newShopDB creates a file database with the shop schema and returns a
// config pointing at it.
func newShopDB(t *testing.T) (*FillConfig, *sql.DB) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "shop.db")

	d := &sqliteDialect{}
	db, err := d.OpenDB(path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	for _, stmt := range splitStatements(shopSchema) {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("setup %q: %v", stmt, err)
		}
	}

	cfg := defaultFillConfig()
	cfg.Database = DatabaseConfig{Type: "sqlite", DSN: path}
	cfg.Seed = 7
	cfg.configDir = dir
	if err := cfg.validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	return &cfg, db
}

func countRows(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM " + sqliteIdent(table)).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

func TestSQLiteIntrospectSchema(t *testing.T) {
	_, db := newShopDB(t)

	schema, err := (&sqliteDialect{}).IntrospectSchema(context.Background(), db, "shop")
	if err != nil {
		t.Fatalf("IntrospectSchema() error: %v", err)
	}
	if got := schema.TableNames(); !slices.Equal(got, []string{"customers", "order_log", "orders"}) {
		t.Fatalf("tables = %v", got)
	}

	customers := schema.Tables[0]
	if c := customers.Columns[0]; c.Key != KeyPrimary || c.Extra != "auto_increment" || c.DataType != "bigint" {
		t.Errorf("customers.id = %+v", c)
	}
	if c := customers.Columns[1]; c.DataType != "varchar" || c.CharMaxLen != 40 {
		t.Errorf("customers.name = %+v", c)
	}
	if c := customers.Columns[2]; c.Key != KeyUnique {
		t.Errorf("customers.email key = %q, want UNI", c.Key)
	}

	wantFKs := []ForeignKey{
		{Table: "order_log", Column: "order_id", RefTable: "orders", RefColumn: "id"},
		{Table: "orders", Column: "customer_id", RefTable: "customers", RefColumn: "id"},
	}
	if len(schema.ForeignKeys) != len(wantFKs) {
		t.Fatalf("foreign keys = %+v", schema.ForeignKeys)
	}
	for i, want := range wantFKs {
		got := schema.ForeignKeys[i]
		got.Constraint = ""
		if got != want {
			t.Errorf("fk[%d] = %+v, want %+v", i, got, want)
		}
	}
	if len(schema.Uniques) != 1 || !slices.Equal(schema.Uniques[0].Columns, []string{"email"}) {
		t.Errorf("uniques = %+v", schema.Uniques)
	}
}

func TestFill_SQLiteEndToEnd(t *testing.T) {
	cfg, db := newShopDB(t)

	summary, err := fill(context.Background(), cfg)
	if err != nil {
		t.Fatalf("fill() error: %v", err)
	}

	if n := countRows(t, db, "customers"); n != 13 {
		t.Errorf("customers = %d rows, want 13", n)
	}
	if n := countRows(t, db, "orders"); n != 10 {
		t.Errorf("orders = %d rows, want 10", n)
	}
	if n := countRows(t, db, "order_log"); n != 10 {
		t.Errorf("order_log = %d rows, want 10", n)
	}
	if failed := summary.failedTables(); len(failed) != 0 {
		t.Errorf("failed tables: %v", failed)
	}

	// totals stay in the decimal band
	var lo, hi float64
	if err := db.QueryRow("SELECT MIN(total), MAX(total) FROM orders").Scan(&lo, &hi); err != nil {
		t.Fatal(err)
	}
	if lo < 10 || hi > 99 {
		t.Errorf("total range [%v, %v] outside [10, 99]", lo, hi)
	}

	// every jumbled or seeded customer_id points at an existing customer
	var orphans int
	if err := db.QueryRow(`SELECT COUNT(*) FROM orders o LEFT JOIN customers c ON c.id = o.customer_id WHERE c.id IS NULL`).Scan(&orphans); err != nil {
		t.Fatal(err)
	}
	if orphans != 0 {
		t.Errorf("%d orders reference missing customers", orphans)
	}

	if summary.Jumble == nil {
		t.Fatal("jumble did not run")
	}
	if summary.Jumble.Limit != 3 {
		t.Errorf("jumble limit = %d, want 3", summary.Jumble.Limit)
	}
	if summary.Jumble.Updated["orders"] == 0 {
		t.Errorf("jumble updated no orders: %+v", summary.Jumble)
	}
}

func TestFill_SQLiteWithoutJumbleKeepsSeededForeignKey(t *testing.T) {
	cfg, db := newShopDB(t)
	cfg.JumbleFKs = false

	if _, err := fill(context.Background(), cfg); err != nil {
		t.Fatalf("fill() error: %v", err)
	}

	// customers is filled first, so orders repeat the new maximum id
	var distinct, value int
	if err := db.QueryRow("SELECT COUNT(DISTINCT customer_id), MAX(customer_id) FROM orders").Scan(&distinct, &value); err != nil {
		t.Fatal(err)
	}
	if distinct != 1 || value != 13 {
		t.Errorf("customer_id: %d distinct values, max %d; want 1 value of 13", distinct, value)
	}
}

func TestFill_SQLiteHooks(t *testing.T) {
	cfg, db := newShopDB(t)
	cfg.JumbleFKs = false
	if err := os.WriteFile(filepath.Join(cfg.configDir, "after.sql"),
		[]byte("-- mark the seed customers\nUPDATE customers SET name = 'seed' WHERE id <= 3;\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg.Hooks.AfterFill = []string{"after.sql"}

	if _, err := fill(context.Background(), cfg); err != nil {
		t.Fatalf("fill() error: %v", err)
	}

	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM customers WHERE name = 'seed'").Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("after_fill hook touched %d rows, want 3", n)
	}
}

func TestFill_SQLiteTruncate(t *testing.T) {
	cfg, db := newShopDB(t)
	cfg.Truncate = true

	summary, err := fill(context.Background(), cfg)
	if err != nil {
		t.Fatalf("fill() error: %v", err)
	}
	if len(summary.Outcomes) != 0 {
		t.Errorf("truncate mode should not fill: %+v", summary.Outcomes)
	}
	if n := countRows(t, db, "customers"); n != 0 {
		t.Errorf("customers = %d rows after truncate, want 0", n)
	}
}

func TestFill_NoTables(t *testing.T) {
	dir := t.TempDir()
	cfg := defaultFillConfig()
	cfg.Database = DatabaseConfig{Type: "sqlite", DSN: filepath.Join(dir, "empty.db")}
	if err := cfg.validate(); err != nil {
		t.Fatal(err)
	}

	_, err := fill(context.Background(), &cfg)
	if !errors.Is(err, ErrNoTables) {
		t.Errorf("fill() error = %v, want ErrNoTables", err)
	}
}

func TestSQLiteIsDuplicateKey(t *testing.T) {
	_, db := newShopDB(t)
	_, err := db.Exec("INSERT INTO customers (id, name, email) VALUES (9, 'Dup', 'ann@example.com')")
	if err == nil {
		t.Fatal("expected unique violation")
	}
	if !(&sqliteDialect{}).IsDuplicateKey(err) {
		t.Errorf("IsDuplicateKey(%v) = false", err)
	}

	_, err = db.Exec("INSERT INTO customers (id, name) VALUES (1, 'Again')")
	if !(&sqliteDialect{}).IsDuplicateKey(err) {
		t.Errorf("primary key violation not detected: %v", err)
	}
}

func TestSQLiteIsPermissionDenied(t *testing.T) {
	cfg, _ := newShopDB(t)

	ro, err := sql.Open("sqlite", "file:"+cfg.Database.DSN+"?mode=ro")
	if err != nil {
		t.Fatal(err)
	}
	defer ro.Close()

	_, err = ro.Exec("UPDATE customers SET name = 'x'")
	if err == nil {
		t.Fatal("expected read-only error")
	}
	d := &sqliteDialect{}
	if !d.IsPermissionDenied(err) {
		t.Errorf("IsPermissionDenied(%v) = false", err)
	}
	if d.IsDuplicateKey(err) {
		t.Errorf("read-only error classified as duplicate: %v", err)
	}
}
