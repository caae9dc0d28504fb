//go:build integration

package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
)

func integrationConfig(t *testing.T, dbType, dsn string) *FillConfig {
	t.Helper()
	cfg := defaultFillConfig()
	cfg.Database = DatabaseConfig{Type: dbType, DSN: dsn}
	cfg.Rows = 20
	cfg.Workers = 2
	cfg.Seed = 1
	cfg.configDir = t.TempDir()
	if err := cfg.validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	return &cfg
}

func TestIntegration_MySQL(t *testing.T) {
	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		t.Skip("MYSQL_DSN env var required")
	}

	db, err := sql.Open("mysql", mysqlDSN+"?parseTime=true&loc=UTC&interpolateParams=true")
	if err != nil {
		t.Fatalf("open mysql: %v", err)
	}
	defer db.Close()
	seedMySQL(t, db)

	cfg := integrationConfig(t, "mysql", mysqlDSN)
	summary, err := fill(context.Background(), cfg)
	if err != nil {
		t.Fatalf("fill: %v", err)
	}
	if failed := summary.failedTables(); len(failed) != 0 {
		t.Fatalf("failed tables: %v", failed)
	}

	assertRowCount(t, db, "users", 25)
	assertRowCount(t, db, "posts", 25)
	assertRowCount(t, db, "comments", 30)
	assertRowCount(t, db, "teams", 20)

	var statuses int
	if err := db.QueryRow("SELECT COUNT(*) FROM posts WHERE status NOT IN ('draft','live','archived')").Scan(&statuses); err != nil {
		t.Fatal(err)
	}
	if statuses != 0 {
		t.Errorf("%d posts have a status outside the enum", statuses)
	}

	var orphans int
	if err := db.QueryRow(`SELECT COUNT(*) FROM posts p LEFT JOIN users u ON u.id = p.user_id WHERE u.id IS NULL`).Scan(&orphans); err != nil {
		t.Fatal(err)
	}
	if orphans != 0 {
		t.Errorf("%d posts reference missing users", orphans)
	}

	if summary.Jumble == nil || summary.Jumble.Limit != 5 {
		t.Errorf("jumble report = %+v, want limit 5", summary.Jumble)
	}
}

func TestIntegration_MySQLTruncate(t *testing.T) {
	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		t.Skip("MYSQL_DSN env var required")
	}

	db, err := sql.Open("mysql", mysqlDSN+"?parseTime=true&loc=UTC&interpolateParams=true")
	if err != nil {
		t.Fatalf("open mysql: %v", err)
	}
	defer db.Close()
	seedMySQL(t, db)

	cfg := integrationConfig(t, "mysql", mysqlDSN)
	cfg.Truncate = true
	if _, err := fill(context.Background(), cfg); err != nil {
		t.Fatalf("fill: %v", err)
	}

	for _, table := range []string{"users", "posts", "comments", "teams"} {
		assertRowCount(t, db, table, 0)
	}
}

func TestIntegration_MySQLReadOnlyUser(t *testing.T) {
	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		t.Skip("MYSQL_DSN env var required")
	}

	ctx := context.Background()

	adminMySQL, err := sql.Open("mysql", mysqlDSN+"?parseTime=true&loc=UTC&interpolateParams=true")
	if err != nil {
		t.Fatalf("open mysql admin connection: %v", err)
	}
	defer adminMySQL.Close()

	seedMySQL(t, adminMySQL)

	dbName, err := extractMySQLDBName(mysqlDSN)
	if err != nil {
		t.Fatalf("extract db name: %v", err)
	}

	roUser := fmt.Sprintf("dbfill_ro_%d", time.Now().UnixNano()%1_000_000)
	roPass := "dbfill_ro_pw"
	if err := createReadOnlyMySQLUser(ctx, adminMySQL, dbName, roUser, roPass); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "access denied") {
			t.Skipf("skipping read-only user test: insufficient MySQL privileges to create users (%v)", err)
		}
		t.Fatalf("create read-only user: %v", err)
	}
	t.Cleanup(func() {
		_, _ = adminMySQL.ExecContext(context.Background(), fmt.Sprintf("DROP USER IF EXISTS '%s'@'%%'", roUser))
	})

	roDSN, err := buildReadOnlyUserDSN(mysqlDSN, roUser, roPass)
	if err != nil {
		t.Fatalf("build readonly DSN: %v", err)
	}

	cfg := integrationConfig(t, "mysql", roDSN)
	summary, err := fill(ctx, cfg)
	if err != nil {
		t.Fatalf("fill with readonly user: %v", err)
	}

	// lenient mode: every insert is rolled back, nothing is fatal
	for _, o := range summary.Outcomes {
		if o.Err != nil {
			t.Errorf("%s: unexpected error %v", o.Table, o.Err)
		}
		if !o.Skipped && !o.RolledBack {
			t.Errorf("%s: insert should have been rolled back", o.Table)
		}
	}
	if summary.Jumble == nil || summary.Jumble.Err == nil {
		t.Errorf("jumble should fail without UPDATE grant: %+v", summary.Jumble)
	}
	assertRowCount(t, adminMySQL, "users", 5)
}

func TestIntegration_Postgres(t *testing.T) {
	pgDSN := os.Getenv("POSTGRES_DSN")
	if pgDSN == "" {
		t.Skip("POSTGRES_DSN env var required")
	}

	d := &postgresDialect{}
	db, err := d.OpenDB(pgDSN)
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	defer db.Close()

	stmts := []string{
		"DROP TABLE IF EXISTS shipments",
		"DROP TABLE IF EXISTS depots",
		"DROP TYPE IF EXISTS shipment_state",
		"CREATE TYPE shipment_state AS ENUM ('queued', 'sent', 'lost')",
		`CREATE TABLE depots (
			id SERIAL PRIMARY KEY,
			code CHAR(4) UNIQUE,
			opened DATE
		)`,
		`CREATE TABLE shipments (
			id BIGSERIAL PRIMARY KEY,
			depot_id INTEGER NOT NULL REFERENCES depots(id),
			ref UUID,
			weight NUMERIC(6,2),
			state shipment_state,
			meta JSONB,
			sent_at TIMESTAMP
		)`,
		"INSERT INTO depots (code, opened) VALUES ('AMS1', '2020-01-01')",
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("seed postgres %q: %v", stmt[:min(len(stmt), 60)], err)
		}
	}

	cfg := integrationConfig(t, "postgres", pgDSN)
	summary, err := fill(context.Background(), cfg)
	if err != nil {
		t.Fatalf("fill: %v", err)
	}
	if failed := summary.failedTables(); len(failed) != 0 {
		t.Fatalf("failed tables: %v", failed)
	}
	assertRowCount(t, db, "shipments", 20)
}

func seedMySQL(t *testing.T, db *sql.DB) {
	t.Helper()

	stmts := []string{
		"SET FOREIGN_KEY_CHECKS=0",
		"DROP TABLE IF EXISTS comments",
		"DROP TABLE IF EXISTS posts",
		"DROP TABLE IF EXISTS users",
		"DROP TABLE IF EXISTS teams",
		"SET FOREIGN_KEY_CHECKS=1",

		`CREATE TABLE users (
			id INT AUTO_INCREMENT PRIMARY KEY,
			name VARCHAR(100) NOT NULL,
			email VARCHAR(200) NULL,
			born DATE,
			karma FLOAT(5,2)
		)`,
		`CREATE TABLE posts (
			id INT AUTO_INCREMENT PRIMARY KEY,
			user_id INT NOT NULL,
			title VARCHAR(200) NOT NULL,
			body TEXT,
			status ENUM('draft','live','archived') NOT NULL,
			published DATETIME(3),
			FOREIGN KEY (user_id) REFERENCES users(id)
		)`,
		`CREATE TABLE comments (
			id INT AUTO_INCREMENT PRIMARY KEY,
			post_id INT NOT NULL,
			user_id INT NOT NULL,
			content TEXT,
			meta JSON,
			FOREIGN KEY (post_id) REFERENCES posts(id),
			FOREIGN KEY (user_id) REFERENCES users(id)
		)`,
		`CREATE TABLE teams (
			code CHAR(6) PRIMARY KEY,
			token BINARY(16),
			flags BIT(1),
			founded YEAR,
			area POINT
		)`,

		"INSERT INTO users (name, email) VALUES ('Alice', 'alice@example.com')",
		"INSERT INTO users (name, email) VALUES ('Bob', NULL)",
		"INSERT INTO users (name, email) VALUES ('Charlie', 'charlie@example.com')",
		"INSERT INTO users (name, email) VALUES ('Diana', 'diana@example.com')",
		"INSERT INTO users (name, email) VALUES ('Eve', NULL)",

		"INSERT INTO posts (user_id, title, body, status) VALUES (1, 'First Post', 'Hello world', 'live')",
		"INSERT INTO posts (user_id, title, body, status) VALUES (2, 'Bobs Post', 'Content here', 'draft')",
		"INSERT INTO posts (user_id, title, body, status) VALUES (3, 'Thoughts', 'Some thoughts', 'live')",
		"INSERT INTO posts (user_id, title, body, status) VALUES (4, 'Update', NULL, 'archived')",
		"INSERT INTO posts (user_id, title, body, status) VALUES (5, 'Hello', 'Eve here', 'live')",

		"INSERT INTO comments (post_id, user_id, content) VALUES (1, 2, 'Nice post!')",
		"INSERT INTO comments (post_id, user_id, content) VALUES (1, 3, 'Great read')",
		"INSERT INTO comments (post_id, user_id, content) VALUES (2, 1, 'Thanks Bob')",
		"INSERT INTO comments (post_id, user_id, content) VALUES (2, 4, 'Interesting')",
		"INSERT INTO comments (post_id, user_id, content) VALUES (3, 5, 'I agree')",
		"INSERT INTO comments (post_id, user_id, content) VALUES (3, 1, 'Me too')",
		"INSERT INTO comments (post_id, user_id, content) VALUES (4, 2, 'Good update')",
		"INSERT INTO comments (post_id, user_id, content) VALUES (4, 3, 'Thanks')",
		"INSERT INTO comments (post_id, user_id, content) VALUES (5, 1, 'Welcome Eve')",
		"INSERT INTO comments (post_id, user_id, content) VALUES (5, 4, 'Hi Eve!')",
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("seed mysql %q: %v", stmt[:min(len(stmt), 60)], err)
		}
	}
}

func createReadOnlyMySQLUser(ctx context.Context, db *sql.DB, dbName, user, password string) error {
	stmts := []string{
		fmt.Sprintf("DROP USER IF EXISTS '%s'@'%%'", user),
		fmt.Sprintf("CREATE USER '%s'@'%%' IDENTIFIED BY '%s'", user, password),
		fmt.Sprintf("GRANT SELECT ON `%s`.* TO '%s'@'%%'", dbName, user),
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func buildReadOnlyUserDSN(baseDSN, user, password string) (string, error) {
	cfg, err := mysql.ParseDSN(baseDSN)
	if err != nil {
		return "", err
	}
	cfg.User = user
	cfg.Passwd = password
	return cfg.FormatDSN(), nil
}

func assertRowCount(t *testing.T, db *sql.DB, table string, want int) {
	t.Helper()
	var got int
	if err := db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&got); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	if got != want {
		t.Errorf("%s row count: got %d, want %d", table, got, want)
	}
}
