package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
)

// mysqlDSNWithFillOptions normalises a MySQL DSN for the filler. Client-side
// interpolation keeps a batched INSERT to one round trip, and found-rows
// makes UPDATE report matched rather than changed rows.
func mysqlDSNWithFillOptions(baseDSN string) (string, error) {
	cfg, err := mysql.ParseDSN(baseDSN)
	if err != nil {
		return "", fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.InterpolateParams = true
	cfg.ClientFoundRows = true
	cfg.Loc = time.UTC
	if cfg.Params == nil {
		cfg.Params = map[string]string{}
	}
	if _, ok := cfg.Params["charset"]; !ok {
		cfg.Params["charset"] = "utf8mb4"
	}
	return cfg.FormatDSN(), nil
}

// extractMySQLDBName pulls the database name from a MySQL DSN.
// Expects format: user:pass@tcp(host:port)/dbname or user:pass@host:port/dbname
func extractMySQLDBName(dsn string) (string, error) {
	end := len(dsn)
	if i := strings.IndexByte(dsn, '?'); i >= 0 {
		end = i
	}
	slash := strings.LastIndexByte(dsn[:end], '/')
	if slash < 0 {
		return "", fmt.Errorf("cannot extract database name from DSN: no '/' found")
	}
	dbName := dsn[slash+1 : end]
	if dbName == "" {
		return "", fmt.Errorf("cannot extract database name from DSN: empty name")
	}
	return dbName, nil
}

// mysqlDSNUser returns the user name of a MySQL DSN, or "" if it cannot be parsed.
func mysqlDSNUser(dsn string) string {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return ""
	}
	return cfg.User
}
