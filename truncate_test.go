package main

import (
	"context"
	"errors"
	"regexp"
	"slices"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestTruncateTables(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	expectMySQLSession(mock)
	mock.ExpectExec(regexp.QuoteMeta("TRUNCATE TABLE `customers`")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("TRUNCATE TABLE `orders`")).WillReturnError(errors.New("command denied"))
	mock.ExpectExec(regexp.QuoteMeta("TRUNCATE TABLE `payments`")).WillReturnResult(sqlmock.NewResult(0, 0))

	done, err := truncateTables(context.Background(), db, &mysqlDialect{}, []string{"customers", "orders", "payments"}, true)

	if err == nil {
		t.Fatal("expected aggregated error for orders")
	}
	if !slices.Equal(done, []string{"customers", "payments"}) {
		t.Errorf("truncated = %v, want [customers payments]", done)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestTruncateTables_SQLite(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("PRAGMA foreign_keys = OFF")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "teams"`)).WillReturnResult(sqlmock.NewResult(0, 30))

	done, err := truncateTables(context.Background(), db, &sqliteDialect{}, []string{"teams"}, false)
	if err != nil || len(done) != 1 {
		t.Errorf("truncateTables() = %v, %v", done, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
