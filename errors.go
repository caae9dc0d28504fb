package main

import "errors"

var (
	// ErrUnsupportedType marks a column type without a generator. The column is
	// left out of the INSERT and the run continues.
	ErrUnsupportedType = errors.New("unsupported data type")

	// ErrDuplicateKey is an insert-time unique/primary key violation.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrEmptyReferencedTable means a referenced table had no rows to pick from.
	ErrEmptyReferencedTable = errors.New("referenced table is empty")

	// ErrPrivilegeDenied means a jumble UPDATE was refused by the engine or
	// changed no rows, usually because the user lacks the UPDATE grant.
	ErrPrivilegeDenied = errors.New("update denied")

	// ErrNoTables is fatal: the database has no base tables.
	ErrNoTables = errors.New("database contains no tables")

	// ErrConnection is fatal: the database could not be reached.
	ErrConnection = errors.New("database connection failed")
)
