package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/hashicorp/go-multierror"
)

// truncateTables empties every table on one session with FK checks off.
// A failing table is reported and the rest are still truncated.
func truncateTables(ctx context.Context, db *sql.DB, d Dialect, tables []string, debug bool) ([]string, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}
	defer conn.Close()
	if err := d.PrepareSession(ctx, conn); err != nil {
		return nil, fmt.Errorf("prepare session: %w", err)
	}

	var merr *multierror.Error
	var truncated []string
	for _, t := range tables {
		q := d.TruncateSQL(t)
		if debug {
			log.Printf("    SQL: %s", q)
		}
		if _, err := conn.ExecContext(ctx, q); err != nil {
			log.Printf("  truncation failed for %s: %v", t, err)
			merr = multierror.Append(merr, fmt.Errorf("truncate %s: %w", t, err))
			continue
		}
		log.Printf("  truncated table %s", t)
		truncated = append(truncated, t)
	}
	return truncated, merr.ErrorOrNil()
}
