package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"slices"

	"github.com/hashicorp/go-multierror"
)

// JumbleReport summarises the jumble pass. It never aborts the run.
type JumbleReport struct {
	Limit    int64
	Updated  map[string]int64 // rows updated per referencing table
	Skipped  []string         // table.column relations covered by a unique key
	Failures []string         // tables whose referenced table had nothing to sample
	Denied   []string         // tables where an UPDATE changed no rows
	Err      error            // every failure, aggregated
}

// JumbleEngine reassigns a share of foreign key values to random existing
// referenced keys, one relation after another on a single session.
type JumbleEngine struct {
	db      *sql.DB
	dialect Dialect
	uniques UniqueKeySet
	rows    int
	pct     int
	debug   bool
}

func newJumbleEngine(db *sql.DB, d Dialect, cfg *FillConfig, uniques UniqueKeySet) *JumbleEngine {
	return &JumbleEngine{
		db:      db,
		dialect: d,
		uniques: uniques,
		rows:    cfg.Rows,
		pct:     cfg.FKPctReplace,
		debug:   cfg.ExtendedDebug,
	}
}

// jumbleLimit is ceil(rows * pct / 100).
func jumbleLimit(rows, pct int) int64 {
	return (int64(rows)*int64(pct) + 99) / 100
}

// Run applies every relation in fks. Relations are processed sequentially so
// each sample reads the state left by the previous update.
func (j *JumbleEngine) Run(ctx context.Context, fks []ForeignKey) JumbleReport {
	rep := JumbleReport{Limit: jumbleLimit(j.rows, j.pct), Updated: map[string]int64{}}
	if rep.Limit == 0 || len(fks) == 0 {
		return rep
	}

	var merr *multierror.Error
	conn, err := j.db.Conn(ctx)
	if err != nil {
		rep.Err = fmt.Errorf("%w: %v", ErrConnection, err)
		return rep
	}
	defer conn.Close()
	if err := j.dialect.PrepareSession(ctx, conn); err != nil {
		rep.Err = fmt.Errorf("prepare session: %w", err)
		return rep
	}

	for _, fk := range fks {
		if j.uniques.covers(fk) {
			rep.Skipped = append(rep.Skipped, fk.Table+"."+fk.Column)
			continue
		}

		values, err := j.sample(ctx, conn, fk, rep.Limit)
		if err != nil {
			merr = multierror.Append(merr, fmt.Errorf("jumble %s.%s: sample %s.%s: %w", fk.Table, fk.Column, fk.RefTable, fk.RefColumn, err))
			appendOnce(&rep.Failures, fk.Table)
			continue
		}
		if len(values) == 0 {
			merr = multierror.Append(merr, fmt.Errorf("jumble %s.%s: %w: %s", fk.Table, fk.Column, ErrEmptyReferencedTable, fk.RefTable))
			appendOnce(&rep.Failures, fk.Table)
			continue
		}

		update := j.dialect.RandomUpdateSQL(fk.Table, fk.Column, rep.Limit)
		for _, v := range values {
			if j.debug {
				log.Printf("    SQL: %s [%v]", update, v)
			}
			res, err := conn.ExecContext(ctx, update, v)
			if err != nil && j.dialect.IsPermissionDenied(err) {
				merr = multierror.Append(merr, fmt.Errorf("jumble %s.%s: %w: %v", fk.Table, fk.Column, ErrPrivilegeDenied, err))
				appendOnce(&rep.Denied, fk.Table)
				break
			}
			if err != nil {
				merr = multierror.Append(merr, fmt.Errorf("jumble %s.%s: %w", fk.Table, fk.Column, err))
				appendOnce(&rep.Failures, fk.Table)
				break
			}
			n, err := res.RowsAffected()
			if err != nil || n == 0 {
				merr = multierror.Append(merr, fmt.Errorf("jumble %s.%s: %w: no rows affected", fk.Table, fk.Column, ErrPrivilegeDenied))
				appendOnce(&rep.Denied, fk.Table)
				continue
			}
			rep.Updated[fk.Table] += n
		}
	}

	rep.Err = merr.ErrorOrNil()
	return rep
}

// sample picks up to limit random values of the referenced key column.
func (j *JumbleEngine) sample(ctx context.Context, q sqlExecutor, fk ForeignKey, limit int64) ([]any, error) {
	query := randomSampleSQL(j.dialect, fk.RefTable, fk.RefColumn, limit)
	if j.debug {
		log.Printf("    SQL: %s", query)
	}
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var values []any
	for rows.Next() {
		var v any
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

func appendOnce(list *[]string, s string) {
	if !slices.Contains(*list, s) {
		*list = append(*list, s)
	}
}
