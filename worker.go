package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"
)

// TableOutcome is what one TableWorker reports back to the scheduler.
type TableOutcome struct {
	Table      string
	Attempted  int64 // rows generated and sent
	Inserted   int64 // rows the database reports as inserted
	Skipped    bool  // no eligible columns
	RolledBack bool
	Err        error
	Warnings   []string
	Elapsed    time.Duration
}

// TableWorker fills one table on its own database session. Its fields are
// fixed when the task is created; the worker shares nothing mutable.
type TableWorker struct {
	db      *sql.DB
	dialect Dialect
	table   Table
	fks     ForeignKeyIndex
	opts    ResolveOptions
	rows    int
	strict  bool
	debug   bool
	rowEcho bool
	seed    int64
}

func newTableWorker(db *sql.DB, d Dialect, cfg *FillConfig, table Table, fks ForeignKeyIndex, seed int64) *TableWorker {
	return &TableWorker{
		db:      db,
		dialect: d,
		table:   table,
		fks:     fks,
		opts:    cfg.resolveOptions(),
		rows:    cfg.Rows,
		strict:  cfg.StrictInsert,
		debug:   cfg.Debug,
		rowEcho: cfg.ExtendedDebug,
		seed:    seed,
	}
}

// Run resolves, builds and inserts the table's rows in one transaction.
func (w *TableWorker) Run(ctx context.Context) TableOutcome {
	start := time.Now()
	out := w.run(ctx)
	out.Table = w.table.Name
	out.Elapsed = time.Since(start)
	return out
}

func (w *TableWorker) run(ctx context.Context) TableOutcome {
	var out TableOutcome

	conn, err := w.db.Conn(ctx)
	if err != nil {
		out.Err = fmt.Errorf("%w: %v", ErrConnection, err)
		return out
	}
	defer conn.Close()

	if err := w.dialect.PrepareSession(ctx, conn); err != nil {
		out.Err = fmt.Errorf("prepare session: %w", err)
		return out
	}

	var seeds map[string]fkSeed
	if w.opts.ProcessIntFKs {
		seeds, err = lookupFKSeeds(ctx, conn, w.dialect, w.table.Columns, w.fks)
		if err != nil {
			out.Err = err
			return out
		}
	}

	task := &TableTask{Table: w.table.Name, Rows: w.rows}
	for _, r := range resolveTable(w.table, w.fks, seeds, w.opts) {
		if r.Warning != nil {
			out.Warnings = append(out.Warnings, r.Warning.Error())
		}
		switch r.Action {
		case ActionEmit:
			task.Columns = append(task.Columns, r.Column.Name)
			task.Specs = append(task.Specs, r.Spec)
		case ActionSkip:
			if w.debug {
				log.Printf("    %s.%s skipped: %s", w.table.Name, r.Column.Name, r.Reason)
			}
		}
	}
	if len(task.Columns) == 0 {
		out.Skipped = true
		return out
	}
	if w.debug {
		log.Printf("    %s specs: %v", w.table.Name, task.Specs)
	}

	gen := newGenerator(w.seed, &sessionKeyLookup{q: conn, dialect: w.dialect})
	rows, err := newRowBuilder(task, gen).BuildAll(ctx)
	if err != nil {
		out.Err = err
		return out
	}
	out.Attempted = int64(len(rows))
	if w.rowEcho {
		for _, r := range rows {
			log.Printf("    %s row: %v", w.table.Name, r)
		}
	}

	inserted, err := w.insert(ctx, conn, task, rows)
	if err != nil {
		out.RolledBack = true
		if w.dialect.IsDuplicateKey(err) {
			err = fmt.Errorf("%w: %v", ErrDuplicateKey, err)
		}
		err = fmt.Errorf("%s not populated: %w", w.table.Name, err)
		if w.strict {
			out.Err = err
		} else if w.debug {
			log.Printf("    rolled back %s: %v", w.table.Name, err)
		}
		return out
	}
	out.Inserted = inserted
	return out
}

// insert writes rows in placeholder-bounded chunks inside one transaction;
// any failure rolls back the whole table.
func (w *TableWorker) insert(ctx context.Context, conn *sql.Conn, task *TableTask, rows []GeneratedRow) (int64, error) {
	ignore := !w.strict
	if w.debug {
		log.Printf("    SQL: %s", buildInsertSQL(w.dialect, task.Table, task.Columns, 1, ignore))
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}

	var inserted int64
	for _, chunk := range chunkRows(rows, w.dialect.MaxPlaceholders()/len(task.Columns)) {
		args := make([]any, 0, len(chunk)*len(task.Columns))
		for _, r := range chunk {
			args = append(args, r...)
		}
		res, err := tx.ExecContext(ctx, buildInsertSQL(w.dialect, task.Table, task.Columns, len(chunk), ignore), args...)
		if err != nil {
			return 0, errors.Join(err, tx.Rollback())
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += n
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}

// chunkRows splits rows into groups of at most size (at least 1).
func chunkRows(rows []GeneratedRow, size int) [][]GeneratedRow {
	if size < 1 {
		size = 1
	}
	var chunks [][]GeneratedRow
	for len(rows) > size {
		chunks = append(chunks, rows[:size])
		rows = rows[size:]
	}
	if len(rows) > 0 {
		chunks = append(chunks, rows)
	}
	return chunks
}

// sessionKeyLookup checks char-key candidates on the worker's session.
type sessionKeyLookup struct {
	q       sqlExecutor
	dialect Dialect
}

func (l *sessionKeyLookup) existingKey(ctx context.Context, table, column, candidate string) (string, bool, error) {
	var found string
	err := l.q.QueryRowContext(ctx, pointLookupSQL(l.dialect, table, column), candidate).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return found, true, nil
}
