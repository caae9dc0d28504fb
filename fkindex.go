package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// FKTarget is the referenced side of a foreign key column.
type FKTarget struct {
	Table  string
	Column string
}

// ForeignKeyIndex maps a referencing column name to its target. It is keyed
// by column name alone: a name participates in at most one relation and the
// last relation read wins. Built once per run and read-only afterwards.
type ForeignKeyIndex map[string]FKTarget

func buildForeignKeyIndex(fks []ForeignKey) ForeignKeyIndex {
	idx := make(ForeignKeyIndex, len(fks))
	for _, fk := range fks {
		idx[fk.Column] = FKTarget{Table: fk.RefTable, Column: fk.RefColumn}
	}
	return idx
}

func (ix ForeignKeyIndex) lookup(column string) (FKTarget, bool) {
	t, ok := ix[column]
	return t, ok
}

// UniqueKeySet holds the unique constraint names plus every table.column
// covered by a unique constraint or a single-column primary key. Jumbling
// such a column would create duplicates.
type UniqueKeySet struct {
	names   map[string]bool
	columns map[string]bool
}

func buildUniqueKeySet(schema *Schema) UniqueKeySet {
	u := UniqueKeySet{names: map[string]bool{}, columns: map[string]bool{}}
	for _, uc := range schema.Uniques {
		u.names[uc.Name] = true
		for _, c := range uc.Columns {
			u.columns[uc.Table+"."+c] = true
		}
	}
	for _, t := range schema.Tables {
		var pk []string
		for _, c := range t.Columns {
			if c.Key == KeyPrimary {
				pk = append(pk, c.Name)
			}
			if c.Key == KeyUnique {
				u.columns[t.Name+"."+c.Name] = true
			}
		}
		if len(pk) == 1 {
			u.columns[t.Name+"."+pk[0]] = true
		}
	}
	return u
}

// covers reports whether the referencing column of fk is unique-constrained.
// MySQL names a single-column UNIQUE KEY after its column, so a constraint
// name equal to the column name also counts.
func (u UniqueKeySet) covers(fk ForeignKey) bool {
	return u.names[fk.Column] || u.columns[fk.Table+"."+fk.Column]
}

// lookupFKSeeds reads the current maximum of every referenced key behind an
// integer FK column of cols. Runs on the worker's own session.
func lookupFKSeeds(ctx context.Context, q sqlExecutor, d Dialect, cols []Column, fks ForeignKeyIndex) (map[string]fkSeed, error) {
	seeds := make(map[string]fkSeed)
	for _, col := range cols {
		if !isIntegerType(col.DataType) {
			continue
		}
		target, ok := fks.lookup(col.Name)
		if !ok {
			continue
		}

		var max sql.NullInt64
		err := q.QueryRowContext(ctx, maxValueSQL(d, target.Table, target.Column)).Scan(&max)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			seeds[col.Name] = fkSeed{}
		case err != nil:
			return nil, fmt.Errorf("max %s.%s for %s: %w", target.Table, target.Column, col.Name, err)
		default:
			seeds[col.Name] = fkSeed{Max: max.Int64, Found: max.Valid}
		}
	}
	return seeds, nil
}
