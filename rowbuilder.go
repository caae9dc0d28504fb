package main

import (
	"context"
	"fmt"
)

// TableTask is the resolved work for one table: the columns to insert, their
// generation strategies in the same order and the row count.
type TableTask struct {
	Table   string
	Columns []string
	Specs   []TypeSpec
	Rows    int
}

// GeneratedRow holds one value per TableTask column.
type GeneratedRow []any

// RunningKeyState carries the last value of every incrementing key column
// of one table from row to row. It is a value: Build returns the successor
// state and never mutates its argument.
type RunningKeyState struct {
	counters []keyCounter // indexed like TableTask.Specs
}

type keyCounter struct {
	last    int64
	started bool
}

func newRunningKeyState(columns int) RunningKeyState {
	return RunningKeyState{counters: make([]keyCounter, columns)}
}

// step advances column i. A primary key sequence starts at Seed+1, an
// incrementing foreign key at Value; later rows add one.
func (s *RunningKeyState) step(i int, spec TypeSpec) int64 {
	c := &s.counters[i]
	if c.started {
		c.last++
		return c.last
	}
	switch k := spec.(type) {
	case IntPKSpec:
		c.last = k.Seed + 1
	case IntFKSpec:
		c.last = k.Value
	}
	c.started = true
	return c.last
}

func (s RunningKeyState) clone() RunningKeyState {
	return RunningKeyState{counters: append([]keyCounter(nil), s.counters...)}
}

// RowBuilder assembles rows for a single TableTask.
type RowBuilder struct {
	task *TableTask
	gen  *generator
}

func newRowBuilder(task *TableTask, gen *generator) *RowBuilder {
	return &RowBuilder{task: task, gen: gen}
}

// Build generates the next row from state and returns it with the state to
// pass to the following call.
func (b *RowBuilder) Build(ctx context.Context, state RunningKeyState) (GeneratedRow, RunningKeyState, error) {
	next := state.clone()
	row := make(GeneratedRow, len(b.task.Specs))
	for i, spec := range b.task.Specs {
		if incrementing(spec) {
			row[i] = next.step(i, spec)
			continue
		}
		v, err := b.gen.value(ctx, spec)
		if err != nil {
			return nil, state, fmt.Errorf("%s.%s: %w", b.task.Table, b.task.Columns[i], err)
		}
		row[i] = v
	}
	return row, next, nil
}

// BuildAll builds task.Rows rows, threading key state from row to row.
func (b *RowBuilder) BuildAll(ctx context.Context) ([]GeneratedRow, error) {
	rows := make([]GeneratedRow, 0, b.task.Rows)
	state := newRunningKeyState(len(b.task.Specs))
	for range b.task.Rows {
		row, next, err := b.Build(ctx, state)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
		state = next
	}
	return rows, nil
}
