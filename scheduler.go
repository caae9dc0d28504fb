package main

import (
	"context"
	"log"
	"time"

	"golang.org/x/sync/errgroup"
)

// tableRunner is one schedulable table task.
type tableRunner interface {
	Run(ctx context.Context) TableOutcome
}

// runTables executes every task on a pool of at most workers goroutines and
// returns the outcomes in task order. A failing table never cancels the
// others: tasks report through their outcome slot, not the group error, and
// Wait is the barrier after which every insert has committed or rolled back.
func runTables(ctx context.Context, workers int, tasks []tableRunner) []TableOutcome {
	if workers < 1 {
		workers = 1
	}
	outcomes := make([]TableOutcome, len(tasks))

	var g errgroup.Group
	g.SetLimit(workers)
	for i, task := range tasks {
		g.Go(func() error {
			out := task.Run(ctx)
			logOutcome(out)
			outcomes[i] = out
			return nil
		})
	}
	_ = g.Wait() // goroutines never return errors

	return outcomes
}

func logOutcome(out TableOutcome) {
	switch {
	case out.Err != nil:
		log.Printf("  %s: FAILED: %v", out.Table, out.Err)
	case out.Skipped:
		log.Printf("  %s: skipped (no fillable columns)", out.Table)
	case out.RolledBack:
		log.Printf("  %s: rolled back", out.Table)
	default:
		log.Printf("  %s: %d/%d rows (%s)", out.Table, out.Inserted, out.Attempted, out.Elapsed.Round(time.Millisecond))
	}
	for _, w := range out.Warnings {
		log.Printf("    WARN: %s", w)
	}
}
