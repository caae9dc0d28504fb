package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
)

// postFill runs the steps that need every table worker to have finished:
// 1. FK jumbling, 2. after_fill hooks.
func postFill(ctx context.Context, db *sql.DB, d Dialect, schema *Schema, cfg *FillConfig, dbName string) (*JumbleReport, error) {
	var report *JumbleReport

	steps := []struct {
		name    string
		enabled bool
		fn      func(context.Context) error
	}{
		{"jumbling foreign keys", cfg.JumbleFKs, func(ctx context.Context) error {
			if len(schema.ForeignKeys) == 0 {
				log.Printf("    no explicit foreign keys to jumble")
				return nil
			}
			engine := newJumbleEngine(db, d, cfg, buildUniqueKeySet(schema))
			rep := engine.Run(ctx, schema.ForeignKeys)
			report = &rep
			return nil // jumble failures are reported, never fatal
		}},
		{"after_fill hooks", len(cfg.Hooks.AfterFill) > 0, func(ctx context.Context) error {
			return runHookFiles(ctx, db, cfg, dbName, cfg.Hooks.AfterFill, "after_fill")
		}},
	}

	for _, step := range steps {
		if !step.enabled {
			continue
		}
		log.Printf("  %s...", step.name)
		if err := step.fn(ctx); err != nil {
			return report, fmt.Errorf("%s: %w", step.name, err)
		}
	}
	return report, nil
}
