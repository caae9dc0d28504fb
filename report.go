package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
)

// runSummary is everything printed at the end of a fill.
type runSummary struct {
	Database string
	Engine   string
	Rows     int
	Outcomes []TableOutcome
	Jumble   *JumbleReport
	Elapsed  time.Duration
}

// failedTables returns the tables whose worker reported an error.
func (s runSummary) failedTables() []string {
	var failed []string
	for _, o := range s.Outcomes {
		if o.Err != nil {
			failed = append(failed, o.Table)
		}
	}
	return failed
}

func printSummary(w io.Writer, s runSummary) {
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	red := color.New(color.FgRed)
	cyan := color.New(color.FgCyan)

	cyan.Fprintf(w, "\n%s %s: +%s rows per table\n", s.Engine, s.Database, humanize.Comma(int64(s.Rows)))

	var inserted, attempted int64
	var filled, skipped, rolledBack int
	for _, o := range s.Outcomes {
		inserted += o.Inserted
		attempted += o.Attempted
		switch {
		case o.Err != nil:
			red.Fprintf(w, "  ** %s not populated: %v\n", o.Table, o.Err)
		case o.Skipped:
			skipped++
		case o.RolledBack:
			rolledBack++
		default:
			filled++
		}
	}

	green.Fprintf(w, "  %d tables filled, %s of %s rows inserted\n",
		filled, humanize.Comma(inserted), humanize.Comma(attempted))
	if skipped > 0 {
		yellow.Fprintf(w, "  %d tables skipped (no fillable columns)\n", skipped)
	}
	if rolledBack > 0 {
		yellow.Fprintf(w, "  %d tables rolled back (enable strict_insert or debug for details)\n", rolledBack)
	}

	if j := s.Jumble; j != nil {
		var updated int64
		for _, n := range j.Updated {
			updated += n
		}
		if len(j.Denied) > 0 {
			red.Fprintf(w, "  foreign key jumbling denied in tables: %s (check UPDATE grant for user)\n", strings.Join(j.Denied, ","))
		}
		if len(j.Failures) > 0 {
			red.Fprintf(w, "  foreign key jumbling failed for tables: %s\n", strings.Join(j.Failures, ","))
		}
		if len(j.Skipped) > 0 {
			yellow.Fprintf(w, "  unique foreign keys left alone: %s\n", strings.Join(j.Skipped, ","))
		}
		if len(j.Denied) == 0 && len(j.Failures) == 0 {
			green.Fprintf(w, "  foreign keys jumbled (%s rows updated, limit %d)\n", humanize.Comma(updated), j.Limit)
		}
	}

	fmt.Fprintf(w, "\n%.3fs\n", s.Elapsed.Seconds())
}
