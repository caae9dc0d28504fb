package main

import "fmt"

// SourceObjects holds non-table objects that affect, or are skipped by, a fill.
type SourceObjects struct {
	Views    []string
	Triggers []string
}

// sourceObjectWarnings describes views (never filled) and triggers (fire on
// every generated row).
func sourceObjectWarnings(objs *SourceObjects) []string {
	if objs == nil || len(objs.Views) == 0 && len(objs.Triggers) == 0 {
		return nil
	}

	warnings := []string{fmt.Sprintf(
		"database contains non-table objects (%d views, %d triggers): views are not filled, triggers fire on inserted rows",
		len(objs.Views), len(objs.Triggers),
	)}
	for _, v := range objs.Views {
		warnings = append(warnings, fmt.Sprintf("view: %s", v))
	}
	for _, t := range objs.Triggers {
		warnings = append(warnings, fmt.Sprintf("trigger: %s", t))
	}
	return warnings
}
