package main

import (
	"fmt"
	"strings"
)

// isGeneratedColumn reports whether the database computes the column's value
// itself (VIRTUAL or STORED generated), so it cannot be inserted.
func isGeneratedColumn(col Column) bool {
	extra := strings.ToLower(col.Extra)
	return strings.Contains(extra, "virtual generated") || strings.Contains(extra, "stored generated")
}

func collectGeneratedColumnWarnings(schema *Schema) []string {
	if schema == nil {
		return nil
	}

	var warnings []string
	for _, t := range schema.Tables {
		for _, col := range t.Columns {
			if !isGeneratedColumn(col) {
				continue
			}
			warnings = append(warnings, fmt.Sprintf(
				"generated column %s.%s (%s) is computed by the database and will not be filled",
				t.Name, col.Name, col.Extra,
			))
		}
	}
	return warnings
}
