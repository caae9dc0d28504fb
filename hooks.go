package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
)

// runHookFiles reads each SQL file, expands {{database}}, and executes every
// statement on db.
func runHookFiles(ctx context.Context, db sqlExecutor, cfg *FillConfig, dbName string, files []string, phase string) error {
	if len(files) == 0 {
		return nil
	}
	log.Printf("  running %s hooks (%d files)...", phase, len(files))

	for _, f := range files {
		data, err := os.ReadFile(cfg.resolvePath(f))
		if err != nil {
			return fmt.Errorf("hook %s: read %s: %w", phase, f, err)
		}

		stmts := splitStatements(strings.ReplaceAll(string(data), "{{database}}", dbName))
		log.Printf("    %s: %d statements", f, len(stmts))
		for i, stmt := range stmts {
			if cfg.Debug {
				log.Printf("    SQL: %s", stmt)
			}
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("hook %s: %s: statement %d: %w\nSQL: %s", phase, f, i+1, err, stmt)
			}
		}
	}
	return nil
}

// splitStatements splits SQL text on semicolons, ignoring empty entries and
// semicolons inside quotes, comments and dollar-quoted blocks. It accepts
// MySQL (#, backticks), PostgreSQL and SQLite syntax.
func splitStatements(sql string) []string {
	var stmts []string
	var current strings.Builder
	var quote byte // active ', " or ` quote
	inLineComment := false
	blockCommentDepth := 0
	dollarTag := ""

	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			stmts = append(stmts, s)
		}
		current.Reset()
	}

	for i := 0; i < len(sql); i++ {
		c := sql[i]

		switch {
		case inLineComment:
			current.WriteByte(c)
			if c == '\n' {
				inLineComment = false
			}

		case blockCommentDepth > 0:
			current.WriteByte(c)
			if c == '/' && i+1 < len(sql) && sql[i+1] == '*' {
				current.WriteByte('*')
				i++
				blockCommentDepth++
			} else if c == '*' && i+1 < len(sql) && sql[i+1] == '/' {
				current.WriteByte('/')
				i++
				blockCommentDepth--
			}

		case quote != 0:
			current.WriteByte(c)
			if c != quote {
				continue
			}
			// doubled quote is an escaped quote
			if i+1 < len(sql) && sql[i+1] == quote {
				current.WriteByte(quote)
				i++
			} else {
				quote = 0
			}

		case dollarTag != "":
			if strings.HasPrefix(sql[i:], dollarTag) {
				current.WriteString(dollarTag)
				i += len(dollarTag) - 1
				dollarTag = ""
			} else {
				current.WriteByte(c)
			}

		case c == '-' && i+1 < len(sql) && sql[i+1] == '-', c == '#':
			current.WriteByte(c)
			inLineComment = true

		case c == '/' && i+1 < len(sql) && sql[i+1] == '*':
			current.WriteString("/*")
			i++
			blockCommentDepth = 1

		case c == '\'' || c == '"' || c == '`':
			current.WriteByte(c)
			quote = c

		case c == '$':
			if tag, ok := parseDollarTag(sql, i); ok {
				current.WriteString(tag)
				i += len(tag) - 1
				dollarTag = tag
				continue
			}
			current.WriteByte(c)

		case c == ';':
			flush()

		default:
			current.WriteByte(c)
		}
	}

	// Trailing statement without semicolon
	flush()
	return stmts
}

func parseDollarTag(sql string, i int) (string, bool) {
	if i >= len(sql) || sql[i] != '$' {
		return "", false
	}
	// $$...$$
	if i+1 < len(sql) && sql[i+1] == '$' {
		return "$$", true
	}

	// $tag$...$tag$ where tag uses identifier chars.
	j := i + 1
	if j >= len(sql) || !isDollarTagStart(sql[j]) {
		return "", false
	}
	for j < len(sql) && isDollarTagChar(sql[j]) {
		j++
	}
	if j < len(sql) && sql[j] == '$' {
		return sql[i : j+1], true
	}
	return "", false
}

func isDollarTagStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDollarTagChar(c byte) bool {
	return isDollarTagStart(c) || (c >= '0' && c <= '9')
}
