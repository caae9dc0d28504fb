package main

import (
	"fmt"
	"strings"
)

// parseEnumChoices extracts the quoted literals of an enum(...) or set(...)
// column type. Both '' and \' escapes are understood.
func parseEnumChoices(columnType string) ([]string, error) {
	open := strings.IndexByte(columnType, '(')
	close := strings.LastIndexByte(columnType, ')')
	if open < 0 || close <= open {
		return nil, fmt.Errorf("invalid enum/set column_type %q", columnType)
	}

	inside := columnType[open+1 : close]
	var choices []string
	for i := 0; i < len(inside); {
		for i < len(inside) && (inside[i] == ' ' || inside[i] == ',') {
			i++
		}
		if i >= len(inside) {
			break
		}
		if inside[i] != '\'' {
			return nil, fmt.Errorf("invalid enum/set value list in %q", columnType)
		}
		i++

		var b strings.Builder
		closed := false
		for i < len(inside) && !closed {
			switch c := inside[i]; {
			case c == '\\':
				if i+1 >= len(inside) {
					return nil, fmt.Errorf("invalid escape in %q", columnType)
				}
				b.WriteByte(inside[i+1])
				i += 2
			case c == '\'' && i+1 < len(inside) && inside[i+1] == '\'':
				b.WriteByte('\'')
				i += 2
			case c == '\'':
				closed = true
				i++
			default:
				b.WriteByte(c)
				i++
			}
		}
		if !closed {
			return nil, fmt.Errorf("unterminated literal in %q", columnType)
		}
		choices = append(choices, b.String())
	}

	if len(choices) == 0 {
		return nil, fmt.Errorf("no choices in %q", columnType)
	}
	return choices, nil
}
