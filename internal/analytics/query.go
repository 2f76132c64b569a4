package analytics

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"tablewise/internal/convo"
)

// maxQueryRows bounds result size so a runaway generated query cannot blow
// up the response.
const maxQueryRows = 500

// ErrNotReadOnly is returned when a generated statement is anything other
// than a single SELECT.
var ErrNotReadOnly = fmt.Errorf("only a single SELECT statement is allowed")

// Query runs a generated read-only statement and returns the result as a
// table. Anything other than one SELECT is rejected before touching the
// database.
func (s *Store) Query(ctx context.Context, sqlText string) (*convo.Table, error) {
	trimmed := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(sqlText), ";"))
	if statementVerb(trimmed) != "select" {
		return nil, ErrNotReadOnly
	}
	if strings.Contains(trimmed, ";") {
		return nil, ErrNotReadOnly
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	s.logger.Debug("executing generated query", zap.String("sql", trimmed))

	rows, err := s.db.QueryContext(ctx, trimmed)
	if err != nil {
		return nil, fmt.Errorf("query execution failed: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read result columns: %w", err)
	}

	table := &convo.Table{Columns: cols}
	values := make([]sql.NullString, len(cols))
	scanArgs := make([]interface{}, len(cols))
	for i := range values {
		scanArgs[i] = &values[i]
	}

	for rows.Next() {
		if len(table.Rows) >= maxQueryRows {
			break
		}
		if err := rows.Scan(scanArgs...); err != nil {
			return nil, fmt.Errorf("failed to scan result row: %w", err)
		}
		row := make([]string, len(cols))
		for i, v := range values {
			if v.Valid {
				row[i] = v.String
			}
		}
		table.Rows = append(table.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query iteration failed: %w", err)
	}

	return table, nil
}

// statementVerb returns the first top-level keyword that determines what a
// statement does. A WITH prologue does not decide the verb: SQLite allows
// CTE-prefixed DML, so "WITH t AS (SELECT 1) DELETE FROM orders" must report
// delete, not be waved through on its prefix. CTE bodies sit inside
// parentheses and are skipped along with string literals, quoted identifiers
// and comments.
func statementVerb(stmt string) string {
	s := strings.ToLower(stmt)
	depth := 0
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == '(':
			depth++
			i++
		case c == ')':
			depth--
			i++
		case c == '\'' || c == '"' || c == '`':
			i = skipQuoted(s, i, c)
		case c == '[':
			if end := strings.IndexByte(s[i+1:], ']'); end >= 0 {
				i += end + 2
			} else {
				i = len(s)
			}
		case c == '-' && i+1 < len(s) && s[i+1] == '-':
			if end := strings.IndexByte(s[i:], '\n'); end >= 0 {
				i += end + 1
			} else {
				i = len(s)
			}
		case c == '/' && i+1 < len(s) && s[i+1] == '*':
			if end := strings.Index(s[i+2:], "*/"); end >= 0 {
				i += end + 4
			} else {
				i = len(s)
			}
		case isWordByte(c):
			j := i
			for j < len(s) && isWordByte(s[j]) {
				j++
			}
			if depth == 0 {
				switch word := s[i:j]; word {
				case "select", "insert", "update", "delete", "replace",
					"create", "drop", "alter", "pragma", "attach", "detach",
					"vacuum", "reindex", "begin", "commit", "rollback":
					return word
				}
			}
			i = j
		default:
			i++
		}
	}
	return ""
}

// skipQuoted advances past a quoted region starting at start, honoring
// SQLite's doubled-quote escape.
func skipQuoted(s string, start int, q byte) int {
	for i := start + 1; i < len(s); i++ {
		if s[i] == q {
			if i+1 < len(s) && s[i+1] == q {
				i++
				continue
			}
			return i + 1
		}
	}
	return len(s)
}

func isWordByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '_'
}
