package sqlexec

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// renderRows renders a result set the way a MySQL client library prints a
// fetched result: a list of tuples, e.g. [(1, 'a'), (2, None)]. Agents are
// prompted to expect this raw form. A statement without columns renders "".
func renderRows(rows *sql.Rows) (string, error) {
	cols, err := rows.Columns()
	if err != nil {
		return "", err
	}
	if len(cols) == 0 {
		for rows.Next() {
		}
		return "", rows.Err()
	}

	numeric := make([]bool, len(cols))
	if types, err := rows.ColumnTypes(); err == nil {
		for i, ct := range types {
			numeric[i] = isNumericType(ct.DatabaseTypeName())
		}
	}

	var b strings.Builder
	b.WriteString("[")
	first := true
	for rows.Next() {
		values := make([]any, len(cols))
		dest := make([]any, len(cols))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return "", err
		}
		if !first {
			b.WriteString(", ")
		}
		first = false
		b.WriteString(renderTuple(values, numeric))
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	b.WriteString("]")
	return b.String(), nil
}

// renderTuple renders one row; single-element tuples keep a trailing comma.
// Raw bytes from numeric columns (Postgres NUMERIC) render bare.
func renderTuple(values []any, numeric []bool) string {
	parts := make([]string, len(values))
	for i, v := range values {
		if raw, ok := v.([]byte); ok && i < len(numeric) && numeric[i] {
			parts[i] = string(raw)
			continue
		}
		parts[i] = renderValue(v)
	}
	if len(parts) == 1 {
		return "(" + parts[0] + ",)"
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func renderValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "None"
	case []byte:
		return quoteString(string(x))
	case string:
		return quoteString(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		s := strconv.FormatFloat(x, 'f', -1, 64)
		if !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
		return s
	case bool:
		if x {
			return "1"
		}
		return "0"
	case time.Time:
		return quoteString(x.Format("2006-01-02 15:04:05"))
	default:
		return quoteString(fmt.Sprint(x))
	}
}

// quoteString picks single quotes unless the value contains one and no
// double quote, matching Python's repr of a str.
func quoteString(s string) string {
	if strings.Contains(s, "'") && !strings.Contains(s, `"`) {
		return `"` + escape(s, '"') + `"`
	}
	return "'" + escape(s, '\'') + "'"
}

func escape(s string, quote byte) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\\':
			b.WriteString(`\\`)
		case c == quote:
			b.WriteByte('\\')
			b.WriteByte(c)
		case c == '\n':
			b.WriteString(`\n`)
		case c == '\t':
			b.WriteString(`\t`)
		case c == '\r':
			b.WriteString(`\r`)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
