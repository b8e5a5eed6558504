// Package sqlexec executes agent SQL against per-sample database namespaces.
// Each sample owns one namespace for its lifetime; the namespace is created
// from the task table definition and dropped when the sample ends.
package sqlexec

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/berth-dev/dbbench/internal/dataset"
)

// Driver names accepted in executor config.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DialectName returns the SQL dialect agents write for driver.
func DialectName(driver string) string {
	switch driver {
	case DriverPostgres:
		return "PostgreSQL"
	default:
		return "SQLite"
	}
}

// ErrNamespaceClosed is returned by operations on a dropped namespace.
var ErrNamespaceClosed = errors.New("namespace already dropped")

// Config selects and configures the backing database.
type Config struct {
	Driver  string `yaml:"driver"`
	DSN     string `yaml:"dsn"`      // postgres connection string
	WorkDir string `yaml:"work_dir"` // directory for sqlite namespace files
}

// Executor creates isolated namespaces for samples.
type Executor interface {
	// Create provisions a namespace holding the entry's table and rows.
	Create(ctx context.Context, entry dataset.Entry) (Namespace, error)
	Close() error
}

// Namespace is the exclusive database scope of one sample.
type Namespace interface {
	Name() string
	// Execute runs a statement and renders its result set as text. SQL
	// errors are rendered as text too; only executor faults return an error.
	// Statements without a result set render as "".
	Execute(ctx context.Context, query string, args ...any) (string, error)
	// Rows returns every row of table projected on columns. NULL cells are nil.
	Rows(ctx context.Context, table string, columns []string) ([][]*string, error)
	// Drop releases the namespace. Calls after the first are no-ops.
	Drop(ctx context.Context) error
}

// Open returns the executor for cfg.Driver.
func Open(cfg Config) (Executor, error) {
	switch cfg.Driver {
	case DriverSQLite, "":
		return NewSQLite(cfg.WorkDir)
	case DriverPostgres:
		return NewPostgres(cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown executor driver %q", cfg.Driver)
	}
}

// querier is satisfied by both *sql.DB and *sql.Conn.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// dialect captures the per-driver differences the shared namespace needs.
type dialect struct {
	placeholder func(n int) string
	maxParams   int
	// isSQLError reports whether err came from the database evaluating the
	// statement, as opposed to a connection or driver fault.
	isSQLError func(err error) bool
}

// namespace implements Namespace over a querier.
type namespace struct {
	name    string
	q       querier
	dialect dialect
	release func(ctx context.Context) error

	mu      sync.Mutex
	dropped bool
}

func (n *namespace) Name() string {
	return n.name
}

func (n *namespace) Execute(ctx context.Context, query string, args ...any) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.dropped {
		return "", ErrNamespaceClosed
	}
	if strings.TrimSpace(query) == "" {
		return "query was empty", nil
	}

	rows, err := n.q.QueryContext(ctx, query, args...)
	if err != nil {
		if ctx.Err() == nil && n.dialect.isSQLError(err) {
			return err.Error(), nil
		}
		return "", fmt.Errorf("executing statement: %w", err)
	}
	defer func() { _ = rows.Close() }()

	text, err := renderRows(rows)
	if err != nil {
		if ctx.Err() == nil && n.dialect.isSQLError(err) {
			return err.Error(), nil
		}
		return "", fmt.Errorf("reading result: %w", err)
	}
	return text, nil
}

func (n *namespace) Rows(ctx context.Context, table string, columns []string) ([][]*string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.dropped {
		return nil, ErrNamespaceClosed
	}

	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = QuoteIdent(c)
	}
	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(quoted, ", "), QuoteIdent(table))

	rows, err := n.q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("selecting %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	var out [][]*string
	for rows.Next() {
		cells := make([]any, len(columns))
		dest := make([]any, len(columns))
		for i := range cells {
			dest[i] = &cells[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scanning %s: %w", table, err)
		}
		row := make([]*string, len(columns))
		for i, c := range cells {
			row[i] = cellText(c)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

func (n *namespace) Drop(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.dropped {
		return nil
	}
	n.dropped = true
	if err := n.release(ctx); err != nil {
		return fmt.Errorf("dropping namespace %s: %w", n.name, err)
	}
	return nil
}

// newNamespaceName returns a fresh identifier safe for file and schema names.
func newNamespaceName() string {
	return "ns_" + strings.ReplaceAll(uuid.New().String(), "-", "")
}

// QuoteIdent quotes an identifier with double quotes, doubling embedded quotes.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// cellText renders a scanned cell in the textual form the ground-truth
// fingerprints were computed from. Numbers never use exponent notation.
func cellText(v any) *string {
	var s string
	switch x := v.(type) {
	case nil:
		return nil
	case []byte:
		s = string(x)
	default:
		s = dataset.FormatValue(x)
	}
	return &s
}

// numericTypes are the declared column types created with numeric semantics,
// so comparisons, MIN/MAX and ORDER BY treat their cells as numbers.
var numericTypes = map[string]bool{
	"INT": true, "INTEGER": true, "TINYINT": true, "SMALLINT": true, "MEDIUMINT": true, "BIGINT": true,
	"INT2": true, "INT4": true, "INT8": true,
	"FLOAT": true, "FLOAT4": true, "FLOAT8": true, "DOUBLE": true, "REAL": true,
	"DECIMAL": true, "DEC": true, "NUMERIC": true, "FIXED": true,
}

// isNumericType reports whether a declared type such as "int(11) unsigned"
// or "DOUBLE PRECISION" is numeric.
func isNumericType(declared string) bool {
	t := strings.ToUpper(strings.TrimSpace(declared))
	if i := strings.IndexAny(t, "( "); i >= 0 {
		t = t[:i]
	}
	return numericTypes[t]
}

// columnType maps a dataset column type onto the type it is created with.
// NUMERIC accepts integers and decimals alike on both drivers; everything
// else is TEXT so cell values keep their exact textual form.
func columnType(declared string) string {
	if isNumericType(declared) {
		return "NUMERIC"
	}
	return "TEXT"
}

// seedTable creates the entry's table and inserts its rows in batches.
func seedTable(ctx context.Context, q querier, d dialect, entry dataset.Entry) error {
	stmts := buildInitSQL(entry, d)
	for _, s := range stmts {
		if _, err := q.ExecContext(ctx, s.Query, s.Args...); err != nil {
			return fmt.Errorf("init table %s: %w", entry.Table.Name, err)
		}
	}
	return nil
}

// statement is a query with its bind arguments.
type statement struct {
	Query string
	Args  []any
}

// buildInitSQL returns the CREATE TABLE statement followed by batched
// INSERT statements for the entry's rows.
func buildInitSQL(entry dataset.Entry, d dialect) []statement {
	cols := entry.Table.Info.Columns
	table := QuoteIdent(entry.Table.Name)

	defs := make([]string, len(cols))
	names := make([]string, len(cols))
	for i, c := range cols {
		defs[i] = QuoteIdent(c.Name) + " " + columnType(c.Type)
		names[i] = QuoteIdent(c.Name)
	}

	stmts := []statement{{
		Query: fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", table, strings.Join(defs, ", ")),
	}}
	if len(cols) == 0 || len(entry.Table.Info.Rows) == 0 {
		return stmts
	}

	batch := d.maxParams / len(cols)
	if batch < 1 {
		batch = 1
	}

	rows := entry.Table.Info.Rows
	for start := 0; start < len(rows); start += batch {
		end := start + batch
		if end > len(rows) {
			end = len(rows)
		}

		var values []string
		var args []any
		for _, row := range rows[start:end] {
			ph := make([]string, len(cols))
			for i := range cols {
				args = append(args, cellArg(row, i))
				ph[i] = d.placeholder(len(args))
			}
			values = append(values, "("+strings.Join(ph, ", ")+")")
		}

		stmts = append(stmts, statement{
			Query: fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", table, strings.Join(names, ", "), strings.Join(values, ", ")),
			Args:  args,
		})
	}
	return stmts
}

// cellArg converts a decoded dataset cell into a textual bind argument; the
// column type converts it on insert. Missing and null cells bind as NULL.
func cellArg(row []any, i int) any {
	if i >= len(row) || row[i] == nil {
		return nil
	}
	return dataset.FormatValue(row[i])
}
