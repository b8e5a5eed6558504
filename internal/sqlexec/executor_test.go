package sqlexec

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/berth-dev/dbbench/internal/dataset"
)

func peopleEntry() dataset.Entry {
	return dataset.Entry{
		Description: "people",
		Type:        []string{dataset.KindSelect},
		Table: dataset.Table{
			Name: "people",
			Info: dataset.TableInfo{
				Columns: []dataset.Column{{Name: "id", Type: "INT"}, {Name: "name", Type: "TEXT"}},
				Rows: [][]any{
					{1, "ann"},
					{2, "bob's"},
					{3, nil},
				},
			},
		},
	}
}

func newNamespace(t *testing.T) (*SQLite, Namespace) {
	t.Helper()
	exec, err := NewSQLite(t.TempDir())
	require.NoError(t, err)
	ns, err := exec.Create(context.Background(), peopleEntry())
	require.NoError(t, err)
	t.Cleanup(func() { _ = ns.Drop(context.Background()) })
	return exec, ns
}

func TestSQLiteExecuteSelect(t *testing.T) {
	_, ns := newNamespace(t)
	ctx := context.Background()

	out, err := ns.Execute(ctx, `SELECT id, name FROM people ORDER BY id`)
	require.NoError(t, err)
	assert.Equal(t, `[(1, 'ann'), (2, "bob's"), (3, None)]`, out)

	out, err = ns.Execute(ctx, `SELECT COUNT(*) FROM people`)
	require.NoError(t, err)
	assert.Equal(t, `[(3,)]`, out)
}

func TestSQLiteExecuteWriteRendersEmpty(t *testing.T) {
	_, ns := newNamespace(t)
	ctx := context.Background()

	out, err := ns.Execute(ctx, `INSERT INTO people (id, name) VALUES ('4', 'dan')`)
	require.NoError(t, err)
	assert.Equal(t, "", out)

	rows, err := ns.Rows(ctx, "people", []string{"id", "name"})
	require.NoError(t, err)
	assert.Len(t, rows, 4)
}

func TestSQLiteExecuteSQLErrorIsText(t *testing.T) {
	_, ns := newNamespace(t)

	out, err := ns.Execute(context.Background(), `SELEC * FROM people`)
	require.NoError(t, err)
	assert.Contains(t, out, "syntax error")

	out, err = ns.Execute(context.Background(), "   ")
	require.NoError(t, err)
	assert.Equal(t, "query was empty", out)
}

func TestSQLiteRowsKeepsNulls(t *testing.T) {
	_, ns := newNamespace(t)

	rows, err := ns.Rows(context.Background(), "people", []string{"id", "name"})
	require.NoError(t, err)
	require.Len(t, rows, 3)

	var nulls int
	for _, r := range rows {
		if r[1] == nil {
			nulls++
		}
	}
	assert.Equal(t, 1, nulls)
}

func TestSQLiteDropRemovesFileOnce(t *testing.T) {
	exec, ns := newNamespace(t)
	ctx := context.Background()
	path := filepath.Join(exec.WorkDir(), ns.Name()+".db")

	_, err := os.Stat(path)
	require.NoError(t, err)

	require.NoError(t, ns.Drop(ctx))
	require.NoError(t, ns.Drop(ctx))

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	_, err = ns.Execute(ctx, "SELECT 1")
	assert.ErrorIs(t, err, ErrNamespaceClosed)
	_, err = ns.Rows(ctx, "people", []string{"id"})
	assert.ErrorIs(t, err, ErrNamespaceClosed)
}

func TestSQLiteNamespacesAreIsolated(t *testing.T) {
	exec, err := NewSQLite(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	a, err := exec.Create(ctx, peopleEntry())
	require.NoError(t, err)
	defer a.Drop(ctx)
	b, err := exec.Create(ctx, peopleEntry())
	require.NoError(t, err)
	defer b.Drop(ctx)

	_, err = a.Execute(ctx, `DELETE FROM people`)
	require.NoError(t, err)

	out, err := b.Execute(ctx, `SELECT COUNT(*) FROM people`)
	require.NoError(t, err)
	assert.Equal(t, `[(3,)]`, out)
	assert.NotEqual(t, a.Name(), b.Name())
}

func TestBuildInitSQLBatches(t *testing.T) {
	entry := peopleEntry()
	d := dialect{placeholder: postgresDialect.placeholder, maxParams: 4}

	stmts := buildInitSQL(entry, d)
	require.Len(t, stmts, 3)
	assert.Equal(t, `CREATE TABLE IF NOT EXISTS "people" ("id" NUMERIC, "name" TEXT)`, stmts[0].Query)
	assert.Equal(t, `INSERT INTO "people" ("id", "name") VALUES ($1, $2), ($3, $4)`, stmts[1].Query)
	assert.Equal(t, []any{"1", "ann", "2", "bob's"}, stmts[1].Args)
	assert.Equal(t, `INSERT INTO "people" ("id", "name") VALUES ($1, $2)`, stmts[2].Query)
	assert.Equal(t, []any{"3", nil}, stmts[2].Args)
}

func agesEntry() dataset.Entry {
	return dataset.Entry{
		Type: []string{dataset.KindSelect},
		Table: dataset.Table{
			Name: "people",
			Info: dataset.TableInfo{
				Columns: []dataset.Column{{Name: "name", Type: "TEXT"}, {Name: "age", Type: "int(11)"}, {Name: "score", Type: "DOUBLE"}},
				Rows: [][]any{
					{"ann", 30, 1234567.5},
					{"bob", 4, 2.25},
					{"cy", 100, 3.0},
				},
			},
		},
	}
}

func TestSQLiteNumericColumnsCompareAsNumbers(t *testing.T) {
	exec, err := NewSQLite(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()
	ns, err := exec.Create(ctx, agesEntry())
	require.NoError(t, err)
	defer ns.Drop(ctx)

	tests := []struct {
		query string
		want  string
	}{
		{`SELECT MAX(age) FROM people`, `[(100,)]`},
		{`SELECT MIN(age) FROM people`, `[(4,)]`},
		{`SELECT name FROM people ORDER BY age DESC LIMIT 1`, `[('cy',)]`},
		{`SELECT name FROM people WHERE age > 20 ORDER BY name`, `[('ann',), ('cy',)]`},
		{`SELECT name FROM people WHERE age > '20' ORDER BY name`, `[('ann',), ('cy',)]`},
		{`SELECT score FROM people WHERE name = 'bob'`, `[(2.25,)]`},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			out, err := ns.Execute(ctx, tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestSQLiteRowsReadNumbersAsText(t *testing.T) {
	exec, err := NewSQLite(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()
	ns, err := exec.Create(ctx, agesEntry())
	require.NoError(t, err)
	defer ns.Drop(ctx)

	rows, err := ns.Rows(ctx, "people", []string{"name", "age", "score"})
	require.NoError(t, err)
	require.Len(t, rows, 3)

	got := make([][]string, len(rows))
	for i, r := range rows {
		for _, c := range r {
			require.NotNil(t, c)
			got[i] = append(got[i], *c)
		}
	}
	assert.Equal(t, [][]string{
		{"ann", "30", "1234567.5"},
		{"bob", "4", "2.25"},
		{"cy", "100", "3"},
	}, got)
}

func TestColumnType(t *testing.T) {
	tests := []struct {
		declared string
		want     string
	}{
		{"INT", "NUMERIC"},
		{"int(11) unsigned", "NUMERIC"},
		{"DOUBLE PRECISION", "NUMERIC"},
		{"decimal(10,2)", "NUMERIC"},
		{"bigint", "NUMERIC"},
		{"TEXT", "TEXT"},
		{"VARCHAR(255)", "TEXT"},
		{"", "TEXT"},
		{"DATE", "TEXT"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, columnType(tt.declared), "declared %q", tt.declared)
	}
}

func TestRenderNumericBytesBare(t *testing.T) {
	assert.Equal(t, `(30, '30')`, renderTuple([]any{[]byte("30"), []byte("30")}, []bool{true, false}))
	assert.Equal(t, `(None,)`, renderTuple([]any{nil}, []bool{true}))
}

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, `"a""b"`, QuoteIdent(`a"b`))
}

func TestDialectName(t *testing.T) {
	assert.Equal(t, "SQLite", DialectName(DriverSQLite))
	assert.Equal(t, "SQLite", DialectName(""))
	assert.Equal(t, "PostgreSQL", DialectName(DriverPostgres))
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "oracle"})
	assert.Error(t, err)
}
