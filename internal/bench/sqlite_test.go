package bench

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/berth-dev/dbbench/internal/agent"
	"github.com/berth-dev/dbbench/internal/dataset"
	"github.com/berth-dev/dbbench/internal/sqlexec"
	"github.com/berth-dev/dbbench/internal/verify"
)

func peopleEntry(kind string) dataset.Entry {
	return dataset.Entry{
		Description: "Add Cy, aged 41.",
		Type:        []string{kind},
		Label:       []any{"2"},
		Table: dataset.Table{
			Name: "people",
			Info: dataset.TableInfo{
				Columns: []dataset.Column{{Name: "id", Type: "INT"}, {Name: "name", Type: "TEXT"}, {Name: "age", Type: "INT"}},
				Rows:    [][]any{{1, "ann", 30}, {2, "bob", nil}},
			},
		},
	}
}

func TestSQLiteInsertTask(t *testing.T) {
	dir := t.TempDir()
	exec, err := sqlexec.NewSQLite(dir)
	require.NoError(t, err)

	want := verify.Fingerprint([][]*string{
		{str("3"), str("cy"), str("41")},
		{str("1"), str("ann"), str("30")},
		{str("2"), str("bob"), nil},
	})
	entry := peopleEntry(dataset.KindInsert)
	entry.AnswerMD5 = want

	out, err := RunSample(context.Background(), SampleInput{
		Entry:    entry,
		MaxRound: 15,
		Preamble: "preamble",
		Agent: agent.ScriptedText(
			op("INSERT INTO people (id, name, age)\nVALUES ('3', 'cy', '41');"),
			answer(`["done"]`),
		),
		Executor: exec,
	})
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, out.Status)
	assert.Equal(t, want, out.Result.Answer)
	assert.True(t, out.Result.Correct)
	assert.Equal(t, "", out.History[4].Content, "statements without rows render empty")

	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, files, "namespace file removed")
}

func TestSQLiteSelectTaskWithSQLError(t *testing.T) {
	exec, err := sqlexec.NewSQLite(t.TempDir())
	require.NoError(t, err)

	out, err := RunSample(context.Background(), SampleInput{
		Entry:    peopleEntry(dataset.KindSelect),
		MaxRound: 15,
		Agent: agent.ScriptedText(
			op("SELEC COUNT(*) FROM people;"),
			op("SELECT COUNT(*) FROM people;"),
			answer(`[2]`),
		),
		Executor: exec,
	})
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, out.Status)
	assert.True(t, out.Result.Correct)
	assert.Equal(t, 2, out.Rounds)
	assert.Contains(t, out.History[4].Content, "syntax error")
	assert.Equal(t, "[(2,)]", out.History[6].Content)
}
