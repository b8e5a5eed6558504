package session

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/berth-dev/dbbench/internal/agent"
)

// ErrNotFound is returned when no archived result has the requested id.
var ErrNotFound = errors.New("result not found")

// Store archives sample results and their conversations in SQLite.
type Store struct {
	db *sql.DB
}

// NewStore opens the SQLite database at dbPath and creates tables if they don't exist.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := createTables(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func createTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS results (
		id TEXT PRIMARY KEY,
		run_id TEXT NOT NULL,
		sample_index INTEGER NOT NULL,
		status TEXT NOT NULL,
		answer TEXT NOT NULL,
		correct_answer TEXT NOT NULL,
		correct INTEGER NOT NULL,
		type TEXT NOT NULL,
		error TEXT NOT NULL,
		description TEXT NOT NULL,
		rounds INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS results_run ON results(run_id, sample_index);

	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		result_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		FOREIGN KEY (result_id) REFERENCES results(id)
	);
	`
	_, err := db.Exec(schema)
	return err
}

// SaveResult archives rec and its history in one transaction. rec.ID and
// rec.CreatedAt are assigned when empty. It returns the record id.
func (s *Store) SaveResult(rec Record, history []agent.Turn) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	if rec.CorrectAnswer == nil {
		rec.CorrectAnswer = []string{}
	}
	correctAnswer, err := json.Marshal(rec.CorrectAnswer)
	if err != nil {
		return "", fmt.Errorf("encode correct answer: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(
		`INSERT INTO results (id, run_id, sample_index, status, answer, correct_answer, correct, type, error, description, rounds, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.RunID, rec.Index, rec.Status, rec.Answer, string(correctAnswer), rec.Correct,
		rec.Type, rec.Error, rec.Description, rec.Rounds, rec.CreatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("insert result: %w", err)
	}

	for i, t := range history {
		_, err := tx.Exec(
			`INSERT INTO messages (result_id, seq, role, content) VALUES (?, ?, ?, ?)`,
			rec.ID, i, t.Role, t.Content,
		)
		if err != nil {
			return "", fmt.Errorf("insert message: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return rec.ID, nil
}

// DeleteRun removes every archived result of runID with its messages and
// returns how many results were removed.
func (s *Store) DeleteRun(runID string) (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(
		`DELETE FROM messages WHERE result_id IN (SELECT id FROM results WHERE run_id = ?)`, runID,
	); err != nil {
		return 0, fmt.Errorf("delete messages: %w", err)
	}
	res, err := tx.Exec(`DELETE FROM results WHERE run_id = ?`, runID)
	if err != nil {
		return 0, fmt.Errorf("delete results: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete results: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return int(n), nil
}

// GetResult retrieves a result and its conversation by id.
func (s *Store) GetResult(id string) (*Record, []agent.Turn, error) {
	row := s.db.QueryRow(
		`SELECT id, run_id, sample_index, status, answer, correct_answer, correct, type, error, description, rounds, created_at
		 FROM results WHERE id = ?`,
		id,
	)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, nil, err
	}

	msgs, err := s.getMessages(id)
	if err != nil {
		return nil, nil, err
	}
	history := make([]agent.Turn, len(msgs))
	for i, m := range msgs {
		history[i] = agent.Turn{Role: m.Role, Content: m.Content}
	}
	return rec, history, nil
}

// ListResults returns the results of runID ordered by sample index. An empty
// runID lists the most recent results across runs, up to limit.
func (s *Store) ListResults(runID string, limit int) ([]Record, error) {
	query := `SELECT id, run_id, sample_index, status, answer, correct_answer, correct, type, error, description, rounds, created_at
		 FROM results WHERE run_id = ? ORDER BY sample_index ASC LIMIT ?`
	args := []any{runID, limit}
	if runID == "" {
		query = `SELECT id, run_id, sample_index, status, answer, correct_answer, correct, type, error, description, rounds, created_at
		 FROM results ORDER BY created_at DESC LIMIT ?`
		args = []any{limit}
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return records, nil
}

// ListRuns returns summaries of the most recent runs.
func (s *Store) ListRuns(limit int) ([]RunSummary, error) {
	rows, err := s.db.Query(
		`SELECT run_id, COUNT(id), COALESCE(SUM(correct), 0), MAX(created_at)
		 FROM results
		 GROUP BY run_id
		 ORDER BY MAX(created_at) DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var summaries []RunSummary
	for rows.Next() {
		var sum RunSummary
		var updated string
		if err := rows.Scan(&sum.RunID, &sum.Samples, &sum.Correct, &updated); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		sum.UpdatedAt = parseTimestamp(updated)
		summaries = append(summaries, sum)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return summaries, nil
}

func (s *Store) getMessages(resultID string) ([]Message, error) {
	rows, err := s.db.Query(
		`SELECT id, result_id, seq, role, content
		 FROM messages
		 WHERE result_id = ?
		 ORDER BY seq ASC`,
		resultID,
	)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var messages []Message
	for rows.Next() {
		var msg Message
		if err := rows.Scan(&msg.ID, &msg.RecordID, &msg.Seq, &msg.Role, &msg.Content); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return messages, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*Record, error) {
	var rec Record
	var correctAnswer string
	err := row.Scan(&rec.ID, &rec.RunID, &rec.Index, &rec.Status, &rec.Answer, &correctAnswer,
		&rec.Correct, &rec.Type, &rec.Error, &rec.Description, &rec.Rounds, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan result: %w", err)
	}
	if err := json.Unmarshal([]byte(correctAnswer), &rec.CorrectAnswer); err != nil {
		return nil, fmt.Errorf("decode correct answer: %w", err)
	}
	return &rec, nil
}

// parseTimestamp reads the text form go-sqlite3 stores for time.Time values.
// Aggregates such as MAX lose the column's declared type, so they come back
// as strings.
func parseTimestamp(s string) time.Time {
	for _, layout := range []string{
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02T15:04:05.999999999-07:00",
		"2006-01-02 15:04:05",
		time.RFC3339Nano,
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
