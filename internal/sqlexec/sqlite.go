package sqlexec

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mattn/go-sqlite3"

	"github.com/berth-dev/dbbench/internal/dataset"
)

// sqliteMaxParams stays under SQLITE_MAX_VARIABLE_NUMBER for old builds.
const sqliteMaxParams = 999

var sqliteDialect = dialect{
	placeholder: func(int) string { return "?" },
	maxParams:   sqliteMaxParams,
	isSQLError: func(err error) bool {
		var sqliteErr sqlite3.Error
		return errors.As(err, &sqliteErr)
	},
}

// SQLite provisions one database file per namespace under a work directory.
type SQLite struct {
	workDir string
}

// NewSQLite returns an executor that keeps namespace files in workDir.
// An empty workDir uses a fresh temporary directory.
func NewSQLite(workDir string) (*SQLite, error) {
	if workDir == "" {
		dir, err := os.MkdirTemp("", "dbbench-*")
		if err != nil {
			return nil, fmt.Errorf("creating work directory: %w", err)
		}
		workDir = dir
	}
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return nil, fmt.Errorf("creating work directory: %w", err)
	}
	return &SQLite{workDir: workDir}, nil
}

// WorkDir returns the directory holding namespace files.
func (s *SQLite) WorkDir() string {
	return s.workDir
}

// Create opens a new database file and seeds it with the entry's table.
func (s *SQLite) Create(ctx context.Context, entry dataset.Entry) (Namespace, error) {
	name := newNamespaceName()
	path := filepath.Join(s.workDir, name+".db")

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open namespace %s: %w", name, err)
	}
	// One connection keeps every statement on the same file handle.
	db.SetMaxOpenConns(1)

	release := func(context.Context) error {
		closeErr := db.Close()
		if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
			return errors.Join(closeErr, rmErr)
		}
		return closeErr
	}

	if err := seedTable(ctx, db, sqliteDialect, entry); err != nil {
		_ = release(ctx)
		return nil, err
	}

	return &namespace{
		name:    name,
		q:       db,
		dialect: sqliteDialect,
		release: release,
	}, nil
}

// Close is a no-op; namespaces own their files.
func (s *SQLite) Close() error {
	return nil
}
