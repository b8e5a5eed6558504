package sqlexec

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/lib/pq"

	"github.com/berth-dev/dbbench/internal/dataset"
)

// Postgres caps bind parameters at 65535 per statement.
const postgresMaxParams = 65535

var postgresDialect = dialect{
	placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
	maxParams:   postgresMaxParams,
	isSQLError: func(err error) bool {
		var pqErr *pq.Error
		return errors.As(err, &pqErr)
	},
}

// Postgres provisions one schema per namespace on a shared server and pins
// a dedicated connection to it so search_path stays scoped to the sample.
type Postgres struct {
	db *sql.DB
}

// NewPostgres connects to the server at dsn.
func NewPostgres(dsn string) (*Postgres, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres executor requires a dsn")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return &Postgres{db: db}, nil
}

// Create makes a schema, points a pinned connection at it and seeds the table.
func (p *Postgres) Create(ctx context.Context, entry dataset.Entry) (Namespace, error) {
	name := newNamespaceName()
	schema := pq.QuoteIdentifier(name)

	conn, err := p.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	if _, err := conn.ExecContext(ctx, "CREATE SCHEMA "+schema); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("create schema %s: %w", name, err)
	}

	release := func(ctx context.Context) error {
		_, dropErr := conn.ExecContext(ctx, "DROP SCHEMA IF EXISTS "+schema+" CASCADE")
		_, resetErr := conn.ExecContext(ctx, "RESET search_path")
		return errors.Join(dropErr, resetErr, conn.Close())
	}

	if _, err := conn.ExecContext(ctx, "SET search_path TO "+schema); err != nil {
		_ = release(ctx)
		return nil, fmt.Errorf("set search_path: %w", err)
	}

	if err := seedTable(ctx, conn, postgresDialect, entry); err != nil {
		_ = release(ctx)
		return nil, err
	}

	return &namespace{
		name:    name,
		q:       conn,
		dialect: postgresDialect,
		release: release,
	}, nil
}

// Close closes the connection pool.
func (p *Postgres) Close() error {
	return p.db.Close()
}
