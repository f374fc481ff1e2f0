package provisioning

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
)

const unlockTimeout = 5 * time.Second

// PostgresStore runs provisioning DDL over a pgx pool. The cross-process lock
// is a session-level advisory lock keyed on the schema name, held on the
// dedicated connection for the life of the session.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Acquire(ctx context.Context, schema string) (Session, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock(hashtext($1))", schema); err != nil {
		conn.Release()
		return nil, fmt.Errorf("failed to take advisory lock for %s: %w", schema, err)
	}

	return &pgSession{conn: conn, schema: schema}, nil
}

func (s *PostgresStore) ListTables(ctx context.Context, schema string) (bool, []string, error) {
	var exists bool
	if err := s.pool.QueryRow(ctx, schemaExistsSQL, schema).Scan(&exists); err != nil {
		return false, nil, fmt.Errorf("failed to check schema %s: %w", schema, err)
	}
	if !exists {
		return false, nil, nil
	}

	rows, err := s.pool.Query(ctx, listTablesSQL, schema)
	if err != nil {
		return true, nil, fmt.Errorf("failed to list tables of %s: %w", schema, err)
	}
	defer rows.Close()

	tables, err := scanNames(rows)
	return true, tables, err
}

const (
	schemaExistsSQL = `SELECT EXISTS (SELECT 1 FROM information_schema.schemata WHERE schema_name = $1)`
	listTablesSQL   = `SELECT table_name FROM information_schema.tables
		WHERE table_schema = $1 AND table_type = 'BASE TABLE' ORDER BY table_name`
)

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanNames(rows rowScanner) ([]string, error) {
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

type pgSession struct {
	conn   *pgxpool.Conn
	schema string
}

func (s *pgSession) SchemaExists(ctx context.Context) (bool, error) {
	var exists bool
	if err := s.conn.QueryRow(ctx, schemaExistsSQL, s.schema).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check schema %s: %w", s.schema, err)
	}
	return exists, nil
}

func (s *pgSession) CreateSchema(ctx context.Context) error {
	if _, err := s.conn.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+pq.QuoteIdentifier(s.schema)); err != nil {
		return fmt.Errorf("failed to create schema %s: %w", s.schema, err)
	}
	return nil
}

func (s *pgSession) Tables(ctx context.Context) ([]string, error) {
	rows, err := s.conn.Query(ctx, listTablesSQL, s.schema)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables of %s: %w", s.schema, err)
	}
	defer rows.Close()
	return scanNames(rows)
}

func (s *pgSession) CreateTable(ctx context.Context, table TableSpec) error {
	if _, err := s.conn.Exec(ctx, table.CreateSQL(s.schema)); err != nil {
		return fmt.Errorf("failed to create table %s.%s: %w", s.schema, table.Name, err)
	}
	return nil
}

func (s *pgSession) DropTable(ctx context.Context, table TableSpec) error {
	if _, err := s.conn.Exec(ctx, table.DropSQL(s.schema)); err != nil {
		return fmt.Errorf("failed to drop table %s.%s: %w", s.schema, table.Name, err)
	}
	return nil
}

func (s *pgSession) DropSchema(ctx context.Context) error {
	if _, err := s.conn.Exec(ctx, "DROP SCHEMA IF EXISTS "+pq.QuoteIdentifier(s.schema)+" CASCADE"); err != nil {
		return fmt.Errorf("failed to drop schema %s: %w", s.schema, err)
	}
	return nil
}

// Release unlocks the schema and returns the connection to the pool. The
// unlock runs on its own context so a cancelled caller cannot leak the lock;
// if it still fails the connection is closed, which ends the session and
// with it the lock.
func (s *pgSession) Release() {
	ctx, cancel := context.WithTimeout(context.Background(), unlockTimeout)
	defer cancel()

	if _, err := s.conn.Exec(ctx, "SELECT pg_advisory_unlock(hashtext($1))", s.schema); err != nil {
		_ = s.conn.Conn().Close(ctx)
	}
	s.conn.Release()
}
