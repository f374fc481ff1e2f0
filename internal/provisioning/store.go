package provisioning

import "context"

// Store performs DDL against the shared database.
type Store interface {
	// Acquire returns a session that holds the cross-process lock of schema
	// until Release.
	Acquire(ctx context.Context, schema string) (Session, error)
	// ListTables reads the tables of schema without taking the lock.
	ListTables(ctx context.Context, schema string) (exists bool, tables []string, err error)
}

// Session is a locked connection bound to one schema.
type Session interface {
	SchemaExists(ctx context.Context) (bool, error)
	CreateSchema(ctx context.Context) error
	Tables(ctx context.Context) ([]string, error)
	CreateTable(ctx context.Context, table TableSpec) error
	DropTable(ctx context.Context, table TableSpec) error
	DropSchema(ctx context.Context) error
	Release()
}
